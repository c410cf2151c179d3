package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GoAITrader/tradegate/internal/model"
)

// RedisUsageRepo keeps per-model daily usage counters in one hash per UTC
// day, so several gateway instances can share them.
type RedisUsageRepo struct {
	client *RedisClient
	prefix string
}

func NewRedisUsageRepo(client *RedisClient) *RedisUsageRepo {
	return &RedisUsageRepo{
		client: client,
		prefix: "model_usage",
	}
}

func (r *RedisUsageRepo) AddModelUsage(ctx context.Context, modelID string, requests int, tokens int64) error {
	key := r.dayKey()
	pipe := r.client.Client.Pipeline()
	if requests != 0 {
		pipe.HIncrBy(ctx, key, modelID+":requests", int64(requests))
	}
	if tokens != 0 {
		pipe.HIncrBy(ctx, key, modelID+":tokens", tokens)
	}
	// Two days keeps yesterday readable across the UTC rollover.
	pipe.Expire(ctx, key, 48*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisUsageRepo) GetModelUsage(ctx context.Context, modelID string) (model.ModelUsage, error) {
	key := r.dayKey()
	vals, err := r.client.Client.HMGet(ctx, key, modelID+":requests", modelID+":tokens").Result()
	if err != nil {
		return model.ModelUsage{}, err
	}
	var usage model.ModelUsage
	if len(vals) == 2 {
		if s, ok := vals[0].(string); ok {
			usage.Requests, _ = strconv.Atoi(s)
		}
		if s, ok := vals[1].(string); ok {
			usage.Tokens, _ = strconv.ParseInt(s, 10, 64)
		}
	}
	return usage, nil
}

func (r *RedisUsageRepo) ListModelUsage(ctx context.Context) (map[string]model.ModelUsage, error) {
	fields, err := r.client.Client.HGetAll(ctx, r.dayKey()).Result()
	if err != nil {
		return nil, err
	}
	out := map[string]model.ModelUsage{}
	for field, raw := range fields {
		// Split on the last colon; model ids may carry separators of
		// their own.
		idx := strings.LastIndex(field, ":")
		if idx < 0 {
			continue
		}
		modelID, counter := field[:idx], field[idx+1:]
		usage := out[modelID]
		switch counter {
		case "requests":
			usage.Requests, _ = strconv.Atoi(raw)
		case "tokens":
			usage.Tokens, _ = strconv.ParseInt(raw, 10, 64)
		}
		out[modelID] = usage
	}
	return out, nil
}

func (r *RedisUsageRepo) dayKey() string {
	return fmt.Sprintf("%s:%s", r.prefix, time.Now().UTC().Format("2006-01-02"))
}
