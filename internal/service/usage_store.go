package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GoAITrader/tradegate/internal/model"
)

// UsageStore is the contract a usage backend satisfies: the write side feeds
// the selector's outcome reports, the read side serves the usage endpoint.
type UsageStore interface {
	AddModelUsage(ctx context.Context, modelID string, requests int, tokens int64) error
	GetModelUsage(ctx context.Context, modelID string) (model.ModelUsage, error)
	ListModelUsage(ctx context.Context) (map[string]model.ModelUsage, error)
}

// MemoryUsageStore tracks per-model daily usage in process. It is the
// single-instance stand-in for the Redis repo; both satisfy the selector's
// usage sink and the usage handler.
type MemoryUsageStore struct {
	mu     sync.RWMutex
	counts map[string]model.ModelUsage // key: modelID:YYYY-MM-DD
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{counts: make(map[string]model.ModelUsage)}
}

func (s *MemoryUsageStore) AddModelUsage(_ context.Context, modelID string, requests int, tokens int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.makeKey(modelID)
	usage := s.counts[key]
	usage.Requests += requests
	usage.Tokens += tokens
	s.counts[key] = usage
	return nil
}

func (s *MemoryUsageStore) GetModelUsage(_ context.Context, modelID string) (model.ModelUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[s.makeKey(modelID)], nil
}

// ListModelUsage returns today's counters keyed by model id.
func (s *MemoryUsageStore) ListModelUsage(_ context.Context) (map[string]model.ModelUsage, error) {
	suffix := ":" + today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]model.ModelUsage{}
	for key, usage := range s.counts {
		modelID, ok := strings.CutSuffix(key, suffix)
		if !ok {
			continue
		}
		out[modelID] = usage
	}
	return out, nil
}

func (s *MemoryUsageStore) makeKey(modelID string) string {
	return modelID + ":" + today()
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
