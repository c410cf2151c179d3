package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/registry"
	"github.com/GoAITrader/tradegate/internal/repository"
)

const testKey = "us_market"

func newTestSelector(t *testing.T, opts ...Option) (*Selector, *registry.Registry) {
	t.Helper()
	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg := registry.New(store)
	return New(reg, opts...), reg
}

func install(t *testing.T, reg *registry.Registry, policy model.ModelSelectionPolicy, models ...model.ModelDefinition) {
	t.Helper()
	_, err := reg.Update(testKey, model.UpdateModelConfigRequest{Policy: policy, Models: models})
	require.NoError(t, err)
}

func mdl(id string, priority int) model.ModelDefinition {
	return model.ModelDefinition{ID: id, Provider: "openai", Enabled: true, Priority: priority}
}

func errType(t *testing.T, err error) apperrors.ErrorType {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "want AppError, got %v", err)
	return appErr.Type
}

func TestSelectPriorityIsDeterministic(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		mdl("gpt-4-turbo", 3), mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2))

	for i := 0; i < 10; i++ {
		sel, err := s.Select(context.Background(), testKey, model.SelectRequest{})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", sel.Model.ID, "iteration %d", i)
	}
}

func TestSelectPriorityTieBreaksByID(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		mdl("gpt-4o-mini", 1), mdl("gpt-4o", 1))

	sel, err := s.Select(context.Background(), testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sel.Model.ID)
}

func TestSelectRoundRobinFairness(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyRoundRobin},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2), mdl("gpt-4-turbo", 3))

	const n = 10
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		sel, err := s.Select(context.Background(), testKey, model.SelectRequest{})
		require.NoError(t, err)
		counts[sel.Model.ID]++
	}

	require.Len(t, counts, 3, "every model takes part in the rotation")
	for id, c := range counts {
		assert.GreaterOrEqual(t, c, n/3, "model %s starved", id)
		assert.LessOrEqual(t, c, n/3+1, "model %s over-selected", id)
	}
}

func TestSelectRoundRobinSkipsExcludedWithoutEjecting(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyRoundRobin},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2), mdl("gpt-4-turbo", 3))

	// Exclusion covers one request only; the skipped model must come back.
	sel, err := s.Select(context.Background(), testKey, model.SelectRequest{Exclude: []string{"gpt-4o"}})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", sel.Model.ID)

	sel, err = s.Select(context.Background(), testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", sel.Model.ID, "rotation continues past the dispatched model")

	sel, err = s.Select(context.Background(), testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sel.Model.ID, "previously excluded model rejoins the rotation")
}

func TestSelectCostOptimizedPicksCheapest(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyCostOptimized},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2), mdl("gpt-4-turbo", 3))

	sel, err := s.Select(context.Background(), testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", sel.Model.ID, "cheapest reference cost wins over priority")
}

func TestSelectCostOptimizedUnknownPriceRanksLast(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyCostOptimized},
		model.ModelDefinition{ID: "in-house-llm", Provider: "lab", Enabled: true, Priority: 1},
		mdl("gpt-4-turbo", 9))

	sel, err := s.Select(context.Background(), testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", sel.Model.ID, "unpriced models are last resort")
}

func TestSelectPerformanceOptimized(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPerformanceOptimized},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2), mdl("gpt-4-turbo", 3))

	ctx := context.Background()
	report := func(id string, success bool, latency int64) {
		require.NoError(t, s.ReportOutcome(ctx, testKey, model.OutcomeRequest{
			ModelID: id, Success: success, LatencyMs: latency,
		}))
	}

	// gpt-4o: one failure. gpt-4o-mini: clean but slow. gpt-4-turbo: no history.
	report("gpt-4o", true, 100)
	report("gpt-4o", false, 100)
	report("gpt-4o-mini", true, 900)
	report("gpt-4o-mini", true, 900)

	sel, err := s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", sel.Model.ID, "higher success rate beats lower latency")

	// With the leader excluded, recorded history still beats no history.
	sel, err = s.Select(ctx, testKey, model.SelectRequest{Exclude: []string{"gpt-4o-mini"}})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sel.Model.ID, "a model with outcomes outranks one without")
}

func TestSelectPerformanceTieBreaksByLatency(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPerformanceOptimized},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2))

	ctx := context.Background()
	require.NoError(t, s.ReportOutcome(ctx, testKey, model.OutcomeRequest{ModelID: "gpt-4o", Success: true, LatencyMs: 800}))
	require.NoError(t, s.ReportOutcome(ctx, testKey, model.OutcomeRequest{ModelID: "gpt-4o-mini", Success: true, LatencyMs: 200}))

	sel, err := s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", sel.Model.ID)
}

func TestSelectNoEnabledModels(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		mdl("gpt-4o", 1))

	// Excluding the only enabled model leaves nothing to select.
	sel, err := s.Select(context.Background(), testKey, model.SelectRequest{Exclude: []string{"gpt-4o"}})
	require.Nil(t, sel)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNoModelAvailable, errType(t, err))
}

func TestSelectRateLimitFailsFast(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		model.ModelDefinition{
			ID: "gpt-4o", Provider: "openai", Enabled: true, Priority: 1,
			RateLimit: model.RateLimitSpec{RPM: 2},
		})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := s.Select(ctx, testKey, model.SelectRequest{})
		require.NoError(t, err, "request %d within budget", i+1)
	}

	_, err := s.Select(ctx, testKey, model.SelectRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrRateLimited, errType(t, err))
}

func TestSelectRateLimitedModelFallsToNext(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		model.ModelDefinition{
			ID: "gpt-4o", Provider: "openai", Enabled: true, Priority: 1,
			RateLimit: model.RateLimitSpec{RPM: 1},
		},
		mdl("gpt-4o-mini", 2))

	ctx := context.Background()
	sel, err := s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sel.Model.ID)

	sel, err = s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", sel.Model.ID, "a spent budget sidelines the model for the attempt only")
}

func TestSelectTokenBudget(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		model.ModelDefinition{
			ID: "gpt-4o", Provider: "openai", Enabled: true, Priority: 1,
			RateLimit: model.RateLimitSpec{TPM: 1000},
		})

	ctx := context.Background()
	_, err := s.Select(ctx, testKey, model.SelectRequest{EstimatedTokens: 600})
	require.NoError(t, err)

	_, err = s.Select(ctx, testKey, model.SelectRequest{EstimatedTokens: 600})
	require.Error(t, err, "600 tokens no longer fit the per-minute budget")
	assert.Equal(t, apperrors.ErrRateLimited, errType(t, err))
}

func TestExecuteFallsBackWithinRetryBudget(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{
			Strategy:        model.StrategyPriority,
			FallbackEnabled: true,
			MaxRetries:      2,
		},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2), mdl("gpt-4-turbo", 3))

	var invoked []string
	sel, err := s.Execute(context.Background(), testKey, model.SelectRequest{},
		func(ctx context.Context, m model.ModelDefinition) (*Invocation, error) {
			invoked = append(invoked, m.ID)
			if len(invoked) < 3 {
				return nil, fmt.Errorf("provider outage")
			}
			return &Invocation{Output: "filled", Tokens: 420}, nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"}, invoked,
		"each failure excludes the model for this request and re-runs the strategy")
	assert.Equal(t, 3, sel.Attempt)
	assert.Equal(t, "gpt-4-turbo", sel.Model.ID)
	assert.Equal(t, invoked, sel.Tried)
	assert.Equal(t, "filled", sel.Output)
}

func TestExecuteExhaustsAllModels(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{
			Strategy:        model.StrategyPriority,
			FallbackEnabled: true,
			MaxRetries:      2,
		},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2))

	calls := 0
	_, err := s.Execute(context.Background(), testKey, model.SelectRequest{},
		func(ctx context.Context, m model.ModelDefinition) (*Invocation, error) {
			calls++
			return nil, fmt.Errorf("provider outage")
		})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrModelsExhausted, errType(t, err))
	assert.Equal(t, 2, calls, "only two models exist to try")
}

func TestExecuteNoFallbackStopsAfterFirstFailure(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority, MaxRetries: 5},
		mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2))

	calls := 0
	_, err := s.Execute(context.Background(), testKey, model.SelectRequest{},
		func(ctx context.Context, m model.ModelDefinition) (*Invocation, error) {
			calls++
			return nil, fmt.Errorf("provider outage")
		})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrModelsExhausted, errType(t, err))
	assert.Equal(t, 1, calls, "fallback disabled means a single attempt regardless of max_retries")
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		mdl("gpt-4o", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Execute(ctx, testKey, model.SelectRequest{},
		func(ctx context.Context, m model.ModelDefinition) (*Invocation, error) {
			t.Fatal("invoke must not run after cancellation")
			return nil, nil
		})
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfigUpdateResetsSelectionState(t *testing.T) {
	s, reg := newTestSelector(t)
	policy := model.ModelSelectionPolicy{Strategy: model.StrategyRoundRobin}
	models := []model.ModelDefinition{mdl("gpt-4o", 1), mdl("gpt-4o-mini", 2), mdl("gpt-4-turbo", 3)}
	install(t, reg, policy, models...)

	ctx := context.Background()
	sel, err := s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sel.Model.ID)
	sel, err = s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", sel.Model.ID)

	// Replacing the configuration drops the cursor and the stats.
	install(t, reg, policy, models...)
	sel, err = s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sel.Model.ID, "rotation restarts after a config change")
}

func TestConfigUpdateResetsRateBuckets(t *testing.T) {
	s, reg := newTestSelector(t)
	policy := model.ModelSelectionPolicy{Strategy: model.StrategyPriority}
	limited := model.ModelDefinition{
		ID: "gpt-4o", Provider: "openai", Enabled: true, Priority: 1,
		RateLimit: model.RateLimitSpec{RPM: 1},
	}
	install(t, reg, policy, limited)

	ctx := context.Background()
	_, err := s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err)
	_, err = s.Select(ctx, testKey, model.SelectRequest{})
	require.Error(t, err)

	install(t, reg, policy, limited)
	_, err = s.Select(ctx, testKey, model.SelectRequest{})
	require.NoError(t, err, "fresh configuration starts with a full budget")
}

func TestReportOutcomeUnknownModel(t *testing.T) {
	s, reg := newTestSelector(t)
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		mdl("gpt-4o", 1))

	err := s.ReportOutcome(context.Background(), testKey, model.OutcomeRequest{
		ModelID: "gpt-9", Success: true,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnknownModel, errType(t, err))
}

func TestSelectorNamespaceGuard(t *testing.T) {
	s, _ := newTestSelector(t)

	_, err := s.Select(context.Background(), "us", model.SelectRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, errType(t, err))
	assert.Contains(t, err.Error(), "us_market")
}

type recordingSink struct {
	mu       sync.Mutex
	requests int
	tokens   int64
}

func (r *recordingSink) AddModelUsage(_ context.Context, _ string, requests int, tokens int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests += requests
	r.tokens += tokens
	return nil
}

func TestOutcomesFeedUsageSink(t *testing.T) {
	sink := &recordingSink{}
	s, reg := newTestSelector(t, WithUsageSink(sink))
	install(t, reg,
		model.ModelSelectionPolicy{Strategy: model.StrategyPriority},
		mdl("gpt-4o", 1))

	ctx := context.Background()
	require.NoError(t, s.ReportOutcome(ctx, testKey, model.OutcomeRequest{
		ModelID: "gpt-4o", Success: true, LatencyMs: 120, Tokens: 1500,
	}))

	_, err := s.Execute(ctx, testKey, model.SelectRequest{},
		func(ctx context.Context, m model.ModelDefinition) (*Invocation, error) {
			return &Invocation{Tokens: 500}, nil
		})
	require.NoError(t, err)

	assert.Equal(t, 2, sink.requests)
	assert.Equal(t, int64(2000), sink.tokens)
}
