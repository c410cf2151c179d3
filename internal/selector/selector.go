package selector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
	"github.com/GoAITrader/tradegate/internal/pkg/metrics"
	"github.com/GoAITrader/tradegate/internal/pricing"
	"github.com/GoAITrader/tradegate/internal/registry"
)

const (
	defaultStatsWindow     = 50
	defaultReferenceTokens = 1000
)

// UsageSink absorbs per-model usage counters. The Redis repo and the
// in-memory store both satisfy it.
type UsageSink interface {
	AddModelUsage(ctx context.Context, modelID string, requests int, tokens int64) error
}

// InvokeFunc performs one model invocation on behalf of Execute.
// Implementations must honor ctx; the selector applies the policy timeout
// per attempt.
type InvokeFunc func(ctx context.Context, m model.ModelDefinition) (*Invocation, error)

// Invocation is the collaborator's report of one completed call.
type Invocation struct {
	Output any
	Tokens int64
}

// Selection is one dispatched choice.
type Selection struct {
	Market   string                `json:"market"`
	Strategy model.Strategy        `json:"strategy"`
	Model    model.ModelDefinition `json:"model"`
	Attempt  int                   `json:"attempt"`
	Tried    []string              `json:"tried,omitempty"`
	Output   any                   `json:"output,omitempty"`
}

// Selector picks models for every market according to that market's
// selection policy. It owns the per-market SelectionState and the rate-limit
// bank; both are dropped when the registry reports a configuration change.
type Selector struct {
	registry *registry.Registry
	usage    UsageSink

	window          int
	referenceTokens int

	mu     sync.Mutex
	states map[string]*marketState
	bank   *limiterBank
}

// marketState pairs a SelectionState with its guard. Selection and outcome
// recording for one market serialize on it; the lock is never held across a
// collaborator call.
type marketState struct {
	mu    sync.Mutex
	state *SelectionState
}

type Option func(*Selector)

// WithStatsWindow sets the rolling outcome window per model.
func WithStatsWindow(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithReferenceTokens sets the token estimate used when a request does not
// carry one. Cost ranking prices the same amount.
func WithReferenceTokens(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.referenceTokens = n
		}
	}
}

// WithUsageSink mirrors reported outcomes into daily usage counters.
func WithUsageSink(sink UsageSink) Option {
	return func(s *Selector) { s.usage = sink }
}

func New(reg *registry.Registry, opts ...Option) *Selector {
	s := &Selector{
		registry:        reg,
		window:          defaultStatsWindow,
		referenceTokens: defaultReferenceTokens,
		states:          map[string]*marketState{},
		bank:            newLimiterBank(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// A replaced configuration invalidates cursors, stats and buckets.
	reg.OnUpdate(func(marketID string, _ model.ModelConfig) {
		s.Reset(marketID)
	})
	return s
}

// Select runs one selection attempt for a market, by config key. It never
// waits on rate limits: when every candidate's budget is spent the call fails
// fast with RateLimited.
func (s *Selector) Select(ctx context.Context, key string, req model.SelectRequest) (*Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	marketID, err := s.registry.ResolveKey(key)
	if err != nil {
		return nil, err
	}
	mc, err := s.registry.ConfigForMarket(marketID)
	if err != nil {
		return nil, err
	}

	ms := s.marketState(marketID)
	ms.mu.Lock()
	def, err := s.selectLocked(marketID, mc, ms.state, toSet(req.Exclude), s.estimate(req.EstimatedTokens))
	ms.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &Selection{
		Market:   marketID,
		Strategy: mc.Policy.Strategy,
		Model:    def,
		Attempt:  1,
	}, nil
}

// Execute drives the fallback loop: select, invoke, and on failure exclude
// the failed model for this request only and re-run the same strategy, up to
// MaxRetries extra attempts. Policy and model set are snapshotted once at the
// start, so a concurrent configuration change never mixes into a running
// request.
func (s *Selector) Execute(ctx context.Context, key string, req model.SelectRequest, invoke InvokeFunc) (*Selection, error) {
	marketID, err := s.registry.ResolveKey(key)
	if err != nil {
		return nil, err
	}
	mc, err := s.registry.ConfigForMarket(marketID)
	if err != nil {
		return nil, err
	}

	attempts := 1
	if mc.Policy.FallbackEnabled {
		attempts += mc.Policy.MaxRetries
	}
	estTokens := s.estimate(req.EstimatedTokens)
	exclude := toSet(req.Exclude)
	tried := make([]string, 0, attempts)
	ms := s.marketState(marketID)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ms.mu.Lock()
		def, selErr := s.selectLocked(marketID, mc, ms.state, exclude, estTokens)
		ms.mu.Unlock()
		if selErr != nil {
			if attempt == 1 {
				return nil, selErr
			}
			return nil, exhaustedErr(marketID, tried)
		}
		tried = append(tried, def.ID)

		attemptCtx := ctx
		cancel := func() {}
		if d := mc.Policy.Timeout(); d > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, d)
		}
		started := time.Now()
		inv, invErr := invoke(attemptCtx, def)
		cancel()
		latency := time.Since(started).Milliseconds()

		if invErr == nil {
			var tokens int64
			if inv != nil {
				tokens = inv.Tokens
			}
			s.recordOutcome(ctx, marketID, ms, def.ID, true, latency, tokens)
			sel := &Selection{
				Market:   marketID,
				Strategy: mc.Policy.Strategy,
				Model:    def,
				Attempt:  attempt,
				Tried:    tried,
			}
			if inv != nil {
				sel.Output = inv.Output
			}
			return sel, nil
		}

		s.recordOutcome(ctx, marketID, ms, def.ID, false, latency, 0)
		logger.Warn("Model invocation failed",
			"market", marketID, "model", def.ID, "attempt", attempt, "error", invErr)
		exclude[def.ID] = true
	}

	return nil, exhaustedErr(marketID, tried)
}

// ReportOutcome records an externally performed invocation, by config key.
// The model must belong to the market's current configuration.
func (s *Selector) ReportOutcome(ctx context.Context, key string, req model.OutcomeRequest) error {
	marketID, err := s.registry.ResolveKey(key)
	if err != nil {
		return err
	}
	mc, err := s.registry.ConfigForMarket(marketID)
	if err != nil {
		return err
	}
	known := false
	for _, m := range mc.Models {
		if m.ID == req.ModelID {
			known = true
			break
		}
	}
	if !known {
		return apperrors.New(apperrors.ErrUnknownModel,
			fmt.Sprintf("model %q is not part of market %q configuration", req.ModelID, marketID), nil)
	}

	s.recordOutcome(ctx, marketID, s.marketState(marketID), req.ModelID, req.Success, req.LatencyMs, req.Tokens)
	return nil
}

// Reset drops one market's selection state and rate-limit buckets.
func (s *Selector) Reset(marketID string) {
	ms := s.marketState(marketID)
	ms.mu.Lock()
	ms.state.Reset()
	ms.mu.Unlock()
	s.bank.reset(marketID)
	logger.Info("Selection state reset", "market", marketID)
}

func (s *Selector) recordOutcome(ctx context.Context, marketID string, ms *marketState, modelID string, success bool, latencyMs, tokens int64) {
	ms.mu.Lock()
	ms.state.record(modelID, success, latencyMs)
	ms.mu.Unlock()

	if s.usage != nil {
		if err := s.usage.AddModelUsage(ctx, modelID, 1, tokens); err != nil {
			logger.Warn("Usage counter update failed", "market", marketID, "model", modelID, "error", err)
		}
	}
}

func (s *Selector) marketState(marketID string) *marketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.states[marketID]
	if !ok {
		ms = &marketState{state: NewSelectionState(s.window)}
		s.states[marketID] = ms
	}
	return ms
}

func (s *Selector) estimate(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.referenceTokens
}

// candidate carries a model along with its position in the deterministic
// base order, which the round-robin cursor is defined over.
type candidate struct {
	def       model.ModelDefinition
	baseIndex int
}

// selectLocked walks the strategy-ordered candidates and dispatches the
// first one whose rate budget admits the request. Callers hold the market's
// state lock.
func (s *Selector) selectLocked(marketID string, mc model.ModelConfig, st *SelectionState, exclude map[string]bool, estTokens int) (model.ModelDefinition, error) {
	enabled := baseOrder(mc.EnabledModels())
	if len(enabled) == 0 {
		metrics.SelectionRejects.WithLabelValues(marketID, "no_models").Inc()
		return model.ModelDefinition{}, apperrors.New(apperrors.ErrNoModelAvailable,
			fmt.Sprintf("market %q has no enabled models", marketID), nil)
	}

	candidates := make([]candidate, 0, len(enabled))
	for i, def := range enabled {
		if exclude[def.ID] {
			continue
		}
		candidates = append(candidates, candidate{def: def, baseIndex: i})
	}
	if len(candidates) == 0 {
		metrics.SelectionRejects.WithLabelValues(marketID, "all_excluded").Inc()
		return model.ModelDefinition{}, apperrors.New(apperrors.ErrNoModelAvailable,
			fmt.Sprintf("every enabled model of market %q is excluded", marketID), nil)
	}

	s.orderByStrategy(mc.Policy.Strategy, marketID, st, len(enabled), candidates)

	for _, cand := range candidates {
		if !s.bank.limiter(marketID, cand.def.ID, cand.def.RateLimit).allow(estTokens) {
			continue
		}
		if mc.Policy.Strategy == model.StrategyRoundRobin {
			st.cursor = cand.baseIndex
		}
		metrics.SelectionsTotal.WithLabelValues(marketID, string(mc.Policy.Strategy), cand.def.ID).Inc()
		return cand.def, nil
	}

	metrics.SelectionRejects.WithLabelValues(marketID, "rate_limited").Inc()
	return model.ModelDefinition{}, apperrors.New(apperrors.ErrRateLimited,
		fmt.Sprintf("every candidate model of market %q is rate limited", marketID), nil)
}

// orderByStrategy sorts candidates in place. Skipped candidates stay in the
// rotation for round_robin: the order is defined over base positions relative
// to the cursor, so exclusion and rate limiting never eject a model.
func (s *Selector) orderByStrategy(strategy model.Strategy, marketID string, st *SelectionState, baseLen int, candidates []candidate) {
	switch strategy {
	case model.StrategyRoundRobin:
		start := (st.cursor + 1) % baseLen
		sort.SliceStable(candidates, func(i, j int) bool {
			di := (candidates[i].baseIndex - start + baseLen) % baseLen
			dj := (candidates[j].baseIndex - start + baseLen) % baseLen
			return di < dj
		})

	case model.StrategyCostOptimized:
		type refCost struct {
			cost  decimal.Decimal
			known bool
		}
		// Priced per model id, not per slice index, so the comparator stays
		// correct while sort moves elements around. Unknown models rank last.
		costs := make(map[string]refCost, len(candidates))
		for _, cand := range candidates {
			c, ok := pricing.ReferenceCost(cand.def.Provider, cand.def.ID, int64(s.referenceTokens))
			costs[cand.def.ID] = refCost{cost: c, known: ok}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			ci, cj := costs[candidates[i].def.ID], costs[candidates[j].def.ID]
			if ci.known != cj.known {
				return ci.known
			}
			if ci.known && !ci.cost.Equal(cj.cost) {
				return ci.cost.LessThan(cj.cost)
			}
			return lessBase(candidates[i], candidates[j])
		})

	case model.StrategyPerformanceOptimized:
		sort.SliceStable(candidates, func(i, j int) bool {
			ri, li, ni := st.statsFor(candidates[i].def.ID)
			rj, lj, nj := st.statsFor(candidates[j].def.ID)
			if (ni > 0) != (nj > 0) {
				return ni > 0
			}
			if ni == 0 && nj == 0 {
				return lessBase(candidates[i], candidates[j])
			}
			if ri != rj {
				return ri > rj
			}
			if li != lj {
				return li < lj
			}
			return lessBase(candidates[i], candidates[j])
		})

	case model.StrategyPriority:
		// Already in base order.

	default:
		logger.Warn("Unknown selection strategy, falling back to priority order",
			"market", marketID, "strategy", strategy)
	}
}

func lessBase(a, b candidate) bool {
	if a.def.Priority != b.def.Priority {
		return a.def.Priority < b.def.Priority
	}
	return a.def.ID < b.def.ID
}

func baseOrder(models []model.ModelDefinition) []model.ModelDefinition {
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Priority != models[j].Priority {
			return models[i].Priority < models[j].Priority
		}
		return models[i].ID < models[j].ID
	})
	return models
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func exhaustedErr(marketID string, tried []string) error {
	return apperrors.New(apperrors.ErrModelsExhausted,
		fmt.Sprintf("all fallback attempts failed for market %q (tried: %s)",
			marketID, strings.Join(tried, ", ")), nil)
}
