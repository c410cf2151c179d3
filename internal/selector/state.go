package selector

// SelectionState carries everything a selection decision depends on for one
// market: the round-robin cursor and a rolling outcome window per model. The
// Selector owns one per market and drops it wholesale when that market's
// model configuration changes, so stale cursors and stats never leak across
// configurations.
type SelectionState struct {
	// cursor is the base-order index of the last dispatched model. -1 until
	// the first dispatch.
	cursor int

	window int
	stats  map[string]*rollingStats
}

func NewSelectionState(window int) *SelectionState {
	if window <= 0 {
		window = defaultStatsWindow
	}
	return &SelectionState{
		cursor: -1,
		window: window,
		stats:  map[string]*rollingStats{},
	}
}

// Reset returns the state to its initial condition.
func (s *SelectionState) Reset() {
	s.cursor = -1
	s.stats = map[string]*rollingStats{}
}

func (s *SelectionState) record(modelID string, success bool, latencyMs int64) {
	rs, ok := s.stats[modelID]
	if !ok {
		rs = &rollingStats{window: s.window}
		s.stats[modelID] = rs
	}
	rs.add(success, latencyMs)
}

// statsFor reports a model's rolling success rate and mean latency. samples
// is zero for models with no recorded outcomes.
func (s *SelectionState) statsFor(modelID string) (successRate, avgLatencyMs float64, samples int) {
	rs, ok := s.stats[modelID]
	if !ok {
		return 0, 0, 0
	}
	return rs.snapshot()
}

// rollingStats is a fixed-size ring over the most recent outcomes.
type rollingStats struct {
	window  int
	next    int
	samples []sample
}

type sample struct {
	success   bool
	latencyMs int64
}

func (r *rollingStats) add(success bool, latencyMs int64) {
	s := sample{success: success, latencyMs: latencyMs}
	if len(r.samples) < r.window {
		r.samples = append(r.samples, s)
		return
	}
	r.samples[r.next] = s
	r.next = (r.next + 1) % r.window
}

func (r *rollingStats) snapshot() (successRate, avgLatencyMs float64, samples int) {
	n := len(r.samples)
	if n == 0 {
		return 0, 0, 0
	}
	ok := 0
	var totalLatency int64
	for _, s := range r.samples {
		if s.success {
			ok++
		}
		totalLatency += s.latencyMs
	}
	return float64(ok) / float64(n), float64(totalLatency) / float64(n), n
}
