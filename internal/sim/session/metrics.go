package session

import "blockremental/internal/sim/grid"

// Metrics is a thread-safe read-only view of key session runtime signals.
// It is updated from the session loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	Tick uint64 `json:"tick"`

	Points        int64  `json:"points"`
	PointsPerTick int64  `json:"points_per_tick"`
	TotalAccrued  int64  `json:"total_accrued"`
	Accruals      uint64 `json:"accruals"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// Blocks counts placed blocks by catalog id.
	Blocks map[string]int `json:"blocks"`

	ActionsAccepted uint64 `json:"actions_accepted"`
	ActionsRejected uint64 `json:"actions_rejected"`

	InboxDepth int     `json:"inbox_depth"`
	StepMS     float64 `json:"step_ms"`
}

func (s *Session) Metrics() Metrics {
	if s == nil {
		return Metrics{}
	}
	v := s.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (s *Session) publishMetrics(tick uint64, stepMS float64) {
	blocks := make(map[string]int, len(grid.Types()))
	for _, t := range grid.Types() {
		blocks[t.String()] = s.grid.Count(t)
	}
	s.metrics.Store(Metrics{
		Tick:            tick,
		Points:          s.econ.Points(),
		PointsPerTick:   s.econ.PointsPerTick(),
		TotalAccrued:    s.econ.TotalAccrued(),
		Accruals:        s.accruals,
		Width:           s.grid.Width(),
		Height:          s.grid.Height(),
		Blocks:          blocks,
		ActionsAccepted: s.accepted.Load(),
		ActionsRejected: s.rejected.Load(),
		InboxDepth:      len(s.inbox),
		StepMS:          stepMS,
	})
}
