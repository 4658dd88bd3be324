package session

import (
	"fmt"
	"time"

	"blockremental/internal/sim/grid"
)

// Step advances the session by one update tick.
//
// Order within a tick: actions in receive order, then a single production recompute if the
// grid changed, then the accrual clock. A rejected action never stops the remaining ones.
func (s *Session) Step(actions []Action) []ActionResult {
	stepStart := time.Now()
	nowTick := s.tick.Load()

	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		err := s.apply(a)
		if err != nil {
			s.rejected.Add(1)
			s.log.Printf("session %s tick %d: reject %s %s: %v", s.cfg.ID, nowTick, a.Kind, a.ID, err)
		} else {
			s.accepted.Add(1)
		}
		results = append(results, resultFor(a, err))
	}

	if s.dirty {
		s.recompute()
	}

	s.advanceClock()

	digest := s.Digest()
	if s.tickLogger != nil && len(actions) > 0 {
		entry := TickLogEntry{
			Tick:          nowTick,
			Actions:       append([]Action(nil), actions...),
			Results:       results,
			Points:        s.econ.Points(),
			PointsPerTick: s.econ.PointsPerTick(),
			Digest:        digest,
		}
		if err := s.tickLogger.WriteTick(entry); err != nil {
			s.log.Printf("session %s: tick log: %v", s.cfg.ID, err)
		}
	}

	nextTick := s.tick.Add(1)
	s.publish(nextTick, digest)
	s.publishMetrics(nextTick, float64(time.Since(stepStart).Microseconds())/1000.0)
	return results
}

// StepOnce advances the session by a single tick using the same ordering semantics as Run.
// It is primarily intended for deterministic replays/tests.
func (s *Session) StepOnce(actions []Action) (tick uint64, digest string) {
	tick = s.tick.Load()
	s.Step(actions)
	return tick, s.Digest()
}

func (s *Session) apply(a Action) error {
	switch a.Kind {
	case ActionPlace:
		t, ok := grid.ParseBlockType(a.Block)
		if !ok || t == grid.Empty {
			return fmt.Errorf("%w: %q", ErrUnknownBlock, a.Block)
		}
		return s.placeBlock(a.ID, a.X, a.Y, t)
	case ActionUpgrade:
		return s.applyUpgrade(a.ID, a.Upgrade)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrBadAction, a.Kind)
	}
}

// advanceClock moves the accrual clock forward by one update interval and credits
// points once per full accrual interval, carrying any remainder into the next tick.
func (s *Session) advanceClock() {
	s.clock += 1000
	interval := int64(s.cfg.AccrualIntervalMs) * int64(s.cfg.UpdateRateHz)
	for s.clock >= interval {
		s.clock -= interval
		s.econ.Accrue()
		s.accruals++
	}
}

// TicksPerAccrual is the number of update ticks between accruals, rounded up.
func (s *Session) TicksPerAccrual() int {
	interval := s.cfg.AccrualIntervalMs * s.cfg.UpdateRateHz
	return (interval + 999) / 1000
}
