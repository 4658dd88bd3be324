// Package session owns one player's game: the grid, the economy, and the tick clock.
//
// All mutation happens on the goroutine that calls Step (directly, via StepOnce, or inside Run).
// Readers on other goroutines use Snapshot and Metrics, which are published atomically after
// every step and never alias the live grid.
package session

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/economy"
	"blockremental/internal/sim/grid"
	"blockremental/internal/sim/production"
)

type Session struct {
	cfg  Config
	cats *catalogs.Catalogs
	log  *log.Logger

	grid *grid.Grid
	econ *economy.Economy
	prod production.Result

	// dirty is set by any grid mutation and cleared by recompute.
	dirty bool

	// clock counts elapsed time in units of 1/UpdateRateHz ms so that 60 Hz steps
	// add up to exactly 1000 ms per second with no rounding drift.
	clock    int64
	accruals uint64

	tick atomic.Uint64

	inbox    chan Action
	stop     chan struct{}
	stopOnce sync.Once

	outMu sync.Mutex
	out   chan []byte

	tickLogger  TickLogger
	auditLogger AuditLogger

	accepted atomic.Uint64
	rejected atomic.Uint64

	snapshot atomic.Value // State
	metrics  atomic.Value // Metrics
}

func New(cfg Config, cats *catalogs.Catalogs) (*Session, error) {
	cfg.applyDefaults()
	if cats == nil {
		cats = catalogs.Defaults()
	}
	if len(cats.Blocks.Defs) == 0 {
		return nil, fmt.Errorf("session %s: empty block catalog", cfg.ID)
	}
	s := &Session{
		cfg:   cfg,
		cats:  cats,
		log:   log.New(io.Discard, "", 0),
		grid:  grid.New(cfg.InitialWidth, cfg.InitialHeight),
		econ:  economy.New(cfg.StartingPoints),
		inbox: make(chan Action, cfg.MaxQueue*4),
		stop:  make(chan struct{}),
	}
	s.recompute()
	s.publish(0, "")
	return s, nil
}

func (s *Session) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	s.log = l
}

func (s *Session) SetTickLogger(l TickLogger)   { s.tickLogger = l }
func (s *Session) SetAuditLogger(l AuditLogger) { s.auditLogger = l }

func (s *Session) ID() string                   { return s.cfg.ID }
func (s *Session) Config() Config               { return s.cfg }
func (s *Session) Catalogs() *catalogs.Catalogs { return s.cats }
func (s *Session) CurrentTick() uint64          { return s.tick.Load() }

// Points and PointsPerTick read live state; call them only from the stepping goroutine.
func (s *Session) Points() int64        { return s.econ.Points() }
func (s *Session) PointsPerTick() int64 { return s.econ.PointsPerTick() }

// PlaceBlock buys one block of type t and places it at (x, y).
// Funds are checked before the cell; a rejected purchase leaves points and grid unchanged.
func (s *Session) PlaceBlock(x, y int, t grid.BlockType) error {
	if err := s.placeBlock("", x, y, t); err != nil {
		return err
	}
	s.recompute()
	return nil
}

// ApplyUpgrade buys the upgrade with the given catalog id and applies its effect.
func (s *Session) ApplyUpgrade(id string) error {
	if err := s.applyUpgrade("", id); err != nil {
		return err
	}
	s.recompute()
	return nil
}

func (s *Session) placeBlock(actionID string, x, y int, t grid.BlockType) error {
	def, ok := s.cats.Block(t)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, t)
	}
	if !s.econ.CanAfford(def.Cost) {
		return fmt.Errorf("%w: %s costs %d, have %d", ErrInsufficientFunds, def.Name, def.Cost, s.econ.Points())
	}
	if !s.grid.CanPlace(x, y, t) {
		return fmt.Errorf("%w: (%d,%d) is occupied or outside %dx%d", ErrInvalidPlacement, x, y, s.grid.Width(), s.grid.Height())
	}
	s.econ.Spend(def.Cost)
	s.grid.Place(x, y, t)
	s.dirty = true
	s.audit(AuditEntry{
		ActionID: actionID,
		Action:   string(ActionPlace),
		Pos:      [2]int{x, y},
		Item:     def.ID,
		Cost:     def.Cost,
	})
	return nil
}

func (s *Session) applyUpgrade(actionID, id string) error {
	def, ok := s.cats.Upgrade(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUpgrade, id)
	}
	if !s.econ.CanAfford(def.Cost) {
		return fmt.Errorf("%w: %s costs %d, have %d", ErrInsufficientFunds, def.Name, def.Cost, s.econ.Points())
	}
	switch def.Effect.Kind {
	case catalogs.EffectGrowGrid:
		nw := s.grid.Width() + def.Effect.DW
		nh := s.grid.Height() + def.Effect.DH
		if nw > s.cfg.MaxWidth || nh > s.cfg.MaxHeight {
			return fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrGridAtCapacity, nw, nh, s.cfg.MaxWidth, s.cfg.MaxHeight)
		}
		s.econ.Spend(def.Cost)
		s.grid.Grow(def.Effect.DW, def.Effect.DH)
	default:
		return fmt.Errorf("%w: %s has unsupported effect %q", ErrUnknownUpgrade, id, def.Effect.Kind)
	}
	s.dirty = true
	s.audit(AuditEntry{
		ActionID: actionID,
		Action:   string(ActionUpgrade),
		Item:     def.ID,
		Cost:     def.Cost,
	})
	return nil
}

func (s *Session) audit(e AuditEntry) {
	if s.auditLogger == nil {
		return
	}
	e.Tick = s.tick.Load()
	e.SessionID = s.cfg.ID
	e.PointsLeft = s.econ.Points()
	e.Width = s.grid.Width()
	e.Height = s.grid.Height()
	if err := s.auditLogger.WriteAudit(e); err != nil {
		s.log.Printf("session %s: audit: %v", s.cfg.ID, err)
	}
}

// recompute re-evaluates production from scratch and caches the rate in the economy.
func (s *Session) recompute() {
	s.prod = production.Evaluate(s.grid)
	s.econ.SetRate(s.prod.PointsPerTick)
	s.dirty = false
}
