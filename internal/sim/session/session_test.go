package session

import (
	"errors"
	"testing"

	"blockremental/internal/protocol"
	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/grid"
	"blockremental/internal/sim/tuning"
)

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg, catalogs.Defaults())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return s
}

func TestNew_FromDefaultTuning(t *testing.T) {
	s := newTestSession(t, FromTuning("S1", tuning.Defaults()))
	if s.ID() != "S1" {
		t.Fatalf("id=%q", s.ID())
	}
	if s.Points() != 10 {
		t.Fatalf("starting points=%d want 10", s.Points())
	}
	st := s.Snapshot()
	if st.Width != 1 || st.Height != 1 {
		t.Fatalf("initial grid %dx%d want 1x1", st.Width, st.Height)
	}
	if st.CellAt(0, 0) != grid.Empty || st.PointsPerTick != 0 {
		t.Fatalf("fresh session should be empty with zero rate: %+v", st)
	}
}

func TestPlaceBlock_InsufficientFundsIsAtomic(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 5})
	before := s.Digest()

	err := s.PlaceBlock(0, 0, grid.Incrementor)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if s.Points() != 5 {
		t.Fatalf("points changed on rejected purchase: %d", s.Points())
	}
	if s.grid.CellAt(0, 0) != grid.Empty {
		t.Fatalf("grid changed on rejected purchase")
	}
	if s.Digest() != before {
		t.Fatalf("digest changed on rejected purchase")
	}
}

func TestPlaceBlock_InvalidPlacementIsNotCharged(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 30})

	if err := s.PlaceBlock(1, 0, grid.Incrementor); !errors.Is(err, ErrInvalidPlacement) {
		t.Fatalf("out of bounds: want ErrInvalidPlacement, got %v", err)
	}
	if s.Points() != 30 {
		t.Fatalf("out of bounds placement charged: %d", s.Points())
	}

	if err := s.PlaceBlock(0, 0, grid.Incrementor); err != nil {
		t.Fatalf("place: %v", err)
	}
	if s.Points() != 20 || s.PointsPerTick() != 1 {
		t.Fatalf("after place: points=%d rate=%d", s.Points(), s.PointsPerTick())
	}

	if err := s.PlaceBlock(0, 0, grid.Adder); !errors.Is(err, ErrInvalidPlacement) {
		t.Fatalf("occupied: want ErrInvalidPlacement, got %v", err)
	}
	if s.Points() != 20 || s.grid.CellAt(0, 0) != grid.Incrementor {
		t.Fatalf("occupied placement mutated state: points=%d cell=%s", s.Points(), s.grid.CellAt(0, 0))
	}
}

func TestPlaceBlock_FundsCheckedBeforeCell(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 0})
	if err := s.PlaceBlock(9, 9, grid.Adder); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds first, got %v", err)
	}
}

func TestPlaceBlock_EmptyIsNotPurchasable(t *testing.T) {
	s := newTestSession(t, Config{})
	if err := s.PlaceBlock(0, 0, grid.Empty); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("want ErrUnknownBlock, got %v", err)
	}
}

func TestApplyUpgrade_GrowsGrid(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 25})
	if err := s.PlaceBlock(0, 0, grid.Incrementor); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := s.ApplyUpgrade("BIGGINATOR"); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if s.grid.Width() != 2 || s.grid.Height() != 2 {
		t.Fatalf("grid %dx%d want 2x2", s.grid.Width(), s.grid.Height())
	}
	if s.grid.CellAt(0, 0) != grid.Incrementor {
		t.Fatalf("growth lost existing cell")
	}
	if s.Points() != 0 || s.PointsPerTick() != 1 {
		t.Fatalf("after upgrade: points=%d rate=%d", s.Points(), s.PointsPerTick())
	}
}

func TestApplyUpgrade_Rejections(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 100, MaxWidth: 2, MaxHeight: 2})
	if err := s.ApplyUpgrade("BIGGINATOR"); err != nil {
		t.Fatalf("first upgrade: %v", err)
	}
	err := s.ApplyUpgrade("BIGGINATOR")
	if !errors.Is(err, ErrGridAtCapacity) {
		t.Fatalf("want ErrGridAtCapacity, got %v", err)
	}
	if s.Points() != 85 {
		t.Fatalf("capacity rejection charged: points=%d want 85", s.Points())
	}
	if err := s.ApplyUpgrade("NOPE"); !errors.Is(err, ErrUnknownUpgrade) {
		t.Fatalf("want ErrUnknownUpgrade, got %v", err)
	}

	poor := newTestSession(t, Config{StartingPoints: 14})
	if err := poor.ApplyUpgrade("BIGGINATOR"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if poor.grid.Width() != 1 || poor.Points() != 14 {
		t.Fatalf("rejected upgrade mutated state")
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{ErrInvalidPlacement, protocol.ErrInvalidPlacement},
		{ErrInsufficientFunds, protocol.ErrInsufficientFunds},
		{ErrGridAtCapacity, protocol.ErrInvalidTarget},
		{ErrUnknownBlock, protocol.ErrBadRequest},
		{ErrUnknownUpgrade, protocol.ErrBadRequest},
		{ErrBadAction, protocol.ErrBadRequest},
		{ErrBusy, protocol.ErrSessionBusy},
		{errors.New("boom"), protocol.ErrInternal},
	}
	for _, c := range cases {
		if got := ErrorCode(c.err); got != c.code {
			t.Fatalf("ErrorCode(%v)=%q want %q", c.err, got, c.code)
		}
		if !protocol.IsKnownCode(ErrorCode(c.err)) {
			t.Fatalf("code for %v is not a known protocol code", c.err)
		}
	}
}

func TestActionFromMsg(t *testing.T) {
	a, err := ActionFromMsg(protocol.ActMsg{ID: "a1", Kind: "place", X: 2, Y: 3, Block: " adder "})
	if err != nil {
		t.Fatalf("valid place: %v", err)
	}
	if a.Kind != ActionPlace || a.Block != "ADDER" || a.X != 2 || a.Y != 3 {
		t.Fatalf("action=%+v", a)
	}

	bad := []protocol.ActMsg{
		{Kind: "PLACE", Block: "ADDER"},
		{ID: "x", Kind: "PLACE"},
		{ID: "x", Kind: "UPGRADE"},
		{ID: "x", Kind: "REMOVE"},
	}
	for _, m := range bad {
		if _, err := ActionFromMsg(m); !errors.Is(err, ErrBadAction) {
			t.Fatalf("%+v: want ErrBadAction, got %v", m, err)
		}
	}
}
