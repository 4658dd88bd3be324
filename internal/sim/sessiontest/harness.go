package sessiontest

import (
	"fmt"
	"testing"

	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/session"
)

// Harness is a small black-box test helper for driving a session via exported APIs:
// - Place()/Upgrade() issue one action via StepOnce()
// - StepMulti() applies several actions in one tick
// - StepFor()/StepUntilPoints() advance idle ticks
//
// It never touches session internals so tests can live outside the session package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	S    *session.Session

	nextAction int
}

func NewHarness(t *testing.T, cfg session.Config, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	s, err := session.New(cfg, cats)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return &Harness{T: t, Cats: cats, S: s}
}

// RepoCatalogs loads the catalogs shipped in configs/.
func RepoCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func (h *Harness) newID() string {
	h.nextAction++
	return fmt.Sprintf("A%06d", h.nextAction)
}

func (h *Harness) Place(x, y int, block string) session.ActionResult {
	h.T.Helper()
	return h.StepMulti([]session.Action{{ID: h.newID(), Kind: session.ActionPlace, X: x, Y: y, Block: block}})[0]
}

func (h *Harness) Upgrade(id string) session.ActionResult {
	h.T.Helper()
	return h.StepMulti([]session.Action{{ID: h.newID(), Kind: session.ActionUpgrade, Upgrade: id}})[0]
}

// MustPlace fails the test unless the placement is accepted.
func (h *Harness) MustPlace(x, y int, block string) {
	h.T.Helper()
	if r := h.Place(x, y, block); !r.Accepted {
		h.T.Fatalf("place %s at (%d,%d): %s %s", block, x, y, r.Code, r.Message)
	}
}

func (h *Harness) MustUpgrade(id string) {
	h.T.Helper()
	if r := h.Upgrade(id); !r.Accepted {
		h.T.Fatalf("upgrade %s: %s %s", id, r.Code, r.Message)
	}
}

func (h *Harness) StepMulti(actions []session.Action) []session.ActionResult {
	h.T.Helper()
	for i := range actions {
		if actions[i].ID == "" {
			actions[i].ID = h.newID()
		}
	}
	return h.S.Step(actions)
}

func (h *Harness) StepNoop() session.State {
	h.T.Helper()
	_, _ = h.S.StepOnce(nil)
	return h.S.Snapshot()
}

func (h *Harness) StepFor(n int) session.State {
	h.T.Helper()
	for i := 0; i < n; i++ {
		_, _ = h.S.StepOnce(nil)
	}
	return h.S.Snapshot()
}

// StepUntilPoints steps idle ticks until the balance reaches target, failing after limit ticks.
func (h *Harness) StepUntilPoints(target int64, limit int) session.State {
	h.T.Helper()
	for i := 0; i < limit; i++ {
		if st := h.S.Snapshot(); st.Points >= target {
			return st
		}
		_, _ = h.S.StepOnce(nil)
	}
	st := h.S.Snapshot()
	if st.Points < target {
		h.T.Fatalf("points=%d after %d ticks, want >= %d", st.Points, limit, target)
	}
	return st
}

func (h *Harness) State() session.State { return h.S.Snapshot() }
