package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"blockremental/internal/protocol"
	"blockremental/internal/sim/grid"
)

type captureTickLogger struct {
	entries []TickLogEntry
}

func (c *captureTickLogger) WriteTick(e TickLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

type captureAuditLogger struct {
	entries []AuditEntry
}

func (c *captureAuditLogger) WriteAudit(e AuditEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func TestStep_AccruesOncePerInterval(t *testing.T) {
	s := newTestSession(t, Config{UpdateRateHz: 60, AccrualIntervalMs: 1000, StartingPoints: 10})
	res := s.Step([]Action{{ID: "a1", Kind: ActionPlace, X: 0, Y: 0, Block: "INCREMENTOR"}})
	if len(res) != 1 || !res[0].Accepted {
		t.Fatalf("place result: %+v", res)
	}
	for i := 1; i < 59; i++ {
		s.Step(nil)
	}
	if s.Points() != 0 {
		t.Fatalf("points=%d before a full second elapsed", s.Points())
	}
	s.Step(nil)
	if s.Points() != 1 {
		t.Fatalf("points=%d want 1 after 60 ticks at 60 Hz", s.Points())
	}
	if s.TicksPerAccrual() != 60 {
		t.Fatalf("ticks per accrual=%d want 60", s.TicksPerAccrual())
	}
}

func TestStep_AccrualCarriesRemainder(t *testing.T) {
	// 3 Hz updates with a 500 ms interval: 333.3 ms per tick.
	s := newTestSession(t, Config{UpdateRateHz: 3, AccrualIntervalMs: 500})
	for i := 0; i < 6; i++ {
		s.Step(nil)
	}
	if got := s.Metrics().Accruals; got != 4 {
		t.Fatalf("accruals=%d want 4 over 2 seconds", got)
	}
}

func TestStep_RateReflectsPlacementBeforeAccrual(t *testing.T) {
	// Accrue every tick so the placement tick's accrual is observable.
	s := newTestSession(t, Config{UpdateRateHz: 1, AccrualIntervalMs: 1000, StartingPoints: 10})
	s.Step([]Action{{ID: "a1", Kind: ActionPlace, Block: "INCREMENTOR"}})
	if s.Points() != 1 {
		t.Fatalf("points=%d want 1: accrual must use the post-placement rate", s.Points())
	}
}

func TestStep_RejectedActionDoesNotStopTick(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 10})
	res := s.Step([]Action{
		{ID: "bad", Kind: ActionPlace, X: 5, Y: 5, Block: "INCREMENTOR"},
		{ID: "junk", Kind: ActionPlace, Block: "LAVA"},
		{ID: "ok", Kind: ActionPlace, X: 0, Y: 0, Block: "INCREMENTOR"},
	})
	if len(res) != 3 {
		t.Fatalf("results=%d want 3", len(res))
	}
	if res[0].Accepted || res[0].Code != protocol.ErrInvalidPlacement {
		t.Fatalf("bad placement result: %+v", res[0])
	}
	if res[1].Accepted || res[1].Code != protocol.ErrBadRequest {
		t.Fatalf("unknown block result: %+v", res[1])
	}
	if !res[2].Accepted || res[2].ActionID != "ok" {
		t.Fatalf("valid placement result: %+v", res[2])
	}
	m := s.Metrics()
	if m.ActionsAccepted != 1 || m.ActionsRejected != 2 {
		t.Fatalf("metrics accepted=%d rejected=%d", m.ActionsAccepted, m.ActionsRejected)
	}
}

func TestMetrics_CountsBlocksByType(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 1000, InitialWidth: 2, InitialHeight: 2})
	res := s.Step([]Action{
		{ID: "a", Kind: ActionPlace, X: 0, Y: 0, Block: "INCREMENTOR"},
		{ID: "b", Kind: ActionPlace, X: 1, Y: 0, Block: "INCREMENTOR"},
		{ID: "c", Kind: ActionPlace, X: 0, Y: 1, Block: "ADDER"},
	})
	for _, r := range res {
		if !r.Accepted {
			t.Fatalf("place rejected: %+v", r)
		}
	}
	m := s.Metrics()
	want := map[string]int{"INCREMENTOR": 2, "ADDER": 1, "DOUBLER": 0}
	if len(m.Blocks) != len(want) {
		t.Fatalf("blocks=%v want %v", m.Blocks, want)
	}
	for id, n := range want {
		if m.Blocks[id] != n {
			t.Fatalf("blocks[%s]=%d want %d (all=%v)", id, m.Blocks[id], n, m.Blocks)
		}
	}
}

func TestStepOnce_Deterministic(t *testing.T) {
	script := map[int][]Action{
		0:  {{ID: "1", Kind: ActionPlace, Block: "INCREMENTOR"}},
		5:  {{ID: "2", Kind: ActionUpgrade, Upgrade: "BIGGINATOR"}},
		70: {{ID: "3", Kind: ActionUpgrade, Upgrade: "BIGGINATOR"}, {ID: "4", Kind: ActionPlace, X: 1, Y: 0, Block: "ADDER"}},
	}
	run := func() []string {
		s := newTestSession(t, Config{StartingPoints: 40})
		var digests []string
		for i := 0; i < 200; i++ {
			_, d := s.StepOnce(script[i])
			digests = append(digests, d)
		}
		return digests
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("digest mismatch at tick %d", i)
		}
	}
}

func TestStepOnce_ReturnsTickBeforeStep(t *testing.T) {
	s := newTestSession(t, Config{})
	tick, digest := s.StepOnce(nil)
	if tick != 0 || s.CurrentTick() != 1 {
		t.Fatalf("tick=%d current=%d", tick, s.CurrentTick())
	}
	if digest != s.Snapshot().Digest {
		t.Fatalf("StepOnce digest differs from published snapshot")
	}
}

func TestSnapshot_IsIsolatedFromLiveGrid(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 10})
	s.Step(nil)
	st := s.Snapshot()
	st.Cells[0][0] = grid.Adder
	if s.grid.CellAt(0, 0) != grid.Empty {
		t.Fatalf("mutating a snapshot changed the live grid")
	}
}

func TestStateMsg_RowsAreYMajor(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 100, InitialWidth: 3, InitialHeight: 2})
	s.Step([]Action{
		{ID: "1", Kind: ActionPlace, X: 2, Y: 1, Block: "INCREMENTOR"},
		{ID: "2", Kind: ActionPlace, X: 1, Y: 1, Block: "ADDER"},
	})
	msg := s.Snapshot().StateMsg()
	if len(msg.Cells) != 2 || len(msg.Cells[0]) != 3 {
		t.Fatalf("cells shape %dx%d want 2 rows of 3", len(msg.Cells), len(msg.Cells[0]))
	}
	if msg.Cells[1][2] != "INCREMENTOR" || msg.Cells[1][1] != "ADDER" {
		t.Fatalf("cells=%v", msg.Cells)
	}
	if msg.Values[1][2] != 2 || msg.PointsPerTick != 2 {
		t.Fatalf("values=%v rate=%d", msg.Values, msg.PointsPerTick)
	}
}

func TestTickLogger_RecordsOnlyTicksWithActions(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 10})
	tl := &captureTickLogger{}
	al := &captureAuditLogger{}
	s.SetTickLogger(tl)
	s.SetAuditLogger(al)

	s.Step(nil)
	s.Step([]Action{{ID: "a", Kind: ActionPlace, Block: "INCREMENTOR"}})
	s.Step(nil)

	if len(tl.entries) != 1 {
		t.Fatalf("tick log entries=%d want 1", len(tl.entries))
	}
	e := tl.entries[0]
	if e.Tick != 1 || len(e.Actions) != 1 || !e.Results[0].Accepted || e.PointsPerTick != 1 || e.Digest == "" {
		t.Fatalf("entry=%+v", e)
	}
	if len(al.entries) != 1 || al.entries[0].Item != "INCREMENTOR" || al.entries[0].Cost != 10 || al.entries[0].PointsLeft != 0 {
		t.Fatalf("audit=%+v", al.entries)
	}
}

func TestRun_AppliesInboxAndAcks(t *testing.T) {
	s := newTestSession(t, Config{UpdateRateHz: 100, DrawRateHz: 50, StartingPoints: 10})
	out := make(chan []byte, 64)
	s.SetOutbox(out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := s.Submit(ctx, Action{ID: "a1", Kind: ActionPlace, Block: "INCREMENTOR"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.After(3 * time.Second)
	var gotAck, gotState bool
	for !gotAck || !gotState {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch base.Type {
			case protocol.TypeAck:
				var ack protocol.AckMsg
				if err := json.Unmarshal(b, &ack); err != nil {
					t.Fatalf("ack: %v", err)
				}
				if ack.AckFor != "a1" || !ack.Accepted {
					t.Fatalf("ack=%+v", ack)
				}
				gotAck = true
			case protocol.TypeState:
				var st protocol.StateMsg
				if err := json.Unmarshal(b, &st); err != nil {
					t.Fatalf("state: %v", err)
				}
				if gotAck && st.PointsPerTick == 1 {
					gotState = true
				}
			}
		case <-deadline:
			t.Fatalf("timed out: ack=%v state=%v", gotAck, gotState)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRun_Stop(t *testing.T) {
	s := newTestSession(t, Config{})
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	s.Stop()
	s.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after Stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Stop")
	}
}

func drainFrames(t *testing.T, out chan []byte) (acks []protocol.AckMsg, states int) {
	t.Helper()
	for {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch base.Type {
			case protocol.TypeAck:
				var ack protocol.AckMsg
				if err := json.Unmarshal(b, &ack); err != nil {
					t.Fatalf("ack: %v", err)
				}
				acks = append(acks, ack)
			case protocol.TypeState:
				states++
			}
		default:
			return acks, states
		}
	}
}

func TestSendAcks_SurvivesStatePressure(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 10})
	out := make(chan []byte, 2)
	s.SetOutbox(out)

	res := s.Step([]Action{{ID: "a1", Kind: ActionPlace, Block: "INCREMENTOR"}})
	s.sendAcks(res)
	s.sendState(s.Snapshot())
	s.sendState(s.Snapshot())
	s.sendState(s.Snapshot())

	acks, states := drainFrames(t, out)
	if len(acks) != 1 || acks[0].AckFor != "a1" || !acks[0].Accepted {
		t.Fatalf("acks=%+v: the ACK for a1 must survive later STATE pushes", acks)
	}
	if states != 1 {
		t.Fatalf("states=%d want the newest one only", states)
	}
}

func TestSendState_NeverEvictsAck(t *testing.T) {
	s := newTestSession(t, Config{StartingPoints: 10})
	out := make(chan []byte, 1)
	s.SetOutbox(out)

	s.sendAcks([]ActionResult{{ActionID: "a1", Accepted: true}})
	s.sendState(s.Snapshot())

	acks, states := drainFrames(t, out)
	if len(acks) != 1 || states != 0 {
		t.Fatalf("acks=%d states=%d want the ACK kept and the STATE dropped", len(acks), states)
	}
}

func TestSendAcks_DropsNewestWhenOutboxHoldsOnlyAcks(t *testing.T) {
	old := ackSendTimeout
	ackSendTimeout = 10 * time.Millisecond
	t.Cleanup(func() { ackSendTimeout = old })

	s := newTestSession(t, Config{})
	out := make(chan []byte, 1)
	s.SetOutbox(out)

	done := make(chan struct{})
	go func() {
		s.sendAcks([]ActionResult{{ActionID: "a1", Accepted: true}, {ActionID: "a2", Accepted: true}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sendAcks blocked past its timeout")
	}
	acks, _ := drainFrames(t, out)
	if len(acks) != 1 || acks[0].AckFor != "a1" {
		t.Fatalf("acks=%+v want a1 kept", acks)
	}
}

func TestTrySubmit_FullInboxIsBusy(t *testing.T) {
	s := newTestSession(t, Config{MaxQueue: 1})
	for i := 0; i < 4; i++ {
		if err := s.TrySubmit(Action{ID: "a", Kind: ActionPlace, Block: "INCREMENTOR"}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	err := s.TrySubmit(Action{ID: "b", Kind: ActionPlace, Block: "INCREMENTOR"})
	if !errors.Is(err, ErrBusy) || ErrorCode(err) != protocol.ErrSessionBusy {
		t.Fatalf("want ErrBusy, got %v", err)
	}

	s.Stop()
	if err := s.TrySubmit(Action{ID: "c"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("after Stop: want context.Canceled, got %v", err)
	}
}
