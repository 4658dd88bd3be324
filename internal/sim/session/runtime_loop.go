package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"blockremental/internal/protocol"
)

// Run drives the session at UpdateRateHz until ctx is done or Stop is called.
// Actions received between ticks are applied together at the next update tick.
// When an outbox is attached, ACKs follow the tick that applied each action and
// STATE is pushed at DrawRateHz from the published snapshot.
func (s *Session) Run(ctx context.Context) error {
	update := time.NewTicker(time.Second / time.Duration(s.cfg.UpdateRateHz))
	defer update.Stop()
	draw := time.NewTicker(time.Second / time.Duration(s.cfg.DrawRateHz))
	defer draw.Stop()

	var pending []Action
	lastDrawn := ^uint64(0)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case a := <-s.inbox:
			pending = append(pending, a)
		case <-update.C:
			results := s.Step(pending)
			s.sendAcks(results)
			pending = pending[:0]
		case <-draw.C:
			st := s.Snapshot()
			if st.Tick == lastDrawn {
				continue
			}
			lastDrawn = st.Tick
			s.sendState(st)
		}
	}
}

func (s *Session) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// Inbox accepts actions for the next update tick.
func (s *Session) Inbox() chan<- Action { return s.inbox }

// Submit queues an action, giving up when ctx is done or the session has stopped.
func (s *Session) Submit(ctx context.Context, a Action) error {
	select {
	case s.inbox <- a:
		return nil
	case <-s.stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues an action without waiting. A full inbox returns ErrBusy.
func (s *Session) TrySubmit(a Action) error {
	select {
	case <-s.stop:
		return context.Canceled
	default:
	}
	select {
	case s.inbox <- a:
		return nil
	default:
		return fmt.Errorf("%w: %d actions pending", ErrBusy, len(s.inbox))
	}
}

// SetOutbox attaches a channel that receives ACK and STATE JSON.
func (s *Session) SetOutbox(out chan []byte) {
	s.outMu.Lock()
	s.out = out
	s.outMu.Unlock()
}

func (s *Session) outbox() chan []byte {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.out
}

func (s *Session) sendAcks(results []ActionResult) {
	out := s.outbox()
	if out == nil {
		return
	}
	tick := s.tick.Load()
	for _, r := range results {
		b, err := json.Marshal(protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			AckFor:          r.ActionID,
			Accepted:        r.Accepted,
			Code:            r.Code,
			Message:         r.Message,
			ServerTick:      tick,
		})
		if err != nil {
			continue
		}
		if !sendAck(out, b) {
			s.log.Printf("session %s: outbox stalled, ACK for %s dropped", s.cfg.ID, r.ActionID)
		}
	}
}

func (s *Session) sendState(st State) {
	out := s.outbox()
	if out == nil {
		return
	}
	b, err := json.Marshal(st.StateMsg())
	if err != nil {
		return
	}
	sendState(out, b)
}

// ackSendTimeout bounds how long the session loop waits on an outbox that is
// full of ACKs.
var ackSendTimeout = 250 * time.Millisecond

var ackPrefix = []byte(`{"type":"` + protocol.TypeAck + `"`)

func isAckFrame(b []byte) bool { return bytes.HasPrefix(b, ackPrefix) }

// sendAck never evicts another ACK. Queued STATE frames are dropped to make
// room; if the outbox holds only ACKs it waits up to ackSendTimeout.
func sendAck(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	dropStates(ch)
	select {
	case ch <- b:
		return true
	case <-time.After(ackSendTimeout):
		return false
	}
}

// sendState keeps only the newest STATE when the outbox is full. ACKs are
// never evicted for it; without room the frame is dropped and the next draw
// tick sends a fresher one.
func sendState(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	dropStates(ch)
	select {
	case ch <- b:
	default:
	}
}

// dropStates drains the queued frames and puts the ACKs back in order.
func dropStates(ch chan []byte) {
	var kept [][]byte
drain:
	for n := len(ch); n > 0; n-- {
		select {
		case f := <-ch:
			if isAckFrame(f) {
				kept = append(kept, f)
			}
		default:
			break drain
		}
	}
	for _, f := range kept {
		select {
		case ch <- f:
		case <-time.After(ackSendTimeout):
			return
		}
	}
}
