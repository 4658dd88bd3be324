package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	plog "blockremental/internal/persistence/log"
	"blockremental/internal/protocol"
	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/session"
	"blockremental/internal/sim/tuning"
)

type Options struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs

	// TickLogDir enables the per-session tick and audit journals when set.
	TickLogDir string
}

// Server runs one session per websocket connection.
type Server struct {
	opts Options
	log  *log.Logger

	upgrader websocket.Upgrader

	nextID atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session.Session
	retired  Stats
}

// Stats aggregates metrics over live and finished sessions.
type Stats struct {
	SessionsActive  int
	SessionsTotal   uint64
	Ticks           uint64
	ActionsAccepted uint64
	ActionsRejected uint64

	// Blocks sums placed blocks by catalog id over active sessions.
	Blocks map[string]int
}

func NewServer(opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Catalogs == nil {
		opts.Catalogs = catalogs.Defaults()
	}
	opts.Tuning.Normalize()
	return &Server{
		opts:     opts,
		log:      logger,
		sessions: map[string]*session.Session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, out, closeLogs := s.handshake(conn)
		if sess == nil {
			return
		}
		defer closeLogs()

		s.register(sess)
		defer s.unregister(sess)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Printf("session %s: run: %v", sess.ID(), err)
			}
		}()
		// The session loop must be gone before its journals close.
		defer func() {
			cancel()
			sess.Stop()
			<-runDone
		}()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				reject(ctx, out, act.ID, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			a, err := session.ActionFromMsg(act)
			if err != nil {
				reject(ctx, out, act.ID, session.ErrorCode(err), err.Error())
				continue
			}
			if err := sess.TrySubmit(a); err != nil {
				if errors.Is(err, session.ErrBusy) {
					reject(ctx, out, act.ID, session.ErrorCode(err), err.Error())
					continue
				}
				break
			}
		}
		s.log.Printf("session %s: closed at tick %d", sess.ID(), sess.CurrentTick())
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sess *session.Session, out chan []byte, closeLogs func()) {
	closeLogs = func() {}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, closeLogs
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, nil, closeLogs
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, nil, closeLogs
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, nil, closeLogs
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = s.opts.Tuning.MaxQueue
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	id := fmt.Sprintf("S%06d", s.nextID.Add(1))
	sess, err = session.New(session.FromTuning(id, s.opts.Tuning), s.opts.Catalogs)
	if err != nil {
		s.log.Printf("session %s: %v", id, err)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, protocol.ErrInternal), time.Now().Add(time.Second))
		return nil, nil, closeLogs
	}
	sess.SetLogger(s.log)
	sess.SetOutbox(out)

	if s.opts.TickLogDir != "" {
		closeLogs, err = s.attachJournals(sess)
		if err != nil {
			s.log.Printf("session %s: journal disabled: %v", id, err)
			closeLogs = func() {}
		}
	}

	// Send welcome + catalogs + the initial state immediately.
	if err := writeJSON(conn, sess.Welcome(s.opts.Tuning.Digest)); err != nil {
		closeLogs()
		return nil, nil, func() {}
	}
	for _, c := range sess.CatalogMsgs() {
		if err := writeJSON(conn, c); err != nil {
			closeLogs()
			return nil, nil, func() {}
		}
	}
	if err := writeJSON(conn, sess.Snapshot().StateMsg()); err != nil {
		closeLogs()
		return nil, nil, func() {}
	}

	s.log.Printf("session %s: player %q joined", id, hello.PlayerName)
	return sess, out, closeLogs
}

func (s *Server) attachJournals(sess *session.Session) (func(), error) {
	dir := filepath.Join(s.opts.TickLogDir, sess.ID())
	meta := plog.SessionMeta{
		Config:         sess.Config(),
		BlocksDigest:   s.opts.Catalogs.Blocks.Digest,
		UpgradesDigest: s.opts.Catalogs.Upgrades.Digest,
		TuningDigest:   s.opts.Tuning.Digest,
		StartedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := plog.WriteMeta(dir, meta); err != nil {
		return nil, err
	}
	tl := plog.NewTickLogger(dir)
	al := plog.NewAuditLogger(dir)
	sess.SetTickLogger(tl)
	sess.SetAuditLogger(al)
	return func() {
		_ = tl.Close()
		_ = al.Close()
	}, nil
}

func (s *Server) register(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
	s.retired.SessionsTotal++
}

func (s *Server) unregister(sess *session.Session) {
	m := sess.Metrics()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID())
	s.retired.Ticks += m.Tick
	s.retired.ActionsAccepted += m.ActionsAccepted
	s.retired.ActionsRejected += m.ActionsRejected
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.retired
	st.SessionsActive = len(s.sessions)
	st.Blocks = map[string]int{}
	for _, sess := range s.sessions {
		m := sess.Metrics()
		st.Ticks += m.Tick
		st.ActionsAccepted += m.ActionsAccepted
		st.ActionsRejected += m.ActionsRejected
		for id, n := range m.Blocks {
			st.Blocks[id] += n
		}
	}
	return st
}

// reject answers an ACT that never reached the session. It waits for outbox
// room rather than dropping, since clients track actions by their ACK.
func reject(ctx context.Context, out chan []byte, actID, code, message string) {
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          actID,
		Accepted:        false,
		Code:            code,
		Message:         message,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
