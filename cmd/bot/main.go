package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"blockremental/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "player name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	p := &planner{}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			p.welcome(w.Params)
			logger.Printf("WELCOME session=%s update=%dHz accrual=%dms points=%d max=%dx%d",
				w.SessionID, w.Params.UpdateRateHz, w.Params.AccrualIntervalMs, w.Params.StartingPoints, w.Params.MaxWidth, w.Params.MaxHeight)

		case protocol.TypeCatalog:
			if err := p.loadCatalog(msg); err != nil {
				logger.Printf("catalog: %v", err)
			}

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			p.ack(ack.AckFor)
			if !ack.Accepted {
				logger.Printf("rejected %s: %s %s", ack.AckFor, ack.Code, ack.Message)
			}

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			if act, ok := p.next(st); ok {
				logger.Printf("tick=%d points=%d rate=%d -> %s %s%s", st.Tick, st.Points, st.PointsPerTick, act.Kind, act.Block, act.Upgrade)
				if err := conn.WriteJSON(act); err != nil {
					return
				}
			}
		}
	}
}
