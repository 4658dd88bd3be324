package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/session"
	"blockremental/internal/sim/tuning"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		logPath    = flag.String("log", "", "write session logs to this file (the terminal is taken by the UI)")
	)
	flag.Parse()

	if err := run(*configDir, *tuningPath, *logPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir, tuningPath, logPath string) error {
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := log.New(logOut, "[tui] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(configDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	tp := strings.TrimSpace(tuningPath)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	s, err := session.New(session.FromTuning("local", tune), cats)
	if err != nil {
		return err
	}
	s.SetLogger(logger)
	out := make(chan []byte, tune.MaxQueue)
	s.SetOutbox(out)

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	screen.EnableMouse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("run: %v", err)
		}
	}()
	defer s.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(tune.DrawRateHz))
	defer ticker.Stop()

	u := newUI(cats)
	u.draw(screen, s.Snapshot())
	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					st := s.Snapshot()
					logger.Printf("quit at tick %d points=%d", st.Tick, st.Points)
					return nil
				}
			case *tcell.EventMouse:
				if a, ok := u.handleMouse(ev, s.Snapshot()); ok {
					select {
					case s.Inbox() <- a:
					default:
						u.status = "too many pending actions"
					}
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case b := <-out:
			u.handleMessage(b)
		case <-ticker.C:
			u.draw(screen, s.Snapshot())
		}
	}
}
