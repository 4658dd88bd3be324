package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/grid"
	"blockremental/internal/sim/tuning"
	"blockremental/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		tickLogDir = flag.String("tick_log", "", "directory for per-session tick/audit journals (empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	if dir := strings.TrimSpace(*tickLogDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("tick log dir: %v", err)
		}
		logger.Printf("journaling sessions to %s", dir)
	}

	wsSrv := ws.NewServer(ws.Options{
		Tuning:     tune,
		Catalogs:   cats,
		TickLogDir: strings.TrimSpace(*tickLogDir),
	}, logger)

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(wsSrv, envBool("BR_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()), logger),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (update=%dHz draw=%dHz accrual=%dms)", *addr, tune.UpdateRateHz, tune.DrawRateHz, tune.AccrualIntervalMs)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func newMux(wsSrv *ws.Server, enableAdmin bool, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, wsSrv.Stats())
	})
	if enableAdmin {
		// Local-only; read-only view of the session registry.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(wsSrv.Stats())
		})
	} else {
		logger.Printf("admin endpoints disabled (BR_ENABLE_ADMIN_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, st ws.Stats) {
	fmt.Fprintf(rw, "# HELP blockremental_sessions_active Currently connected sessions.\n")
	fmt.Fprintf(rw, "# TYPE blockremental_sessions_active gauge\n")
	fmt.Fprintf(rw, "blockremental_sessions_active %d\n", st.SessionsActive)

	fmt.Fprintf(rw, "# HELP blockremental_sessions_total Sessions started since process start.\n")
	fmt.Fprintf(rw, "# TYPE blockremental_sessions_total counter\n")
	fmt.Fprintf(rw, "blockremental_sessions_total %d\n", st.SessionsTotal)

	fmt.Fprintf(rw, "# HELP blockremental_ticks_total Update ticks stepped across all sessions.\n")
	fmt.Fprintf(rw, "# TYPE blockremental_ticks_total counter\n")
	fmt.Fprintf(rw, "blockremental_ticks_total %d\n", st.Ticks)

	fmt.Fprintf(rw, "# HELP blockremental_actions_total Player actions by outcome.\n")
	fmt.Fprintf(rw, "# TYPE blockremental_actions_total counter\n")
	fmt.Fprintf(rw, "blockremental_actions_total{result=%q} %d\n", "accepted", st.ActionsAccepted)
	fmt.Fprintf(rw, "blockremental_actions_total{result=%q} %d\n", "rejected", st.ActionsRejected)

	fmt.Fprintf(rw, "# HELP blockremental_blocks Placed blocks across active sessions.\n")
	fmt.Fprintf(rw, "# TYPE blockremental_blocks gauge\n")
	for _, t := range grid.Types() {
		fmt.Fprintf(rw, "blockremental_blocks{type=%q} %d\n", t.String(), st.Blocks[t.String()])
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
