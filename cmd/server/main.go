package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"quantumharvest.ai/internal/persistence/indexdb"
	"quantumharvest.ai/internal/sim/lobby"
	"quantumharvest.ai/internal/sim/tuning"
	"quantumharvest.ai/internal/transport/observer"
	"quantumharvest.ai/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		mapSize     = flag.Int("map-size", 0, "board size (overrides tuning when > 0)")
		maxTurns    = flag.Int("max-turns", 0, "turn limit (overrides tuning when > 0)")
		seed        = flag.Int64("seed", 1337, "base map seed; each match derives its own")
		tuningPath  = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir     = flag.String("data-dir", "./data", "runtime data directory")
		turnTimeout = flag.Duration("turn-timeout", 5*time.Second, "ACT collection window per turn")
		disableDB   = flag.Bool("disable-db", false, "disable the match index db")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *mapSize > 0 {
		tune.MapSize = *mapSize
	}
	if *maxTurns > 0 {
		tune.MaxTurns = *maxTurns
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Optional: read-model index backend (does not affect match determinism).
	idx, err := openRuntimeIndex(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	l := lobby.New(lobby.Config{
		Rules:       tune,
		Seed:        *seed,
		TurnTimeout: *turnTimeout,
		DataDir:     *dataDir,
		Index:       idx,
		Logger:      logger,
	})
	defer l.Close()

	ctx, cancel := signalContext()
	defer cancel()

	enableAdminHTTP := envBool("QH_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("QH_ENABLE_PPROF_HTTP", false)
	mux := newMux(l, idx, logger, enableAdminHTTP, enablePprofHTTP)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (map=%d max_turns=%d turn_timeout=%s)",
		*addr, tune.MapSize, tune.MaxTurns, *turnTimeout)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func newMux(l *lobby.Lobby, idx *indexdb.SQLiteIndex, logger *log.Logger, enableAdminHTTP, enablePprofHTTP bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		var running, pending int
		for _, m := range l.Matches() {
			if m.Running {
				running++
			} else {
				pending++
			}
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP quantumharvest_matches Current matches by state.\n")
		fmt.Fprintf(rw, "# TYPE quantumharvest_matches gauge\n")
		fmt.Fprintf(rw, "quantumharvest_matches{state=%q} %d\n", "running", running)
		fmt.Fprintf(rw, "quantumharvest_matches{state=%q} %d\n", "pending", pending)

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP quantumharvest_index_queue_depth Index write queue backlog.\n")
			fmt.Fprintf(rw, "# TYPE quantumharvest_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "quantumharvest_index_queue_depth %d\n", s.QueueDepth)

			fmt.Fprintf(rw, "# HELP quantumharvest_index_queue_capacity Index write queue capacity.\n")
			fmt.Fprintf(rw, "# TYPE quantumharvest_index_queue_capacity gauge\n")
			fmt.Fprintf(rw, "quantumharvest_index_queue_capacity %d\n", s.QueueCapacity)

			fmt.Fprintf(rw, "# HELP quantumharvest_index_dropped_total Index rows dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE quantumharvest_index_dropped_total counter\n")
			fmt.Fprintf(rw, "quantumharvest_index_dropped_total{kind=%q} %d\n", "match", s.DropMatchTotal)
			fmt.Fprintf(rw, "quantumharvest_index_dropped_total{kind=%q} %d\n", "seat", s.DropSeatTotal)
			fmt.Fprintf(rw, "quantumharvest_index_dropped_total{kind=%q} %d\n", "turn", s.DropTurnTotal)
			fmt.Fprintf(rw, "quantumharvest_index_dropped_total{kind=%q} %d\n", "result", s.DropResultTotal)
		}
	})

	if enableAdminHTTP {
		// Local-only admin endpoints (do not affect match determinism).
		mux.HandleFunc("/admin/v1/matches", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Live   []lobby.MatchInfo  `json:"live"`
				Recent []indexdb.MatchRow `json:"recent,omitempty"`
			}{
				Live: l.Matches(),
			}
			if idx != nil {
				if rows, err := idx.RecentMatches(20); err == nil {
					resp.Recent = rows
				}
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (QH_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.HandleFunc("/ws", ws.NewServer(l, logger).Handler())
	mux.HandleFunc("/observe", observer.NewServer(l, logger).Handler())
	return mux
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
