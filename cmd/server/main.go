package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"embervale.ai/internal/persistence/indexdb"
	persistlog "embervale.ai/internal/persistence/log"
	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/catalogs"
	"embervale.ai/internal/sim/tuning"
	"embervale.ai/internal/sim/world"
	"embervale.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		charsDir   = flag.String("characters", "", "characters config directory (default: <configs>/characters)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		schemasDir = flag.String("schemas", "./schemas", "JSON Schema directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	logger.Printf("loaded %d item defs (digest %.12s)", len(cats.Items.Names), cats.Items.Digest)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		candidate := filepath.Join(*configDir, "tuning.yaml")
		if _, err := os.Stat(candidate); err == nil {
			tp = candidate
		}
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	w := world.New(tune, cats, logger)
	cd := strings.TrimSpace(*charsDir)
	if cd == "" {
		cd = filepath.Join(*configDir, "characters")
	}
	if err := w.LoadCharacters(cd); err != nil {
		logger.Fatalf("load characters: %v", err)
	}

	// Persistence subscribers: compressed JSONL journal plus the optional
	// sqlite read-model index.
	journal := persistlog.NewEventJournal(filepath.Join(*dataDir, "world"))
	defer journal.Close()
	for _, et := range protocol.EventTypes() {
		w.Bus().Subscribe(et, journal.HandleEvent)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		for _, et := range protocol.EventTypes() {
			w.Bus().Subscribe(et, idx.HandleEvent)
		}
	}

	w.Start()

	api, err := newAPI(w, *schemasDir, logger)
	if err != nil {
		logger.Fatalf("api: %v", err)
	}

	wsrv := ws.NewServer(w.Bus(), w.WorldContext, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/state", api.handleState)
	mux.HandleFunc("/v1/characters", api.handleCharacters)
	mux.HandleFunc("/v1/trade", api.handleTrade)
	mux.HandleFunc("/v1/history", api.handleHistory)
	mux.Handle("/v1/events", wsrv.Handler())

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	// Tick loop: advance the world with wall-clock deltas.
	tickInterval := time.Second / time.Duration(tune.TickRateHz)
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				w.Update(now.Sub(last).Seconds())
				last = now
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Printf("shutting down")

	close(stop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	w.Shutdown()
}
