package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aridsondez/SHARE-RELAY/internal/api"
	"github.com/aridsondez/SHARE-RELAY/internal/config"
	"github.com/aridsondez/SHARE-RELAY/internal/queue"
	"github.com/aridsondez/SHARE-RELAY/internal/queue/store"
	pgstore "github.com/aridsondez/SHARE-RELAY/internal/queue/store/postgres"
	sqlitestore "github.com/aridsondez/SHARE-RELAY/internal/queue/store/sqlite"
	"github.com/aridsondez/SHARE-RELAY/internal/queue/sweeper"
	"github.com/aridsondez/SHARE-RELAY/pkg/submit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer cleanup()

	policy := queue.Policy{
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		MaxRetries:  cfg.MaxRetries,
		Expiry:      cfg.Expiry,
	}
	mgr := queue.NewManager(st, policy)
	flusher := queue.NewFlusher(mgr, cfg.SubmitTimeout)
	sub := submit.New(cfg.UpstreamURL, cfg.UpstreamToken)

	swp := sweeper.New(mgr, cfg.SweepInterval)
	go swp.Start(ctx)

	// Periodic flush trigger. Manual triggers arrive through the API; the
	// in-flight guard keeps them from overlapping this loop.
	go func() {
		ticker := time.NewTicker(cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res := flusher.Flush(ctx, sub.Submit)
				if res.Succeeded+res.Failed > 0 {
					log.Printf("flush: delivered=%d failed=%d", res.Succeeded, res.Failed)
				}
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := api.NewServer(addr, mgr, flusher, sub.Submit)

	log.Printf("HTTP server listening on %s", addr)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	_ = httpSrv.Shutdown(context.Background())
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectionTimeout)
		defer cancel()

		pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		if err := pool.Ping(connectCtx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pgx ping: %w", err)
		}
		st, err := pgstore.New(connectCtx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil

	default: // "sqlite", enforced by config validation
		st, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	}
}
