package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/dispatch-engine/internal/api"
	"github.com/example/dispatch-engine/internal/cache"
	"github.com/example/dispatch-engine/internal/client"
	"github.com/example/dispatch-engine/internal/config"
	"github.com/example/dispatch-engine/internal/engine"
	"github.com/example/dispatch-engine/internal/guard"
	"github.com/example/dispatch-engine/internal/schedule"
	"github.com/example/dispatch-engine/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := newLogger()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openDatabase(ctx, cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer db.Close()

	st := store.NewPostgresStore(db)

	provider := client.NewProviderClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.RatePerSecond)

	var receipts cache.ReceiptCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		receipts = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	eval := schedule.NewEvaluator(schedule.SystemClock{}, cfg.Engine.DefaultTimezone)
	g := guard.New()

	runner := engine.NewRunner(st, provider, eval, metrics, log)
	if receipts != nil {
		runner.WithReceiptCache(receipts)
	}

	eng, err := engine.New(st, runner, g, eval, metrics, log, cfg.Engine.Interval)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	if err := eng.Recover(ctx); err != nil {
		log.Fatal().Err(err).Msg("recovery pass")
	}
	eng.Start()

	handler := api.NewHandler(eng, st, receipts)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.Router(handler, reg, log),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Address).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	eng.Stop()
}

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "dispatch-engine").Logger()
}

// openDatabase retries the initial ping so the engine survives the store
// coming up after it.
func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
