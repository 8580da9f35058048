package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"stayfinder/internal/adapters/catalogcsv"
	"stayfinder/internal/adapters/observability"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/shared"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	path := cfg.CatalogPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	log.Info().
		Str("path", path).
		Int("workers", cfg.IngestWorkers).
		Int("batch", cfg.IngestBatchSize).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")
	repo := mysqlrepo.New(db)

	// evict stale property lookups when a cache is configured
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, skipping cache eviction")
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	ing := app.NewIngestionService(catalogcsv.NewFileReader(path), repo, cache)
	batches, err := ing.Prepare(ctx, cfg.IngestBatchSize)
	if err != nil {
		log.Fatal().Err(err).Msg("prepare catalog failed")
	}

	workers := cfg.IngestWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var failed, rows atomic.Int64

	for i, batch := range batches {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("ingestion interrupted")
			break
		}

		wg.Add(1)
		go func(n int, batch []domain.Property) {
			defer wg.Done()
			defer sem.Release(1)

			err := ing.IngestBatch(ctx, batch)
			observability.ObserveIngest(len(batch), err)
			if err != nil {
				failed.Add(1)
				log.Warn().Int("batch", n).Int("rows", len(batch)).Err(err).Msg("ingest failed")
				return
			}
			rows.Add(int64(len(batch)))
			log.Debug().Int("batch", n).Int("rows", len(batch)).Msg("ingest ok")
		}(i, batch)
	}

	wg.Wait()
	log.Info().Int64("rows", rows.Load()).Int("batches", len(batches)).Int64("failed_batches", failed.Load()).
		Msg("ingestion completed")
	if failed.Load() > 0 {
		stop()
		os.Exit(1)
	}
}
