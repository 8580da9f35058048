package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/adapters/catalogcsv"
	server "stayfinder/internal/adapters/http_server"
	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/adapters/openrouter"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/ranking"
	"stayfinder/internal/shared"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	repo := mysqlrepo.New(db)

	// cache is optional
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, running without cache")
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	// catalog snapshot
	var (
		src      domain.CatalogSource
		propRepo domain.PropertyRepository
	)
	switch cfg.CatalogSource {
	case shared.CatalogMySQL:
		src, propRepo = repo, repo
	default:
		src = app.NewRecordCatalog(catalogcsv.NewFileReader(cfg.CatalogPath))
	}
	catalog := app.NewCatalogService(src, propRepo, cache, cfg.CacheTTL)
	snap, err := catalog.Reload(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.CatalogSource).Msg("initial catalog load failed")
	}
	log.Info().Str("source", cfg.CatalogSource).Int("properties", len(snap.Properties)).Msg("catalog loaded")

	// ranking
	weights := ranking.DefaultWeights()
	if cfg.RankingWeightsPath != "" {
		w, err := ranking.LoadWeights(cfg.RankingWeightsPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.RankingWeightsPath).Msg("ranking weights unreadable, using defaults")
		}
		weights = w
	}
	rec := ranking.NewRecommender(weights, cfg.RecommendTopK)

	opts := []app.RecommendOption{
		app.WithHistory(repo),
		app.WithSearchTopK(cfg.SearchTopK),
		app.WithHintTimeout(cfg.LLMTimeout),
	}
	if cache != nil {
		opts = append(opts, app.WithHintCache(cache, cfg.CacheTTL))
	}
	if cfg.OpenRouterKey != "" {
		llm, err := openrouter.New(openrouter.Config{
			APIKey:  cfg.OpenRouterKey,
			BaseURL: cfg.OpenRouterBase,
			Model:   cfg.OpenRouterModel,
			RPS:     cfg.LLMRPS,
			Timeout: cfg.LLMTimeout,
			Catalog: func() []domain.Property { return catalog.Snapshot().Properties },
		})
		if err != nil {
			log.Warn().Err(err).Msg("llm client disabled")
		} else {
			opts = append(opts, app.WithHintProvider(llm), app.WithBlurbWriter(llm))
		}
	}
	recs := app.NewRecommendationService(catalog, rec, opts...)
	accounts := app.NewAccountService(repo, repo)

	// http
	srv := server.New(cfg.LLMTimeout*2 + 5*time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Catalog:    catalog,
		Recs:       recs,
		Accounts:   accounts,
		AdminToken: cfg.AdminToken,
		TopK:       cfg.RecommendTopK,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
