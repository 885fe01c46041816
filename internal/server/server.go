package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/notare-app/notare/config"
	"github.com/notare-app/notare/internal/ingest"
	"github.com/notare-app/notare/internal/provider"
	"github.com/notare-app/notare/internal/provider/embedcache"
	"github.com/notare-app/notare/internal/provider/openai"
	"github.com/notare-app/notare/internal/search"
	"github.com/notare-app/notare/internal/store"
	"github.com/notare-app/notare/internal/telemetry"
)

// Run loads configuration, wires the store, embedding provider and search
// services, and serves the HTTP API until the listener fails.
func Run(cfgPath, addr string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })

	metrics := telemetry.New()
	if cfg.Telemetry.Enabled {
		if err := cfg.Telemetry.Validate(); err != nil {
			return err
		}
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	ctx := context.Background()
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate(cfg.Server.MigrationsPath, dsn, "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	rdb, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	indexer, engine, err := buildSearchServices(cfg, st, rdb)
	if err != nil {
		return err
	}
	indexer.SetMetrics(metrics)
	convo := search.NewConversationSearch(engine, log.New(log.Writer(), "[CONVO] ", log.LstdFlags))
	fetcher := ingest.NewWebsiteFetcher(30 * time.Second)

	sh := &SearchHandler{
		Store:        st,
		Indexer:      indexer,
		Engine:       engine,
		Conversation: convo,
		Fetcher:      fetcher,
		Metrics:      metrics,
	}
	sh.Register(e.Group("/api/search"))

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{
			Store:    st,
			Indexer:  indexer,
			Fetcher:  fetcher,
			Rdb:      rdb,
			CronSpec: cfg.Scheduler.CronSpec,
			Stop:     make(chan struct{}),
			Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		}
		sched.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":10040"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// connectRedis dials redis when configured. Redis is optional: without it
// embeddings are uncached and the re-index sweep runs unlocked on a single
// node.
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.Databases.Redis.Addr() == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Databases.Redis.Addr(),
		Password: cfg.Databases.Redis.Password,
		DB:       cfg.Databases.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
	}
	return rdb, nil
}

// BuildSearchServices wires the embedding provider, indexer and engine over
// an open store. Shared with the CLI, which has no redis.
func BuildSearchServices(cfg *config.Config, st *store.Store) (*search.Indexer, *search.Engine, error) {
	return buildSearchServices(cfg, st, nil)
}

func buildSearchServices(cfg *config.Config, st *store.Store, rdb *redis.Client) (*search.Indexer, *search.Engine, error) {
	if cfg.Providers.OpenAI.APIKey == "" {
		return nil, nil, fmt.Errorf("openai api key not configured (providers.openai.api_key)")
	}
	var emb provider.EmbeddingProvider = openai.New(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL, cfg.Providers.OpenAI.Timeout)
	if rdb != nil {
		ttl, _ := time.ParseDuration(cfg.Search.CacheTTL)
		embLogger := log.New(log.Writer(), "[EMBED] ", log.LstdFlags)
		emb = embedcache.New(emb, rdb, ttl, embLogger)
	}
	defaults := search.IndexDefaults{
		EmbeddingModel:      cfg.Search.EmbeddingModel,
		EmbeddingDimensions: cfg.Search.EmbeddingDimensions,
		ChunkSize:           cfg.Search.ChunkSize,
		ChunkOverlap:        cfg.Search.ChunkOverlap,
	}
	indexer := search.NewIndexer(st, emb, defaults, log.New(log.Writer(), "[INDEX] ", log.LstdFlags))
	engine := search.NewEngine(st, emb, log.New(log.Writer(), "[SEARCH] ", log.LstdFlags))
	return indexer, engine, nil
}
