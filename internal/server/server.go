package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"leadscout/config"
	"leadscout/internal/discovery"
	"leadscout/internal/index"
	"leadscout/internal/pipeline"
	"leadscout/internal/scrape"
	"leadscout/internal/store"
	"leadscout/internal/telemetry"
	"leadscout/provider"
	"leadscout/tools/web_fetch"
	"leadscout/tools/web_search"
)

// newEcho builds the echo instance with recovery, CORS and the unified JSON
// error handler. Shared with the handler tests.
func newEcho(httpLog *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
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
		httpLog.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

// Run wires the store, search, generation and pipeline dependencies and
// serves the API on cfg.Server.Address until the listener fails.
func Run(cfg *config.Config) error {
	httpLog := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e := newEcho(httpLog)

	ctx := context.Background()

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		httpLog.Printf("migrations did not apply: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	// Redis is optional: without it the search cache and the sweep lock are
	// simply disabled.
	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}

	llm, err := provider.NewGenerator(cfg.LLM)
	if err != nil {
		return err
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search)
	if err != nil {
		return err
	}

	var cache discovery.Cache
	if rdb != nil && cfg.Search.CacheTTL > 0 {
		cache = &discovery.RedisCache{
			Rdb: rdb,
			TTL: cfg.Search.CacheTTL,
			Log: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
		}
	}

	idx, err := index.NewMemOnly()
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		LLM: llm,
		Discovery: &discovery.Client{
			Searcher:    searcher,
			Cache:       cache,
			PerQuery:    cfg.Search.MaxResults,
			MaxInFlight: cfg.Search.MaxInFlight,
			Log:         log.New(log.Writer(), "[DISCOVERY] ", log.LstdFlags),
		},
		Recorder:       st,
		Leads:          idx,
		Artifacts:      &pipeline.ArtifactWriter{Dir: cfg.Storage.File.DataDir, Log: log.New(log.Writer(), "[ARTIFACTS] ", log.LstdFlags)},
		Telemetry:      telemetry.NewTelemetry(cfg.Telemetry),
		Logger:         log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
		ScrapePerQuery: cfg.Scrape.PerQuery,
	}

	if cfg.Scrape.Enabled {
		fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType, cfg.Scrape.Timeout, cfg.Scrape.MaxChars)
		if err != nil {
			return err
		}
		renderer, ok := fetcher.(scrape.HTMLRenderer)
		if !ok {
			return fmt.Errorf("fetcher %T cannot render raw html", fetcher)
		}
		deps.Scraper = &scrape.Browser{
			Renderer:    renderer,
			Fetcher:     fetcher,
			SearchURL:   cfg.Scrape.SearchURL,
			EngineHost:  cfg.Scrape.EngineHost,
			MaxInFlight: cfg.Scrape.MaxInFlight,
			Log:         log.New(log.Writer(), "[SCRAPE] ", log.LstdFlags),
		}
	}

	orch, err := pipeline.NewOrchestrator(deps)
	if err != nil {
		return err
	}

	rh := &RunsHandler{
		Runner:     orch,
		Store:      st,
		Leads:      idx,
		RunTimeout: cfg.Server.RunTimeout,
	}
	rh.Register(e.Group("/api"))

	if cfg.Retention.Days > 0 {
		sched := &Scheduler{
			Store:    st,
			Rdb:      rdb,
			Days:     cfg.Retention.Days,
			Schedule: cfg.Retention.Schedule,
			Stop:     make(chan struct{}),
			Log:      log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		}
		sched.Start()
	}

	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}
