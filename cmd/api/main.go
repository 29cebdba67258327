// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/patrickariel/semicolon-web-sub000/internal/api"
	"github.com/patrickariel/semicolon-web-sub000/internal/auth"
	"github.com/patrickariel/semicolon-web-sub000/internal/config"
	"github.com/patrickariel/semicolon-web-sub000/internal/cursor"
	"github.com/patrickariel/semicolon-web-sub000/internal/db"
	"github.com/patrickariel/semicolon-web-sub000/internal/engagement"
	"github.com/patrickariel/semicolon-web-sub000/internal/feed"
	"github.com/patrickariel/semicolon-web-sub000/internal/health"
	"github.com/patrickariel/semicolon-web-sub000/internal/middleware"
	"github.com/patrickariel/semicolon-web-sub000/internal/post"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
	"github.com/patrickariel/semicolon-web-sub000/internal/ranking"
	"github.com/patrickariel/semicolon-web-sub000/internal/tracing"
)

const serviceName = "semicolon-api"

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Semicolon feed API server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		Insecure:     cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// app is the wired HTTP handler plus the resources it owns.
type app struct {
	handler  http.Handler
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("failed to release resource", "error", err)
		}
	}
}

// storage groups the backend implementations chosen by configuration.
type storage struct {
	store      post.Store
	executor   query.Executor
	aggregator engagement.Aggregator
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	checks := health.NewRegistry(5*time.Second, logger)

	var st storage
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		mem := post.NewMemoryStore()
		st = storage{store: mem, executor: query.NewMemoryExecutor(mem), aggregator: engagement.NewMemoryAggregator(mem)}
	} else {
		opts := db.DefaultOptions()
		opts.MaxOpenConns = cfg.DBMaxOpenConns
		conn, err := db.Open(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if cfg.MigrateOnStart {
			if _, err := db.Migrate(ctx, conn); err != nil {
				return nil, err
			}
		}
		checks.Add("database", health.NewDBChecker(conn))
		st = storage{
			store:      post.NewPostgresStore(conn, logger),
			executor:   query.NewPostgresExecutor(conn, logger),
			aggregator: engagement.NewPostgresAggregator(conn, logger),
		}
	}

	var limits middleware.RateLimitStore
	if cfg.RedisURL == "" {
		mem := middleware.NewInMemoryRateLimitStore()
		go cleanupLoop(ctx, mem, 5*cfg.RateLimitWindow)
		limits = mem
	} else {
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(ropts)
		a.closers = append(a.closers, client.Close)
		checks.Add("redis", health.NewRedisChecker(client))
		limits = middleware.NewRedisRateLimitStore(client, "semicolon:ratelimit:")
	}

	decay, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		return nil, fmt.Errorf("ranking calibration: %w", err)
	}
	codec, err := cursor.NewCodec()
	if err != nil {
		return nil, err
	}

	feedMetrics := feed.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	for _, m := range []interface{ Register(prometheus.Registerer) error }{feedMetrics, httpMetrics} {
		if err := m.Register(a.registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	deps := feed.Deps{
		Planner:    query.NewPlanner(decay),
		Executor:   st.executor,
		Aggregator: st.aggregator,
		Codec:      codec,
		Metrics:    feedMetrics,
		Logger:     logger,
	}
	handlers := api.NewHandlers(api.Config{
		Feeds:      feed.NewService(deps),
		Search:     feed.NewSearchService(deps),
		Store:      st.store,
		Engagement: st.aggregator,
		Logger:     logger,
	})

	jwtSvc := auth.NewJWTService(auth.Options{
		Secret:         cfg.JWTSecret,
		PreviousSecret: cfg.JWTPreviousSecret,
	})

	feedLimit := middleware.RateLimitConfig{RequestsPerWindow: cfg.RateLimitFeedRequests, WindowDuration: cfg.RateLimitWindow}
	searchLimit := middleware.RateLimitConfig{RequestsPerWindow: cfg.RateLimitSearchRequests, WindowDuration: cfg.RateLimitWindow}
	keyFunc := middleware.ViewerKeyFunc()

	apiMux := http.NewServeMux()
	handlers.Register(apiMux)

	mux := http.NewServeMux()
	api.NewHealthHandlers(checks).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	mux.Handle("/posts/search", middleware.RateLimiter(limits, searchLimit, keyFunc, "/posts/search", httpMetrics, logger)(apiMux))
	mux.Handle("/", middleware.RateLimiter(limits, feedLimit, keyFunc, "default", httpMetrics, logger)(apiMux))

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	// Applied inside out; RequestID ends up outermost.
	var h http.Handler = middleware.Authenticate(jwtSvc)(mux)
	h = middleware.CORS(cors)(h)
	h = middleware.HTTPMetrics(httpMetrics)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Tracing(serviceName)(h)
	h = middleware.RequestID(h)
	a.handler = h

	return a, nil
}

func cleanupLoop(ctx context.Context, store *middleware.InMemoryRateLimitStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Cleanup()
		}
	}
}
