package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "mediatrack/searchservice/internal/api/http"
	"mediatrack/searchservice/internal/app"
	"mediatrack/searchservice/internal/history"
	"mediatrack/searchservice/internal/metrics"
	"mediatrack/searchservice/internal/providers/jikan"
	"mediatrack/searchservice/internal/providers/openlibrary"
	"mediatrack/searchservice/internal/providers/tmdb"
	"mediatrack/searchservice/internal/search"
	"mediatrack/searchservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	catalogs := []string{"openlibrary", "jikan"}
	if strings.TrimSpace(cfg.TMDBAPIKey) != "" {
		catalogs = append([]string{"tmdb"}, catalogs...)
	}
	shutdownTracer, err := telemetry.Init(context.Background(), "media-search", catalogs...)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "media-search"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.Bool("hasTMDBKey", strings.TrimSpace(cfg.TMDBAPIKey) != ""),
		slog.String("openLibraryEndpoint", cfg.OpenLibraryEndpoint),
		slog.String("jikanBaseURL", cfg.JikanBaseURL),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	redisClient := buildRedisClient(cfg, logger)
	providers := buildProviders(cfg, logger)

	searchService := search.NewService(providers, cfg.RequestTimeout, buildServiceOptions(cfg, redisClient)...)

	recorder := history.NewRecorder(redisClient)
	if !recorder.Enabled() {
		logger.Info("search history disabled: redis not configured")
	}

	handler := apihttp.NewServer(searchService,
		apihttp.WithLogger(logger),
		apihttp.WithHistory(recorder),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	searchService.StartBackground(rootCtx)
	recorder.Start(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("media search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
		slog.Int("providers", len(providers)),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("media search service stopped")
}

func buildProviders(cfg app.Config, logger *slog.Logger) []search.Provider {
	retryCfg := search.DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.RetryAttempts
	}

	newClient := func() *http.Client {
		return &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	providers := make([]search.Provider, 0, 3)

	if strings.TrimSpace(cfg.TMDBAPIKey) != "" {
		providers = append(providers, search.WrapWithRetry(tmdb.NewProvider(tmdb.Config{
			APIKey:    cfg.TMDBAPIKey,
			BaseURL:   cfg.TMDBBaseURL,
			UserAgent: cfg.UserAgent,
			Client:    newClient(),
		}), retryCfg))
	} else {
		logger.Warn("tmdb api key not configured, film/series provider disabled")
	}

	providers = append(providers,
		search.WrapWithRetry(openlibrary.NewProvider(openlibrary.Config{
			Endpoint:  cfg.OpenLibraryEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    newClient(),
		}), retryCfg),
		search.WrapWithRetry(jikan.NewProvider(jikan.Config{
			BaseURL:   cfg.JikanBaseURL,
			UserAgent: cfg.UserAgent,
			Client:    newClient(),
		}), retryCfg),
	)

	return providers
}

func buildRedisClient(cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, redis features disabled", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, redis features disabled", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func buildServiceOptions(cfg app.Config, redisClient *redis.Client) []search.ServiceOption {
	var opts []search.ServiceOption

	if cfg.CacheDisabled {
		opts = append(opts, search.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, search.WithCacheTTL(cfg.CacheTTL))
	}
	if redisClient != nil {
		opts = append(opts, search.WithRedisCache(search.NewRedisCacheBackend(redisClient)))
	}
	return opts
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
