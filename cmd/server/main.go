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
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"watchsource/internal/aggregate"
	apihttp "watchsource/internal/api/http"
	"watchsource/internal/app"
	"watchsource/internal/domain"
	"watchsource/internal/embed"
	"watchsource/internal/identity"
	"watchsource/internal/metadata"
	"watchsource/internal/metrics"
	"watchsource/internal/moderation"
	mongorepo "watchsource/internal/repository/mongo"
	"watchsource/internal/telemetry"
	"watchsource/internal/torrentindex"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "watchsource")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "watchsource"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Bool("tmdb", cfg.TMDBAPIKey != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, cfg.MongoTimeout)
	defer cancel()

	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sourceRepo := mongorepo.NewSourceRepository(mongoClient, cfg.MongoDB)
	reportRepo := mongorepo.NewReportRepository(mongoClient, cfg.MongoDB, sourceRepo)
	if err := sourceRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis url invalid, caching disabled", slog.String("error", err.Error()))
		} else {
			redisClient = redis.NewClient(redisOpts)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.Warn("redis unreachable, caching disabled", slog.String("error", err.Error()))
				redisClient = nil
			}
		}
	}

	registry := embed.MustRegistry(embed.DefaultProviders)
	torrents := torrentindex.NewClient(torrentindex.Config{
		Endpoint: cfg.TorrentIndexEndpoint,
		Timeout:  cfg.TorrentIndexTimeout,
		Redis:    redisClient,
		CacheTTL: cfg.TorrentCacheTTL,
		Logger:   logger,
	})
	tmdb := metadata.NewClient(metadata.Config{
		APIKey:   cfg.TMDBAPIKey,
		BaseURL:  cfg.TMDBBaseURL,
		Redis:    redisClient,
		CacheTTL: cfg.TMDBCacheTTL,
	})

	aggregator := aggregate.NewService(sourceRepo, registry, torrents,
		aggregate.WithIMDBResolver(tmdb),
		aggregate.WithLogger(logger),
	)

	// The flag listener is wired through a late-bound server pointer: the
	// moderation service exists before the server that broadcasts its events.
	var server *apihttp.Server
	moderationSvc := moderation.NewService(sourceRepo, reportRepo,
		moderation.WithLogger(logger),
		moderation.WithFlagListener(func(record domain.CuratedSourceRecord) {
			if server != nil {
				server.BroadcastFlagged(record)
			}
		}),
	)

	server = apihttp.NewServer(aggregator,
		apihttp.WithLogger(logger),
		apihttp.WithSourceAdmin(sourceRepo),
		apihttp.WithReports(moderationSvc),
		apihttp.WithVerifier(newVerifier(cfg)),
		apihttp.WithAllowedOrigins(cfg.AllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	server.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", slog.String("error", err.Error()))
		}
	}
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// newVerifier prefers the external identity service; without one it falls
// back to the static operator token list from config.
func newVerifier(cfg app.Config) identity.Verifier {
	if cfg.IdentityEndpoint != "" {
		return identity.NewClient(identity.Config{Endpoint: cfg.IdentityEndpoint})
	}
	users := make(map[string]identity.User, len(cfg.OperatorTokens))
	for token, userID := range cfg.OperatorTokens {
		users[token] = identity.User{ID: userID, Role: "operator"}
	}
	return identity.NewStaticVerifier(users)
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
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
