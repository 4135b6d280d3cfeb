package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"devto-news/internal/config"
	hhttp "devto-news/internal/handler/http"
	hnews "devto-news/internal/handler/http/news"
	"devto-news/internal/infra/feed"
	"devto-news/internal/infra/mongostore"
	"devto-news/internal/observability"
	"devto-news/internal/observability/logging"
	"devto-news/internal/observability/telemetry"
	"devto-news/internal/observability/tracing"
	newsUC "devto-news/internal/usecase/news"
	"devto-news/pkg/requestid"
)

// shutdownTimeout bounds the drain of in-flight requests and telemetry.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", slog.Any("error", err))
		os.Exit(1)
	}

	// Bootstrap logger until the telemetry stack installs the real one.
	logger := logging.NewConsoleLogger(logging.ParseLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := initStore(ctx, logger, cfg)

	tel, err := telemetry.Setup(ctx, storeOrNil(store), telemetry.Options{
		Service: observability.ServiceInfo{
			Name:        cfg.Telemetry.ServiceName,
			Version:     cfg.Telemetry.ServiceVersion,
			InstanceID:  cfg.Telemetry.InstanceID,
			Environment: cfg.Telemetry.Environment,
		},
		LogLevel:          logging.ParseLevel(cfg.Telemetry.LogLevel),
		FlushInterval:     cfg.Telemetry.FlushInterval,
		TraceExportPolicy: tracing.ExportPolicy(cfg.Telemetry.TraceExportPolicy),
		LogCollection:     cfg.Mongo.LogCollection,
		TraceCollection:   cfg.Mongo.TraceCollection,
		MetricCollection:  cfg.Mongo.MetricCollection,
	})
	if err != nil {
		logger.Error("telemetry setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	handler := applyMiddleware(cfg, tel.Logger, setupRoutes(cfg, tel, store))

	runServer(ctx, cfg, tel, store, handler)
}

// initStore connects to the telemetry datastore. An unreachable datastore is
// not fatal: the service serves requests either way, so it degrades to
// console-only telemetry and reports the storage state on /health.
func initStore(ctx context.Context, logger *slog.Logger, cfg config.Config) *mongostore.Store {
	store, err := mongostore.Connect(ctx, mongostore.Config{
		URI:            cfg.Mongo.URI,
		Host:           cfg.Mongo.Host,
		Port:           cfg.Mongo.Port,
		Username:       cfg.Mongo.Username,
		Password:       cfg.Mongo.Password,
		AuthSource:     cfg.Mongo.AuthSource,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		InsertTimeout:  cfg.Mongo.InsertTimeout,
	})
	if err != nil {
		logger.Warn("telemetry datastore client failed, continuing console-only",
			slog.Any("error", err))
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("telemetry datastore unreachable, persistence will retry per write",
			slog.String("database", store.Database()),
			slog.Any("error", err))
	} else {
		logger.Info("telemetry datastore connected",
			slog.String("database", store.Database()))
	}
	return store
}

// storeOrNil converts a typed nil into an untyped nil interface value.
func storeOrNil(store *mongostore.Store) observability.Inserter {
	if store == nil {
		return nil
	}
	return store
}

// buildFetcher selects the upstream provider. The returned label names the
// source in response bodies; the URL is recorded on fetch spans.
func buildFetcher(cfg config.Config) (feed.Fetcher, string, string) {
	client := &http.Client{Timeout: cfg.Feed.Timeout}
	if cfg.Feed.Provider == config.ProviderRSS {
		return feed.NewRSSFetcher(cfg.Feed.RSSURL, client), "RSS", cfg.Feed.RSSURL
	}
	return feed.NewDevtoFetcher(cfg.Feed.DevtoURL, client), "DEV.to", cfg.Feed.DevtoURL
}

// setupRoutes registers all HTTP routes.
func setupRoutes(cfg config.Config, tel *telemetry.Telemetry, store *mongostore.Store) http.Handler {
	fetcher, sourceLabel, sourceURL := buildFetcher(cfg)
	newsSvc := newsUC.NewService(fetcher, tel.Instruments, sourceURL)

	var pinger hhttp.Pinger
	if store != nil {
		pinger = store
	}

	mux := http.NewServeMux()
	mux.Handle("/news", &hnews.Handler{
		Service: newsSvc,
		Logger:  tel.Logger,
		Source:  sourceLabel,
	})
	mux.Handle("/health", &hhttp.HealthHandler{Version: cfg.Version, Store: pinger})
	mux.Handle("/live", hhttp.LiveHandler())
	mux.Handle("/metrics", hhttp.MetricsHandler())
	return mux
}

// applyMiddleware wraps the routes with the middleware chain, innermost
// first: metrics, logging, recovery, tracing, rate limiting, request ID.
func applyMiddleware(cfg config.Config, logger *slog.Logger, handler http.Handler) http.Handler {
	chain := hhttp.MetricsMiddleware(handler)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = tracing.Middleware(chain)

	if cfg.RateLimit.Enabled {
		limiter := hhttp.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		chain = limiter.Limit(chain)
		logger.Info("rate limiting enabled",
			slog.Float64("rps", cfg.RateLimit.RPS),
			slog.Int("burst", cfg.RateLimit.Burst))
	} else {
		logger.Warn("rate limiting is disabled")
	}

	return requestid.Middleware(chain)
}

// runServer runs the HTTP server and the metric reader until a signal
// arrives, then drains both and flushes telemetry.
func runServer(ctx context.Context, cfg config.Config, tel *telemetry.Telemetry, store *mongostore.Store, handler http.Handler) {
	logger := tel.Logger

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", cfg.ListenAddr),
			slog.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if tel.Reader != nil {
		g.Go(func() error {
			return tel.Reader.Run(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server terminated with error", slog.Any("error", err))
	}

	// Flush buffered spans and stop the providers before closing the store
	// they write through.
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(flushCtx); err != nil {
		logger.Error("telemetry shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
	if store != nil {
		if err := store.Close(flushCtx); err != nil {
			logger.Error("datastore close failed", slog.Any("error", err))
		}
	}
}
