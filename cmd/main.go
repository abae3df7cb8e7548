package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/affinity/internal/adapters/cache"
	"github.com/okian/affinity/internal/adapters/geocoding"
	"github.com/okian/affinity/internal/adapters/http/api"
	"github.com/okian/affinity/internal/adapters/http/site"
	"github.com/okian/affinity/internal/adapters/http/swagger"
	"github.com/okian/affinity/internal/adapters/repository"
	"github.com/okian/affinity/internal/adapters/translation"
	service "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/config"
	"github.com/okian/affinity/internal/domain/geo"
	"github.com/okian/affinity/internal/domain/scoring"
	"github.com/okian/affinity/internal/domain/text"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 60 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "affinity stopped with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration, builds the application and serves HTTP until ctx
// is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWithFormat(cfg.LogFormat, os.Stdout); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log := logger.Get()

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.PrimeCacheOnStart {
		if _, err := a.resolver.PrimeCache(ctx); err != nil {
			log.Warn(ctx, "place cache priming failed", logger.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// application holds the wired components and the resources to release.
type application struct {
	store    *repository.SQLiteStore
	kv       *cache.BadgerCache
	resolver *geo.Resolver
	svc      *service.Service
	mux      *http.ServeMux
}

// build opens storage, wires the scoring pipeline and registers routes.
func build(ctx context.Context, cfg *config.Config) (*application, error) {
	log := logger.Get()

	store, err := repository.Open(ctx, cfg.DBPath, repository.WithLogger(log.Named("repository")))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	kv, err := cache.Open(cfg.CacheDir, cache.WithLogger(log.Named("cache")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	a := &application{store: store, kv: kv}

	geocoder := geocoding.New(
		geocoding.WithBaseURL(cfg.GeocoderURL),
		geocoding.WithUserAgent(cfg.GeocoderUserAgent),
		geocoding.WithTimeout(cfg.GeocoderTimeout()),
		geocoding.WithRatePerSecond(cfg.GeocoderRatePerSec),
		geocoding.WithMaxConsecutiveFailures(uint32(cfg.GeocoderBreakerFailures)), //nolint:gosec // validated >= 1
		geocoding.WithLogger(log.Named("geocoding")),
	)

	translator, err := newTranslator(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.resolver = geo.NewResolver(store, kv, geocoder,
		geo.WithCacheTTL(cfg.CacheTTL()),
		geo.WithLogger(log.Named("geo")),
	)
	preparer := text.NewPreparer(translation.NewDetector(cfg.DetectorRequireReliable), translator,
		text.WithLogger(log.Named("text")))
	description := text.NewSimilarity(preparer)
	aggregator := scoring.NewAggregator(geo.NewCityScorer(a.resolver), description,
		scoring.WithWeightsFromConfig(cfg.SimilarityWeights),
		scoring.WithLogger(log.Named("scoring")),
	)

	a.svc = service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.FanOutWorkers),
		service.WithTopK(cfg.TopK),
		service.WithStoredLimit(cfg.StoredLimit),
		service.WithProfileStore(store),
		service.WithRecommendationStore(store),
		service.WithResolver(a.resolver),
		service.WithPlaceCounter(store),
		service.WithScorer(aggregator),
		service.WithTextAnalyzer(description),
		service.WithTextPreparer(preparer),
	)
	if err := a.svc.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("start service: %w", err)
	}

	a.mux = http.NewServeMux()
	api.NewServer(a.svc, a.svc, map[string]api.HealthCheck{
		"database": store.Ping,
		"cache":    kv.Ping,
	}).Register(ctx, a.mux)
	swagger.Register(ctx, a.mux)
	site.Register(ctx, a.mux)

	return a, nil
}

// newTranslator returns a Gemini-backed translator when an API key is
// configured and a disabled one otherwise.
func newTranslator(ctx context.Context, cfg *config.Config) (text.Translator, error) {
	if cfg.TranslatorAPIKey == "" {
		logger.Get().Info(ctx, "no translator api key; non-English descriptions will not be translated")
		return translation.Disabled{}, nil
	}
	gen, err := translation.NewGeminiGenerator(ctx, cfg.TranslatorAPIKey, cfg.TranslatorModel)
	if err != nil {
		return nil, fmt.Errorf("create translator: %w", err)
	}
	return translation.NewTranslator(gen,
		translation.WithTimeout(cfg.TranslatorTimeout()),
		translation.WithLogger(logger.Get().Named("translation")),
	), nil
}

// Close releases storage handles in reverse order of opening.
func (a *application) Close() {
	if a.svc != nil {
		a.svc.Stop()
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			logger.Get().Warn(context.Background(), "close cache", logger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Get().Warn(context.Background(), "close database", logger.Error(err))
		}
	}
}

// startSystemMetricsUpdater updates process metrics until ctx is cancelled.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates memory and goroutine gauges.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
