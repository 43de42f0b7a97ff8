package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"DomainScore/internal/config"
	"DomainScore/internal/dnsclient"
	"DomainScore/internal/infrastructure/cache"
	"DomainScore/internal/infrastructure/httpapi"
	"DomainScore/internal/infrastructure/importer"
	"DomainScore/internal/infrastructure/scheduler"
	"DomainScore/internal/infrastructure/storage"
	"DomainScore/internal/infrastructure/telegram"
	"DomainScore/internal/logging"
	"DomainScore/internal/metrics"
	"DomainScore/internal/ports"
	"DomainScore/internal/probe"
	"DomainScore/internal/scoring"
	"DomainScore/internal/usecase"
	"DomainScore/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Prometheus
	cache    ports.ResultCache
	analyzer *usecase.Analyzer
	closers  []func()
}

// New builds the analyzer and its probes. Storage is only connected by the
// commands that need it.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	scheme, err := scoring.SchemeByName(cfg.Scoring.Scheme)
	if err != nil {
		return nil, err
	}
	probes, err := BuildProbes(cfg.Probes, baseLogger)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}
	if err := a.buildCache(); err != nil {
		return nil, err
	}

	a.analyzer = usecase.NewAnalyzer(usecase.AnalyzerDeps{
		Probes:     probes,
		Scheme:     scheme,
		Estimator:  scoring.NewEstimator(nil),
		Cache:      a.cache,
		Metrics:    a.metrics,
		Logger:     baseLogger,
		BatchSize:  cfg.Batch.Size,
		BatchDelay: cfg.Batch.Delay,
	})
	return a, nil
}

// BuildProbes constructs every signal source from configuration.
func BuildProbes(cfg config.ProbesConfig, log *slog.Logger) (usecase.Probes, error) {
	resolver := dnsclient.New(
		dnsclient.WithDoHURL(cfg.DNS.DoHURL),
		dnsclient.WithResolvers(cfg.DNS.Resolvers),
		dnsclient.WithTimeout(cfg.DNS.PerQueryTimeout()),
		dnsclient.WithUserAgent(probe.UserAgent),
		dnsclient.WithLogger(logger.Component(log, "dnsclient")),
	)

	registry := probe.NewRegistry()
	registry.Register(probe.NewRedditPlatform(cfg.Social.RedditURL, nil))
	registry.Register(probe.NewHackerNewsPlatform(cfg.Social.HackerNewsURL, nil))
	social, err := probe.NewSocialProbe(registry, cfg.Social.Platforms, cfg.Social.Timeout, log)
	if err != nil {
		return usecase.Probes{}, fmt.Errorf("social probe: %w", err)
	}

	return usecase.Probes{
		Archive: probe.NewArchiveProbe(probe.ArchiveConfig{
			BaseURL:      cfg.Archive.BaseURL,
			Timeout:      cfg.Archive.Timeout,
			RecentMonths: cfg.Archive.RecentMonths,
			Logger:       log,
		}),
		DNS: probe.NewDNSProbe(resolver, cfg.DNS.Timeout, log),
		Index: probe.NewIndexProbe(probe.IndexConfig{
			SearchURL: cfg.Index.SearchURL,
			Timeout:   cfg.Index.Timeout,
			Interval:  cfg.Index.Interval,
			Logger:    log,
		}),
		Mail: probe.NewMailProbe(resolver, cfg.DNS.Timeout, log),
		Web: probe.NewWebProbe(probe.WebConfig{
			Timeout:      cfg.Web.Timeout,
			MaxRedirects: cfg.Web.MaxRedirects,
			Logger:       log,
		}),
		Social: social,
	}, nil
}

func (a *Application) buildCache() error {
	if a.cfg.Cache.RedisURL == "" {
		mem := cache.NewMemoryCache(a.cfg.Cache.MaxSize, a.cfg.Cache.TTL)
		a.metrics.CacheEntries(mem.Len)
		a.cache = mem
		a.closers = append(a.closers, mem.Close)
		return nil
	}

	client, err := cache.Connect(a.cfg.Cache.RedisURL)
	if err != nil {
		return err
	}
	a.cache = cache.NewRedisCache(client, a.cfg.Cache.TTL, a.logger)
	a.closers = append(a.closers, func() { _ = client.Close() })
	return nil
}

// Analyzer exposes the scoring engine for one-shot commands.
func (a *Application) Analyzer() *usecase.Analyzer {
	return a.analyzer
}

// Close releases cache resources.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Serve connects storage, starts the recurring scoring pass and runs the HTTP
// API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	repo, closeDB, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	var notifier ports.Notifier
	if tg := a.cfg.Notifications.Telegram; tg.Enabled() {
		notifier = telegram.NewNotifier(tg.APIURL, tg.BotToken, tg.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Analyzer:       a.analyzer,
		Repository:     repo,
		Notifier:       notifier,
		Metrics:        a.metrics,
		Logger:         a.logger,
		PassSize:       a.cfg.Pipeline.PassSize,
		DigestMinScore: a.cfg.Pipeline.DigestMinScore,
	})

	api := httpapi.New(httpapi.Deps{
		Repository: repo,
		Scorer:     pipeline,
		Probes:     a.analyzer,
		Metrics:    a.metrics.Handler(),
		Logger:     a.logger,
		BatchLimit: a.cfg.HTTP.BatchLimit,
	})
	server := &http.Server{
		Addr:              a.cfg.HTTP.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Scheduler.Enabled {
		sched := usecase.NewScheduler(scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval), pipeline)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return sched.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		a.logger.Info("http api listening", "addr", server.Addr, "scheme", a.analyzer.Scheme().Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Import loads a CSV of names into the pending queue.
func (a *Application) Import(ctx context.Context, r io.Reader) (importer.Report, error) {
	repo, closeDB, err := a.openRepository(ctx)
	if err != nil {
		return importer.Report{}, err
	}
	defer closeDB()

	return importer.NewCSVImporter(repo, 0, a.logger).Import(ctx, r)
}

func (a *Application) openRepository(ctx context.Context) (*storage.PostgresRepository, func(), error) {
	pool, err := storage.Connect(ctx, a.cfg.Database.DSN, a.cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return storage.NewPostgresRepository(pool), pool.Close, nil
}
