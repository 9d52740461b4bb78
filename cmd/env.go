package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/alert"
	"github.com/sells-group/covenant-monitor/internal/compliance"
	"github.com/sells-group/covenant-monitor/internal/extract"
	"github.com/sells-group/covenant-monitor/internal/metricsource"
	"github.com/sells-group/covenant-monitor/internal/monitor"
	"github.com/sells-group/covenant-monitor/internal/refresh"
	"github.com/sells-group/covenant-monitor/internal/resilience"
	"github.com/sells-group/covenant-monitor/internal/store"
	anthropicpkg "github.com/sells-group/covenant-monitor/pkg/anthropic"
)

// monitorEnv holds the initialized store, metric source and services used
// by the commands.
type monitorEnv struct {
	Store     store.Store
	Metrics   metricsource.Source // nil when metrics.source is none
	Service   *monitor.Service
	Scheduler *refresh.Scheduler // nil without a metric source
	Alerts    *alert.Engine
	Notifier  *alert.Notifier

	closers []func()
}

// Close releases resources held by the environment.
func (e *monitorEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "covenant.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initExtractor builds the covenant extractor for the configured provider.
func initExtractor() (*extract.Extractor, error) {
	var svc extract.TextExtractionService
	switch cfg.Extraction.Provider {
	case "fixture":
		fs, err := extract.LoadFixture(cfg.Extraction.FixturePath)
		if err != nil {
			return nil, err
		}
		svc = fs
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic key is required (COVENANT_ANTHROPIC_KEY)")
		}
		svc = extract.NewClaudeService(anthropicpkg.NewClient(cfg.Anthropic.Key), extract.ClaudeConfig{
			Model:        cfg.Anthropic.Model,
			MaxTokens:    cfg.Anthropic.MaxTokens,
			Temperature:  cfg.Anthropic.Temperature,
			MaxTextChars: cfg.Extraction.MaxTextChars,
			RatePerSec:   cfg.Anthropic.RatePerSec,
			Retry:        resilience.DefaultRetryConfig().WithAttempts(cfg.Extraction.RetryAttempts),
		})
	default:
		return nil, eris.Errorf("unsupported extraction provider: %s", cfg.Extraction.Provider)
	}
	return extract.New(svc, extract.WithTimeout(cfg.Extraction.Timeout())), nil
}

// initAnalyzer builds the breach analyzer. It returns nil without an
// Anthropic key, which leaves breach analysis unavailable.
func initAnalyzer() *alert.Analyzer {
	if cfg.Anthropic.Key == "" {
		zap.L().Debug("anthropic.key not set, breach analysis disabled")
		return nil
	}
	return alert.NewAnalyzer(anthropicpkg.NewClient(cfg.Anthropic.Key), alert.AnalyzerConfig{
		Model:       cfg.Anthropic.HaikuModel,
		Temperature: cfg.Anthropic.Temperature,
		Retry:       resilience.DefaultRetryConfig(),
	})
}

// initMetricSource opens the configured metric source. A Postgres source
// without its own database_url shares the store's pool.
func initMetricSource(ctx context.Context, st store.Store) (metricsource.Source, func(), error) {
	noop := func() {}
	var (
		src     metricsource.Source
		closeFn = noop
	)

	switch cfg.Metrics.Source {
	case "none", "":
		return nil, noop, nil
	case "sqlite":
		s, err := metricsource.OpenSQLite(cfg.Metrics.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, noop, err
		}
		src, closeFn = s, func() { _ = s.Close() }
	case "postgres":
		if cfg.Metrics.DatabaseURL == "" {
			ps, ok := st.(*store.PostgresStore)
			if !ok {
				return nil, noop, eris.New("metrics.database_url is required unless the store is postgres")
			}
			src = metricsource.NewPostgres(ps.Pool())
			zap.L().Info("metric source using shared database pool")
			break
		}
		pool, err := pgxpool.New(ctx, cfg.Metrics.DatabaseURL)
		if err != nil {
			return nil, noop, eris.Wrap(err, "metrics: connect postgres")
		}
		src, closeFn = metricsource.NewPostgres(pool), pool.Close
	case "http":
		src = metricsource.NewHTTP(metricsource.HTTPConfig{
			BaseURL:    cfg.Metrics.BaseURL,
			APIKey:     cfg.Metrics.APIKey,
			RatePerSec: cfg.Metrics.RatePerSec,
			Timeout:    time.Duration(cfg.Metrics.TimeoutSecs) * time.Second,
			Retry:      resilience.DefaultRetryConfig(),
		})
	default:
		return nil, noop, eris.Errorf("unsupported metrics source: %s", cfg.Metrics.Source)
	}

	return metricsource.NewCached(src, time.Duration(cfg.Metrics.CacheTTLSecs)*time.Second), closeFn, nil
}

// initEnv sets up the store, migrates it and wires the services. The
// extractor is only built when withExtractor is set so that commands which
// never extract do not need model credentials.
func initEnv(ctx context.Context, withExtractor bool) (*monitorEnv, error) {
	env := &monitorEnv{}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env.Store = st
	env.closers = append(env.closers, func() { _ = st.Close() })

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	evaluator, err := compliance.NewEvaluator(
		compliance.Policy(cfg.Compliance.Policy),
		cfg.Compliance.WarningBand,
		cfg.Compliance.WarningRatio,
	)
	if err != nil {
		env.Close()
		return nil, err
	}

	var extractor *extract.Extractor
	if withExtractor {
		extractor, err = initExtractor()
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	src, closeSrc, err := initMetricSource(ctx, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Metrics = src
	env.closers = append(env.closers, closeSrc)

	env.Alerts = alert.NewEngine(st)
	env.Notifier = alert.NewNotifier(cfg.Alerts.WebhookURL)

	deps := monitor.Deps{
		Store:     st,
		Extractor: extractor,
		Evaluator: evaluator,
		Alerts:    env.Alerts,
		Notifier:  env.Notifier,
		Metrics:   src,
	}
	if a := initAnalyzer(); a != nil {
		deps.Analyzer = a
	}
	env.Service, err = monitor.New(deps)
	if err != nil {
		env.Close()
		return nil, err
	}

	if src != nil {
		env.Scheduler, err = refresh.New(refresh.Deps{
			Store:     st,
			Source:    src,
			Evaluator: evaluator,
			Alerts:    env.Alerts,
			Notifier:  env.Notifier,
		}, cfg.Refresh.Schedule)
		if err != nil {
			env.Close()
			return nil, err
		}
	} else {
		zap.L().Debug("metrics.source is none, refresh scheduler disabled")
	}

	return env, nil
}
