// Package refresh periodically recomputes covenant values from their
// formulas and the configured metric source.
package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/covenant-monitor/internal/alert"
	"github.com/sells-group/covenant-monitor/internal/formula"
	"github.com/sells-group/covenant-monitor/internal/metrics"
	"github.com/sells-group/covenant-monitor/internal/metricsource"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

// DefaultSchedule runs a cycle every 15 minutes.
const DefaultSchedule = "@every 15m"

// Failure is one covenant that could not be refreshed in a cycle.
type Failure struct {
	CovenantID string `json:"covenant_id"`
	Error      string `json:"error"`
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration"`
	Checked     int                `json:"checked"`
	Refreshed   int                `json:"refreshed"`
	Failed      int                `json:"failed"`
	Failures    []Failure          `json:"failures,omitempty"`
	Transitions []alert.Transition `json:"transitions,omitempty"`
	Committed   bool               `json:"committed"`
}

// Deps are the collaborators a Scheduler works with.
type Deps struct {
	Store     store.Store
	Source    metricsource.Source
	Evaluator model.StatusEvaluator
	Alerts    *alert.Engine
	Notifier  *alert.Notifier
}

// Scheduler runs refresh cycles on a cron schedule. Cycles never overlap.
type Scheduler struct {
	deps     Deps
	schedule cron.Schedule
	now      func() time.Time
	log      *zap.Logger
	sf       singleflight.Group

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler. spec is a standard cron expression or a
// descriptor such as "@every 15m"; empty means DefaultSchedule.
func New(deps Deps, spec string, opts ...Option) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, eris.Wrapf(err, "refresh: parse schedule %q", spec)
	}
	if deps.Store == nil || deps.Source == nil || deps.Evaluator == nil || deps.Alerts == nil {
		return nil, eris.New("refresh: store, source, evaluator and alert engine are required")
	}
	s := &Scheduler{
		deps:     deps,
		schedule: sched,
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.L().With(zap.String("component", "refresh_scheduler")),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Start launches the background loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(loopCtx)
	}()
}

// Stop cancels the loop and waits for an in-flight cycle to commit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	s.log.Info("refresh scheduler started")
	for {
		now := time.Now()
		next := s.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("refresh scheduler stopped")
			return
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Error("refresh cycle failed", zap.Error(err))
			}
		}
	}
}

// RunOnce runs a single cycle now. Concurrent calls share one cycle. Once
// started, a cycle runs to completion even if ctx is cancelled, and Stop
// waits for it.
func (s *Scheduler) RunOnce(ctx context.Context) (*CycleReport, error) {
	v, err, _ := s.sf.Do("cycle", func() (any, error) {
		s.wg.Add(1)
		defer s.wg.Done()
		return s.cycle(context.WithoutCancel(ctx))
	})
	report, _ := v.(*CycleReport)
	return report, err
}

type staged struct {
	covenant model.Covenant
	old      model.ComplianceStatus
}

func (s *Scheduler) cycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	report := &CycleReport{StartedAt: s.now()}

	covenants, err := s.deps.Store.ListMonitoredCovenants(ctx)
	if err != nil {
		metrics.RecordRefreshCycle("list_failed", time.Since(start))
		return report, eris.Wrap(err, "refresh: list monitored covenants")
	}

	var batch []staged
	for i := range covenants {
		c := covenants[i]
		if !c.Monitored() {
			continue
		}
		report.Checked++

		value, err := s.compute(ctx, &c)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{CovenantID: c.ID, Error: err.Error()})
			result := "formula_failed"
			if errors.Is(err, model.ErrMetricFetch) {
				result = "metric_fetch_failed"
			}
			metrics.RecordCovenantRefresh(result)
			s.log.Warn("covenant refresh failed",
				zap.String("covenant_id", c.ID),
				zap.String("formula", c.Formula),
				zap.Error(err),
			)
			continue
		}

		now := s.now()
		c.SetCurrentValue(value, now)
		old := c.Recompute(s.deps.Evaluator, now)
		batch = append(batch, staged{covenant: c, old: old})
	}

	if len(batch) > 0 {
		transitions, err := s.commit(ctx, batch)
		if err != nil {
			metrics.RecordRefreshCycle("persist_failed", time.Since(start))
			report.Duration = time.Since(start)
			return report, err
		}
		report.Transitions = transitions
	}
	report.Committed = true
	report.Refreshed = len(batch)
	for range batch {
		metrics.RecordCovenantRefresh("refreshed")
	}

	s.deps.Notifier.Notify(ctx, report.Transitions)

	report.Duration = time.Since(start)
	metrics.RecordRefreshCycle("ok", report.Duration)
	s.log.Info("refresh cycle complete",
		zap.Int("checked", report.Checked),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("failed", report.Failed),
		zap.Int("alert_transitions", len(report.Transitions)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// compute fetches a covenant's metrics and evaluates its formula.
func (s *Scheduler) compute(ctx context.Context, c *model.Covenant) (float64, error) {
	values, err := s.deps.Source.FetchMetrics(ctx, c.FormulaMetrics)
	if err != nil {
		return 0, eris.Wrapf(model.ErrMetricFetch, "refresh: covenant %s: %v", c.ID, err)
	}
	if missing := metricsource.Missing(c.FormulaMetrics, values); len(missing) > 0 {
		return 0, eris.Wrapf(model.ErrMetricFetch, "refresh: covenant %s: missing %s", c.ID, strings.Join(missing, ", "))
	}

	expr, err := formula.Parse(c.Formula)
	if err != nil {
		return 0, eris.Wrapf(err, "refresh: covenant %s", c.ID)
	}
	v, err := expr.Eval(values)
	if err != nil {
		return 0, eris.Wrapf(err, "refresh: covenant %s", c.ID)
	}
	return v, nil
}

// commit writes every staged update and its alert transition in one
// transaction. Any failure rolls the whole batch back.
func (s *Scheduler) commit(ctx context.Context, batch []staged) ([]alert.Transition, error) {
	var transitions []alert.Transition
	err := s.deps.Store.InTx(ctx, func(repo store.Repository) error {
		transitions = transitions[:0]
		for i := range batch {
			c := &batch[i].covenant
			if err := repo.UpdateCovenantState(ctx, c); err != nil {
				return err
			}
			tr, err := s.deps.Alerts.OnStatusChange(ctx, repo, c, batch[i].old, c.ComplianceStatus)
			if err != nil {
				return err
			}
			if tr.Kind != alert.TransitionNone {
				transitions = append(transitions, *tr)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrPersistence) {
			return nil, eris.Wrap(err, "refresh: commit batch")
		}
		return nil, eris.Wrapf(model.ErrPersistence, "refresh: commit batch: %v", err)
	}
	return transitions, nil
}
