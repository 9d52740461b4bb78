// Package alert maintains the alert lifecycle for covenants whose compliance
// status changes.
package alert

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/metrics"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

// AutoResolvedNote is stamped on alerts closed because the covenant returned
// to compliance.
const AutoResolvedNote = "auto-resolved"

// DefaultSummaryWindowDays is the history window used when none is given.
const DefaultSummaryWindowDays = 30

// TransitionKind describes what OnStatusChange did.
type TransitionKind string

const (
	TransitionNone     TransitionKind = "none"
	TransitionCreated  TransitionKind = "created"
	TransitionUpdated  TransitionKind = "updated"
	TransitionResolved TransitionKind = "resolved"
)

// Transition is the result of one status change. Alert is nil for
// TransitionNone.
type Transition struct {
	Kind  TransitionKind `json:"kind"`
	Alert *model.Alert   `json:"alert,omitempty"`
}

// Engine creates, updates and resolves alerts. It holds no state of its own;
// every read and write goes through the Repository it is handed.
type Engine struct {
	store store.Store
	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an Engine. st backs Dismiss and Summary.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
		log:   zap.L().With(zap.String("component", "alert_engine")),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OnStatusChange applies the alert rules for covenant c moving from old to
// next. It runs inside the caller's transaction when repo is one.
//
// An unknown status never touches an existing alert: losing the value is not
// evidence that the covenant is cured.
func (e *Engine) OnStatusChange(ctx context.Context, repo store.Repository, c *model.Covenant, old, next model.ComplianceStatus) (*Transition, error) {
	active, err := repo.GetActiveAlert(ctx, c.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, eris.Wrapf(err, "alert: load active alert for covenant %s", c.ID)
	}
	if err != nil {
		active = nil
	}

	now := e.now()
	switch {
	case next.IsAlerting() && active != nil:
		// A breach analysis stays with the alert while its type holds.
		var analysis *model.BreachAnalysis
		if active.Type == model.AlertType(next) {
			analysis = active.Details.Analysis
		}
		active.Type = model.AlertType(next)
		active.Details = model.SnapshotDetails(c, now)
		active.Details.Analysis = analysis
		active.Message = model.AlertMessage(c, next)
		active.UpdatedAt = now
		if err := repo.UpdateAlert(ctx, active); err != nil {
			return nil, eris.Wrapf(err, "alert: update alert %s", active.ID)
		}
		return e.record(TransitionUpdated, active, old, next), nil

	case next.IsAlerting():
		a := &model.Alert{
			ID:         e.newID(),
			CovenantID: c.ID,
			UserID:     c.UserID,
			Type:       model.AlertType(next),
			Status:     model.AlertActive,
			Message:    model.AlertMessage(c, next),
			Details:    model.SnapshotDetails(c, now),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.InsertAlert(ctx, a); err != nil {
			return nil, eris.Wrapf(err, "alert: create alert for covenant %s", c.ID)
		}
		return e.record(TransitionCreated, a, old, next), nil

	case next == model.StatusCompliant && active != nil:
		resolve(active, AutoResolvedNote, now)
		if err := repo.UpdateAlert(ctx, active); err != nil {
			return nil, eris.Wrapf(err, "alert: resolve alert %s", active.ID)
		}
		return e.record(TransitionResolved, active, old, next), nil
	}

	return &Transition{Kind: TransitionNone}, nil
}

func (e *Engine) record(kind TransitionKind, a *model.Alert, old, next model.ComplianceStatus) *Transition {
	metrics.RecordAlertTransition(string(kind), string(a.Type))
	e.log.Info("alert "+string(kind),
		zap.String("alert_id", a.ID),
		zap.String("covenant_id", a.CovenantID),
		zap.String("from", string(old)),
		zap.String("to", string(next)),
	)
	return &Transition{Kind: kind, Alert: a}
}

func resolve(a *model.Alert, notes string, now time.Time) {
	a.Status = model.AlertResolved
	a.ResolutionNotes = notes
	a.ResolvedAt = &now
	a.UpdatedAt = now
}

// Dismiss resolves an active alert by hand.
func (e *Engine) Dismiss(ctx context.Context, alertID, notes string) (*model.Alert, error) {
	var out *model.Alert
	err := e.store.InTx(ctx, func(repo store.Repository) error {
		a, err := repo.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		if !a.IsActive() {
			return eris.Wrapf(model.ErrAlreadyResolved, "alert: %s", alertID)
		}
		resolve(a, notes, e.now())
		if err := repo.UpdateAlert(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordAlertTransition("dismissed", string(out.Type))
	return out, nil
}

// Summary counts a user's active alerts by type and their alert history by
// UTC day over the trailing windowDays.
func (e *Engine) Summary(ctx context.Context, userID string, windowDays int) (*model.AlertSummary, error) {
	if windowDays <= 0 {
		windowDays = DefaultSummaryWindowDays
	}

	active, err := e.store.ListAlerts(ctx, store.AlertFilter{
		UserID: userID,
		Status: model.AlertActive,
		Limit:  10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "alert: summary active")
	}

	since := e.now().AddDate(0, 0, -windowDays)
	recent, err := e.store.ListAlertsSince(ctx, userID, since)
	if err != nil {
		return nil, eris.Wrap(err, "alert: summary history")
	}

	summary := &model.AlertSummary{
		Current: map[model.AlertType]int{model.AlertWarning: 0, model.AlertBreach: 0},
		History: historyByDay(recent),
	}
	for _, a := range active {
		summary.Current[a.Type]++
	}
	return summary, nil
}

func historyByDay(alerts []model.Alert) []model.DayCount {
	type key struct {
		day string
		typ model.AlertType
	}
	counts := make(map[key]int)
	for _, a := range alerts {
		counts[key{a.CreatedAt.UTC().Format(time.DateOnly), a.Type}]++
	}

	out := make([]model.DayCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.DayCount{Date: k.day, Type: k.typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Type < out[j].Type
	})
	return out
}
