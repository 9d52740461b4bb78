// Package monitor is the application facade: document extraction, manual
// covenant updates, alert handling and covenant history.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/alert"
	"github.com/sells-group/covenant-monitor/internal/extract"
	"github.com/sells-group/covenant-monitor/internal/metrics"
	"github.com/sells-group/covenant-monitor/internal/metricsource"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

// DefaultHistoryDays is the covenant history window used when none is given.
const DefaultHistoryDays = 90

// BreachAnalyzer assesses a covenant in warning or breach.
type BreachAnalyzer interface {
	Analyze(ctx context.Context, c *model.Covenant) (*model.BreachAnalysis, error)
}

// Deps are the collaborators a Service works with. Metrics is optional and
// only used for covenant history. Analyzer is optional.
type Deps struct {
	Store     store.Store
	Extractor *extract.Extractor
	Evaluator model.StatusEvaluator
	Alerts    *alert.Engine
	Notifier  *alert.Notifier
	Metrics   metricsource.Source
	Analyzer  BreachAnalyzer
}

// Service implements the monitoring operations.
type Service struct {
	deps  Deps
	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a Service.
func New(deps Deps, opts ...Option) (*Service, error) {
	if deps.Store == nil || deps.Evaluator == nil || deps.Alerts == nil {
		return nil, eris.New("monitor: store, evaluator and alert engine are required")
	}
	s := &Service{
		deps:  deps,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
		log:   zap.L().With(zap.String("component", "monitor")),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// DocumentInput is one document to extract covenants from.
type DocumentInput struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id,omitempty"`
	UserID     string `json:"user_id"`
	Filename   string `json:"filename"`
	ProjectID  string `json:"project_id,omitempty"`
}

// ExtractOutcome is the result of ExtractAndStore. Warnings carry
// non-fatal problems such as a failed extraction.
type ExtractOutcome struct {
	Document    *model.Document    `json:"document"`
	Covenants   []model.Covenant   `json:"covenants"`
	Transitions []alert.Transition `json:"transitions,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// ExtractAndStore extracts covenants from in.Text and persists them with the
// document in one transaction. Re-extracting an existing document replaces
// its covenants. A failed extraction is reported in Warnings and leaves the
// document with no covenants; it is not an error.
func (s *Service) ExtractAndStore(ctx context.Context, in DocumentInput) (*ExtractOutcome, error) {
	if s.deps.Extractor == nil {
		return nil, eris.New("monitor: no extractor configured")
	}
	if in.UserID == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "monitor: user id is required")
	}

	res := s.deps.Extractor.Extract(ctx, in.Text)
	desc := s.deps.Extractor.Describe(ctx, in.Text)
	now := s.now()

	out := &ExtractOutcome{}
	status := model.ProcessingCompleted
	if res.Err != nil {
		out.Warnings = append(out.Warnings, res.Err.Error())
		s.log.Warn("extraction failed", zap.String("document_id", in.DocumentID), zap.Error(res.Err))
	}
	for _, d := range res.Drafts {
		if d.NeedsReview {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s needs review: %s", d.Name, d.ReviewReason))
		}
	}
	if len(out.Warnings) > 0 {
		status = model.ProcessingCompletedWithWarning
	}

	meta, err := json.Marshal(model.DocumentMetadata{
		DocumentType: desc.DocumentType,
		Parties:      desc.Parties,
		Dates:        res.Dates,
		ProcessedAt:  now,
		Warnings:     out.Warnings,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitor: marshal document metadata")
	}

	docID := in.DocumentID
	if docID == "" {
		docID = s.newID()
	}
	covenants := make([]model.Covenant, 0, len(res.Drafts))
	for _, d := range res.Drafts {
		c := d.ToCovenant(s.newID(), docID, in.UserID, now)
		c.Recompute(s.deps.Evaluator, now)
		covenants = append(covenants, c)
	}

	err = s.deps.Store.InTx(ctx, func(repo store.Repository) error {
		doc, err := repo.GetDocument(ctx, docID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			if err := checkProjectOwner(ctx, repo, in.ProjectID, in.UserID); err != nil {
				return err
			}
			doc = &model.Document{
				ID:         docID,
				UserID:     in.UserID,
				ProjectID:  in.ProjectID,
				Filename:   in.Filename,
				UploadedAt: now,
			}
			doc.DocumentType = desc.DocumentType
			doc.ProcessingStatus = status
			doc.Metadata = meta
			if err := repo.CreateDocument(ctx, doc); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			existing, err := repo.ListCovenants(ctx, store.CovenantFilter{DocumentID: docID, Limit: 100000})
			if err != nil {
				return err
			}
			for _, c := range existing {
				if err := repo.DeleteCovenant(ctx, c.ID); err != nil {
					return err
				}
			}
			doc.DocumentType = desc.DocumentType
			doc.ProcessingStatus = status
			doc.Metadata = meta
			if err := repo.UpdateDocument(ctx, doc); err != nil {
				return err
			}
		}
		out.Document = doc

		if err := repo.InsertCovenants(ctx, covenants); err != nil {
			return err
		}
		out.Transitions = out.Transitions[:0]
		for i := range covenants {
			c := &covenants[i]
			tr, err := s.deps.Alerts.OnStatusChange(ctx, repo, c, model.StatusUnknown, c.ComplianceStatus)
			if err != nil {
				return err
			}
			if tr.Kind != alert.TransitionNone {
				out.Transitions = append(out.Transitions, *tr)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordExtraction("persist_failed", 0)
		return nil, eris.Wrapf(err, "monitor: store extraction for document %s", docID)
	}

	out.Covenants = covenants
	metrics.RecordExtraction(string(status), len(covenants))
	s.deps.Notifier.Notify(ctx, out.Transitions)
	s.log.Info("document processed",
		zap.String("document_id", docID),
		zap.String("status", string(status)),
		zap.Int("covenants", len(covenants)),
		zap.Int("alerts", len(out.Transitions)),
	)
	return out, nil
}

// GetCovenant returns one covenant.
func (s *Service) GetCovenant(ctx context.Context, covenantID string) (*model.Covenant, error) {
	return s.deps.Store.GetCovenant(ctx, covenantID)
}

// GetComplianceStatus returns a covenant's stored compliance status.
func (s *Service) GetComplianceStatus(ctx context.Context, covenantID string) (model.ComplianceStatus, error) {
	c, err := s.deps.Store.GetCovenant(ctx, covenantID)
	if err != nil {
		return "", err
	}
	return c.ComplianceStatus, nil
}

// SetCurrentValue records a manually supplied value, re-evaluates the
// covenant and applies the alert rules.
func (s *Service) SetCurrentValue(ctx context.Context, covenantID string, value float64) (*model.Covenant, *alert.Transition, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, nil, eris.Wrapf(model.ErrInvalidInput, "monitor: covenant %s: value must be finite, got %v", covenantID, value)
	}

	var (
		out *model.Covenant
		tr  *alert.Transition
	)
	err := s.deps.Store.InTx(ctx, func(repo store.Repository) error {
		c, err := repo.GetCovenant(ctx, covenantID)
		if err != nil {
			return err
		}
		now := s.now()
		c.SetCurrentValue(value, now)
		old := c.Recompute(s.deps.Evaluator, now)
		if err := repo.UpdateCovenantState(ctx, c); err != nil {
			return err
		}
		tr, err = s.deps.Alerts.OnStatusChange(ctx, repo, c, old, c.ComplianceStatus)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.deps.Notifier.Notify(ctx, []alert.Transition{*tr})
	return out, tr, nil
}

// DismissAlert resolves an active alert by hand.
func (s *Service) DismissAlert(ctx context.Context, alertID, notes string) (*model.Alert, error) {
	return s.deps.Alerts.Dismiss(ctx, alertID, notes)
}

// GetAlertSummary returns active counts and per-day history for a user.
func (s *Service) GetAlertSummary(ctx context.Context, userID string, windowDays int) (*model.AlertSummary, error) {
	return s.deps.Alerts.Summary(ctx, userID, windowDays)
}

// ListCovenants lists covenants matching filter.
func (s *Service) ListCovenants(ctx context.Context, filter store.CovenantFilter) ([]model.Covenant, error) {
	return s.deps.Store.ListCovenants(ctx, filter)
}

// ListAlerts lists alerts matching filter, newest first.
func (s *Service) ListAlerts(ctx context.Context, filter store.AlertFilter) ([]model.Alert, error) {
	return s.deps.Store.ListAlerts(ctx, filter)
}

// GetDocument returns one document.
func (s *Service) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	return s.deps.Store.GetDocument(ctx, documentID)
}

// DeleteCovenant removes a covenant and its alerts.
func (s *Service) DeleteCovenant(ctx context.Context, covenantID string) error {
	return s.deps.Store.InTx(ctx, func(repo store.Repository) error {
		return repo.DeleteCovenant(ctx, covenantID)
	})
}

// DeleteDocument removes a document with its covenants and their alerts.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	return s.deps.Store.InTx(ctx, func(repo store.Repository) error {
		return repo.DeleteDocument(ctx, documentID)
	})
}
