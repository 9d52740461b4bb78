package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/covenant-monitor/internal/alert"
	"github.com/sells-group/covenant-monitor/internal/compliance"
	"github.com/sells-group/covenant-monitor/internal/extract"
	"github.com/sells-group/covenant-monitor/internal/metricsource"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

var t0 = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

const leverageText = `SYNDICATED LOAN AGREEMENT
The Borrower shall maintain a Leverage Ratio not exceeding 3.5:1.0.
Effective Date: 10/28/2024`

type stubService struct {
	candidates []extract.RawCandidate
	err        error
}

func (s *stubService) ExtractCovenants(_ context.Context, _ string) ([]extract.RawCandidate, error) {
	return s.candidates, s.err
}

func (s *stubService) DescribeDocument(_ context.Context, _ string) (*extract.DocumentDescription, error) {
	return &extract.DocumentDescription{DocumentType: "Loan Agreement", Parties: []string{"Acme Corp", "First Bank"}}, nil
}

var leverageCandidate = extract.RawCandidate{
	Type:        "leverage_ratio",
	Threshold:   "3.5:1.0",
	Description: "Leverage Ratio not exceeding 3.5:1.0",
	Frequency:   "quarterly",
	Formula:     "total_debt / ebitda",
}

type fixture struct {
	st  *store.SQLiteStore
	svc *Service
	ext *stubService
}

func newFixture(t *testing.T, metrics metricsource.Source) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	seq := 0
	ids := func() string { seq++; return fmt.Sprintf("id-%d", seq) }
	clock := func() time.Time { return t0 }

	ext := &stubService{candidates: []extract.RawCandidate{leverageCandidate}}
	svc, err := New(Deps{
		Store:     st,
		Extractor: extract.New(ext),
		Evaluator: compliance.Default(),
		Alerts:    alert.NewEngine(st, alert.WithClock(clock), alert.WithIDGenerator(ids)),
		Metrics:   metrics,
	}, WithClock(clock), WithIDGenerator(ids))
	require.NoError(t, err)
	return &fixture{st: st, svc: svc, ext: ext}
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestLeverageRatioEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{
		Text: leverageText, DocumentID: "doc-1", UserID: "user-1", Filename: "loan.pdf",
	})
	require.NoError(t, err)
	require.Len(t, out.Covenants, 1)
	assert.Empty(t, out.Warnings)
	assert.Empty(t, out.Transitions)

	c := out.Covenants[0]
	require.NotNil(t, c.ThresholdValue)
	assert.InDelta(t, 3.5, *c.ThresholdValue, 1e-12)
	assert.Equal(t, model.LowerIsBetter, c.Directionality)
	assert.Equal(t, model.StatusUnknown, c.ComplianceStatus)

	status, err := f.svc.GetComplianceStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, status)

	updated, tr, err := f.svc.SetCurrentValue(ctx, c.ID, 4.0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBreach, updated.ComplianceStatus)
	assert.Equal(t, alert.TransitionCreated, tr.Kind)

	status, err = f.svc.GetComplianceStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBreach, status)

	alerts, err := f.svc.ListAlerts(ctx, store.AlertFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertType(model.StatusBreach), alerts[0].Type)
	assert.Equal(t, model.AlertActive, alerts[0].Status)
}

func TestExtractAndStore_DocumentMetadata(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.svc.CreateProject(ctx, "user-1", "Acme refinancing", "")
	require.NoError(t, err)
	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, UserID: "user-1", Filename: "loan.pdf", ProjectID: p.ID})
	require.NoError(t, err)
	require.NotEmpty(t, out.Document.ID)

	doc, err := f.svc.GetDocument(ctx, out.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "loan agreement", doc.DocumentType)
	assert.Equal(t, model.ProcessingCompleted, doc.ProcessingStatus)
	assert.Equal(t, p.ID, doc.ProjectID)

	var meta model.DocumentMetadata
	require.NoError(t, json.Unmarshal(doc.Metadata, &meta))
	assert.Equal(t, []string{"Acme Corp", "First Bank"}, meta.Parties)
	require.Len(t, meta.Dates, 1)
	assert.Equal(t, "effective_date", meta.Dates[0].Type)
	assert.True(t, meta.ProcessedAt.Equal(t0))
}

func TestExtractAndStore_FailureIsWarning(t *testing.T) {
	f := newFixture(t, nil)
	f.ext.err = errors.New("model unavailable")
	ctx := context.Background()

	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)
	assert.Empty(t, out.Covenants)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "model unavailable")
	assert.Equal(t, model.ProcessingCompletedWithWarning, out.Document.ProcessingStatus)

	doc, err := f.svc.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.ProcessingCompletedWithWarning, doc.ProcessingStatus)
}

func TestExtractAndStore_ReviewWarnings(t *testing.T) {
	f := newFixture(t, nil)
	f.ext.candidates = append(f.ext.candidates, extract.RawCandidate{Type: "current_ratio", Threshold: "1.2:0"})

	out, err := f.svc.ExtractAndStore(context.Background(), DocumentInput{Text: "x", DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, out.Covenants, 2)
	assert.True(t, out.Covenants[1].NeedsReview)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "Current Ratio needs review")
	assert.Equal(t, model.ProcessingCompletedWithWarning, out.Document.ProcessingStatus)
}

func TestExtractAndStore_ReplacesCovenants(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	in := DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"}

	first, err := f.svc.ExtractAndStore(ctx, in)
	require.NoError(t, err)
	_, _, err = f.svc.SetCurrentValue(ctx, first.Covenants[0].ID, 5.0)
	require.NoError(t, err)

	second, err := f.svc.ExtractAndStore(ctx, in)
	require.NoError(t, err)
	require.Len(t, second.Covenants, 1)
	assert.NotEqual(t, first.Covenants[0].ID, second.Covenants[0].ID)

	list, err := f.svc.ListCovenants(ctx, store.CovenantFilter{DocumentID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.Covenants[0].ID, list[0].ID)

	_, err = f.svc.GetCovenant(ctx, first.Covenants[0].ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	alerts, err := f.svc.ListAlerts(ctx, store.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestExtractAndStore_Validation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.ExtractAndStore(context.Background(), DocumentInput{Text: "x"})
	assert.Error(t, err)

	f.svc.deps.Extractor = nil
	_, err = f.svc.ExtractAndStore(context.Background(), DocumentInput{Text: "x", UserID: "u"})
	assert.Error(t, err)
}

func TestSetCurrentValue_IdempotentAndResolves(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)
	id := out.Covenants[0].ID

	_, tr, err := f.svc.SetCurrentValue(ctx, id, 3.7)
	require.NoError(t, err)
	assert.Equal(t, alert.TransitionCreated, tr.Kind)
	assert.Equal(t, model.AlertType(model.StatusWarning), tr.Alert.Type)

	_, tr, err = f.svc.SetCurrentValue(ctx, id, 4.2)
	require.NoError(t, err)
	assert.Equal(t, alert.TransitionUpdated, tr.Kind)

	_, tr, err = f.svc.SetCurrentValue(ctx, id, 4.2)
	require.NoError(t, err)
	assert.Equal(t, alert.TransitionUpdated, tr.Kind)

	active, err := f.svc.ListAlerts(ctx, store.AlertFilter{Status: model.AlertActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, model.AlertType(model.StatusBreach), active[0].Type)

	_, tr, err = f.svc.SetCurrentValue(ctx, id, 3.0)
	require.NoError(t, err)
	assert.Equal(t, alert.TransitionResolved, tr.Kind)
	assert.Equal(t, alert.AutoResolvedNote, tr.Alert.ResolutionNotes)

	_, _, err = f.svc.SetCurrentValue(ctx, "missing", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetCurrentValue_RejectsNonFinite(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)
	id := out.Covenants[0].ID

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, _, err := f.svc.SetCurrentValue(ctx, id, v)
		require.Error(t, err, "value %v", v)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	}

	c, err := f.svc.GetCovenant(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, c.CurrentValue)
	assert.Equal(t, model.StatusUnknown, c.ComplianceStatus)

	alerts, err := f.svc.ListAlerts(ctx, store.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDismissAndSummary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)
	_, tr, err := f.svc.SetCurrentValue(ctx, out.Covenants[0].ID, 4.0)
	require.NoError(t, err)

	summary, err := f.svc.GetAlertSummary(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Current[model.AlertType(model.StatusBreach)])

	dismissed, err := f.svc.DismissAlert(ctx, tr.Alert.ID, "waiver signed")
	require.NoError(t, err)
	assert.Equal(t, "waiver signed", dismissed.ResolutionNotes)

	_, err = f.svc.DismissAlert(ctx, tr.Alert.ID, "again")
	assert.ErrorIs(t, err, model.ErrAlreadyResolved)

	summary, err = f.svc.GetAlertSummary(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Zero(t, summary.Current[model.AlertType(model.StatusBreach)])
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)
	_, _, err = f.svc.SetCurrentValue(ctx, out.Covenants[0].ID, 4.0)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCovenant(ctx, out.Covenants[0].ID))
	alerts, err := f.svc.ListAlerts(ctx, store.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.ErrorIs(t, f.svc.DeleteCovenant(ctx, out.Covenants[0].ID), model.ErrNotFound)

	require.NoError(t, f.svc.DeleteDocument(ctx, "doc-1"))
	_, err = f.svc.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetComplianceStatus_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.GetComplianceStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
