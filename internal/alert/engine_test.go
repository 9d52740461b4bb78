package alert

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/covenant-monitor/internal/compliance"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	st    *store.SQLiteStore
	eng   *Engine
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := &fixture{st: st, clock: t0}
	seq := 0
	f.eng = NewEngine(st,
		WithClock(func() time.Time { return f.clock }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("alert-%d", seq) }),
	)

	ctx := context.Background()
	require.NoError(t, st.CreateDocument(ctx, &model.Document{
		ID: "doc-1", UserID: "user-1", Filename: "loan.pdf",
		ProcessingStatus: model.ProcessingCompleted, UploadedAt: t0,
	}))
	c := model.CovenantDraft{
		Name: "Leverage Ratio", Type: "leverage_ratio", ThresholdValue: 3.5,
		Directionality: model.LowerIsBetter, MeasurementFrequency: model.FrequencyQuarterly,
	}.ToCovenant("cov-1", "doc-1", "user-1", t0)
	require.NoError(t, st.InsertCovenants(ctx, []model.Covenant{c}))
	return f
}

// setValue moves the covenant to value and runs the engine the way callers do.
func (f *fixture) setValue(t *testing.T, value *float64) *Transition {
	t.Helper()
	ctx := context.Background()
	c, err := f.st.GetCovenant(ctx, "cov-1")
	require.NoError(t, err)
	c.CurrentValue = value
	old := c.Recompute(compliance.Default(), f.clock)
	require.NoError(t, f.st.UpdateCovenantState(ctx, c))
	tr, err := f.eng.OnStatusChange(ctx, f.st, c, old, c.ComplianceStatus)
	require.NoError(t, err)
	return tr
}

func v(x float64) *float64 { return &x }

func TestOnStatusChange_CompliantWithoutAlertIsNoop(t *testing.T) {
	f := newFixture(t)

	tr := f.setValue(t, v(3.0))
	assert.Equal(t, TransitionNone, tr.Kind)
	assert.Nil(t, tr.Alert)

	alerts, err := f.st.ListAlerts(context.Background(), store.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestOnStatusChange_BreachCreatesAlert(t *testing.T) {
	f := newFixture(t)

	tr := f.setValue(t, v(4.0))
	require.Equal(t, TransitionCreated, tr.Kind)
	a := tr.Alert
	assert.Equal(t, "alert-1", a.ID)
	assert.Equal(t, model.AlertBreach, a.Type)
	assert.Equal(t, model.AlertActive, a.Status)
	assert.Equal(t, "user-1", a.UserID)
	assert.Equal(t, "Leverage Ratio is in breach status. Current value: 4, Threshold: 3.5", a.Message)
	require.NotNil(t, a.Details.CurrentValue)
	assert.InDelta(t, 4.0, *a.Details.CurrentValue, 1e-12)

	stored, err := f.st.GetActiveAlert(context.Background(), "cov-1")
	require.NoError(t, err)
	assert.Equal(t, "alert-1", stored.ID)
}

func TestOnStatusChange_RepeatedBreachUpdatesInPlace(t *testing.T) {
	f := newFixture(t)

	f.setValue(t, v(3.7)) // warning
	f.clock = t0.Add(time.Hour)
	tr := f.setValue(t, v(4.2)) // breach
	require.Equal(t, TransitionUpdated, tr.Kind)
	assert.Equal(t, "alert-1", tr.Alert.ID)
	assert.Equal(t, model.AlertBreach, tr.Alert.Type)

	f.clock = t0.Add(2 * time.Hour)
	tr = f.setValue(t, v(4.5))
	require.Equal(t, TransitionUpdated, tr.Kind)

	alerts, err := f.st.ListAlerts(context.Background(), store.AlertFilter{CovenantID: "cov-1"})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertBreach, alerts[0].Type)
	require.NotNil(t, alerts[0].Details.CurrentValue)
	assert.InDelta(t, 4.5, *alerts[0].Details.CurrentValue, 1e-12)
	assert.True(t, t0.Add(2*time.Hour).Equal(alerts[0].UpdatedAt))
	assert.True(t, t0.Equal(alerts[0].CreatedAt))
}

func TestOnStatusChange_AnalysisFollowsAlertType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setValue(t, v(4.0))
	a, err := f.st.GetActiveAlert(ctx, "cov-1")
	require.NoError(t, err)
	a.Details.Analysis = &model.BreachAnalysis{
		Severity: model.SeverityHigh, Impact: "Default risk.",
		Recommendations: []string{"Request a waiver"}, TimelineDays: 30, AnalyzedAt: t0,
	}
	require.NoError(t, f.st.UpdateAlert(ctx, a))

	tr := f.setValue(t, v(4.4))
	require.Equal(t, TransitionUpdated, tr.Kind)
	require.NotNil(t, tr.Alert.Details.Analysis)
	assert.Equal(t, []string{"Request a waiver"}, tr.Alert.Details.Analysis.Recommendations)
	stored, err := f.st.GetActiveAlert(ctx, "cov-1")
	require.NoError(t, err)
	require.NotNil(t, stored.Details.Analysis)
	assert.Equal(t, 30, stored.Details.Analysis.TimelineDays)

	tr = f.setValue(t, v(3.7)) // warning
	require.Equal(t, TransitionUpdated, tr.Kind)
	assert.Equal(t, model.AlertWarning, tr.Alert.Type)
	assert.Nil(t, tr.Alert.Details.Analysis)
}

func TestOnStatusChange_CompliantResolves(t *testing.T) {
	f := newFixture(t)

	f.setValue(t, v(4.0))
	f.clock = t0.Add(24 * time.Hour)
	tr := f.setValue(t, v(3.0))
	require.Equal(t, TransitionResolved, tr.Kind)
	assert.Equal(t, model.AlertResolved, tr.Alert.Status)
	assert.Equal(t, AutoResolvedNote, tr.Alert.ResolutionNotes)
	require.NotNil(t, tr.Alert.ResolvedAt)
	assert.True(t, f.clock.Equal(*tr.Alert.ResolvedAt))

	_, err := f.st.GetActiveAlert(context.Background(), "cov-1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// Breaching again opens a fresh alert.
	tr = f.setValue(t, v(5.0))
	require.Equal(t, TransitionCreated, tr.Kind)
	assert.Equal(t, "alert-2", tr.Alert.ID)
}

func TestOnStatusChange_UnknownLeavesActiveAlert(t *testing.T) {
	f := newFixture(t)

	f.setValue(t, v(4.0))
	tr := f.setValue(t, nil)
	assert.Equal(t, TransitionNone, tr.Kind)

	a, err := f.st.GetActiveAlert(context.Background(), "cov-1")
	require.NoError(t, err)
	assert.Equal(t, model.AlertBreach, a.Type)
}

func TestOnStatusChange_Idempotent(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.setValue(t, v(4.0))
	}
	alerts, err := f.st.ListAlerts(context.Background(), store.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestDismiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.Dismiss(ctx, "missing", "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	f.setValue(t, v(4.0))
	f.clock = t0.Add(time.Hour)
	a, err := f.eng.Dismiss(ctx, "alert-1", "waiver granted")
	require.NoError(t, err)
	assert.Equal(t, model.AlertResolved, a.Status)
	assert.Equal(t, "waiver granted", a.ResolutionNotes)
	require.NotNil(t, a.ResolvedAt)

	_, err = f.eng.Dismiss(ctx, "alert-1", "again")
	assert.ErrorIs(t, err, model.ErrAlreadyResolved)

	stored, err := f.st.GetAlert(ctx, "alert-1")
	require.NoError(t, err)
	assert.Equal(t, "waiver granted", stored.ResolutionNotes)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	insert := func(id string, typ model.AlertType, status model.AlertStatus, created time.Time) {
		t.Helper()
		require.NoError(t, f.st.InsertAlert(ctx, &model.Alert{
			ID: id, CovenantID: "cov-1", UserID: "user-1", Type: typ, Status: status,
			Message: "m", CreatedAt: created, UpdatedAt: created,
		}))
	}
	insert("a1", model.AlertWarning, model.AlertResolved, t0.AddDate(0, 0, -45))
	insert("a2", model.AlertWarning, model.AlertResolved, t0.AddDate(0, 0, -2))
	insert("a3", model.AlertBreach, model.AlertResolved, t0.AddDate(0, 0, -2).Add(time.Hour))
	insert("a4", model.AlertWarning, model.AlertResolved, t0.AddDate(0, 0, -2).Add(2*time.Hour))
	insert("a5", model.AlertBreach, model.AlertActive, t0.Add(-time.Hour))

	s, err := f.eng.Summary(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current[model.AlertBreach])
	assert.Equal(t, 0, s.Current[model.AlertWarning])
	assert.Equal(t, []model.DayCount{
		{Date: "2025-05-30", Type: model.AlertBreach, Count: 1},
		{Date: "2025-05-30", Type: model.AlertWarning, Count: 2},
		{Date: "2025-06-01", Type: model.AlertBreach, Count: 1},
	}, s.History)

	wide, err := f.eng.Summary(ctx, "user-1", 60)
	require.NoError(t, err)
	assert.Len(t, wide.History, 4)

	empty, err := f.eng.Summary(ctx, "nobody", 30)
	require.NoError(t, err)
	assert.Empty(t, empty.History)
	assert.Equal(t, 0, empty.Current[model.AlertBreach])
}
