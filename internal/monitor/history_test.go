package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/covenant-monitor/internal/extract"
	"github.com/sells-group/covenant-monitor/internal/formula"
	"github.com/sells-group/covenant-monitor/internal/metricsource"
	"github.com/sells-group/covenant-monitor/internal/model"
)

func TestCovenantHistory(t *testing.T) {
	ms, err := metricsource.OpenSQLite(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, ms.EnsureSchema(ctx))

	day := func(n int) time.Time { return t0.AddDate(0, 0, n) }
	require.NoError(t, ms.Record(ctx, "total_debt", 100, day(-200)))
	require.NoError(t, ms.Record(ctx, "total_debt", 300, day(-30)))
	require.NoError(t, ms.Record(ctx, "ebitda", 100, day(-20)))
	require.NoError(t, ms.Record(ctx, "total_debt", 400, day(-10)))
	require.NoError(t, ms.Record(ctx, "ebitda", 80, day(-10)))

	f := newFixture(t, ms)
	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)

	points, err := f.svc.CovenantHistory(ctx, out.Covenants[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[0].Timestamp.Equal(day(-20)))
	assert.InDelta(t, 3.0, points[0].Value, 1e-12)
	assert.True(t, points[1].Timestamp.Equal(day(-10)))
	assert.InDelta(t, 5.0, points[1].Value, 1e-12)
}

func TestCovenantHistory_Errors(t *testing.T) {
	f := newFixture(t, metricsource.NewStatic(nil))
	ctx := context.Background()

	_, err := f.svc.CovenantHistory(ctx, "missing", 30)
	assert.ErrorIs(t, err, model.ErrNotFound)

	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1"})
	require.NoError(t, err)
	_, err = f.svc.CovenantHistory(ctx, out.Covenants[0].ID, 30)
	assert.ErrorIs(t, err, metricsource.ErrNoHistory)

	f.ext.candidates = []extract.RawCandidate{{Type: "capital_expenditures", Threshold: "$25M"}}
	out, err = f.svc.ExtractAndStore(ctx, DocumentInput{Text: "x", DocumentID: "doc-2", UserID: "user-1"})
	require.NoError(t, err)
	_, err = f.svc.CovenantHistory(ctx, out.Covenants[0].ID, 30)
	assert.ErrorIs(t, err, model.ErrFormulaEval)
}

func TestEvaluateSeries_SkipsFailedPoints(t *testing.T) {
	expr, err := formula.Parse("a / b")
	require.NoError(t, err)
	points := evaluateSeries(expr, []string{"a", "b"}, map[string][]model.MetricPoint{
		"a": {{Timestamp: t0, Value: 1}, {Timestamp: t0.Add(time.Hour), Value: 2}},
		"b": {{Timestamp: t0, Value: 0}, {Timestamp: t0.Add(2 * time.Hour), Value: 4}},
	})
	require.Len(t, points, 1)
	assert.InDelta(t, 0.5, points[0].Value, 1e-12)
	assert.True(t, points[0].Timestamp.Equal(t0.Add(2*time.Hour)))
}
