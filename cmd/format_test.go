package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/refresh"
)

func TestFormatCovenantsList(t *testing.T) {
	threshold := 3.5
	var buf bytes.Buffer
	formatCovenantsList(&buf, []model.Covenant{{
		ID: "cov-1", Name: "Leverage Ratio", ThresholdValue: &threshold,
		Directionality: model.LowerIsBetter, ComplianceStatus: model.StatusUnknown, NeedsReview: true,
	}})

	out := buf.String()
	assert.Contains(t, out, "THRESHOLD")
	assert.Contains(t, out, "Leverage Ratio")
	assert.Contains(t, out, "3.5")
	assert.Contains(t, out, "unknown")
	assert.Contains(t, out, "yes")
}

func TestFormatAlertSummary(t *testing.T) {
	var buf bytes.Buffer
	formatAlertSummary(&buf, &model.AlertSummary{
		Current: map[model.AlertType]int{model.AlertType(model.StatusBreach): 2},
		History: []model.DayCount{{Date: "2025-06-01", Type: model.AlertType(model.StatusBreach), Count: 2}},
	})

	out := buf.String()
	assert.Contains(t, out, "breach   2")
	assert.Contains(t, out, "warning  0")
	assert.Contains(t, out, "2025-06-01")
}

func TestFormatBreachAnalysis(t *testing.T) {
	var buf bytes.Buffer
	formatBreachAnalysis(&buf, &model.BreachAnalysis{
		Severity: model.SeverityHigh, Impact: "Lenders may accelerate the facility.",
		Recommendations: []string{"Request a waiver", "Prepay the revolver"}, TimelineDays: 30,
	})

	out := buf.String()
	assert.Contains(t, out, "Severity: high")
	assert.Contains(t, out, "Resolve within: 30 days")
	assert.Contains(t, out, "  2. Prepay the revolver")
}

func TestFormatProjectsList(t *testing.T) {
	var buf bytes.Buffer
	formatProjectsList(&buf, []model.Project{{
		ID: "proj-1", Name: "Acme refinancing", Description: "Q3 deal",
		CreatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "DESCRIPTION")
	assert.Contains(t, out, "Acme refinancing")
	assert.Contains(t, out, "2025-06-01 09:30")
}

func TestFormatCycleReport(t *testing.T) {
	var buf bytes.Buffer
	formatCycleReport(&buf, &refresh.CycleReport{
		Checked: 3, Refreshed: 2, Failed: 1, Committed: true, Duration: 1500 * time.Microsecond,
		Failures: []refresh.Failure{{CovenantID: "cov-9", Error: "metric fetch failed"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Checked 3 covenants")
	assert.Contains(t, out, "2 refreshed, 1 failed")
	assert.Contains(t, out, "cov-9: metric fetch failed")
}

func TestFormatValue(t *testing.T) {
	v := 10000000.0
	assert.Equal(t, "-", formatValue(nil))
	assert.Equal(t, "10000000", formatValue(&v))
	assert.Equal(t, "-", formatTime(nil))
}
