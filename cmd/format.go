package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/refresh"
)

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func formatCovenantsList(w io.Writer, covenants []model.Covenant) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTHRESHOLD\tCURRENT\tDIRECTION\tSTATUS\tREVIEW\tUPDATED")
	for i := range covenants {
		c := &covenants[i]
		review := ""
		if c.NeedsReview {
			review = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, formatValue(c.ThresholdValue), formatValue(c.CurrentValue),
			c.Directionality, c.ComplianceStatus, review, formatTime(c.LastUpdated))
	}
	tw.Flush() //nolint:errcheck
}

func formatAlertsList(w io.Writer, alerts []model.Alert) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOVENANT\tTYPE\tSTATUS\tCREATED\tMESSAGE")
	for i := range alerts {
		a := &alerts[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.CovenantID, a.Type, a.Status, formatTime(&a.CreatedAt), a.Message)
	}
	tw.Flush() //nolint:errcheck
}

func formatAlertSummary(w io.Writer, s *model.AlertSummary) {
	fmt.Fprintln(w, "Active alerts:")
	for _, typ := range []model.AlertType{model.AlertType(model.StatusWarning), model.AlertType(model.StatusBreach)} {
		fmt.Fprintf(w, "  %-8s %d\n", typ, s.Current[typ])
	}
	if len(s.History) == 0 {
		return
	}
	fmt.Fprintln(w, "\nHistory:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  DATE\tTYPE\tCOUNT")
	for _, d := range s.History {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", d.Date, d.Type, d.Count)
	}
	tw.Flush() //nolint:errcheck
}

func formatBreachAnalysis(w io.Writer, a *model.BreachAnalysis) {
	fmt.Fprintf(w, "Severity: %s\n", a.Severity)
	if a.TimelineDays > 0 {
		fmt.Fprintf(w, "Resolve within: %d days\n", a.TimelineDays)
	}
	if a.Impact != "" {
		fmt.Fprintf(w, "\n%s\n", a.Impact)
	}
	if len(a.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for i, r := range a.Recommendations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, r)
		}
	}
}

func formatProjectsList(w io.Writer, projects []model.Project) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tDESCRIPTION")
	for i := range projects {
		p := &projects[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, formatTime(&p.CreatedAt), p.Description)
	}
	tw.Flush() //nolint:errcheck
}

func formatCycleReport(w io.Writer, r *refresh.CycleReport) {
	fmt.Fprintf(w, "Checked %d covenants in %s: %d refreshed, %d failed, %d alert changes (committed: %t)\n",
		r.Checked, r.Duration.Round(time.Millisecond), r.Refreshed, r.Failed, len(r.Transitions), r.Committed)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s: %s\n", f.CovenantID, f.Error)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
