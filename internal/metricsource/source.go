// Package metricsource fetches the financial metrics that covenant formulas
// are computed from.
package metricsource

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// ErrNoHistory is returned when a source cannot serve historical values.
var ErrNoHistory = eris.New("metricsource: history not supported")

// Source returns the latest value of each named metric. Metrics it does not
// know are absent from the map; that is not an error. An error means the
// source itself could not be queried.
type Source interface {
	FetchMetrics(ctx context.Context, names []string) (map[string]float64, error)
}

// HistorySource returns timestamped values for each named metric since a
// point in time, oldest first.
type HistorySource interface {
	FetchHistory(ctx context.Context, names []string, since time.Time) (map[string][]model.MetricPoint, error)
}

// Missing returns the names absent from got, sorted.
func Missing(names []string, got map[string]float64) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if _, ok := got[n]; !ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
