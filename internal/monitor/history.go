package monitor

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/formula"
	"github.com/sells-group/covenant-monitor/internal/metricsource"
	"github.com/sells-group/covenant-monitor/internal/model"
)

// CovenantHistory computes the covenant's formula over the trailing days of
// metric history. A point is emitted at every metric timestamp once each
// metric has a value as of that time; metrics carry forward between their
// own observations.
func (s *Service) CovenantHistory(ctx context.Context, covenantID string, days int) ([]model.MetricPoint, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	c, err := s.deps.Store.GetCovenant(ctx, covenantID)
	if err != nil {
		return nil, err
	}
	if !c.Monitored() {
		return nil, eris.Wrapf(model.ErrFormulaEval, "monitor: covenant %s has no formula", covenantID)
	}
	hs, ok := s.deps.Metrics.(metricsource.HistorySource)
	if !ok {
		return nil, metricsource.ErrNoHistory
	}
	expr, err := formula.Parse(c.Formula)
	if err != nil {
		return nil, eris.Wrapf(err, "monitor: covenant %s", covenantID)
	}

	series, err := hs.FetchHistory(ctx, c.FormulaMetrics, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, eris.Wrapf(model.ErrMetricFetch, "monitor: history for covenant %s: %v", covenantID, err)
	}
	return evaluateSeries(expr, c.FormulaMetrics, series), nil
}

type observation struct {
	at     time.Time
	metric string
	value  float64
}

func evaluateSeries(expr *formula.Expr, names []string, series map[string][]model.MetricPoint) []model.MetricPoint {
	var obs []observation
	for _, name := range names {
		for _, p := range series[name] {
			obs = append(obs, observation{at: p.Timestamp, metric: name, value: p.Value})
		}
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].at.Before(obs[j].at) })

	asOf := make(map[string]float64, len(names))
	var out []model.MetricPoint
	for i, o := range obs {
		asOf[o.metric] = o.value
		// Emit once per timestamp, after all observations at that instant.
		if i+1 < len(obs) && obs[i+1].at.Equal(o.at) {
			continue
		}
		if len(asOf) < len(names) {
			continue
		}
		v, err := expr.Eval(asOf)
		if err != nil {
			continue
		}
		out = append(out, model.MetricPoint{Timestamp: o.at, Value: v})
	}
	return out
}
