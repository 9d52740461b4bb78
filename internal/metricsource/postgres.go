package metricsource

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/db"
	"github.com/sells-group/covenant-monitor/internal/model"
)

// Postgres reads financial_metrics from a Postgres database.
type Postgres struct {
	pool db.Pool
}

// NewPostgres creates a Postgres source over pool.
func NewPostgres(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// FetchMetrics implements Source.
func (p *Postgres) FetchMetrics(ctx context.Context, names []string) (map[string]float64, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT ON (metric_name) metric_name, value
		FROM financial_metrics
		WHERE metric_name = ANY($1)
		ORDER BY metric_name, timestamp DESC`,
		dedupe(names),
	)
	if err != nil {
		return nil, eris.Wrap(err, "metricsource: postgres fetch")
	}
	defer rows.Close()

	out := make(map[string]float64, len(names))
	for rows.Next() {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, eris.Wrap(err, "metricsource: postgres scan")
		}
		out[name] = v
	}
	return out, eris.Wrap(rows.Err(), "metricsource: postgres iterate")
}

// FetchHistory implements HistorySource.
func (p *Postgres) FetchHistory(ctx context.Context, names []string, since time.Time) (map[string][]model.MetricPoint, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT metric_name, timestamp, value
		FROM financial_metrics
		WHERE metric_name = ANY($1) AND timestamp >= $2
		ORDER BY timestamp`,
		dedupe(names), since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "metricsource: postgres history")
	}
	defer rows.Close()

	out := make(map[string][]model.MetricPoint)
	for rows.Next() {
		var name string
		var pt model.MetricPoint
		if err := rows.Scan(&name, &pt.Timestamp, &pt.Value); err != nil {
			return nil, eris.Wrap(err, "metricsource: postgres history scan")
		}
		out[name] = append(out[name], pt)
	}
	return out, eris.Wrap(rows.Err(), "metricsource: postgres history iterate")
}
