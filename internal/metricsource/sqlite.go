package metricsource

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/covenant-monitor/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS financial_metrics (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	metric_name TEXT NOT NULL,
	value       REAL NOT NULL,
	timestamp   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_financial_metrics_name_ts ON financial_metrics(metric_name, timestamp);
`

// SQLite reads a client database with a financial_metrics(metric_name,
// value, timestamp) table. The latest row per metric wins.
type SQLite struct {
	db      *sql.DB
	closeFn func() error
}

// OpenSQLite opens a client metrics database file.
func OpenSQLite(dsn string) (*SQLite, error) {
	if !strings.Contains(dsn, "_time_format=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "metricsource: open sqlite")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "metricsource: sqlite pragma")
	}
	return &SQLite{db: db, closeFn: db.Close}, nil
}

// NewSQLite uses an already open database handle. Close does not close it.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// EnsureSchema creates the financial_metrics table when missing.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "metricsource: sqlite schema")
}

// Record appends a metric observation.
func (s *SQLite) Record(ctx context.Context, name string, value float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO financial_metrics (metric_name, value, timestamp) VALUES (?, ?, ?)`,
		name, value, at.UTC(),
	)
	return eris.Wrapf(err, "metricsource: record %s", name)
}

// FetchMetrics implements Source.
func (s *SQLite) FetchMetrics(ctx context.Context, names []string) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	for _, name := range dedupe(names) {
		var v float64
		err := s.db.QueryRowContext(ctx,
			`SELECT value FROM financial_metrics WHERE metric_name = ? ORDER BY timestamp DESC, id DESC LIMIT 1`,
			name,
		).Scan(&v)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, eris.Wrapf(err, "metricsource: fetch %s", name)
		}
		out[name] = v
	}
	return out, nil
}

// FetchHistory implements HistorySource.
func (s *SQLite) FetchHistory(ctx context.Context, names []string, since time.Time) (map[string][]model.MetricPoint, error) {
	out := make(map[string][]model.MetricPoint, len(names))
	for _, name := range dedupe(names) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT timestamp, value FROM financial_metrics WHERE metric_name = ? AND timestamp >= ? ORDER BY timestamp, id`,
			name, since.UTC(),
		)
		if err != nil {
			return nil, eris.Wrapf(err, "metricsource: history %s", name)
		}
		points, err := scanPoints(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "metricsource: history %s", name)
		}
		if len(points) > 0 {
			out[name] = points
		}
	}
	return out, nil
}

func scanPoints(rows *sql.Rows) ([]model.MetricPoint, error) {
	defer rows.Close() //nolint:errcheck
	var points []model.MetricPoint
	for rows.Next() {
		var p model.MetricPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Close closes the database when OpenSQLite created it.
func (s *SQLite) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}
