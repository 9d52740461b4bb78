package store

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

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	*sqliteRepo
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. All access goes through one connection so transactions serialize.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withTimeFormat(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteRepo: &sqliteRepo{q: db}, db: db}, nil
}

// withTimeFormat makes the driver write times in a sortable text form.
func withTimeFormat(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

// DB returns the underlying handle for subsystems that read other tables
// from the same file, such as the SQLite metric source.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	project_id        TEXT REFERENCES projects(id) ON DELETE CASCADE,
	filename          TEXT NOT NULL,
	document_type     TEXT NOT NULL DEFAULT 'unknown',
	processing_status TEXT NOT NULL DEFAULT 'pending',
	metadata          TEXT NOT NULL DEFAULT '{}',
	uploaded_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS covenants (
	id                    TEXT PRIMARY KEY,
	document_id           TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	user_id               TEXT NOT NULL,
	name                  TEXT NOT NULL,
	covenant_type         TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	threshold_value       REAL,
	thresholds            TEXT NOT NULL DEFAULT '[]',
	current_value         REAL,
	directionality        TEXT NOT NULL DEFAULT 'lower_is_better',
	measurement_frequency TEXT NOT NULL DEFAULT 'unspecified',
	compliance_status     TEXT NOT NULL DEFAULT 'unknown',
	needs_review          INTEGER NOT NULL DEFAULT 0,
	review_reason         TEXT NOT NULL DEFAULT '',
	formula               TEXT NOT NULL DEFAULT '',
	formula_metrics       TEXT NOT NULL DEFAULT '[]',
	last_checked          DATETIME NOT NULL DEFAULT (datetime('now')),
	last_updated          DATETIME,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS alerts (
	id               TEXT PRIMARY KEY,
	covenant_id      TEXT NOT NULL REFERENCES covenants(id) ON DELETE CASCADE,
	user_id          TEXT NOT NULL,
	alert_type       TEXT NOT NULL CHECK (alert_type IN ('warning', 'breach')),
	status           TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'resolved')),
	message          TEXT NOT NULL,
	details          TEXT NOT NULL DEFAULT '{}',
	resolution_notes TEXT NOT NULL DEFAULT '',
	resolved_at      DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_covenants_document ON covenants(document_id);
CREATE INDEX IF NOT EXISTS idx_covenants_user ON covenants(user_id);
CREATE INDEX IF NOT EXISTS idx_covenants_status ON covenants(compliance_status);
CREATE INDEX IF NOT EXISTS idx_alerts_user_created ON alerts(user_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_active ON alerts(covenant_id) WHERE status = 'active';
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx implements Store.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(model.ErrPersistence, "sqlite: begin tx: %v", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteRepo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrapf(model.ErrPersistence, "sqlite: commit tx: %v", err)
	}
	return nil
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteRepo struct {
	q sqlQuerier
}

const (
	sqliteProjectColumns  = `id, user_id, name, description, created_at`
	sqliteDocumentColumns = `id, user_id, project_id, filename, document_type, processing_status, metadata, uploaded_at`
	sqliteCovenantColumns = `id, document_id, user_id, name, covenant_type, description, threshold_value, thresholds,
		current_value, directionality, measurement_frequency, compliance_status, needs_review, review_reason,
		formula, formula_metrics, last_checked, last_updated, created_at`
	sqliteAlertColumns = `id, covenant_id, user_id, alert_type, status, message, details, resolution_notes,
		resolved_at, created_at, updated_at`
)

func (r *sqliteRepo) CreateProject(ctx context.Context, p *model.Project) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO projects (`+sqliteProjectColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Description, p.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert project %s", p.ID)
}

func (r *sqliteRepo) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.q.QueryRowContext(ctx,
		`SELECT `+sqliteProjectColumns+` FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("project", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get project %s", id)
	}
	return &p, nil
}

func (r *sqliteRepo) ListProjects(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sqliteProjectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: list projects scan")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list projects iterate")
}

func (r *sqliteRepo) CountProjectContents(ctx context.Context, id string) (int, int, error) {
	var docs, covenants int
	err := r.q.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM documents WHERE project_id = ?),
			(SELECT COUNT(*) FROM covenants c JOIN documents d ON d.id = c.document_id WHERE d.project_id = ?)`,
		id, id,
	).Scan(&docs, &covenants)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "sqlite: count project %s", id)
	}
	return docs, covenants, nil
}

func (r *sqliteRepo) DeleteProject(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM alerts WHERE covenant_id IN (
			SELECT c.id FROM covenants c JOIN documents d ON d.id = c.document_id WHERE d.project_id = ?)`, id,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete alerts for project %s", id)
	}
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM covenants WHERE document_id IN (SELECT id FROM documents WHERE project_id = ?)`, id,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete covenants for project %s", id)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM documents WHERE project_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete documents for project %s", id)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete project %s", id)
	}
	return checkRowsAffected(res, "project", id)
}

func (r *sqliteRepo) CreateDocument(ctx context.Context, doc *model.Document) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO documents (`+sqliteDocumentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, nullString(doc.ProjectID), doc.Filename, doc.DocumentType,
		string(doc.ProcessingStatus), string(metadataOrEmpty(doc.Metadata)), doc.UploadedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert document %s", doc.ID)
}

func (r *sqliteRepo) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	var status, meta string
	var project sql.NullString
	err := r.q.QueryRowContext(ctx,
		`SELECT `+sqliteDocumentColumns+` FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.UserID, &project, &d.Filename, &d.DocumentType, &status, &meta, &d.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("document", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	d.ProjectID = project.String
	d.ProcessingStatus = model.ProcessingStatus(status)
	d.Metadata = []byte(meta)
	return &d, nil
}

func (r *sqliteRepo) UpdateDocument(ctx context.Context, doc *model.Document) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE documents SET document_type = ?, processing_status = ?, metadata = ? WHERE id = ?`,
		doc.DocumentType, string(doc.ProcessingStatus), string(metadataOrEmpty(doc.Metadata)), doc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document %s", doc.ID)
	}
	return checkRowsAffected(res, "document", doc.ID)
}

func (r *sqliteRepo) DeleteDocument(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM alerts WHERE covenant_id IN (SELECT id FROM covenants WHERE document_id = ?)`, id,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete alerts for document %s", id)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM covenants WHERE document_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete covenants for document %s", id)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete document %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (r *sqliteRepo) InsertCovenants(ctx context.Context, covenants []model.Covenant) error {
	for i := range covenants {
		c := &covenants[i]
		enc, err := encodeCovenant(c)
		if err != nil {
			return err
		}
		_, err = r.q.ExecContext(ctx,
			`INSERT INTO covenants (`+sqliteCovenantColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.UserID, c.Name, c.Type, c.Description, nullFloat(c.ThresholdValue),
			string(enc.thresholds), nullFloat(c.CurrentValue), string(c.Directionality),
			string(c.MeasurementFrequency), string(c.ComplianceStatus), c.NeedsReview, c.ReviewReason,
			c.Formula, string(enc.metrics), c.LastChecked.UTC(), nullTime(c.LastUpdated), c.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert covenant %s", c.ID)
		}
	}
	return nil
}

func (r *sqliteRepo) GetCovenant(ctx context.Context, id string) (*model.Covenant, error) {
	c, err := scanSQLiteCovenant(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteCovenantColumns+` FROM covenants WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("covenant", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get covenant %s", id)
	}
	return c, nil
}

func (r *sqliteRepo) ListCovenants(ctx context.Context, filter CovenantFilter) ([]model.Covenant, error) {
	query := `SELECT ` + sqliteCovenantColumns + ` FROM covenants WHERE 1=1`
	args := []any{}

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if filter.Status != "" {
		query += ` AND compliance_status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return r.queryCovenants(ctx, "list covenants", query, args...)
}

func (r *sqliteRepo) ListMonitoredCovenants(ctx context.Context) ([]model.Covenant, error) {
	return r.queryCovenants(ctx, "list monitored covenants",
		`SELECT `+sqliteCovenantColumns+` FROM covenants WHERE formula <> '' ORDER BY created_at, id`)
}

func (r *sqliteRepo) queryCovenants(ctx context.Context, op, query string, args ...any) ([]model.Covenant, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Covenant
	for rows.Next() {
		c, err := scanSQLiteCovenant(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		out = append(out, *c)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func scanSQLiteCovenant(row scannable) (*model.Covenant, error) {
	var c model.Covenant
	var dir, freq, status, thresholds, metrics string
	var threshold, current sql.NullFloat64
	var lastUpdated sql.NullTime
	if err := row.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Name, &c.Type, &c.Description,
		&threshold, &thresholds, &current, &dir, &freq, &status,
		&c.NeedsReview, &c.ReviewReason, &c.Formula, &metrics,
		&c.LastChecked, &lastUpdated, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ThresholdValue = floatPtr(threshold)
	c.CurrentValue = floatPtr(current)
	if lastUpdated.Valid {
		t := lastUpdated.Time
		c.LastUpdated = &t
	}
	c.Directionality = model.Directionality(dir)
	c.MeasurementFrequency = model.Frequency(freq)
	c.ComplianceStatus = model.ComplianceStatus(status)
	if err := decodeCovenant(&c, covenantJSON{thresholds: []byte(thresholds), metrics: []byte(metrics)}); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *sqliteRepo) UpdateCovenantState(ctx context.Context, c *model.Covenant) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE covenants SET current_value = ?, compliance_status = ?, last_checked = ?, last_updated = ? WHERE id = ?`,
		nullFloat(c.CurrentValue), string(c.ComplianceStatus), c.LastChecked.UTC(), nullTime(c.LastUpdated), c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update covenant %s", c.ID)
	}
	return checkRowsAffected(res, "covenant", c.ID)
}

func (r *sqliteRepo) DeleteCovenant(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM alerts WHERE covenant_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete alerts for covenant %s", id)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM covenants WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete covenant %s", id)
	}
	return checkRowsAffected(res, "covenant", id)
}

func (r *sqliteRepo) InsertAlert(ctx context.Context, a *model.Alert) error {
	details, err := encodeDetails(a)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO alerts (`+sqliteAlertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CovenantID, a.UserID, string(a.Type), string(a.Status), a.Message, string(details),
		a.ResolutionNotes, nullTime(a.ResolvedAt), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert alert %s", a.ID)
}

func (r *sqliteRepo) UpdateAlert(ctx context.Context, a *model.Alert) error {
	details, err := encodeDetails(a)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE alerts SET alert_type = ?, status = ?, message = ?, details = ?, resolution_notes = ?,
			resolved_at = ?, updated_at = ? WHERE id = ?`,
		string(a.Type), string(a.Status), a.Message, string(details), a.ResolutionNotes,
		nullTime(a.ResolvedAt), a.UpdatedAt.UTC(), a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update alert %s", a.ID)
	}
	return checkRowsAffected(res, "alert", a.ID)
}

func (r *sqliteRepo) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	a, err := scanSQLiteAlert(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteAlertColumns+` FROM alerts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("alert", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get alert %s", id)
	}
	return a, nil
}

func (r *sqliteRepo) GetActiveAlert(ctx context.Context, covenantID string) (*model.Alert, error) {
	a, err := scanSQLiteAlert(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteAlertColumns+` FROM alerts WHERE covenant_id = ? AND status = 'active' LIMIT 1`, covenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("active alert for covenant", covenantID)
		}
		return nil, eris.Wrapf(err, "sqlite: get active alert for covenant %s", covenantID)
	}
	return a, nil
}

func (r *sqliteRepo) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	query := `SELECT ` + sqliteAlertColumns + ` FROM alerts WHERE 1=1`
	args := []any{}

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.CovenantID != "" {
		query += ` AND covenant_id = ?`
		args = append(args, filter.CovenantID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	return r.queryAlerts(ctx, "list alerts", query, args...)
}

func (r *sqliteRepo) ListAlertsSince(ctx context.Context, userID string, since time.Time) ([]model.Alert, error) {
	return r.queryAlerts(ctx, "list alerts since",
		`SELECT `+sqliteAlertColumns+` FROM alerts WHERE user_id = ? AND created_at >= ? ORDER BY created_at`,
		userID, since.UTC())
}

func (r *sqliteRepo) queryAlerts(ctx context.Context, op, query string, args ...any) ([]model.Alert, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Alert
	for rows.Next() {
		a, err := scanSQLiteAlert(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		out = append(out, *a)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func scanSQLiteAlert(row scannable) (*model.Alert, error) {
	var a model.Alert
	var typ, status, details string
	var resolvedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.CovenantID, &a.UserID, &typ, &status, &a.Message, &details,
		&a.ResolutionNotes, &resolvedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Type = model.AlertType(typ)
	a.Status = model.AlertStatus(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if err := decodeDetails(&a, []byte(details)); err != nil {
		return nil, err
	}
	return &a, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
