package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/db"
	"github.com/sells-group/covenant-monitor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	*pgRepo
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pgRepo: &pgRepo{q: pool}, pool: pool, closeFn: closeFn}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access, such as the Postgres metric source.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	project_id        TEXT REFERENCES projects(id) ON DELETE CASCADE,
	filename          TEXT NOT NULL,
	document_type     TEXT NOT NULL DEFAULT 'unknown',
	processing_status TEXT NOT NULL DEFAULT 'pending',
	metadata          JSONB NOT NULL DEFAULT '{}',
	uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS covenants (
	id                    TEXT PRIMARY KEY,
	document_id           TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	user_id               TEXT NOT NULL,
	name                  TEXT NOT NULL,
	covenant_type         TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	threshold_value       DOUBLE PRECISION,
	thresholds            JSONB NOT NULL DEFAULT '[]',
	current_value         DOUBLE PRECISION,
	directionality        TEXT NOT NULL DEFAULT 'lower_is_better',
	measurement_frequency TEXT NOT NULL DEFAULT 'unspecified',
	compliance_status     TEXT NOT NULL DEFAULT 'unknown',
	needs_review          BOOLEAN NOT NULL DEFAULT false,
	review_reason         TEXT NOT NULL DEFAULT '',
	formula               TEXT NOT NULL DEFAULT '',
	formula_metrics       JSONB NOT NULL DEFAULT '[]',
	last_checked          TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated          TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
	id               TEXT PRIMARY KEY,
	covenant_id      TEXT NOT NULL REFERENCES covenants(id) ON DELETE CASCADE,
	user_id          TEXT NOT NULL,
	alert_type       TEXT NOT NULL CHECK (alert_type IN ('warning', 'breach')),
	status           TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'resolved')),
	message          TEXT NOT NULL,
	details          JSONB NOT NULL DEFAULT '{}',
	resolution_notes TEXT NOT NULL DEFAULT '',
	resolved_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InTx implements Store.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Repository) error) error {
	var fnErr error
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		fnErr = fn(&pgRepo{q: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return eris.Wrapf(model.ErrPersistence, "postgres: %v", err)
	}
	return err
}

// pgRepo runs Repository operations against a pool or a transaction.
type pgRepo struct {
	q db.Querier
}

const (
	pgProjectColumns  = `id, user_id, name, description, created_at`
	pgDocumentColumns = `id, user_id, project_id, filename, document_type, processing_status, metadata, uploaded_at`
	pgCovenantColumns = `id, document_id, user_id, name, covenant_type, description, threshold_value, thresholds,
		current_value, directionality, measurement_frequency, compliance_status, needs_review, review_reason,
		formula, formula_metrics, last_checked, last_updated, created_at`
	pgAlertColumns = `id, covenant_id, user_id, alert_type, status, message, details, resolution_notes,
		resolved_at, created_at, updated_at`
)

var covenantCopyColumns = []string{
	"id", "document_id", "user_id", "name", "covenant_type", "description", "threshold_value", "thresholds",
	"current_value", "directionality", "measurement_frequency", "compliance_status", "needs_review", "review_reason",
	"formula", "formula_metrics", "last_checked", "last_updated", "created_at",
}

func (r *pgRepo) CreateProject(ctx context.Context, p *model.Project) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO projects (`+pgProjectColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.UserID, p.Name, p.Description, p.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert project %s", p.ID)
}

func (r *pgRepo) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.q.QueryRow(ctx,
		`SELECT `+pgProjectColumns+` FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("project", id)
		}
		return nil, eris.Wrapf(err, "postgres: get project %s", id)
	}
	return &p, nil
}

func (r *pgRepo) ListProjects(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+pgProjectColumns+` FROM projects WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: list projects scan")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list projects iterate")
}

func (r *pgRepo) CountProjectContents(ctx context.Context, id string) (int, int, error) {
	var docs, covenants int
	err := r.q.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM documents WHERE project_id = $1),
			(SELECT COUNT(*) FROM covenants c JOIN documents d ON d.id = c.document_id WHERE d.project_id = $1)`,
		id,
	).Scan(&docs, &covenants)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "postgres: count project %s", id)
	}
	return docs, covenants, nil
}

func (r *pgRepo) DeleteProject(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx,
		`DELETE FROM alerts WHERE covenant_id IN (
			SELECT c.id FROM covenants c JOIN documents d ON d.id = c.document_id WHERE d.project_id = $1)`, id,
	); err != nil {
		return eris.Wrapf(err, "postgres: delete alerts for project %s", id)
	}
	if _, err := r.q.Exec(ctx,
		`DELETE FROM covenants WHERE document_id IN (SELECT id FROM documents WHERE project_id = $1)`, id,
	); err != nil {
		return eris.Wrapf(err, "postgres: delete covenants for project %s", id)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM documents WHERE project_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete documents for project %s", id)
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete project %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("project", id)
	}
	return nil
}

func (r *pgRepo) CreateDocument(ctx context.Context, doc *model.Document) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO documents (`+pgDocumentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		doc.ID, doc.UserID, optionalString(doc.ProjectID), doc.Filename, doc.DocumentType,
		string(doc.ProcessingStatus), metadataOrEmpty(doc.Metadata), doc.UploadedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert document %s", doc.ID)
}

func (r *pgRepo) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	var status string
	var meta []byte
	var project *string
	err := r.q.QueryRow(ctx,
		`SELECT `+pgDocumentColumns+` FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.UserID, &project, &d.Filename, &d.DocumentType, &status, &meta, &d.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("document", id)
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	if project != nil {
		d.ProjectID = *project
	}
	d.ProcessingStatus = model.ProcessingStatus(status)
	d.Metadata = meta
	return &d, nil
}

func (r *pgRepo) UpdateDocument(ctx context.Context, doc *model.Document) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE documents SET document_type = $1, processing_status = $2, metadata = $3 WHERE id = $4`,
		doc.DocumentType, string(doc.ProcessingStatus), metadataOrEmpty(doc.Metadata), doc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document %s", doc.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("document", doc.ID)
	}
	return nil
}

func (r *pgRepo) DeleteDocument(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx,
		`DELETE FROM alerts WHERE covenant_id IN (SELECT id FROM covenants WHERE document_id = $1)`, id,
	); err != nil {
		return eris.Wrapf(err, "postgres: delete alerts for document %s", id)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM covenants WHERE document_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete covenants for document %s", id)
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("document", id)
	}
	return nil
}

func (r *pgRepo) InsertCovenants(ctx context.Context, covenants []model.Covenant) error {
	rows := make([][]any, 0, len(covenants))
	for i := range covenants {
		c := &covenants[i]
		enc, err := encodeCovenant(c)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			c.ID, c.DocumentID, c.UserID, c.Name, c.Type, c.Description, c.ThresholdValue, enc.thresholds,
			c.CurrentValue, string(c.Directionality), string(c.MeasurementFrequency), string(c.ComplianceStatus),
			c.NeedsReview, c.ReviewReason, c.Formula, enc.metrics, c.LastChecked.UTC(), c.LastUpdated, c.CreatedAt.UTC(),
		})
	}
	_, err := db.CopyFrom(ctx, r.q, "covenants", covenantCopyColumns, rows)
	return eris.Wrap(err, "postgres: insert covenants")
}

func (r *pgRepo) GetCovenant(ctx context.Context, id string) (*model.Covenant, error) {
	c, err := scanPgCovenant(r.q.QueryRow(ctx, `SELECT `+pgCovenantColumns+` FROM covenants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("covenant", id)
		}
		return nil, eris.Wrapf(err, "postgres: get covenant %s", id)
	}
	return c, nil
}

func (r *pgRepo) ListCovenants(ctx context.Context, filter CovenantFilter) ([]model.Covenant, error) {
	query := `SELECT ` + pgCovenantColumns + ` FROM covenants WHERE true`
	args := []any{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND compliance_status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at, id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	return r.queryCovenants(ctx, "list covenants", query, args...)
}

func (r *pgRepo) ListMonitoredCovenants(ctx context.Context) ([]model.Covenant, error) {
	return r.queryCovenants(ctx, "list monitored covenants",
		`SELECT `+pgCovenantColumns+` FROM covenants WHERE formula <> '' ORDER BY created_at, id`)
}

func (r *pgRepo) queryCovenants(ctx context.Context, op, query string, args ...any) ([]model.Covenant, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var out []model.Covenant
	for rows.Next() {
		c, err := scanPgCovenant(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: %s scan", op)
		}
		out = append(out, *c)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func scanPgCovenant(row pgx.Row) (*model.Covenant, error) {
	var c model.Covenant
	var dir, freq, status string
	var enc covenantJSON
	if err := row.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Name, &c.Type, &c.Description,
		&c.ThresholdValue, &enc.thresholds, &c.CurrentValue, &dir, &freq, &status,
		&c.NeedsReview, &c.ReviewReason, &c.Formula, &enc.metrics,
		&c.LastChecked, &c.LastUpdated, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Directionality = model.Directionality(dir)
	c.MeasurementFrequency = model.Frequency(freq)
	c.ComplianceStatus = model.ComplianceStatus(status)
	if err := decodeCovenant(&c, enc); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *pgRepo) UpdateCovenantState(ctx context.Context, c *model.Covenant) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE covenants SET current_value = $1, compliance_status = $2, last_checked = $3, last_updated = $4 WHERE id = $5`,
		c.CurrentValue, string(c.ComplianceStatus), c.LastChecked.UTC(), c.LastUpdated, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update covenant %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("covenant", c.ID)
	}
	return nil
}

func (r *pgRepo) DeleteCovenant(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM alerts WHERE covenant_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete alerts for covenant %s", id)
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM covenants WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete covenant %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("covenant", id)
	}
	return nil
}

func (r *pgRepo) InsertAlert(ctx context.Context, a *model.Alert) error {
	details, err := encodeDetails(a)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO alerts (`+pgAlertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.CovenantID, a.UserID, string(a.Type), string(a.Status), a.Message, details,
		a.ResolutionNotes, a.ResolvedAt, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert alert %s", a.ID)
}

func (r *pgRepo) UpdateAlert(ctx context.Context, a *model.Alert) error {
	details, err := encodeDetails(a)
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE alerts SET alert_type = $1, status = $2, message = $3, details = $4, resolution_notes = $5,
			resolved_at = $6, updated_at = $7 WHERE id = $8`,
		string(a.Type), string(a.Status), a.Message, details, a.ResolutionNotes, a.ResolvedAt, a.UpdatedAt.UTC(), a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update alert %s", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("alert", a.ID)
	}
	return nil
}

func (r *pgRepo) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	a, err := scanPgAlert(r.q.QueryRow(ctx, `SELECT `+pgAlertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("alert", id)
		}
		return nil, eris.Wrapf(err, "postgres: get alert %s", id)
	}
	return a, nil
}

func (r *pgRepo) GetActiveAlert(ctx context.Context, covenantID string) (*model.Alert, error) {
	a, err := scanPgAlert(r.q.QueryRow(ctx,
		`SELECT `+pgAlertColumns+` FROM alerts WHERE covenant_id = $1 AND status = 'active' LIMIT 1`, covenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("active alert for covenant", covenantID)
		}
		return nil, eris.Wrapf(err, "postgres: get active alert for covenant %s", covenantID)
	}
	return a, nil
}

func (r *pgRepo) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	query := `SELECT ` + pgAlertColumns + ` FROM alerts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.CovenantID != "" {
		query += fmt.Sprintf(` AND covenant_id = $%d`, argIdx)
		args = append(args, filter.CovenantID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))

	return r.queryAlerts(ctx, "list alerts", query, args...)
}

func (r *pgRepo) ListAlertsSince(ctx context.Context, userID string, since time.Time) ([]model.Alert, error) {
	return r.queryAlerts(ctx, "list alerts since",
		`SELECT `+pgAlertColumns+` FROM alerts WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at`,
		userID, since.UTC())
}

func (r *pgRepo) queryAlerts(ctx context.Context, op, query string, args ...any) ([]model.Alert, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanPgAlert(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: %s scan", op)
		}
		out = append(out, *a)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func scanPgAlert(row pgx.Row) (*model.Alert, error) {
	var a model.Alert
	var typ, status string
	var details []byte
	if err := row.Scan(&a.ID, &a.CovenantID, &a.UserID, &typ, &status, &a.Message, &details,
		&a.ResolutionNotes, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Type = model.AlertType(typ)
	a.Status = model.AlertStatus(status)
	if err := decodeDetails(&a, details); err != nil {
		return nil, err
	}
	return &a, nil
}
