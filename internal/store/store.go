// Package store persists projects, documents, covenants and alerts.
package store

import (
	"context"
	"time"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// CovenantFilter specifies criteria for listing covenants. Zero values match
// everything.
type CovenantFilter struct {
	UserID     string                 `json:"user_id,omitempty"`
	DocumentID string                 `json:"document_id,omitempty"`
	Status     model.ComplianceStatus `json:"status,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	Offset     int                    `json:"offset,omitempty"`
}

// AlertFilter specifies criteria for listing alerts, newest first.
type AlertFilter struct {
	UserID     string            `json:"user_id,omitempty"`
	CovenantID string            `json:"covenant_id,omitempty"`
	Status     model.AlertStatus `json:"status,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// Repository holds the record operations. It is implemented both by a Store
// and by the transaction-scoped value passed to InTx callbacks. Lookups of
// missing records return errors wrapping model.ErrNotFound.
type Repository interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, userID string) ([]model.Project, error)
	CountProjectContents(ctx context.Context, id string) (documents, covenants int, err error)
	DeleteProject(ctx context.Context, id string) error

	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	UpdateDocument(ctx context.Context, doc *model.Document) error
	DeleteDocument(ctx context.Context, id string) error

	// Covenants
	InsertCovenants(ctx context.Context, covenants []model.Covenant) error
	GetCovenant(ctx context.Context, id string) (*model.Covenant, error)
	ListCovenants(ctx context.Context, filter CovenantFilter) ([]model.Covenant, error)
	ListMonitoredCovenants(ctx context.Context) ([]model.Covenant, error)
	UpdateCovenantState(ctx context.Context, c *model.Covenant) error
	DeleteCovenant(ctx context.Context, id string) error

	// Alerts
	InsertAlert(ctx context.Context, a *model.Alert) error
	UpdateAlert(ctx context.Context, a *model.Alert) error
	GetAlert(ctx context.Context, id string) (*model.Alert, error)
	GetActiveAlert(ctx context.Context, covenantID string) (*model.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error)
	ListAlertsSince(ctx context.Context, userID string, since time.Time) ([]model.Alert, error)
}

// Store is a Repository with transactions and lifecycle.
type Store interface {
	Repository

	// InTx runs fn in one transaction. fn's error rolls everything back and
	// is returned as is; begin and commit failures wrap model.ErrPersistence.
	// fn must only use the Repository it is given.
	InTx(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
