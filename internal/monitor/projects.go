package monitor

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

// CreateProject creates a project owned by userID.
func (s *Service) CreateProject(ctx context.Context, userID, name, description string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if userID == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "monitor: user id is required")
	}
	if name == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "monitor: project name is required")
	}
	p := &model.Project{
		ID:          s.newID(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}
	if err := s.deps.Store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("project created", zap.String("project_id", p.ID), zap.String("user_id", userID))
	return p, nil
}

// ListProjects returns a user's projects.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]model.Project, error) {
	return s.deps.Store.ListProjects(ctx, userID)
}

// GetProject returns a project with its document and covenant counts.
func (s *Service) GetProject(ctx context.Context, projectID string) (*model.ProjectSummary, error) {
	p, err := s.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	docs, covs, err := s.deps.Store.CountProjectContents(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &model.ProjectSummary{Project: *p, DocumentCount: docs, CovenantCount: covs}, nil
}

// DeleteProject removes a project with its documents, covenants and alerts.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	err := s.deps.Store.InTx(ctx, func(repo store.Repository) error {
		return repo.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return err
	}
	s.log.Info("project deleted", zap.String("project_id", projectID))
	return nil
}

// checkProjectOwner rejects a document whose project is missing or owned by
// another user. An empty projectID is allowed.
func checkProjectOwner(ctx context.Context, repo store.Repository, projectID, userID string) error {
	if projectID == "" {
		return nil
	}
	p, err := repo.GetProject(ctx, projectID)
	if errors.Is(err, model.ErrNotFound) {
		return eris.Wrapf(model.ErrInvalidInput, "monitor: project %s does not exist", projectID)
	}
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return eris.Wrapf(model.ErrInvalidInput, "monitor: project %s belongs to another user", projectID)
	}
	return nil
}
