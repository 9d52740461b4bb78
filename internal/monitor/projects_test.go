package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/covenant-monitor/internal/model"
)

func TestProjects_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.svc.CreateProject(ctx, "user-1", "  Acme refinancing ", " Q3 deal ")
	require.NoError(t, err)
	assert.Equal(t, "Acme refinancing", p.Name)
	assert.Equal(t, "Q3 deal", p.Description)
	assert.True(t, t0.Equal(p.CreatedAt))

	_, err = f.svc.CreateProject(ctx, "user-2", "Other", "")
	require.NoError(t, err)

	list, err := f.svc.ListProjects(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	out, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, DocumentID: "doc-1", UserID: "user-1", ProjectID: p.ID})
	require.NoError(t, err)
	_, _, err = f.svc.SetCurrentValue(ctx, out.Covenants[0].ID, 4.2)
	require.NoError(t, err)

	summary, err := f.svc.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DocumentCount)
	assert.Equal(t, 1, summary.CovenantCount)
	assert.Equal(t, "Acme refinancing", summary.Name)

	require.NoError(t, f.svc.DeleteProject(ctx, p.ID))
	_, err = f.svc.GetProject(ctx, p.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = f.svc.GetDocument(ctx, "doc-1")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = f.svc.GetCovenant(ctx, out.Covenants[0].ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	alerts, err := f.st.ListAlertsSince(ctx, "user-1", t0.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, alerts)

	err = f.svc.DeleteProject(ctx, p.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestCreateProject_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateProject(ctx, "", "Deal", "")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
	_, err = f.svc.CreateProject(ctx, "user-1", "   ", "")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestExtractAndStore_ChecksProject(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, UserID: "user-1", ProjectID: "missing"})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	p, err := f.svc.CreateProject(ctx, "user-2", "Not yours", "")
	require.NoError(t, err)
	_, err = f.svc.ExtractAndStore(ctx, DocumentInput{Text: leverageText, UserID: "user-1", ProjectID: p.ID})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	summary, err := f.svc.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.DocumentCount)
}
