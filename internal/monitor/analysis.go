package monitor

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/alert"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

// AnalyzeCovenant asks the breach analyzer about a covenant in warning or
// breach and stores the result on its active alert, creating the alert if
// none exists. The model call happens outside the transaction.
func (s *Service) AnalyzeCovenant(ctx context.Context, covenantID string) (*model.Alert, error) {
	if s.deps.Analyzer == nil {
		return nil, eris.Wrap(model.ErrUnavailable, "monitor: breach analysis")
	}
	c, err := s.deps.Store.GetCovenant(ctx, covenantID)
	if err != nil {
		return nil, err
	}
	if !c.ComplianceStatus.IsAlerting() {
		return nil, eris.Wrapf(model.ErrInvalidInput, "monitor: covenant %s is %s, not in warning or breach", covenantID, c.ComplianceStatus)
	}

	analysis, err := s.deps.Analyzer.Analyze(ctx, c)
	if err != nil {
		return nil, err
	}

	var (
		out *model.Alert
		tr  *alert.Transition
	)
	err = s.deps.Store.InTx(ctx, func(repo store.Repository) error {
		cur, err := repo.GetCovenant(ctx, covenantID)
		if err != nil {
			return err
		}
		if cur.ComplianceStatus != c.ComplianceStatus {
			return eris.Wrapf(model.ErrInvalidInput, "monitor: covenant %s moved to %s during analysis", covenantID, cur.ComplianceStatus)
		}
		a, err := repo.GetActiveAlert(ctx, covenantID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			tr, err = s.deps.Alerts.OnStatusChange(ctx, repo, cur, model.StatusUnknown, cur.ComplianceStatus)
			if err != nil {
				return err
			}
			a = tr.Alert
		case err != nil:
			return err
		}
		a.Details.Analysis = analysis
		a.UpdatedAt = s.now()
		if err := repo.UpdateAlert(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "monitor: store analysis for covenant %s", covenantID)
	}
	if tr != nil {
		s.deps.Notifier.Notify(ctx, []alert.Transition{*tr})
	}
	s.log.Info("breach analyzed",
		zap.String("covenant_id", covenantID),
		zap.String("alert_id", out.ID),
		zap.String("severity", string(analysis.Severity)),
	)
	return out, nil
}

// Recommendations returns the breach analysis stored on an alert, running
// one first if the alert is active and has none.
func (s *Service) Recommendations(ctx context.Context, alertID string) (*model.BreachAnalysis, error) {
	a, err := s.deps.Store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.Details.Analysis != nil {
		return a.Details.Analysis, nil
	}
	if !a.IsActive() {
		return nil, eris.Wrapf(model.ErrAlreadyResolved, "monitor: alert %s has no analysis", alertID)
	}
	updated, err := s.AnalyzeCovenant(ctx, a.CovenantID)
	if err != nil {
		return nil, err
	}
	return updated.Details.Analysis, nil
}
