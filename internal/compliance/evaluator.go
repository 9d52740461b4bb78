// Package compliance classifies a covenant's current value against its
// threshold.
package compliance

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// Policy names a thresholding convention.
type Policy string

const (
	// PolicyBanded: within the threshold is compliant; up to WarningBand
	// past it (10% over for lower-is-better, 10% under for higher-is-better)
	// is a warning; beyond that is a breach.
	PolicyBanded Policy = "banded"

	// PolicySymmetric: utilization of the threshold above 100% is a breach,
	// at or above WarningRatio (95%) is a warning.
	PolicySymmetric Policy = "symmetric"
)

const (
	DefaultWarningBand  = 0.10
	DefaultWarningRatio = 0.95
)

// Evaluator is a pure function of (current, threshold, directionality).
type Evaluator struct {
	Policy       Policy
	WarningBand  float64
	WarningRatio float64
}

// NewEvaluator validates policy and fills unset tuning values with defaults.
func NewEvaluator(policy Policy, warningBand, warningRatio float64) (*Evaluator, error) {
	switch policy {
	case "":
		policy = PolicyBanded
	case PolicyBanded, PolicySymmetric:
	default:
		return nil, eris.Errorf("compliance: unknown policy %q", policy)
	}
	if warningBand <= 0 {
		warningBand = DefaultWarningBand
	}
	if warningRatio <= 0 || warningRatio >= 1 {
		warningRatio = DefaultWarningRatio
	}
	return &Evaluator{Policy: policy, WarningBand: warningBand, WarningRatio: warningRatio}, nil
}

// Default returns the banded evaluator with a 10% band.
func Default() *Evaluator {
	return &Evaluator{Policy: PolicyBanded, WarningBand: DefaultWarningBand, WarningRatio: DefaultWarningRatio}
}

// Evaluate returns the compliance status. Missing values yield unknown. A
// zero threshold is compliant only for a zero current value.
func (e *Evaluator) Evaluate(current, threshold *float64, dir model.Directionality) model.ComplianceStatus {
	if current == nil || threshold == nil {
		return model.StatusUnknown
	}
	c, t := *current, *threshold

	if t == 0 {
		if c == 0 {
			return model.StatusCompliant
		}
		return model.StatusBreach
	}

	if e.Policy == PolicySymmetric {
		return e.symmetric(c, t, dir)
	}
	return e.banded(c, t, dir)
}

func (e *Evaluator) banded(c, t float64, dir model.Directionality) model.ComplianceStatus {
	band := e.WarningBand
	if band <= 0 {
		band = DefaultWarningBand
	}

	if dir == model.HigherIsBetter {
		switch {
		case c >= t:
			return model.StatusCompliant
		case c >= t*(1-band):
			return model.StatusWarning
		default:
			return model.StatusBreach
		}
	}

	switch {
	case c <= t:
		return model.StatusCompliant
	case c <= t*(1+band):
		return model.StatusWarning
	default:
		return model.StatusBreach
	}
}

func (e *Evaluator) symmetric(c, t float64, dir model.Directionality) model.ComplianceStatus {
	ratio := e.WarningRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultWarningRatio
	}

	var util float64
	if dir == model.HigherIsBetter {
		if c <= 0 {
			return model.StatusBreach
		}
		util = t / c
	} else {
		util = c / t
	}

	switch {
	case util > 1:
		return model.StatusBreach
	case util >= ratio:
		return model.StatusWarning
	default:
		return model.StatusCompliant
	}
}
