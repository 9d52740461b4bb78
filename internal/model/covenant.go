package model

import (
	"time"
)

// Directionality says which side of the threshold is the healthy side.
type Directionality string

const (
	HigherIsBetter Directionality = "higher_is_better"
	LowerIsBetter  Directionality = "lower_is_better"
)

// ParseDirectionality maps a stored or service-supplied value onto the enum.
// The second return is false when s names neither direction.
func ParseDirectionality(s string) (Directionality, bool) {
	switch Directionality(s) {
	case HigherIsBetter, "higher", "min", "minimum":
		return HigherIsBetter, true
	case LowerIsBetter, "lower", "max", "maximum":
		return LowerIsBetter, true
	default:
		return "", false
	}
}

// Frequency is how often a covenant is measured.
type Frequency string

const (
	FrequencyMonthly     Frequency = "monthly"
	FrequencyQuarterly   Frequency = "quarterly"
	FrequencyAnnually    Frequency = "annually"
	FrequencyContinuous  Frequency = "continuous"
	FrequencyUnspecified Frequency = "unspecified"
)

// ComplianceStatus classifies a covenant's current standing.
type ComplianceStatus string

const (
	StatusUnknown   ComplianceStatus = "unknown"
	StatusCompliant ComplianceStatus = "compliant"
	StatusWarning   ComplianceStatus = "warning"
	StatusBreach    ComplianceStatus = "breach"
)

// IsAlerting reports whether the status should have an active alert.
func (s ComplianceStatus) IsAlerting() bool {
	return s == StatusWarning || s == StatusBreach
}

// ThresholdStep is one entry of a covenant's threshold schedule. Raw keeps
// the value exactly as extracted for audit.
type ThresholdStep struct {
	Value      float64        `json:"value"`
	Raw        any            `json:"raw,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty"`
}

// StatusEvaluator computes a compliance status from a covenant's values.
type StatusEvaluator interface {
	Evaluate(current, threshold *float64, dir Directionality) ComplianceStatus
}

// Covenant is a monitored contractual financial constraint.
type Covenant struct {
	ID                   string           `json:"id"`
	DocumentID           string           `json:"document_id"`
	UserID               string           `json:"user_id"`
	Name                 string           `json:"name"`
	Type                 string           `json:"type,omitempty"`
	Description          string           `json:"description"`
	ThresholdValue       *float64         `json:"threshold_value"`
	Thresholds           []ThresholdStep  `json:"thresholds"`
	CurrentValue         *float64         `json:"current_value"`
	Directionality       Directionality   `json:"directionality"`
	MeasurementFrequency Frequency        `json:"measurement_frequency"`
	ComplianceStatus     ComplianceStatus `json:"compliance_status"`
	NeedsReview          bool             `json:"needs_review"`
	ReviewReason         string           `json:"review_reason,omitempty"`
	Formula              string           `json:"formula,omitempty"`
	FormulaMetrics       []string         `json:"formula_metrics,omitempty"`
	LastChecked          time.Time        `json:"last_checked"`
	LastUpdated          *time.Time       `json:"last_updated,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// Recompute re-derives ComplianceStatus from the current inputs and stamps
// LastChecked. It returns the status held before the call. This is the only
// place ComplianceStatus is written.
func (c *Covenant) Recompute(ev StatusEvaluator, now time.Time) ComplianceStatus {
	prev := c.ComplianceStatus
	if prev == "" {
		prev = StatusUnknown
	}
	c.ComplianceStatus = ev.Evaluate(c.CurrentValue, c.ThresholdValue, c.Directionality)
	c.LastChecked = now
	return prev
}

// SetCurrentValue records a new measured value.
func (c *Covenant) SetCurrentValue(v float64, now time.Time) {
	c.CurrentValue = &v
	c.LastUpdated = &now
}

// Monitored reports whether the refresh scheduler can recompute this covenant.
func (c *Covenant) Monitored() bool {
	return c.Formula != "" && len(c.FormulaMetrics) > 0
}

// CovenantDraft is an extracted covenant that has not been persisted yet.
type CovenantDraft struct {
	Name                 string          `json:"name"`
	Type                 string          `json:"type"`
	Description          string          `json:"description"`
	ThresholdValue       float64         `json:"threshold_value"`
	Thresholds           []ThresholdStep `json:"thresholds"`
	CurrentValue         *float64        `json:"current_value,omitempty"`
	Directionality       Directionality  `json:"directionality"`
	MeasurementFrequency Frequency       `json:"measurement_frequency"`
	NeedsReview          bool            `json:"needs_review"`
	ReviewReason         string          `json:"review_reason,omitempty"`
	Formula              string          `json:"formula,omitempty"`
	FormulaMetrics       []string        `json:"formula_metrics,omitempty"`
}

// ToCovenant builds an unsaved Covenant owned by documentID. The status
// starts as unknown until the first Recompute.
func (d CovenantDraft) ToCovenant(id, documentID, userID string, now time.Time) Covenant {
	tv := d.ThresholdValue
	var current *float64
	if d.CurrentValue != nil {
		v := *d.CurrentValue
		current = &v
	}
	return Covenant{
		ID:                   id,
		DocumentID:           documentID,
		UserID:               userID,
		Name:                 d.Name,
		Type:                 d.Type,
		Description:          d.Description,
		ThresholdValue:       &tv,
		Thresholds:           d.Thresholds,
		CurrentValue:         current,
		Directionality:       d.Directionality,
		MeasurementFrequency: d.MeasurementFrequency,
		ComplianceStatus:     StatusUnknown,
		NeedsReview:          d.NeedsReview,
		ReviewReason:         d.ReviewReason,
		Formula:              d.Formula,
		FormulaMetrics:       d.FormulaMetrics,
		LastChecked:          now,
		CreatedAt:            now,
	}
}
