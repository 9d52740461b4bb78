package model

import (
	"fmt"
	"strconv"
	"time"
)

// AlertType mirrors the compliance status that raised the alert.
type AlertType string

const (
	AlertWarning AlertType = "warning"
	AlertBreach  AlertType = "breach"
)

// AlertStatus is the alert lifecycle. Active moves to resolved exactly once.
type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

// AlertDetails is the covenant snapshot taken when the alert was raised or
// last refreshed while active.
type AlertDetails struct {
	CovenantName         string          `json:"covenant_name"`
	CurrentValue         *float64        `json:"current_value"`
	ThresholdValue       *float64        `json:"threshold_value"`
	MeasurementFrequency Frequency       `json:"measurement_frequency"`
	Directionality       Directionality  `json:"directionality"`
	ObservedAt           time.Time       `json:"observed_at"`
	Analysis             *BreachAnalysis `json:"analysis,omitempty"`
}

// Severity grades a breach analysis.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// BreachAnalysis is a model-written assessment of a non-compliant covenant.
type BreachAnalysis struct {
	Severity        Severity  `json:"severity"`
	Impact          string    `json:"impact"`
	Recommendations []string  `json:"recommendations"`
	TimelineDays    int       `json:"timeline_days"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// Alert is a notification tied to a covenant's non-compliant status.
type Alert struct {
	ID              string       `json:"id"`
	CovenantID      string       `json:"covenant_id"`
	UserID          string       `json:"user_id"`
	Type            AlertType    `json:"alert_type"`
	Status          AlertStatus  `json:"status"`
	Message         string       `json:"message"`
	Details         AlertDetails `json:"details"`
	ResolutionNotes string       `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsActive reports whether the alert is still unresolved.
func (a *Alert) IsActive() bool {
	return a.Status == AlertActive
}

// SnapshotDetails captures the alert-relevant fields of c.
func SnapshotDetails(c *Covenant, now time.Time) AlertDetails {
	return AlertDetails{
		CovenantName:         c.Name,
		CurrentValue:         copyFloat(c.CurrentValue),
		ThresholdValue:       copyFloat(c.ThresholdValue),
		MeasurementFrequency: c.MeasurementFrequency,
		Directionality:       c.Directionality,
		ObservedAt:           now,
	}
}

// AlertMessage renders the human-readable alert text.
func AlertMessage(c *Covenant, status ComplianceStatus) string {
	return fmt.Sprintf("%s is in %s status. Current value: %s, Threshold: %s",
		c.Name, status, formatValue(c.CurrentValue), formatValue(c.ThresholdValue))
}

// AlertSummary aggregates alerts for one user.
type AlertSummary struct {
	Current map[AlertType]int `json:"current"`
	History []DayCount        `json:"history"`
}

// DayCount is the number of alerts of one type created on one UTC day.
type DayCount struct {
	Date  string    `json:"date"`
	Type  AlertType `json:"type"`
	Count int       `json:"count"`
}

func formatValue(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
