package model

import (
	"encoding/json"
	"time"
)

// ProcessingStatus tracks a document through extraction.
type ProcessingStatus string

const (
	ProcessingPending              ProcessingStatus = "pending"
	ProcessingCompleted            ProcessingStatus = "completed"
	ProcessingCompletedWithWarning ProcessingStatus = "completed_with_warnings"
	ProcessingFailed               ProcessingStatus = "failed"
)

// Document is an uploaded agreement. It owns its covenants.
type Document struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	ProjectID        string           `json:"project_id,omitempty"`
	Filename         string           `json:"filename"`
	DocumentType     string           `json:"document_type"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	Metadata         json.RawMessage  `json:"metadata,omitempty"`
	UploadedAt       time.Time        `json:"uploaded_at"`
}

// DocumentMetadata is the structured blob stored on a Document. The store
// treats it as opaque JSON.
type DocumentMetadata struct {
	DocumentType string        `json:"document_type"`
	Parties      []string      `json:"parties"`
	Dates        []DateMention `json:"dates"`
	ProcessedAt  time.Time     `json:"processed_at"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// DateMention is a date found in document text.
type DateMention struct {
	Type    string `json:"type"`
	Date    string `json:"date"`
	Context string `json:"context"`
}

// MetricPoint is one timestamped value of a metric or covenant.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
