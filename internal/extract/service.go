// Package extract turns loan document text into normalized covenant drafts.
package extract

import (
	"context"
)

// RawCandidate is one covenant as reported by a TextExtractionService,
// before normalization. Threshold may be a number, a string such as "3.5:1"
// or "$10M", an object with a "value" key, or a list of such objects.
type RawCandidate struct {
	Type           string `json:"type" yaml:"type"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	Threshold      any    `json:"threshold" yaml:"threshold"`
	Description    string `json:"description" yaml:"description"`
	Frequency      string `json:"measurement_frequency,omitempty" yaml:"measurement_frequency,omitempty"`
	Directionality string `json:"directionality,omitempty" yaml:"directionality,omitempty"`
	Formula        string `json:"calculation_formula,omitempty" yaml:"calculation_formula,omitempty"`
}

// TextExtractionService finds covenant candidates in document text.
type TextExtractionService interface {
	ExtractCovenants(ctx context.Context, text string) ([]RawCandidate, error)
}

// DocumentDescription is best-effort document metadata.
type DocumentDescription struct {
	DocumentType string   `json:"document_type" yaml:"document_type"`
	Parties      []string `json:"parties" yaml:"parties"`
}

// DocumentDescriber is an optional capability of a TextExtractionService.
type DocumentDescriber interface {
	DescribeDocument(ctx context.Context, text string) (*DocumentDescription, error)
}
