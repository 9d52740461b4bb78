package model

import "github.com/rotisserie/eris"

// Error taxonomy shared by every component. Callers match with errors.Is.
var (
	// ErrMalformedThreshold: threshold text could not be normalized. The
	// covenant is kept with a 0.0 fallback and flagged for review.
	ErrMalformedThreshold = eris.New("malformed threshold")

	// ErrExtractionFailed: the text extraction service failed, timed out or
	// returned unusable output. The upload still succeeds without covenants.
	ErrExtractionFailed = eris.New("extraction failed")

	// ErrMetricFetch: one or more metrics needed by a covenant were unavailable.
	ErrMetricFetch = eris.New("metric fetch failed")

	// ErrFormulaEval: a calculation formula could not be parsed or evaluated.
	ErrFormulaEval = eris.New("formula evaluation failed")

	// ErrPersistence: a batch commit failed and was rolled back.
	ErrPersistence = eris.New("persistence failed")

	// ErrInvalidInput: a caller-supplied value was rejected before any write.
	ErrInvalidInput = eris.New("invalid input")

	// ErrUnavailable: an optional collaborator, such as breach analysis, is
	// not configured.
	ErrUnavailable = eris.New("not configured")

	ErrNotFound        = eris.New("not found")
	ErrAlreadyResolved = eris.New("alert already resolved")
)
