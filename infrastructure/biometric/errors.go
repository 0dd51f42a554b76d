package biometric

import (
	"errors"
	"fmt"

	"biolock.io/infrastructure/biometric/types"
)

// ErrCancelled is returned when the caller withdrew the request between stages. The
// run exits cleanly and never leaves a partially written template.
var ErrCancelled = errors.New("biometric: run cancelled by caller")

// DecodeError means the sample bytes could not be interpreted as an image. Surfaced
// to callers as user input error, never retried by the core.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("biometric: cannot decode sample image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedFormatError means the bytes decoded as an image encoding the pipeline
// does not allow.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("biometric: unsupported image format %q", e.Format)
}

// InsufficientQualityError rejects a sample at enrollment. It carries the sub-scores
// so the caller can tell the user what to improve.
type InsufficientQualityError struct {
	Report types.QualityReport
	Floor  float64
}

func (e *InsufficientQualityError) Error() string {
	return fmt.Sprintf("biometric: sample quality %.3f below enrollment floor %.3f (sharpness=%.3f contrast=%.3f region=%.3f)",
		e.Report.Aggregate, e.Floor, e.Report.Sharpness, e.Report.Contrast, e.Report.RegionConfidence)
}

// DimensionMismatchError indicates vectors from incompatible extractor contracts were
// compared. This is a deployment fault, not user input; it is logged loudly so
// operators are alerted.
type DimensionMismatchError struct {
	QueryDim    int
	TemplateDim int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("biometric: feature vector dimension mismatch: query has %d, template has %d", e.QueryDim, e.TemplateDim)
}

// NoTemplateError means the subject has nothing enrolled for the requested modality.
// A normal, expected outcome.
type NoTemplateError struct {
	SubjectID string
	Modality  types.Modality
}

func (e *NoTemplateError) Error() string {
	return fmt.Sprintf("biometric: no active %s template for subject %s", e.Modality, e.SubjectID)
}

// ExtractionTimeoutError means the neural embedding path exceeded its budget. The
// selector prefers the classical path on the next attempt; the core never retries the
// same run.
type ExtractionTimeoutError struct {
	Budget string
}

func (e *ExtractionTimeoutError) Error() string {
	return fmt.Sprintf("biometric: feature extraction exceeded %s budget", e.Budget)
}
