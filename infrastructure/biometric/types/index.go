package types

import (
	"image"
	"time"
)

// Modality is one biometric method supported by the pipeline.
type Modality string

const (
	ModalityFingerprint Modality = "fingerprint"
	ModalityFace        Modality = "face"
	ModalityPalmprint   Modality = "palmprint"
)

func (m Modality) Valid() bool {
	switch m {
	case ModalityFingerprint, ModalityFace, ModalityPalmprint:
		return true
	}
	return false
}

// Sample is one raw biometric capture. It is ephemeral: the pipeline never persists
// the raw bytes unless journal auditing is explicitly configured.
type Sample struct {
	Bytes      []byte
	Modality   Modality
	CapturedAt time.Time
}

// CanonicalFrame is the preprocessed grayscale frame a single pipeline run works on.
// It is owned by that run and must not be shared across runs.
type CanonicalFrame struct {
	Gray     *image.Gray
	Modality Modality
	// SourceWidth/SourceHeight record the capture dimensions before resizing.
	SourceWidth  int
	SourceHeight int
}

// RegionKind records which path the region locator took.
type RegionKind string

const (
	RegionDetected           RegionKind = "detected"
	RegionFallbackCenterCrop RegionKind = "fallback_center_crop"
)

// FallbackRegionConfidence is the fixed confidence recorded when detection fails and
// the locator falls back to a center crop. Quality scoring penalizes it downstream.
const FallbackRegionConfidence = 0.3

// Region is the located biometric-relevant sub-frame plus how it was found.
type Region struct {
	Frame      *image.Gray
	Kind       RegionKind
	Confidence float64
	Bounds     image.Rectangle
}

// FeatureVector is a fixed-length numeric signature. Two vectors are only comparable
// when produced under the same extractor contract for the same modality; the vector
// length alone identifies the contract.
type FeatureVector struct {
	Values    []float64
	Modality  Modality
	Extractor string
}

func (fv FeatureVector) Dimensionality() int {
	return len(fv.Values)
}

// QualityReport holds the sub-scores computed once per sample and attached to the
// template at creation.
type QualityReport struct {
	Sharpness        float64 `bson:"sharpness" json:"sharpness"`
	Contrast         float64 `bson:"contrast" json:"contrast"`
	RegionConfidence float64 `bson:"regionConfidence" json:"regionConfidence"`
	Aggregate        float64 `bson:"aggregate" json:"aggregate"`
	Accepted         bool    `bson:"accepted" json:"accepted"`
}

// MatchResult is the ephemeral output of the matcher. The calling collaborator
// decides whether and how to log it.
type MatchResult struct {
	Similarity float64
	Accepted   bool
	Modality   Modality
	TemplateID string
	Latency    time.Duration
}

// Template is the persisted unit the core understands: one enrolled signature for a
// (subject, modality) pair. At most one template per pair is active; re-enrollment
// deactivates the prior one, never overwrites it. Templates are immutable once
// created.
type Template struct {
	ID            string
	SubjectID     string
	Modality      Modality
	Vector        FeatureVector
	Digest        string
	Quality       QualityReport
	CreatedAt     time.Time
	Active        bool
	DeactivatedAt *time.Time
}

// StageName identifies one pipeline stage in the processing journal.
type StageName string

const (
	StagePreprocess     StageName = "preprocess"
	StageRegionLocate   StageName = "region_locate"
	StageFeatureExtract StageName = "feature_extract"
	StageQualityAssess  StageName = "quality_assess"
	StageMatch          StageName = "match"
	StagePersist        StageName = "persist"
)

// StepOutcome is the terminal status of one journal step.
type StepOutcome string

const (
	StepOK       StepOutcome = "ok"
	StepFallback StepOutcome = "fallback"
	StepFailed   StepOutcome = "failed"
	StepRejected StepOutcome = "rejected"
)

// ProcessingStep is one append-only journal entry. A full run yields an ordered
// sequence of these; that sequence is the evidentiary trail for audit tooling.
type ProcessingStep struct {
	Stage       StageName      `bson:"stage" json:"stage"`
	StartedAt   time.Time      `bson:"startedAt" json:"startedAt"`
	Duration    time.Duration  `bson:"duration" json:"duration"`
	Outcome     StepOutcome    `bson:"outcome" json:"outcome"`
	Diagnostics map[string]any `bson:"diagnostics" json:"diagnostics"`
}

// RunKind distinguishes the two linear state machines a run can follow.
type RunKind string

const (
	RunEnrollment   RunKind = "enrollment"
	RunVerification RunKind = "verification"
)

// VerificationAttempt is one (modality, sample) pair presented during a multi-factor
// login. Attempts are evaluated independently; any single accept authenticates.
type VerificationAttempt struct {
	Modality Modality
	Bytes    []byte
}
