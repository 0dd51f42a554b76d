package biometric

import (
	"time"

	"biolock.io/infrastructure/biometric/types"
	"github.com/google/uuid"
)

// Journal is the append-only evidentiary trail of one pipeline run. Every stage
// that executes appends exactly one step, fallback paths included, so an auditor can
// always reconstruct why a decision was reached. The journal is materialized when
// the run completes and re-enumerable afterwards.
type Journal struct {
	runID     string
	kind      types.RunKind
	subjectID string
	modality  types.Modality
	startedAt time.Time
	steps     []types.ProcessingStep
}

func newJournal(kind types.RunKind, subjectID string, modality types.Modality) *Journal {
	return &Journal{
		runID:     uuid.NewString(),
		kind:      kind,
		subjectID: subjectID,
		modality:  modality,
		startedAt: time.Now(),
	}
}

func (j *Journal) record(stage types.StageName, startedAt time.Time, outcome types.StepOutcome, diagnostics map[string]any) {
	j.steps = append(j.steps, types.ProcessingStep{
		Stage:       stage,
		StartedAt:   startedAt,
		Duration:    time.Since(startedAt),
		Outcome:     outcome,
		Diagnostics: diagnostics,
	})
}

func (j *Journal) RunID() string            { return j.runID }
func (j *Journal) Kind() types.RunKind      { return j.kind }
func (j *Journal) SubjectID() string        { return j.subjectID }
func (j *Journal) Modality() types.Modality { return j.modality }

// Steps returns a copy of the ordered step sequence so consumers can enumerate it
// as often as they like without touching the journal itself.
func (j *Journal) Steps() []types.ProcessingStep {
	out := make([]types.ProcessingStep, len(j.steps))
	copy(out, j.steps)
	return out
}

// Snapshot freezes the journal for hand-off to the diagnostics collaborator.
func (j *Journal) Snapshot() JournalRun {
	return JournalRun{
		RunID:       j.runID,
		Kind:        j.kind,
		SubjectID:   j.subjectID,
		Modality:    j.modality,
		StartedAt:   j.startedAt,
		CompletedAt: time.Now(),
		Steps:       j.Steps(),
	}
}

// JournalRun is the completed, immutable record handed to whatever renders, stores
// or exports it. The core has no opinion on that.
type JournalRun struct {
	RunID       string                 `json:"runID" bson:"runID"`
	Kind        types.RunKind          `json:"kind" bson:"kind"`
	SubjectID   string                 `json:"subjectID" bson:"subjectID"`
	Modality    types.Modality         `json:"modality" bson:"modality"`
	StartedAt   time.Time              `json:"startedAt" bson:"startedAt"`
	CompletedAt time.Time              `json:"completedAt" bson:"completedAt"`
	Steps       []types.ProcessingStep `json:"steps" bson:"steps"`
}

// JournalSink receives completed runs. Implementations decide transport and
// persistence; a nil sink simply drops them.
type JournalSink interface {
	Submit(run JournalRun)
}
