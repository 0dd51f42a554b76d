package entities

import (
	"time"

	"biolock.io/application/utils"
	"biolock.io/infrastructure/biometric/types"
)

// ProcessingJournal is the audited record of one pipeline run: the ordered step
// sequence the visualization tooling replays. Raw sample bytes are never part of it.
type ProcessingJournal struct {
	RunID       string                 `bson:"runID" json:"runID"`
	Kind        string                 `bson:"kind" json:"kind"`
	SubjectID   string                 `bson:"subjectID" json:"subjectID"`
	Modality    string                 `bson:"modality" json:"modality"`
	StartedAt   time.Time              `bson:"startedAt" json:"startedAt"`
	CompletedAt time.Time              `bson:"completedAt" json:"completedAt"`
	Steps       []types.ProcessingStep `bson:"steps" json:"steps"`

	ID        string    `bson:"_id" json:"id"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (model ProcessingJournal) ParseModel() any {
	now := time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
		if model.ID == "" {
			model.ID = utils.GenerateUULDString()
		}
	}
	model.UpdatedAt = now
	return &model
}
