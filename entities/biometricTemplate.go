package entities

import (
	"time"

	"biolock.io/application/utils"
	"biolock.io/infrastructure/biometric/types"
)

// BiometricTemplate is the durable form of one enrolled signature. The feature
// vector is stored as its CBOR encoding; Dimensionality and Extractor pin the
// contract it was produced under so stale templates are detectable after a
// deployment change. Templates are immutable after creation except for the
// deactivation fields flipped by the atomic swap.
type BiometricTemplate struct {
	SubjectID      string              `bson:"subjectID" json:"subjectID"`
	Modality       string              `bson:"modality" json:"modality"`
	Vector         []byte              `bson:"vector" json:"-"`
	Dimensionality int                 `bson:"dimensionality" json:"dimensionality"`
	Extractor      string              `bson:"extractor" json:"extractor"`
	Digest         string              `bson:"digest" json:"digest"`
	Quality        types.QualityReport `bson:"quality" json:"quality"`
	Active         bool                `bson:"active" json:"active"`
	DeactivatedAt  *time.Time          `bson:"deactivatedAt" json:"deactivatedAt"`

	ID        string    `bson:"_id" json:"id"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (model BiometricTemplate) ParseModel() any {
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
