package templatestore

import (
	"context"
	"fmt"
	"time"

	"biolock.io/application/repository"
	"biolock.io/entities"
	"biolock.io/infrastructure/biometric"
	"biolock.io/infrastructure/biometric/types"
	"biolock.io/infrastructure/database/repository/cache"
	"biolock.io/infrastructure/logger"
	"github.com/fxamacker/cbor/v2"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

const activeTemplateTTL = 10 * time.Minute

// MongoTemplateStore is the durable TemplateStore: mongo for truth, the cache layer
// as a read-through for the hot verification lookup.
type MongoTemplateStore struct{}

func New() *MongoTemplateStore {
	return &MongoTemplateStore{}
}

func cacheKey(subjectID string, modality types.Modality) string {
	return fmt.Sprintf("tpl:%s:%s", subjectID, modality)
}

func (s *MongoTemplateStore) GetActiveTemplate(ctx context.Context, subjectID string, modality types.Modality) (*types.Template, error) {
	if cached := cache.Cache.FindOneByteArray(cacheKey(subjectID, modality)); cached != nil {
		var entity entities.BiometricTemplate
		if err := cbor.Unmarshal(*cached, &entity); err == nil {
			return toCoreTemplate(entity)
		}
		// a corrupt cache entry is dropped, mongo remains the source of truth
		cache.Cache.DeleteOne(cacheKey(subjectID, modality))
	}

	entity, err := repository.BiometricTemplateRepo().FindOneByFilter(ctx, map[string]interface{}{
		"subjectID": subjectID,
		"modality":  string(modality),
		"active":    true,
	})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	if encoded, err := cbor.Marshal(entity); err == nil {
		cache.Cache.CreateEntry(cacheKey(subjectID, modality), encoded, activeTemplateTTL)
	}
	return toCoreTemplate(*entity)
}

// ReplaceActiveTemplate deactivates the prior active template and inserts the new
// one inside a single transaction, so no reader ever observes zero or two active
// templates for the pair.
func (s *MongoTemplateStore) ReplaceActiveTemplate(ctx context.Context, subjectID string, modality types.Modality, tpl types.Template) error {
	repo := repository.BiometricTemplateRepo()
	entity, err := toEntity(tpl)
	if err != nil {
		return err
	}

	err = repo.WithTransaction(ctx, func(sc mongodriver.SessionContext) error {
		now := time.Now()
		if _, err := repo.UpdateManyByFilter(sc, map[string]interface{}{
			"subjectID": subjectID,
			"modality":  string(modality),
			"active":    true,
		}, map[string]interface{}{
			"active":        false,
			"deactivatedAt": now,
			"updatedAt":     now,
		}); err != nil {
			return err
		}
		_, err := repo.CreateOne(sc, entity)
		return err
	})
	if err != nil {
		return err
	}

	cache.Cache.DeleteOne(cacheKey(subjectID, modality))
	logger.Info("active template replaced", logger.LoggerOptions{
		Key:  "subject_id",
		Data: subjectID,
	}, logger.LoggerOptions{
		Key:  "modality",
		Data: string(modality),
	})
	return nil
}

func toEntity(tpl types.Template) (entities.BiometricTemplate, error) {
	encoded, err := biometric.EncodeVector(tpl.Vector.Values)
	if err != nil {
		return entities.BiometricTemplate{}, err
	}
	return entities.BiometricTemplate{
		ID:             tpl.ID,
		SubjectID:      tpl.SubjectID,
		Modality:       string(tpl.Modality),
		Vector:         encoded,
		Dimensionality: tpl.Vector.Dimensionality(),
		Extractor:      tpl.Vector.Extractor,
		Digest:         tpl.Digest,
		Quality:        tpl.Quality,
		Active:         true,
		CreatedAt:      tpl.CreatedAt,
	}, nil
}

func toCoreTemplate(entity entities.BiometricTemplate) (*types.Template, error) {
	values, err := biometric.DecodeVector(entity.Vector)
	if err != nil {
		return nil, fmt.Errorf("template %s has an unreadable vector: %w", entity.ID, err)
	}
	return &types.Template{
		ID:        entity.ID,
		SubjectID: entity.SubjectID,
		Modality:  types.Modality(entity.Modality),
		Vector: types.FeatureVector{
			Values:    values,
			Modality:  types.Modality(entity.Modality),
			Extractor: entity.Extractor,
		},
		Digest:        entity.Digest,
		Quality:       entity.Quality,
		CreatedAt:     entity.CreatedAt,
		Active:        entity.Active,
		DeactivatedAt: entity.DeactivatedAt,
	}, nil
}
