package repository

import (
	"sync"

	"biolock.io/entities"
	"biolock.io/infrastructure/database/connection/datastore"
	"biolock.io/infrastructure/database/repository/mongo"
)

var biometricTemplateOnce = sync.Once{}

var biometricTemplateRepository mongo.MongoRepository[entities.BiometricTemplate]

func BiometricTemplateRepo() *mongo.MongoRepository[entities.BiometricTemplate] {
	biometricTemplateOnce.Do(func() {
		biometricTemplateRepository = mongo.MongoRepository[entities.BiometricTemplate]{Model: datastore.BiometricTemplateModel}
	})
	return &biometricTemplateRepository
}
