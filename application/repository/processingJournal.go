package repository

import (
	"sync"

	"biolock.io/entities"
	"biolock.io/infrastructure/database/connection/datastore"
	"biolock.io/infrastructure/database/repository/mongo"
)

var processingJournalOnce = sync.Once{}

var processingJournalRepository mongo.MongoRepository[entities.ProcessingJournal]

func ProcessingJournalRepo() *mongo.MongoRepository[entities.ProcessingJournal] {
	processingJournalOnce.Do(func() {
		processingJournalRepository = mongo.MongoRepository[entities.ProcessingJournal]{Model: datastore.ProcessingJournalModel}
	})
	return &processingJournalRepository
}
