package datastore

import (
	"context"
	"os"
	"time"

	"biolock.io/infrastructure/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	Client                 *mongo.Client
	BiometricTemplateModel *mongo.Collection
	ProcessingJournalModel *mongo.Collection
)

func ConnectToDatabase() {
	connectMongo()
}

func connectMongo() *context.CancelFunc {
	url := os.Getenv("DB_URL")

	if url == "" {
		logger.Error("mongo url missing")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)

	clientOpts := options.Client().ApplyURI(url)
	clientOpts.SetMinPoolSize(5)
	clientOpts.SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)

	if err != nil {
		logger.Warning("an error occured while starting the database", logger.LoggerOptions{Key: "error", Data: err})
		return &cancel
	}

	Client = client
	db := client.Database(os.Getenv("DB_NAME"))
	setUpIndexes(ctx, db)

	logger.Info("connected to mongodb successfully")
	return &cancel
}

// Set up the indexes for the database
func setUpIndexes(ctx context.Context, db *mongo.Database) {
	BiometricTemplateModel = db.Collection("BiometricTemplates")
	BiometricTemplateModel.Indexes().CreateMany(ctx, []mongo.IndexModel{{
		// the lookup every verification run performs
		Keys:    bson.D{{Key: "subjectID", Value: 1}, {Key: "modality", Value: 1}, {Key: "active", Value: 1}},
		Options: options.Index(),
	}, {
		Keys:    bson.D{{Key: "digest", Value: 1}},
		Options: options.Index(),
	}})

	ProcessingJournalModel = db.Collection("ProcessingJournals")
	ProcessingJournalModel.Indexes().CreateMany(ctx, []mongo.IndexModel{{
		Keys:    bson.D{{Key: "runID", Value: 1}},
		Options: options.Index().SetUnique(true),
	}, {
		Keys:    bson.D{{Key: "subjectID", Value: 1}, {Key: "startedAt", Value: -1}},
		Options: options.Index(),
	}})

	logger.Info("mongodb indexes set up successfully")
}

func CleanUp() {
	if Client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Client.Disconnect(ctx); err != nil {
		logger.Error("an error occured while disconnecting from mongodb", logger.LoggerOptions{Key: "error", Data: err})
	}
}
