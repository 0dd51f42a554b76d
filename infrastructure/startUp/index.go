package startup

import (
	"os"
	"time"

	"biolock.io/application/templatestore"
	"biolock.io/infrastructure/biometric"
	"biolock.io/infrastructure/biometric/neural"
	"biolock.io/infrastructure/database"
	"biolock.io/infrastructure/database/connection/datastore"
	"biolock.io/infrastructure/database/repository/cache"
	"biolock.io/infrastructure/logger"
	messagequeue "biolock.io/infrastructure/message_queue"
)

// Pipeline is the process-wide enrollment/verification core, built once here. The
// extractor model behind it is loaded at startup and read-only afterwards.
var Pipeline *biometric.Pipeline

// Used to start services such as loggers, databases, queues, etc.
func StartServices() {
	logger.InitializeLogger()
	database.SetUpDatabase()
	cache.InitialiseCache()

	cfg, err := biometric.LoadConfig("")
	if err != nil {
		logger.Error("invalid modality configuration", logger.LoggerOptions{Key: "error", Data: err})
		panic(err)
	}

	selector := buildExtractorSelector()

	var store biometric.TemplateStore
	if os.Getenv("DB_URL") != "" {
		store = templatestore.New()
	} else {
		logger.Warning("no database configured, templates are held in memory only")
		store = biometric.NewMemoryTemplateStore()
	}

	var sink biometric.JournalSink
	if cfg.PersistJournal {
		if os.Getenv("REDIS_ADDR") != "" {
			sink = messagequeue.QueueJournalSink{}
		} else {
			logger.Warning("journal persistence enabled but no redis configured, journals will not be exported")
		}
	}

	Pipeline, err = biometric.NewPipeline(cfg, selector, store, sink)
	if err != nil {
		panic(err)
	}
}

// buildExtractorSelector probes the neural capability exactly once. Every call site
// afterwards depends on the selector, never on the concrete kind.
func buildExtractorSelector() *biometric.ExtractorSelector {
	classical := biometric.NewClassicalExtractor()

	var embedder biometric.FeatureExtractor
	if neural.Available() {
		loaded, err := neural.NewEmbedder(neural.DefaultConfig())
		if err != nil {
			logger.Warning("neural embedder unavailable, continuing with classical descriptors", logger.LoggerOptions{
				Key:  "error",
				Data: err,
			})
		} else {
			embedder = loaded
		}
	}

	budget := 5 * time.Second
	if raw := os.Getenv("NEURAL_BUDGET"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			budget = parsed
		}
	}
	return biometric.NewExtractorSelector(classical, embedder, budget)
}

// Used to clean up after services that have been shutdown.
func CleanUpServices() {
	datastore.CleanUp()
}
