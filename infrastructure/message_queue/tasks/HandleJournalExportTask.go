package queue_tasks

import (
	"context"
	"encoding/json"

	"biolock.io/application/repository"
	"biolock.io/entities"
	"biolock.io/infrastructure/biometric"
	"biolock.io/infrastructure/logger"
	mq_types "biolock.io/infrastructure/message_queue/types"
	"github.com/hibiken/asynq"
)

var HandleJournalExportTaskName mq_types.Queues = "journal_export"

// HandleJournalExportTask persists a completed pipeline journal for the audit and
// visualization consumers. The core hands the run over as-is; rendering is someone
// else's concern.
func HandleJournalExportTask(ctx context.Context, t *asynq.Task) error {
	var run biometric.JournalRun
	if err := json.Unmarshal(t.Payload(), &run); err != nil {
		logger.Error("an error occured while unmarshalling journal export payload", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		return err
	}

	_, err := repository.ProcessingJournalRepo().CreateOne(ctx, entities.ProcessingJournal{
		RunID:       run.RunID,
		Kind:        string(run.Kind),
		SubjectID:   run.SubjectID,
		Modality:    string(run.Modality),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Steps:       run.Steps,
	})
	if err != nil {
		logger.Error("failed to persist processing journal", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "run_id",
			Data: run.RunID,
		})
		return err
	}
	return nil
}
