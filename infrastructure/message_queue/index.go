package messagequeue

import (
	"encoding/json"

	"biolock.io/infrastructure/biometric"
	"biolock.io/infrastructure/logger"
	"biolock.io/infrastructure/message_queue/asynq"
	queue_tasks "biolock.io/infrastructure/message_queue/tasks"
	mq_types "biolock.io/infrastructure/message_queue/types"
)

var TaskQueue mq_types.TaskQueueBroker = &asynq.AsynqBroker{}

func StartQueue() {
	TaskQueue.Start()
}

// QueueJournalSink ships completed pipeline journals to the export task. It
// implements biometric.JournalSink; enqueue failures only cost the audit copy, never
// the run itself.
type QueueJournalSink struct{}

func (QueueJournalSink) Submit(run biometric.JournalRun) {
	payload, err := json.Marshal(run)
	if err != nil {
		logger.Error("an error occured while marshalling journal run for export", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "run_id",
			Data: run.RunID,
		})
		return
	}
	TaskQueue.Enqueue(mq_types.QueueTask{
		Name:     queue_tasks.HandleJournalExportTaskName,
		Payload:  payload,
		Priority: mq_types.Low,
		MaxRetry: 5,
	})
}
