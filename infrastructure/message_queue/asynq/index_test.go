package asynq

import (
	"os"
	"testing"

	"biolock.io/infrastructure/logger"
	mq_types "biolock.io/infrastructure/message_queue/types"
)

func TestMain(m *testing.M) {
	logger.InitializeLogger()
	os.Exit(m.Run())
}

func TestEnqueueBeforeStartDropsTask(t *testing.T) {
	broker := &AsynqBroker{}

	// must not panic on the nil client, the task is simply dropped
	broker.Enqueue(mq_types.QueueTask{
		Name:     "journal_export",
		Payload:  []byte(`{}`),
		Priority: mq_types.Low,
	})
}
