package infrastructure

import (
	"os"
	"os/signal"
	"syscall"

	"biolock.io/infrastructure/logger"
	messagequeue "biolock.io/infrastructure/message_queue"
)

// StartWorkers runs the background side of the process: the journal export queue.
// The enrollment/verification pipeline itself is synchronous and driven by the
// calling API layer. Blocks until a termination signal arrives, then returns so the
// deferred cleanup in main runs.
func StartWorkers() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	if os.Getenv("REDIS_ADDR") == "" {
		logger.Warning("no redis configured, journal export queue disabled")
		<-quit
		return
	}

	go messagequeue.StartQueue()

	<-quit
	logger.Info("shutdown signal received, stopping workers")
}
