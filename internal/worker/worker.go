package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papergen/papergen-be/shared/rabbitmq"
)

// Runner processes a single job to a terminal state. The worker only routes
// queue deliveries to it and acknowledges based on the returned error.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Runner        Runner
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	QueueName     string
}

// Worker consumes paper generation messages from RabbitMQ and dispatches
// them to a pool of goroutines running the orchestrator.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	runner        Runner
	workerID      string
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	queueName     string
	jobsChan      chan *jobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// jobMessage carries a parsed delivery through the pool. The delivery tag is
// kept so the processing goroutine can ACK/NACK on the channel itself.
type jobMessage struct {
	JobID       string
	DeliveryTag uint64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		runner:        cfg.Runner,
		workerID:      uuid.New().String(),
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobTimeout:    cfg.JobTimeout,
		queueName:     cfg.QueueName,
		jobsChan:      make(chan *jobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. It blocks until the context is
// canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
