package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papergen/papergen-be/internal/jobs"
)

func testWorker() *Worker {
	return &Worker{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		workerID: "test-worker",
		jobsChan: make(chan *jobMessage, 4),
		stopChan: make(chan struct{}),
	}
}

func TestShouldNack(t *testing.T) {
	w := testWorker()

	// A version conflict means another run owns the job; the delivery is
	// settled with an ACK.
	assert.False(t, w.shouldNack(jobs.ErrConflict))
	assert.False(t, w.shouldNack(errors.Join(errors.New("wrapped"), jobs.ErrConflict)))

	assert.True(t, w.shouldNack(jobs.ErrNotFound))
	assert.True(t, w.shouldNack(errors.New("dial tcp: connection refused")))
	assert.True(t, w.shouldNack(context.DeadlineExceeded))
}

func TestShouldRequeue(t *testing.T) {
	w := testWorker()

	// A job that does not exist will never succeed on redelivery.
	assert.False(t, w.shouldRequeue(jobs.ErrNotFound))

	// Infrastructure failures are worth another delivery.
	assert.True(t, w.shouldRequeue(errors.New("database unreachable")))
	assert.True(t, w.shouldRequeue(context.DeadlineExceeded))
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

type recordingRunner struct {
	mu     sync.Mutex
	jobIDs []string
	err    error
}

func (r *recordingRunner) Run(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobIDs = append(r.jobIDs, jobID)
	return r.err
}

func TestProcessJob_AppliesTimeout(t *testing.T) {
	w := testWorker()
	w.runner = blockingRunner{}
	w.jobTimeout = 10 * time.Millisecond

	start := time.Now()
	err := w.processJob(context.Background(), &jobMessage{JobID: "j1", DeliveryTag: 1})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	// A timeout is an infrastructure failure: NACK and requeue.
	assert.True(t, w.shouldNack(err))
	assert.True(t, w.shouldRequeue(err))
}

func TestProcessJob_NoTimeoutConfigured(t *testing.T) {
	w := testWorker()
	runner := &recordingRunner{}
	w.runner = runner

	err := w.processJob(context.Background(), &jobMessage{JobID: "j2", DeliveryTag: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"j2"}, runner.jobIDs)
}

// fakeAcknowledger records settlement calls made through amqp.Delivery.
type fakeAcknowledger struct {
	mu    sync.Mutex
	acks  []uint64
	nacks []nackCall
}

type nackCall struct {
	tag     uint64
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks = append(f.nacks, nackCall{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) nackCalls() []nackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]nackCall, len(f.nacks))
	copy(out, f.nacks)
	return out
}

func TestMessageDispatcher(t *testing.T) {
	w := testWorker()
	ack := &fakeAcknowledger{}

	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(`not json`),
	}
	deliveries <- amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  2,
		Body:         []byte(`{"job_id":"not-a-uuid"}`),
	}
	deliveries <- amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  3,
		Body:         []byte(`{"job_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}`),
	}
	close(deliveries)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.startMessageDispatcher(context.Background(), deliveries)
	}()

	// Only the well-formed message reaches the pool.
	select {
	case msg := <-w.jobsChan:
		assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", msg.JobID)
		assert.Equal(t, uint64(3), msg.DeliveryTag)
	case <-time.After(time.Second):
		t.Fatal("expected a dispatched job message")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on closed delivery channel")
	}

	// The malformed and invalid messages were rejected without requeue.
	nacks := ack.nackCalls()
	require.Len(t, nacks, 2)
	assert.Equal(t, nackCall{tag: 1, requeue: false}, nacks[0])
	assert.Equal(t, nackCall{tag: 2, requeue: false}, nacks[1])
}

func TestMessageDispatcher_NacksOnShutdownMidDispatch(t *testing.T) {
	w := testWorker()
	w.jobsChan = make(chan *jobMessage) // unbuffered, no pool draining it
	ack := &fakeAcknowledger{}

	ctx, cancel := context.WithCancel(context.Background())
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  7,
		Body:         []byte(`{"job_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}`),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.startMessageDispatcher(ctx, deliveries)
	}()

	// Give the dispatcher time to block on jobsChan, then shut down.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on context cancellation")
	}

	nacks := ack.nackCalls()
	require.Len(t, nacks, 1)
	assert.Equal(t, nackCall{tag: 7, requeue: true}, nacks[0])
}
