package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	redisStore "tutor-ledger/internal/adapter/storage/redis"
	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type workerTestDeps struct {
	worker  *SyncWorker
	queue   *mocks.MockSyncQueue
	handler *mocks.MockSyncService
	ctrl    *gomock.Controller
}

func setupSyncWorker(t *testing.T, opts SyncWorkerOptions) *workerTestDeps {
	ctrl := gomock.NewController(t)
	d := &workerTestDeps{
		queue:   mocks.NewMockSyncQueue(ctrl),
		handler: mocks.NewMockSyncService(ctrl),
		ctrl:    ctrl,
	}
	d.worker = NewSyncWorker(d.queue, d.handler, opts, zerolog.Nop())
	return d
}

func TestSyncWorker_Process_Success(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{})
	defer d.ctrl.Finish()

	job := domain.NewSyncJob(domain.SyncWalletFromEarnings, uuid.New())
	d.handler.EXPECT().HandleJob(gomock.Any(), job).Return(nil)

	d.worker.Process(context.Background(), job)
	assert.Zero(t, job.Attempt)
}

func TestSyncWorker_Process_RetriesWithBackoff(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{MaxAttempts: 5})
	defer d.ctrl.Finish()

	job := domain.NewSyncJob(domain.SyncWalletFromEarnings, uuid.New())
	d.handler.EXPECT().HandleJob(gomock.Any(), job).Return(errors.New("lock timeout"))
	d.queue.EXPECT().Retry(gomock.Any(), job, 1*time.Second).Return(nil)

	d.worker.Process(context.Background(), job)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "lock timeout", job.LastError)
}

func TestSyncWorker_Process_BackoffLadder(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{MaxAttempts: 10})
	defer d.ctrl.Finish()

	expected := []time.Duration{
		1 * time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute, 10 * time.Minute,
		10 * time.Minute, 10 * time.Minute,
	}
	for i, want := range expected {
		assert.Equal(t, want, d.worker.retryDelay(i+1), "attempt %d", i+1)
	}
}

func TestSyncWorker_Process_DeadLettersAfterMaxAttempts(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{MaxAttempts: 3})
	defer d.ctrl.Finish()

	job := domain.NewSyncJob(domain.SyncEarningsFromWallet, uuid.New())
	d.handler.EXPECT().HandleJob(gomock.Any(), job).Return(errors.New("boom")).Times(3)
	gomock.InOrder(
		d.queue.EXPECT().Retry(gomock.Any(), job, 1*time.Second).Return(nil),
		d.queue.EXPECT().Retry(gomock.Any(), job, 5*time.Second).Return(nil),
		d.queue.EXPECT().DeadLetter(gomock.Any(), job).DoAndReturn(
			func(_ context.Context, j *domain.SyncJob) error {
				assert.Equal(t, 3, j.Attempt)
				assert.Equal(t, "boom", j.LastError)
				return nil
			}),
	)

	for i := 0; i < 3; i++ {
		d.worker.Process(context.Background(), job)
	}
}

func TestSyncWorker_Process_QueueFailuresAreLogged(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{MaxAttempts: 1})
	defer d.ctrl.Finish()

	job := domain.NewSyncJob(domain.SyncWalletFromEarnings, uuid.New())
	d.handler.EXPECT().HandleJob(gomock.Any(), job).Return(errors.New("boom"))
	d.queue.EXPECT().DeadLetter(gomock.Any(), job).Return(errors.New("redis down"))

	assert.NotPanics(t, func() { d.worker.Process(context.Background(), job) })
}

func TestSyncWorker_Process_RetryOutlivesCancelledContext(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{MaxAttempts: 5})
	defer d.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := domain.NewSyncJob(domain.SyncWalletFromEarnings, uuid.New())
	job.Attempt = 4
	d.handler.EXPECT().HandleJob(gomock.Any(), job).Return(context.Canceled)
	d.queue.EXPECT().Retry(gomock.Any(), job, time.Duration(0)).DoAndReturn(
		func(qctx context.Context, _ *domain.SyncJob, _ time.Duration) error {
			assert.NoError(t, qctx.Err(), "queue write must not inherit the cancellation")
			_, hasDeadline := qctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		})

	d.worker.Process(ctx, job)
	assert.Equal(t, 4, job.Attempt, "shutdown must not spend an attempt")
}

func TestSyncWorker_Run_KeepsInFlightJobOnShutdown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	queue := redisStore.NewJobQueue(client, "sync")

	ctrl := gomock.NewController(t)
	handler := mocks.NewMockSyncService(ctrl)
	w := NewSyncWorker(queue, handler, SyncWorkerOptions{PollInterval: time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := domain.NewSyncJob(domain.SyncWalletFromEarnings, uuid.New())
	require.NoError(t, queue.Enqueue(ctx, job))

	started := make(chan struct{})
	handler.EXPECT().HandleJob(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *domain.SyncJob) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job was never picked up")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Ready+stats.Delayed, "job must still be queued")
	assert.Zero(t, stats.Dead)
}

func TestSyncWorker_Run_ConsumesUntilCancelled(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{PollInterval: 10 * time.Millisecond})
	defer d.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := domain.NewSyncJob(domain.SyncWalletFromEarnings, uuid.New())
	var calls atomic.Int32
	d.queue.EXPECT().Dequeue(gomock.Any(), 10*time.Millisecond).DoAndReturn(
		func(ctx context.Context, _ time.Duration) (*domain.SyncJob, error) {
			switch calls.Add(1) {
			case 1:
				return job, nil
			case 2:
				return nil, nil
			default:
				<-ctx.Done()
				return nil, ctx.Err()
			}
		}).MinTimes(2)
	d.queue.EXPECT().PromoteDue(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()
	handled := make(chan struct{})
	d.handler.EXPECT().HandleJob(gomock.Any(), job).DoAndReturn(
		func(context.Context, *domain.SyncJob) error {
			close(handled)
			return nil
		})

	done := make(chan error, 1)
	go func() { done <- d.worker.Run(ctx) }()

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never handled")
	}
	// Let the worker poll again before stopping it.
	for calls.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestSyncWorker_Run_PromotesDueRetries(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{PollInterval: 5 * time.Millisecond})
	defer d.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.queue.EXPECT().Dequeue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ time.Duration) (*domain.SyncJob, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).AnyTimes()

	promoted := make(chan struct{})
	var once atomic.Bool
	d.queue.EXPECT().PromoteDue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, time.Time) (int, error) {
			if once.CompareAndSwap(false, true) {
				close(promoted)
			}
			return 2, nil
		}).MinTimes(1)

	done := make(chan error, 1)
	go func() { done <- d.worker.Run(ctx) }()

	select {
	case <-promoted:
	case <-time.After(2 * time.Second):
		t.Fatal("retries were never promoted")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestSyncWorker_Run_DequeueErrorBacksOff(t *testing.T) {
	d := setupSyncWorker(t, SyncWorkerOptions{PollInterval: 5 * time.Millisecond})
	defer d.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	d.queue.EXPECT().Dequeue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ time.Duration) (*domain.SyncJob, error) {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return nil, errors.New("redis: connection refused")
		}).MinTimes(3)
	d.queue.EXPECT().PromoteDue(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()

	require.NoError(t, d.worker.Run(ctx))
}
