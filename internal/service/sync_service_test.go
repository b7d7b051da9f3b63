package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type syncTestDeps struct {
	svc          *SyncServiceImpl
	earningsRepo *mocks.MockEarningsRepository
	walletRepo   *mocks.MockWalletRepository
	transactor   *mocks.MockDBTransactor
	queue        *mocks.MockSyncQueue
	ctrl         *gomock.Controller
}

func setupSyncService(t *testing.T, withQueue bool) *syncTestDeps {
	ctrl := gomock.NewController(t)
	d := &syncTestDeps{
		earningsRepo: mocks.NewMockEarningsRepository(ctrl),
		walletRepo:   mocks.NewMockWalletRepository(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		ctrl:         ctrl,
	}
	var queue ports.SyncQueue
	if withQueue {
		d.queue = mocks.NewMockSyncQueue(ctrl)
		queue = d.queue
	}
	d.svc = NewSyncService(d.earningsRepo, d.walletRepo, d.transactor, queue, zerolog.Nop())
	return d
}

var fixedSyncTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// ==================== SyncWalletFromEarnings ====================

func TestSyncService_SyncWalletFromEarnings_CreatesWallet(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()
	d.svc.now = func() time.Time { return fixedSyncTime }

	ctx := context.Background()
	tx := &mockTx{}
	e := &domain.Earnings{ActorID: uuid.New(), WalletBalance: 1_500, TotalEarned: 4_000, TotalWithdrawn: 2_000, PendingPayouts: 500, Currency: "USD"}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByActorIDForUpdate(ctx, tx, e.ActorID).Return(nil, nil)
	d.walletRepo.EXPECT().Upsert(ctx, tx, gomock.Any(), fixedSyncTime).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet, _ time.Time) error {
			assert.Equal(t, e.ActorID, w.ActorID)
			assert.Equal(t, int64(1_500), w.Balance)
			assert.Equal(t, int64(4_000), w.TotalEarned)
			assert.Equal(t, int64(2_000), w.TotalWithdrawn)
			assert.Equal(t, int64(500), w.PendingPayouts)
			return nil
		})

	w, err := d.svc.SyncWalletFromEarnings(ctx, e)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.True(t, domain.NewBalances(e, w).InSync)
}

func TestSyncService_SyncWalletFromEarnings_KeepsWalletIdentity(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	e := &domain.Earnings{ActorID: uuid.New(), WalletBalance: 900, TotalEarned: 900}
	existing := &domain.Wallet{ID: uuid.New(), ActorID: e.ActorID, Balance: 100, CreatedAt: fixedSyncTime.Add(-48 * time.Hour)}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByActorIDForUpdate(ctx, tx, e.ActorID).Return(existing, nil)
	d.walletRepo.EXPECT().Upsert(ctx, tx, gomock.Any(), gomock.Any()).Return(nil)

	w, err := d.svc.SyncWalletFromEarnings(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, w.ID)
	assert.Equal(t, existing.CreatedAt, w.CreatedAt)
	assert.Equal(t, int64(900), w.Balance)
}

func TestSyncService_SyncWalletFromEarnings_Idempotent(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	ctx := context.Background()
	e := &domain.Earnings{ActorID: uuid.New(), WalletBalance: 700, TotalEarned: 1_000, TotalWithdrawn: 300, Currency: "USD"}

	// The wallet the first run writes is what the second run finds.
	var stored *domain.Wallet
	d.transactor.EXPECT().Begin(ctx).DoAndReturn(func(context.Context) (pgx.Tx, error) { return &mockTx{}, nil }).Times(2)
	d.walletRepo.EXPECT().GetByActorIDForUpdate(ctx, gomock.Any(), e.ActorID).DoAndReturn(
		func(context.Context, pgx.Tx, uuid.UUID) (*domain.Wallet, error) {
			if stored == nil {
				return nil, nil
			}
			cp := *stored
			return &cp, nil
		}).Times(2)
	d.walletRepo.EXPECT().Upsert(ctx, gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet, _ time.Time) error {
			if w.ID == uuid.Nil {
				w.ID = uuid.New()
			}
			cp := *w
			stored = &cp
			return nil
		}).Times(2)

	first, err := d.svc.SyncWalletFromEarnings(ctx, e)
	require.NoError(t, err)
	second, err := d.svc.SyncWalletFromEarnings(ctx, e)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Balance, second.Balance)
	assert.Equal(t, first.TotalEarned, second.TotalEarned)
	assert.Equal(t, first.TotalWithdrawn, second.TotalWithdrawn)
	assert.Equal(t, first.PendingPayouts, second.PendingPayouts)
}

func TestSyncService_SyncWalletFromEarnings_UpsertFailureRollsBack(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	e := &domain.Earnings{ActorID: uuid.New()}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByActorIDForUpdate(ctx, tx, e.ActorID).Return(nil, nil)
	d.walletRepo.EXPECT().Upsert(ctx, tx, gomock.Any(), gomock.Any()).Return(errors.New("constraint violation"))

	w, err := d.svc.SyncWalletFromEarnings(ctx, e)
	assert.Nil(t, w)
	assert.EqualError(t, err, "constraint violation")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestSyncService_SyncNilSource(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	_, err := d.svc.SyncWalletFromEarnings(context.Background(), nil)
	assert.Error(t, err)
	_, err = d.svc.SyncEarningsFromWallet(context.Background(), nil)
	assert.Error(t, err)
}

// ==================== SyncEarningsFromWallet ====================

func TestSyncService_SyncEarningsFromWallet(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	w := &domain.Wallet{ID: uuid.New(), ActorID: uuid.New(), Balance: 2_500, TotalEarned: 3_000, PendingPayouts: 500, Currency: "NGN"}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.earningsRepo.EXPECT().Upsert(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.Earnings) error {
			assert.Equal(t, w.ActorID, e.ActorID)
			assert.Equal(t, int64(2_500), e.WalletBalance)
			assert.Equal(t, int64(3_000), e.TotalEarned)
			assert.Equal(t, int64(500), e.PendingPayouts)
			assert.Equal(t, "NGN", e.Currency)
			return nil
		})

	e, err := d.svc.SyncEarningsFromWallet(ctx, w)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.True(t, domain.NewBalances(e, w).InSync)
}

func TestSyncService_SyncEarningsFromWallet_Idempotent(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	ctx := context.Background()
	w := &domain.Wallet{
		ID: uuid.New(), ActorID: uuid.New(), Balance: 4_200, TotalEarned: 9_000,
		TotalWithdrawn: 3_800, PendingPayouts: 1_000, Currency: "USD",
	}

	// Upsert keyed by actor id: each run overwrites the same row.
	table := map[uuid.UUID]domain.Earnings{}
	var snapshots []domain.Earnings
	d.transactor.EXPECT().Begin(ctx).DoAndReturn(func(context.Context) (pgx.Tx, error) { return &mockTx{}, nil }).Times(2)
	d.earningsRepo.EXPECT().Upsert(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.Earnings) error {
			table[e.ActorID] = *e
			snapshots = append(snapshots, table[e.ActorID])
			return nil
		}).Times(2)

	first, err := d.svc.SyncEarningsFromWallet(ctx, w)
	require.NoError(t, err)
	second, err := d.svc.SyncEarningsFromWallet(ctx, w)
	require.NoError(t, err)

	require.Len(t, snapshots, 2)
	assert.Len(t, table, 1)
	assert.Equal(t, snapshots[0], snapshots[1])
	assert.Equal(t, *first, *second)
	assert.Equal(t, int64(4_200), snapshots[1].WalletBalance)
	assert.Equal(t, int64(1_000), snapshots[1].PendingPayouts)
}

func TestSyncService_SyncEarningsFromWallet_BeginFails(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("pool exhausted"))

	e, err := d.svc.SyncEarningsFromWallet(context.Background(), &domain.Wallet{ActorID: uuid.New()})
	assert.Nil(t, e)
	assert.ErrorContains(t, err, "pool exhausted")
}

// ==================== HandleJob ====================

func TestSyncService_HandleJob_WalletFromEarnings(t *testing.T) {
	d := setupSyncService(t, true)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	actorID := uuid.New()
	job := domain.NewSyncJob(domain.SyncWalletFromEarnings, actorID)

	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(tx, nil),
		d.earningsRepo.EXPECT().GetByActorIDForUpdate(ctx, tx, actorID).Return(&domain.Earnings{ActorID: actorID, WalletBalance: 10}, nil),
		d.walletRepo.EXPECT().GetByActorIDForUpdate(ctx, tx, actorID).Return(nil, nil),
		d.walletRepo.EXPECT().Upsert(ctx, tx, gomock.Any(), gomock.Any()).Return(nil),
	)

	require.NoError(t, d.svc.HandleJob(ctx, job))
	assert.True(t, tx.committed)
}

func TestSyncService_HandleJob_EarningsFromWalletLocksEarningsFirst(t *testing.T) {
	d := setupSyncService(t, true)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	actorID := uuid.New()
	job := domain.NewSyncJob(domain.SyncEarningsFromWallet, actorID)

	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(tx, nil),
		d.earningsRepo.EXPECT().GetByActorIDForUpdate(ctx, tx, actorID).Return(nil, nil),
		d.walletRepo.EXPECT().GetByActorIDForUpdate(ctx, tx, actorID).Return(&domain.Wallet{ActorID: actorID, Balance: 42, TotalEarned: 42}, nil),
		d.earningsRepo.EXPECT().Upsert(ctx, tx, gomock.Any()).Return(nil),
	)

	require.NoError(t, d.svc.HandleJob(ctx, job))
	assert.True(t, tx.committed)
}

func TestSyncService_HandleJob_MissingSourceIsNoop(t *testing.T) {
	t.Run("earnings", func(t *testing.T) {
		d := setupSyncService(t, true)
		defer d.ctrl.Finish()

		tx := &mockTx{}
		actorID := uuid.New()
		d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		d.earningsRepo.EXPECT().GetByActorIDForUpdate(gomock.Any(), tx, actorID).Return(nil, nil)

		require.NoError(t, d.svc.HandleJob(context.Background(), domain.NewSyncJob(domain.SyncWalletFromEarnings, actorID)))
	})

	t.Run("wallet", func(t *testing.T) {
		d := setupSyncService(t, true)
		defer d.ctrl.Finish()

		tx := &mockTx{}
		actorID := uuid.New()
		d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		d.earningsRepo.EXPECT().GetByActorIDForUpdate(gomock.Any(), tx, actorID).Return(nil, nil)
		d.walletRepo.EXPECT().GetByActorIDForUpdate(gomock.Any(), tx, actorID).Return(nil, nil)

		require.NoError(t, d.svc.HandleJob(context.Background(), domain.NewSyncJob(domain.SyncEarningsFromWallet, actorID)))
	})
}

func TestSyncService_HandleJob_UnknownKind(t *testing.T) {
	d := setupSyncService(t, true)
	defer d.ctrl.Finish()

	tx := &mockTx{}
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	err := d.svc.HandleJob(context.Background(), domain.NewSyncJob(domain.SyncKind("teleport"), uuid.New()))
	assert.ErrorIs(t, err, ErrUnknownSyncKind)
	assert.False(t, tx.committed)
}

func TestSyncService_HandleJob_PropagatesErrors(t *testing.T) {
	d := setupSyncService(t, true)
	defer d.ctrl.Finish()

	tx := &mockTx{}
	actorID := uuid.New()
	dbErr := errors.New("lock timeout")
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.earningsRepo.EXPECT().GetByActorIDForUpdate(gomock.Any(), tx, actorID).Return(nil, dbErr)

	err := d.svc.HandleJob(context.Background(), domain.NewSyncJob(domain.SyncWalletFromEarnings, actorID))
	assert.ErrorIs(t, err, dbErr)
	assert.True(t, tx.rolledBack)
}

// ==================== Enqueue ====================

func TestSyncService_Enqueue_UsesQueue(t *testing.T) {
	d := setupSyncService(t, true)
	defer d.ctrl.Finish()

	actorID := uuid.New()
	d.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, job *domain.SyncJob) error {
			assert.Equal(t, domain.SyncWalletFromEarnings, job.Kind)
			assert.Equal(t, actorID, job.ActorID)
			assert.NotEqual(t, uuid.Nil, job.ID)
			assert.Zero(t, job.Attempt)
			return nil
		})

	require.NoError(t, d.svc.Enqueue(context.Background(), domain.SyncWalletFromEarnings, actorID))
}

func TestSyncService_Enqueue_QueueError(t *testing.T) {
	d := setupSyncService(t, true)
	defer d.ctrl.Finish()

	qErr := errors.New("redis: connection refused")
	d.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(qErr)

	err := d.svc.Enqueue(context.Background(), domain.SyncEarningsFromWallet, uuid.New())
	assert.ErrorIs(t, err, qErr)
}

func TestSyncService_Enqueue_InlineWithoutQueue(t *testing.T) {
	d := setupSyncService(t, false)
	defer d.ctrl.Finish()

	tx := &mockTx{}
	actorID := uuid.New()
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.earningsRepo.EXPECT().GetByActorIDForUpdate(gomock.Any(), tx, actorID).Return(&domain.Earnings{ActorID: actorID}, nil)
	d.walletRepo.EXPECT().GetByActorIDForUpdate(gomock.Any(), tx, actorID).Return(nil, nil)
	d.walletRepo.EXPECT().Upsert(gomock.Any(), tx, gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, d.svc.Enqueue(context.Background(), domain.SyncWalletFromEarnings, actorID))
	assert.True(t, tx.committed)
}
