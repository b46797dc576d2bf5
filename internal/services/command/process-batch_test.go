package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brianYuDesign/balance-engine/internal/adapters/kafka"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/batch"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/outbox"
	"github.com/brianYuDesign/balance-engine/pkg"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}

	return d
}

type stubLedgerRepo struct {
	terminal map[string]*mmodel.LedgerEntry
	err      error
}

func (s *stubLedgerRepo) ExistsTerminal(_ context.Context, transactionID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}

	_, ok := s.terminal[transactionID]

	return ok, nil
}

func (s *stubLedgerRepo) FindTerminalByTransactionIDs(_ context.Context, ids []string) (map[string]*mmodel.LedgerEntry, error) {
	if s.err != nil {
		return nil, s.err
	}

	found := make(map[string]*mmodel.LedgerEntry)

	for _, id := range ids {
		if entry, ok := s.terminal[id]; ok {
			found[id] = entry
		}
	}

	return found, nil
}

type stubBalanceRepo struct {
	balances map[string]mmodel.Balance
	err      error
}

func (s *stubBalanceRepo) Find(_ context.Context, accountID, currency string) (*mmodel.Balance, error) {
	if s.err != nil {
		return nil, s.err
	}

	if b, ok := s.balances[accountID+"|"+currency]; ok {
		return &b, nil
	}

	return nil, pkg.ValidateBusinessError(cn.ErrBalanceNotFound, "Balance")
}

func (s *stubBalanceRepo) FindAllByAccount(_ context.Context, accountID string) ([]*mmodel.Balance, error) {
	return nil, nil
}

type stubBatchRepo struct {
	commits []*batch.Commit
	err     error
}

func (s *stubBatchRepo) Commit(_ context.Context, commit *batch.Commit) error {
	if s.err != nil {
		return s.err
	}

	s.commits = append(s.commits, commit)

	return nil
}

type stubProducerRepo struct {
	mutations  []*mmodel.MutationRequest
	dlq        []*mmodel.DLQMessage
	publishErr error
	dlqErr     error
}

func (s *stubProducerRepo) PublishMutation(_ context.Context, request *mmodel.MutationRequest) error {
	if s.publishErr != nil {
		return s.publishErr
	}

	s.mutations = append(s.mutations, request)

	return nil
}

func (s *stubProducerRepo) PublishDLQ(_ context.Context, message *mmodel.DLQMessage) error {
	if s.dlqErr != nil {
		return s.dlqErr
	}

	s.dlq = append(s.dlq, message)

	return nil
}

type stubOutboxRepo struct {
	created      []*outbox.Record
	sent         []string
	deadLettered []string
	sweepable    []*outbox.Record
	createErr    error
}

func (s *stubOutboxRepo) Create(_ context.Context, record *outbox.Record) error {
	if s.createErr != nil {
		return s.createErr
	}

	s.created = append(s.created, record)

	return nil
}

func (s *stubOutboxRepo) MarkSent(_ context.Context, eventID string) error {
	s.sent = append(s.sent, eventID)
	return nil
}

func (s *stubOutboxRepo) MarkDeadLettered(_ context.Context, eventID string) error {
	s.deadLettered = append(s.deadLettered, eventID)
	return nil
}

func (s *stubOutboxRepo) ClaimSweepable(_ context.Context, _ time.Duration, _ int) ([]*outbox.Record, error) {
	return s.sweepable, nil
}

func message(t *testing.T, offset int64, txID, accountID, kind, amount string) *kafka.Message {
	t.Helper()

	payload, err := json.Marshal(&mmodel.MutationRequest{
		Schema:        mmodel.MutationSchemaVersion,
		EventID:       "e-" + txID,
		TransactionID: txID,
		AccountID:     accountID,
		PartitionKey:  accountID,
		Currency:      "USDT",
		Kind:          kind,
		Amount:        dec(amount),
	})
	require.NoError(t, err)

	return &kafka.Message{
		Topic:     "balance-changes",
		Partition: 0,
		Offset:    offset,
		Key:       []byte(accountID),
		Value:     payload,
	}
}

func newBatchUseCase(ledgerRepo *stubLedgerRepo, balanceRepo *stubBalanceRepo, batchRepo *stubBatchRepo, producer *stubProducerRepo) *UseCase {
	return &UseCase{
		LedgerRepo:   ledgerRepo,
		BalanceRepo:  balanceRepo,
		BatchRepo:    batchRepo,
		ProducerRepo: producer,
		Topic:        "balance-changes",
		MaxRetries:   3,
	}
}

func newConsumedBatch(messages ...*kafka.Message) *ConsumedBatch {
	return &ConsumedBatch{
		Group:          "balance-engine",
		Topic:          "balance-changes",
		LeasePartition: "balance-changes-0",
		HolderID:       "worker-a",
		Partition:      0,
		Messages:       messages,
	}
}

func mustWorkingSet(t *testing.T) *WorkingSet {
	t.Helper()

	ws, err := NewWorkingSet(128)
	require.NoError(t, err)

	return ws
}

func TestProcessBatchFirstDepositCreatesBalance(t *testing.T) {
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(&stubLedgerRepo{}, &stubBalanceRepo{}, batchRepo, &stubProducerRepo{})
	ws := mustWorkingSet(t)

	result, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(
		message(t, 10, "t1", "1", cn.DEPOSIT, "100.00"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, int64(10), result.Offset)

	require.Len(t, batchRepo.commits, 1)
	commit := batchRepo.commits[0]
	assert.Equal(t, int64(10), commit.Offset)
	assert.Equal(t, "worker-a", commit.HolderID)

	require.Len(t, commit.Items, 1)
	item := commit.Items[0]
	assert.True(t, item.Success)
	assert.True(t, item.PairCreated)
	assert.True(t, item.Final)
	assert.Equal(t, int64(1), item.VersionAfter)
	assert.Equal(t, cn.SUCCESS, item.Entry.Status)
	assert.True(t, item.Entry.AvailableBefore.IsZero())
	assert.True(t, item.Entry.AvailableAfter.Equal(dec("100.00")))

	cached, ok := ws.Get("1", "USDT")
	require.True(t, ok)
	assert.True(t, cached.Available.Equal(dec("100.00")))

	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, int64(1), result.Snapshots[0].Timestamp)
}

func TestProcessBatchCollapsesInBatchDuplicates(t *testing.T) {
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(&stubLedgerRepo{}, &stubBalanceRepo{}, batchRepo, &stubProducerRepo{})
	ws := mustWorkingSet(t)

	result, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(
		message(t, 1, "t1", "1", cn.DEPOSIT, "50"),
		message(t, 2, "t1", "1", cn.DEPOSIT, "50"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, int64(2), result.Offset)
	require.Len(t, batchRepo.commits, 1)
	assert.Len(t, batchRepo.commits[0].Items, 1)
}

func TestProcessBatchTerminalDuplicateIsNoOp(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{terminal: map[string]*mmodel.LedgerEntry{
		"t1": {TransactionID: "t1", Status: cn.SUCCESS},
	}}
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(ledgerRepo, &stubBalanceRepo{}, batchRepo, &stubProducerRepo{})
	ws := mustWorkingSet(t)

	result, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(
		message(t, 7, "t1", "1", cn.DEPOSIT, "100"),
	))
	require.NoError(t, err)

	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 1, result.Duplicates)

	// The offset still advances even though nothing was applied.
	require.Len(t, batchRepo.commits, 1)
	assert.Empty(t, batchRepo.commits[0].Items)
	assert.Equal(t, int64(7), batchRepo.commits[0].Offset)
}

func TestProcessBatchInsufficientFundsRecordsFailedRow(t *testing.T) {
	balanceRepo := &stubBalanceRepo{balances: map[string]mmodel.Balance{
		"1|USDT": {AccountID: "1", Currency: "USDT", Available: dec("100"), Frozen: decimal.Zero, Version: 3},
	}}
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(&stubLedgerRepo{}, balanceRepo, batchRepo, &stubProducerRepo{})
	ws := mustWorkingSet(t)

	result, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(
		message(t, 4, "t2", "1", cn.WITHDRAW, "150"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rejected)
	assert.Empty(t, result.Snapshots)

	require.Len(t, batchRepo.commits, 1)
	require.Len(t, batchRepo.commits[0].Items, 1)

	item := batchRepo.commits[0].Items[0]
	assert.False(t, item.Success)
	assert.False(t, item.Final)
	assert.Equal(t, cn.FAILED, item.Entry.Status)
	require.NotNil(t, item.Entry.ErrorMessage)
	assert.Equal(t, "insufficient available funds", *item.Entry.ErrorMessage)
	assert.True(t, item.Entry.AvailableBefore.Equal(dec("100")))
	assert.True(t, item.Entry.AvailableAfter.Equal(dec("100")))
}

func TestProcessBatchChainsFreezeThenUnfreeze(t *testing.T) {
	balanceRepo := &stubBalanceRepo{balances: map[string]mmodel.Balance{
		"1|USDT": {AccountID: "1", Currency: "USDT", Available: dec("100"), Frozen: decimal.Zero, Version: 1},
	}}
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(&stubLedgerRepo{}, balanceRepo, batchRepo, &stubProducerRepo{})
	ws := mustWorkingSet(t)

	result, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(
		message(t, 1, "t3", "1", cn.FREEZE, "40"),
		message(t, 2, "t4", "1", cn.UNFREEZE, "40"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Applied)

	require.Len(t, batchRepo.commits, 1)
	items := batchRepo.commits[0].Items
	require.Len(t, items, 2)

	// Ledger chaining: the later row's before equals the earlier row's after.
	assert.True(t, items[0].Entry.AvailableAfter.Equal(items[1].Entry.AvailableBefore))
	assert.True(t, items[0].Entry.FrozenAfter.Equal(items[1].Entry.FrozenBefore))

	// Only the last item of the pair carries the balance write.
	assert.False(t, items[0].Final)
	assert.True(t, items[1].Final)
	assert.Equal(t, int64(3), items[1].VersionAfter)

	cached, ok := ws.Get("1", "USDT")
	require.True(t, ok)
	assert.True(t, cached.Available.Equal(dec("100")))
	assert.True(t, cached.Frozen.IsZero())
}

func TestProcessBatchUnknownBalanceNonDeposit(t *testing.T) {
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(&stubLedgerRepo{}, &stubBalanceRepo{}, batchRepo, &stubProducerRepo{})
	ws := mustWorkingSet(t)

	result, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(
		message(t, 9, "t5", "9", cn.WITHDRAW, "10"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rejected)

	item := batchRepo.commits[0].Items[0]
	assert.Equal(t, cn.FAILED, item.Entry.Status)
	require.NotNil(t, item.Entry.ErrorMessage)
	assert.Equal(t, "no balance for non-deposit mutation", *item.Entry.ErrorMessage)
}

func TestProcessBatchMalformedRoutesToDLQ(t *testing.T) {
	producer := &stubProducerRepo{}
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(&stubLedgerRepo{}, &stubBalanceRepo{}, batchRepo, producer)
	ws := mustWorkingSet(t)

	garbage := &kafka.Message{Topic: "balance-changes", Partition: 0, Offset: 3, Key: []byte("1"), Value: []byte("{not json")}

	result, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(garbage))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Malformed)
	require.Len(t, producer.dlq, 1)
	assert.Equal(t, int64(3), producer.dlq[0].OriginalOffset)
	assert.Equal(t, cn.ErrMalformedRecord.Error(), producer.dlq[0].ErrorKind)

	// The malformed record never blocks the partition: the offset advances.
	require.Len(t, batchRepo.commits, 1)
	assert.Equal(t, int64(3), batchRepo.commits[0].Offset)
}

func TestProcessBatchDLQPublishFailureAborts(t *testing.T) {
	producer := &stubProducerRepo{dlqErr: errors.New("broker down")}
	batchRepo := &stubBatchRepo{}
	uc := newBatchUseCase(&stubLedgerRepo{}, &stubBalanceRepo{}, batchRepo, producer)
	ws := mustWorkingSet(t)

	garbage := &kafka.Message{Topic: "balance-changes", Partition: 0, Offset: 3, Value: []byte("{not json")}

	_, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(garbage))
	require.Error(t, err)

	// No offset advance: the record must be redelivered.
	assert.Empty(t, batchRepo.commits)
}

func TestProcessBatchLeaseLostPropagates(t *testing.T) {
	batchRepo := &stubBatchRepo{err: cn.ErrLeaseLost}
	uc := newBatchUseCase(&stubLedgerRepo{}, &stubBalanceRepo{}, batchRepo, &stubProducerRepo{})
	ws := mustWorkingSet(t)

	_, err := uc.ProcessBatch(context.Background(), ws, newConsumedBatch(
		message(t, 1, "t1", "1", cn.DEPOSIT, "100"),
	))
	require.ErrorIs(t, err, cn.ErrLeaseLost)

	// The working set keeps no speculative state from the aborted batch.
	_, ok := ws.Get("1", "USDT")
	assert.False(t, ok)
}
