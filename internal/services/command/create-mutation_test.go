package command

import (
	"context"
	"errors"
	"testing"

	"github.com/brianYuDesign/balance-engine/pkg"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMutationInput(txID string) *mmodel.CreateMutationInput {
	return &mmodel.CreateMutationInput{
		TransactionID: txID,
		AccountID:     "1",
		Currency:      "USDT",
		Kind:          cn.DEPOSIT,
		Amount:        dec("100.00"),
	}
}

func TestCreateMutationSuccess(t *testing.T) {
	outboxRepo := &stubOutboxRepo{}
	producer := &stubProducerRepo{}
	uc := &UseCase{
		OutboxRepo:   outboxRepo,
		LedgerRepo:   &stubLedgerRepo{},
		ProducerRepo: producer,
		Topic:        "balance-changes",
		MaxRetries:   3,
	}

	request, err := uc.CreateMutation(context.Background(), newMutationInput("t1"))
	require.NoError(t, err)

	assert.NotEmpty(t, request.EventID)
	assert.Equal(t, "t1", request.TransactionID)
	assert.Equal(t, "1", request.PartitionKey)

	require.Len(t, outboxRepo.created, 1)
	assert.Equal(t, request.EventID, outboxRepo.created[0].EventID)

	require.Len(t, producer.mutations, 1)
	assert.Equal(t, []string{request.EventID}, outboxRepo.sent)
}

func TestCreateMutationDuplicateFromLedger(t *testing.T) {
	uc := &UseCase{
		OutboxRepo: &stubOutboxRepo{},
		LedgerRepo: &stubLedgerRepo{terminal: map[string]*mmodel.LedgerEntry{
			"t1": {TransactionID: "t1", Status: cn.SUCCESS},
		}},
		ProducerRepo: &stubProducerRepo{},
		Topic:        "balance-changes",
	}

	_, err := uc.CreateMutation(context.Background(), newMutationInput("t1"))
	require.Error(t, err)

	var conflict pkg.EntityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, cn.ErrDuplicateTransaction.Error(), conflict.Code)
}

func TestCreateMutationDuplicateFromOutboxIndex(t *testing.T) {
	uc := &UseCase{
		OutboxRepo:   &stubOutboxRepo{createErr: cn.ErrDuplicateTransaction},
		LedgerRepo:   &stubLedgerRepo{},
		ProducerRepo: &stubProducerRepo{},
		Topic:        "balance-changes",
	}

	_, err := uc.CreateMutation(context.Background(), newMutationInput("t1"))

	var conflict pkg.EntityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, cn.ErrDuplicateTransaction.Error(), conflict.Code)
}

func TestCreateMutationPublishFailureStillSucceeds(t *testing.T) {
	outboxRepo := &stubOutboxRepo{}
	uc := &UseCase{
		OutboxRepo:   outboxRepo,
		LedgerRepo:   &stubLedgerRepo{},
		ProducerRepo: &stubProducerRepo{publishErr: errors.New("broker down")},
		Topic:        "balance-changes",
	}

	// The outbox commit is the success point; the sweeper republishes later.
	request, err := uc.CreateMutation(context.Background(), newMutationInput("t1"))
	require.NoError(t, err)
	assert.NotEmpty(t, request.EventID)

	assert.Len(t, outboxRepo.created, 1)
	assert.Empty(t, outboxRepo.sent)
}

func TestCreateMutationRejectsInvalidKind(t *testing.T) {
	uc := &UseCase{
		OutboxRepo:   &stubOutboxRepo{},
		LedgerRepo:   &stubLedgerRepo{},
		ProducerRepo: &stubProducerRepo{},
		Topic:        "balance-changes",
	}

	input := newMutationInput("t1")
	input.Kind = "mint"

	_, err := uc.CreateMutation(context.Background(), input)

	var validation pkg.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, cn.ErrInvalidMutation.Error(), validation.Code)
}
