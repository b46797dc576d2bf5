package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/outbox"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweepableRecord(t *testing.T, eventID, txID string, retryCount int) *outbox.Record {
	t.Helper()

	payload, err := json.Marshal(&mmodel.MutationRequest{
		Schema:        mmodel.MutationSchemaVersion,
		EventID:       eventID,
		TransactionID: txID,
		AccountID:     "1",
		PartitionKey:  "1",
		Currency:      "USDT",
		Kind:          cn.DEPOSIT,
		Amount:        dec("10"),
	})
	require.NoError(t, err)

	return &outbox.Record{
		EventID:       eventID,
		TransactionID: txID,
		Topic:         "balance-changes",
		PartitionKey:  "1",
		Payload:       payload,
		Status:        cn.OutboxPending,
		RetryCount:    retryCount,
	}
}

func TestSweepOutboxRepublishesWithinBudget(t *testing.T) {
	outboxRepo := &stubOutboxRepo{sweepable: []*outbox.Record{
		sweepableRecord(t, "e1", "t1", 1),
	}}
	producer := &stubProducerRepo{}
	uc := &UseCase{
		OutboxRepo:   outboxRepo,
		ProducerRepo: producer,
		Topic:        "balance-changes",
		MaxRetries:   3,
	}

	swept, err := uc.SweepOutbox(context.Background(), 10*time.Second, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, swept)
	require.Len(t, producer.mutations, 1)
	assert.Equal(t, "e1", producer.mutations[0].EventID)
	assert.Equal(t, []string{"e1"}, outboxRepo.sent)
	assert.Empty(t, producer.dlq)
}

func TestSweepOutboxEscalatesExhaustedRetriesToDLQ(t *testing.T) {
	outboxRepo := &stubOutboxRepo{sweepable: []*outbox.Record{
		sweepableRecord(t, "e1", "t1", 4),
	}}
	producer := &stubProducerRepo{}
	uc := &UseCase{
		OutboxRepo:   outboxRepo,
		ProducerRepo: producer,
		Topic:        "balance-changes",
		MaxRetries:   3,
	}

	swept, err := uc.SweepOutbox(context.Background(), 10*time.Second, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, swept)
	assert.Empty(t, producer.mutations)

	require.Len(t, producer.dlq, 1)
	assert.Equal(t, cn.ErrDeadLettered.Error(), producer.dlq[0].ErrorKind)
	assert.Equal(t, []string{"e1"}, outboxRepo.deadLettered)
}
