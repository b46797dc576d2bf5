package command

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brianYuDesign/balance-engine/pkg"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mopentelemetry"
)

// SweepOutbox republishes rows stuck past the pending threshold, preserving
// the original event id. Rows that exhausted the retry budget are wrapped and
// routed to the dead-letter topic, then marked terminally failed. Returns the
// number of rows handled.
func (uc *UseCase) SweepOutbox(ctx context.Context, pendingOlderThan time.Duration, limit int) (int, error) {
	logger := pkg.NewLoggerFromContext(ctx)
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "command.sweep_outbox")
	defer span.End()

	records, err := uc.OutboxRepo.ClaimSweepable(ctx, pendingOlderThan, limit)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to claim sweepable outbox rows", err)

		return 0, err
	}

	for _, record := range records {
		if record.RetryCount > uc.MaxRetries {
			dlq := &mmodel.DLQMessage{
				OriginalTopic: record.Topic,
				OriginalKey:   record.PartitionKey,
				OriginalValue: record.Payload,
				FailedAt:      time.Now().UTC(),
				RetryCount:    record.RetryCount,
				ErrorKind:     cn.ErrDeadLettered.Error(),
				ErrorMessage:  "outbox publish retries exhausted",
			}

			if err := uc.ProducerRepo.PublishDLQ(ctx, dlq); err != nil {
				logger.Errorf("Failed to dead-letter outbox record %s: %v", record.EventID, err)
				continue
			}

			if err := uc.OutboxRepo.MarkDeadLettered(ctx, record.EventID); err != nil {
				logger.Errorf("Failed to mark outbox record %s dead-lettered: %v", record.EventID, err)
			}

			continue
		}

		var request mmodel.MutationRequest
		if err := json.Unmarshal(record.Payload, &request); err != nil {
			logger.Errorf("Unreadable outbox payload %s: %v", record.EventID, err)

			if err := uc.OutboxRepo.MarkDeadLettered(ctx, record.EventID); err != nil {
				logger.Errorf("Failed to mark outbox record %s dead-lettered: %v", record.EventID, err)
			}

			continue
		}

		if err := uc.ProducerRepo.PublishMutation(ctx, &request); err != nil {
			logger.Warnf("Republish failed for event %s (attempt %d): %v", record.EventID, record.RetryCount, err)
			continue
		}

		if err := uc.OutboxRepo.MarkSent(ctx, record.EventID); err != nil {
			logger.Warnf("Failed to mark outbox record %s as sent: %v", record.EventID, err)
		}
	}

	return len(records), nil
}
