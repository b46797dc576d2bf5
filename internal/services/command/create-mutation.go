package command

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/outbox"
	"github.com/brianYuDesign/balance-engine/pkg"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mopentelemetry"
)

// CreateMutation accepts a validated mutation request into the outbox and
// publishes it to the log. The outbox commit is the success point: a
// publication failure is left for the sweeper and never surfaces to the
// caller, who already holds the event id.
func (uc *UseCase) CreateMutation(ctx context.Context, input *mmodel.CreateMutationInput) (*mmodel.MutationRequest, error) {
	logger := pkg.NewLoggerFromContext(ctx)
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "command.create_mutation")
	defer span.End()

	logger.Infof("Trying to create mutation: %s kind %s", input.TransactionID, input.Kind)

	request := input.ToRequest(pkg.GenerateUUIDv7().String())

	if err := request.Validate(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to validate mutation", err)

		return nil, pkg.ValidateBusinessError(err, reflect.TypeOf(mmodel.MutationRequest{}).Name(), "kind or amount out of range")
	}

	// The ledger probe rejects replays of transactions that already reached a
	// terminal ledger row; the unique index on outbox.transaction_id guards
	// every other repeat.
	applied, err := uc.LedgerRepo.ExistsTerminal(ctx, request.TransactionID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to probe ledger", err)

		return nil, err
	}

	if applied {
		return nil, pkg.ValidateBusinessError(cn.ErrDuplicateTransaction, reflect.TypeOf(mmodel.MutationRequest{}).Name(), request.TransactionID)
	}

	payload, err := json.Marshal(request)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to marshal mutation", err)

		return nil, err
	}

	record := &outbox.Record{
		EventID:       request.EventID,
		TransactionID: request.TransactionID,
		Topic:         uc.Topic,
		PartitionKey:  request.PartitionKey,
		Payload:       payload,
	}

	if err := uc.OutboxRepo.Create(ctx, record); err != nil {
		if errors.Is(err, cn.ErrDuplicateTransaction) {
			return nil, pkg.ValidateBusinessError(cn.ErrDuplicateTransaction, reflect.TypeOf(mmodel.MutationRequest{}).Name(), request.TransactionID)
		}

		mopentelemetry.HandleSpanError(&span, "Failed to create outbox record", err)

		return nil, err
	}

	if err := uc.ProducerRepo.PublishMutation(ctx, request); err != nil {
		// Durable in the outbox; the sweeper republishes it.
		logger.Warnf("Publish failed for event %s, leaving to sweeper: %v", request.EventID, err)

		return request, nil
	}

	if err := uc.OutboxRepo.MarkSent(ctx, request.EventID); err != nil {
		logger.Warnf("Failed to mark outbox record %s as sent: %v", request.EventID, err)
	}

	return request, nil
}
