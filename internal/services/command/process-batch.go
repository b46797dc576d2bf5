package command

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/brianYuDesign/balance-engine/internal/adapters/kafka"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/batch"
	"github.com/brianYuDesign/balance-engine/pkg"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mopentelemetry"
)

// ConsumedBatch is one poll window of records from a single partition,
// together with the identity the commit must be fenced under.
type ConsumedBatch struct {
	Group          string
	Topic          string
	LeasePartition string
	HolderID       string
	Partition      int32
	Messages       []*kafka.Message
}

// BatchResult summarizes one committed batch.
type BatchResult struct {
	Applied    int
	Rejected   int
	Duplicates int
	Malformed  int
	Offset     int64
	Snapshots  []mmodel.SnapshotEntry
}

// rejectionMessage maps a terminal record-level error to the ledger row text.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, cn.ErrInsufficientFunds):
		return "insufficient available funds"
	case errors.Is(err, cn.ErrInsufficientFrozenFunds):
		return "insufficient frozen funds"
	case errors.Is(err, cn.ErrBalanceNotFound):
		return "no balance for non-deposit mutation"
	default:
		return "invalid mutation"
	}
}

// ProcessBatch runs the in-batch pipeline over one poll window: parse
// (malformed records go to the DLQ), collapse and deduplicate by transaction
// id, compute new states against the working set, then commit everything in
// one fenced transaction that also advances the offset to the last record.
//
// Terminal rejections become failed ledger rows and advance the offset.
// A transient error (store, DLQ publish, lease) aborts the whole batch with
// no offset advance; the caller resumes from the committed offset.
func (uc *UseCase) ProcessBatch(ctx context.Context, ws *WorkingSet, consumed *ConsumedBatch) (*BatchResult, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "command.process_batch")
	defer span.End()

	result := &BatchResult{
		Offset: consumed.Messages[len(consumed.Messages)-1].Offset,
	}

	requests, err := uc.parseBatch(ctx, consumed, result)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to route malformed records", err)

		return nil, err
	}

	requests, err = uc.dedupe(ctx, requests, result)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to probe idempotency index", err)

		return nil, err
	}

	items, finals, err := uc.compute(ctx, ws, requests, result)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to compute batch", err)

		return nil, err
	}

	commit := &batch.Commit{
		LeasePartition: consumed.LeasePartition,
		HolderID:       consumed.HolderID,
		Group:          consumed.Group,
		Topic:          consumed.Topic,
		Partition:      consumed.Partition,
		Offset:         result.Offset,
		Items:          items,
	}

	if err := uc.BatchRepo.Commit(ctx, commit); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to commit batch", err)

		return nil, err
	}

	for _, final := range finals {
		ws.Put(final)

		result.Snapshots = append(result.Snapshots, mmodel.SnapshotEntry{
			Balance:   final,
			Timestamp: final.Version,
		})
	}

	return result, nil
}

// parseBatch decodes the raw records, routing undecodable ones to the
// dead-letter topic. A failed DLQ publish aborts the batch so the record is
// redelivered instead of silently skipped.
func (uc *UseCase) parseBatch(ctx context.Context, consumed *ConsumedBatch, result *BatchResult) ([]*mmodel.MutationRequest, error) {
	logger := pkg.NewLoggerFromContext(ctx)

	requests := make([]*mmodel.MutationRequest, 0, len(consumed.Messages))

	for _, message := range consumed.Messages {
		var request mmodel.MutationRequest
		if err := json.Unmarshal(message.Value, &request); err != nil {
			logger.Warnf("Malformed record at %s[%d]@%d: %v", message.Topic, message.Partition, message.Offset, err)

			dlq := &mmodel.DLQMessage{
				OriginalTopic:     message.Topic,
				OriginalPartition: message.Partition,
				OriginalOffset:    message.Offset,
				OriginalKey:       string(message.Key),
				OriginalValue:     message.Value,
				FailedAt:          time.Now().UTC(),
				ErrorKind:         cn.ErrMalformedRecord.Error(),
				ErrorMessage:      err.Error(),
			}

			if err := uc.ProducerRepo.PublishDLQ(ctx, dlq); err != nil {
				return nil, err
			}

			result.Malformed++

			continue
		}

		requests = append(requests, &request)
	}

	return requests, nil
}

// dedupe collapses in-batch repeats and drops records whose transaction id
// already reached a terminal ledger state.
func (uc *UseCase) dedupe(ctx context.Context, requests []*mmodel.MutationRequest, result *BatchResult) ([]*mmodel.MutationRequest, error) {
	seen := make(map[string]bool, len(requests))
	collapsed := make([]*mmodel.MutationRequest, 0, len(requests))
	ids := make([]string, 0, len(requests))

	for _, request := range requests {
		if seen[request.TransactionID] {
			result.Duplicates++
			continue
		}

		seen[request.TransactionID] = true

		collapsed = append(collapsed, request)
		ids = append(ids, request.TransactionID)
	}

	terminal, err := uc.LedgerRepo.FindTerminalByTransactionIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	fresh := make([]*mmodel.MutationRequest, 0, len(collapsed))

	for _, request := range collapsed {
		if _, done := terminal[request.TransactionID]; done {
			result.Duplicates++
			continue
		}

		fresh = append(fresh, request)
	}

	return fresh, nil
}

// compute applies the remaining records in log order against the working set,
// loading pairs from the store on miss and creating a zero balance on the
// first deposit of an unknown pair.
func (uc *UseCase) compute(ctx context.Context, ws *WorkingSet, requests []*mmodel.MutationRequest, result *BatchResult) ([]batch.Item, []mmodel.Balance, error) {
	pending := make(map[string]mmodel.Balance)
	created := make(map[string]bool)
	finalIdx := make(map[string]int)

	items := make([]batch.Item, 0, len(requests))

	for _, request := range requests {
		key := workingSetKey(request.AccountID, request.Currency)

		current, known := pending[key]
		if !known {
			loaded, err := uc.loadBalance(ctx, ws, request)
			if err != nil {
				var notFound pkg.EntityNotFoundError
				if !errors.As(err, &notFound) {
					return nil, nil, err
				}

				if request.Kind == cn.DEPOSIT {
					loaded = mmodel.NewZeroBalance(request.AccountID, request.Currency)
					created[key] = true
				} else {
					items = append(items, rejectedItem(request, mmodel.NewZeroBalance(request.AccountID, request.Currency), cn.ErrBalanceNotFound))
					result.Rejected++

					continue
				}
			}

			current = loaded
		}

		if err := request.Validate(); err != nil {
			items = append(items, rejectedItem(request, current, err))
			result.Rejected++

			// A validation reject still pins the pair state so later
			// records of the batch chain off the right before-state.
			pending[key] = current

			continue
		}

		after, err := current.Apply(request.Kind, request.Amount)
		if err != nil {
			items = append(items, rejectedItem(request, current, err))
			result.Rejected++

			pending[key] = current

			continue
		}

		items = append(items, appliedItem(request, current, after, created[key]))
		finalIdx[key] = len(items) - 1

		pending[key] = after
		result.Applied++
	}

	finals := make([]mmodel.Balance, 0, len(finalIdx))

	for key, idx := range finalIdx {
		items[idx].Final = true
		finals = append(finals, pending[key])
	}

	return items, finals, nil
}

func (uc *UseCase) loadBalance(ctx context.Context, ws *WorkingSet, request *mmodel.MutationRequest) (mmodel.Balance, error) {
	if cached, ok := ws.Get(request.AccountID, request.Currency); ok {
		return cached, nil
	}

	stored, err := uc.BalanceRepo.Find(ctx, request.AccountID, request.Currency)
	if err != nil {
		return mmodel.Balance{}, err
	}

	return *stored, nil
}

func appliedItem(request *mmodel.MutationRequest, before, after mmodel.Balance, pairCreated bool) batch.Item {
	return batch.Item{
		Entry: &mmodel.LedgerEntry{
			TransactionID:   request.TransactionID,
			AccountID:       request.AccountID,
			Currency:        request.Currency,
			Kind:            request.Kind,
			Amount:          request.Amount,
			AvailableBefore: before.Available,
			AvailableAfter:  after.Available,
			FrozenBefore:    before.Frozen,
			FrozenAfter:     after.Frozen,
			Status:          cn.SUCCESS,
			Metadata:        request.Metadata,
		},
		VersionAfter: after.Version,
		PairCreated:  pairCreated,
		Success:      true,
	}
}

func rejectedItem(request *mmodel.MutationRequest, current mmodel.Balance, cause error) batch.Item {
	message := rejectionMessage(cause)

	return batch.Item{
		Entry: &mmodel.LedgerEntry{
			TransactionID:   request.TransactionID,
			AccountID:       request.AccountID,
			Currency:        request.Currency,
			Kind:            request.Kind,
			Amount:          request.Amount,
			AvailableBefore: current.Available,
			AvailableAfter:  current.Available,
			FrozenBefore:    current.Frozen,
			FrozenAfter:     current.Frozen,
			Status:          cn.FAILED,
			ErrorMessage:    &message,
			Metadata:        request.Metadata,
		},
		VersionAfter: current.Version,
		Success:      false,
	}
}
