package command

import (
	"github.com/brianYuDesign/balance-engine/internal/adapters/kafka"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/balance"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/batch"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/ledger"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/outbox"
)

// UseCase is a struct designed to encapsulate the write-pipeline use cases:
// accepting mutations into the outbox, sweeping stuck outbox rows and
// processing consumed batches against the relational store.
type UseCase struct {
	// OutboxRepo provides an abstraction on top of the outbox data source.
	OutboxRepo outbox.Repository

	// LedgerRepo provides an abstraction on top of the ledger idempotency index.
	LedgerRepo ledger.Repository

	// BalanceRepo provides an abstraction on top of the committed balances data source.
	BalanceRepo balance.Repository

	// BatchRepo applies whole batches under the leader fence.
	BatchRepo batch.Repository

	// ProducerRepo publishes to the durable log and its dead-letter topic.
	ProducerRepo kafka.ProducerRepository

	// Topic is the balance-changes topic mutations are published to.
	Topic string

	// MaxRetries bounds outbox republications before dead-lettering.
	MaxRetries int
}
