package outbox

import (
	"context"
	"time"
)

// Record is one persisted "to-publish" row. The row is authoritative for the
// existence of a request; log publication is reconciled asynchronously.
type Record struct {
	EventID       string
	TransactionID string
	Topic         string
	PartitionKey  string
	Payload       []byte
	Status        string
	RetryCount    int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	SentAt        *time.Time
}

// Repository persists outbox records and hands stuck ones to the sweeper.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	MarkSent(ctx context.Context, eventID string) error
	MarkDeadLettered(ctx context.Context, eventID string) error
	ClaimSweepable(ctx context.Context, pendingOlderThan time.Duration, limit int) ([]*Record, error)
}
