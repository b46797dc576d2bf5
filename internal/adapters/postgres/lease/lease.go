package lease

import (
	"context"
	"time"
)

// Lease is the single row guarding one partition against split-brain writers.
type Lease struct {
	Partition  string
	HolderID   string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Repository manages partition leases. The commit-time fence is not here: it
// is a row-lock read of the same table performed inside the batch commit
// transaction, so it can never race a renewal.
type Repository interface {
	Acquire(ctx context.Context, partition, holderID string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, partition, holderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, partition, holderID string) error
	Find(ctx context.Context, partition string) (*Lease, error)
}
