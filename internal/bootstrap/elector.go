package bootstrap

import (
	"context"
	"time"

	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/lease"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
)

// renewFailureBudget is how many consecutive renew errors are tolerated
// before the lease is treated as lost. A renew that reports "not held" is a
// loss immediately.
const renewFailureBudget = 3

// LeaderElector drives one partition's lease: acquire, periodic renewal,
// release. The commit-time fence lives in the batch repository; the elector
// only keeps the lease warm and signals loss.
type LeaderElector struct {
	LeaseRepo     lease.Repository
	Partition     string
	HolderID      string
	TTL           time.Duration
	RenewInterval time.Duration
	Logger        mlog.Logger
}

// Acquire attempts to take the partition lease.
func (e *LeaderElector) Acquire(ctx context.Context) (bool, error) {
	return e.LeaseRepo.Acquire(ctx, e.Partition, e.HolderID, e.TTL)
}

// KeepAlive renews the lease every RenewInterval until ctx is done or the
// lease is lost. The returned channel closes exactly once on loss.
func (e *LeaderElector) KeepAlive(ctx context.Context) <-chan struct{} {
	lost := make(chan struct{})

	go func() {
		ticker := time.NewTicker(e.RenewInterval)
		defer ticker.Stop()

		failures := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := e.LeaseRepo.Renew(ctx, e.Partition, e.HolderID, e.TTL)
				if err != nil {
					failures++

					e.Logger.Warnf("Lease renew error on partition %s (%d/%d): %v", e.Partition, failures, renewFailureBudget, err)

					if failures < renewFailureBudget {
						continue
					}

					close(lost)

					return
				}

				failures = 0

				if !held {
					e.Logger.Warnf("Lease lost on partition %s", e.Partition)

					close(lost)

					return
				}
			}
		}
	}()

	return lost
}

// Release gives the lease up, deleting the row only when still held.
func (e *LeaderElector) Release(ctx context.Context) error {
	return e.LeaseRepo.Release(ctx, e.Partition, e.HolderID)
}
