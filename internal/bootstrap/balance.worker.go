package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brianYuDesign/balance-engine/internal/adapters/kafka"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/offset"
	"github.com/brianYuDesign/balance-engine/internal/services/command"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
)

// WorkerState is the lifecycle state of a partition worker.
type WorkerState int32

const (
	StateFollower WorkerState = iota
	StateCandidate
	StateLeader
	StateDraining
	StateStopped
)

// String implements fmt.Stringer.
func (s WorkerState) String() string {
	switch s {
	case StateFollower:
		return "follower"
	case StateCandidate:
		return "candidate"
	case StateLeader:
		return "leader"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// BatchPolicy are the batching tunables of one partition worker.
type BatchPolicy struct {
	MaxRecords int
	MaxLatency time.Duration
	LongPoll   time.Duration
	Deadline   time.Duration
}

// RetryPolicy bounds in-pipeline retries of transient failures.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	BackoffFactor   int
}

// PartitionWorker serializes all mutations of one partition: it runs for the
// lease, polls the log from the committed offset, aggregates batches and
// commits them through the fenced batch transaction. A partition has at most
// one leader across the fleet, so the worker's working set needs no locking.
type PartitionWorker struct {
	Group     string
	Topic     string
	Partition int32

	Policy BatchPolicy
	Retry  RetryPolicy

	UseCase    *command.UseCase
	OffsetRepo offset.Repository
	Elector    *LeaderElector

	// NewPoller builds a poller consuming this worker's partition starting at
	// the given offset. Injected so tests can feed records without a broker.
	NewPoller func(next int64) (kafka.PartitionPoller, error)

	// SnapshotSink receives post-commit balances bound for the cache.
	SnapshotSink func(entries []mmodel.SnapshotEntry)

	WorkingSetSize int
	Logger         mlog.Logger

	state atomic.Int32
	ws    *command.WorkingSet
}

// State returns the current lifecycle state.
func (w *PartitionWorker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *PartitionWorker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// LeasePartition is the lease row key of this worker's partition.
func LeasePartition(topic string, partition int32) string {
	return fmt.Sprintf("%s-%d", topic, partition)
}

// Run drives the follower → candidate → leader loop until ctx is done, then
// drains: the in-flight batch is already committed or abandoned (abandoned
// records replay and deduplicate), the lease is released and the worker stops.
func (w *PartitionWorker) Run(ctx context.Context) error {
	ws, err := command.NewWorkingSet(w.WorkingSetSize)
	if err != nil {
		return err
	}

	w.ws = ws
	w.setState(StateFollower)

	logger := w.Logger.WithFields("topic", w.Topic, "partition", w.Partition)

	for ctx.Err() == nil {
		w.setState(StateCandidate)

		held, err := w.Elector.Acquire(ctx)
		if err != nil || !held {
			if err != nil {
				logger.Warnf("Lease acquire failed: %v", err)
			}

			w.setState(StateFollower)
			sleepCtx(ctx, w.Elector.RenewInterval)

			continue
		}

		w.setState(StateLeader)
		logger.Infof("Acquired lease, consuming as leader")

		// The working set may hold states committed by another leader while
		// we were follower; start cold and refill from the store.
		w.ws.Reset()

		leaderCtx, cancel := context.WithCancel(ctx)
		lost := w.Elector.KeepAlive(leaderCtx)

		err = w.consumeAsLeader(leaderCtx, lost)

		cancel()

		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("Left consume loop: %v", err)
		}

		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := w.Elector.Release(releaseCtx); err != nil {
			logger.Warnf("Lease release failed: %v", err)
		}

		releaseCancel()

		w.setState(StateFollower)
	}

	w.setState(StateDraining)
	logger.Infof("Draining partition worker")
	w.setState(StateStopped)

	return nil
}

// consumeAsLeader resumes at the committed offset and runs the poll/flush
// loop until the context ends, the lease is lost, or a transient failure
// exhausts its retries. Uncommitted records are never skipped: leaving the
// loop resumes from the committed offset on the next leadership.
func (w *PartitionWorker) consumeAsLeader(ctx context.Context, lost <-chan struct{}) error {
	committed, ok, err := w.OffsetRepo.Get(ctx, w.Group, w.Topic, w.Partition)
	if err != nil {
		return err
	}

	next := int64(-1)
	if ok {
		next = committed + 1
	}

	poller, err := w.NewPoller(next)
	if err != nil {
		return err
	}
	defer poller.Close()

	var buffer []*kafka.Message

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lost:
			return cn.ErrLeaseLost
		default:
		}

		timeout := w.Policy.LongPoll
		if len(buffer) > 0 {
			timeout = w.Policy.MaxLatency
		}

		pollCtx, pollCancel := context.WithTimeout(ctx, timeout)
		messages, err := poller.Poll(pollCtx, w.Policy.MaxRecords-len(buffer))

		pollCancel()

		if err != nil {
			return err
		}

		buffer = append(buffer, messages...)

		if len(buffer) == 0 {
			continue
		}

		// Flush when the batch is full, or when a poll window closed with a
		// non-empty buffer (covers both the short-timeout expiry and the
		// records consumed before a quiet long poll).
		if len(buffer) < w.Policy.MaxRecords && len(messages) > 0 {
			continue
		}

		if err := w.flush(ctx, lost, buffer); err != nil {
			return err
		}

		buffer = nil
	}
}

// flush commits one batch, retrying transient failures with exponential
// backoff. Lease loss aborts immediately with no offset advance.
func (w *PartitionWorker) flush(ctx context.Context, lost <-chan struct{}, buffer []*kafka.Message) error {
	consumed := &command.ConsumedBatch{
		Group:          w.Group,
		Topic:          w.Topic,
		LeasePartition: LeasePartition(w.Topic, w.Partition),
		HolderID:       w.Elector.HolderID,
		Partition:      w.Partition,
		Messages:       buffer,
	}

	interval := w.Retry.InitialInterval

	for attempt := 0; ; attempt++ {
		batchCtx, cancel := context.WithTimeout(ctx, w.Policy.Deadline)

		done := make(chan struct{})
		go func() {
			select {
			case <-lost:
				cancel()
			case <-done:
			}
		}()

		result, err := w.UseCase.ProcessBatch(batchCtx, w.ws, consumed)

		close(done)
		cancel()

		if err == nil {
			if w.SnapshotSink != nil && len(result.Snapshots) > 0 {
				w.SnapshotSink(result.Snapshots)
			}

			w.Logger.Debugf("Committed batch of %d records at offset %d (applied=%d rejected=%d duplicates=%d malformed=%d)",
				len(buffer), result.Offset, result.Applied, result.Rejected, result.Duplicates, result.Malformed)

			return nil
		}

		if errors.Is(err, cn.ErrLeaseLost) {
			return cn.ErrLeaseLost
		}

		select {
		case <-lost:
			return cn.ErrLeaseLost
		default:
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt >= w.Retry.MaxRetries {
			return err
		}

		w.Logger.Warnf("Batch commit attempt %d failed, backing off %s: %v", attempt+1, interval, err)

		sleepCtx(ctx, interval)

		interval = interval * time.Duration(w.Retry.BackoffFactor) / 100
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
