package bootstrap

import (
	"context"
	"hash/fnv"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	redisadapter "github.com/brianYuDesign/balance-engine/internal/adapters/redis"
	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
)

// shardQueueDepth bounds each shard channel; when a shard backs up the
// producer drops the entry. Best effort by contract: the relational store is
// authoritative and readers fall back to it.
const shardQueueDepth = 1024

// SnapshotUpdater fans freshly committed balances out to the external cache
// under last-writer-wins. Entries are sharded by account id so one key is
// always written by the same worker, and each worker batches writes over a
// short interval into one pipelined flush.
type SnapshotUpdater struct {
	Repo          redisadapter.Repository
	WorkerCount   int
	FlushInterval time.Duration
	Logger        mlog.Logger

	shards []chan mmodel.SnapshotEntry
	once   sync.Once
}

// NewSnapshotUpdater creates a new instance of SnapshotUpdater.
func NewSnapshotUpdater(repo redisadapter.Repository, workerCount int, flushInterval time.Duration, logger mlog.Logger) *SnapshotUpdater {
	u := &SnapshotUpdater{
		Repo:          repo,
		WorkerCount:   workerCount,
		FlushInterval: flushInterval,
		Logger:        logger,
	}

	u.shards = make([]chan mmodel.SnapshotEntry, workerCount)
	for i := range u.shards {
		u.shards[i] = make(chan mmodel.SnapshotEntry, shardQueueDepth)
	}

	return u
}

func (u *SnapshotUpdater) shardFor(accountID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))

	return int(h.Sum32()) % u.WorkerCount
}

// Submit routes committed balances to their shard workers. Never blocks the
// commit path: a full shard drops the entry.
func (u *SnapshotUpdater) Submit(entries []mmodel.SnapshotEntry) {
	for _, entry := range entries {
		select {
		case u.shards[u.shardFor(entry.Balance.AccountID)] <- entry:
		default:
			u.Logger.Warnf("Snapshot shard full, dropping %s/%s", entry.Balance.AccountID, entry.Balance.Currency)
		}
	}
}

// Run starts the shard workers and blocks until shutdown. On shutdown each
// worker flushes what it buffered and exits.
func (u *SnapshotUpdater) Run(_ *pkg.Launcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u.Logger.Infof("Starting %d snapshot shard worker(s)", u.WorkerCount)

	var wg sync.WaitGroup

	for i := range u.shards {
		wg.Add(1)

		go func(shard int) {
			defer wg.Done()
			u.runShard(ctx, shard)
		}(i)
	}

	wg.Wait()

	u.Logger.Info("SnapshotUpdater: drained")

	return nil
}

func (u *SnapshotUpdater) runShard(ctx context.Context, shard int) {
	ticker := time.NewTicker(u.FlushInterval)
	defer ticker.Stop()

	// Keyed by (account, currency): within one flush window only the newest
	// state per pair is worth writing, the script drops the rest anyway.
	buffer := make(map[string]mmodel.SnapshotEntry)

	flush := func() {
		if len(buffer) == 0 {
			return
		}

		entries := make([]mmodel.SnapshotEntry, 0, len(buffer))
		for _, entry := range buffer {
			entries = append(entries, entry)
		}

		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := u.Repo.Flush(flushCtx, entries); err != nil {
			u.Logger.Warnf("Snapshot flush failed on shard %d: %v", shard, err)
		}

		clear(buffer)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case entry := <-u.shards[shard]:
			key := entry.Balance.AccountID + "|" + entry.Balance.Currency
			if prev, ok := buffer[key]; !ok || entry.Timestamp > prev.Timestamp {
				buffer[key] = entry
			}

		case <-ticker.C:
			flush()
		}
	}
}
