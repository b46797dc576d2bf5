package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotRepoStub struct {
	mu      sync.Mutex
	flushes [][]mmodel.SnapshotEntry
}

func (s *snapshotRepoStub) Flush(_ context.Context, entries []mmodel.SnapshotEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushes = append(s.flushes, entries)

	return nil
}

func (s *snapshotRepoStub) Get(context.Context, string, string) (*mmodel.Balance, error) {
	return nil, nil
}

func (s *snapshotRepoStub) flushed() [][]mmodel.SnapshotEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]mmodel.SnapshotEntry(nil), s.flushes...)
}

func TestSnapshotUpdaterShardsByAccount(t *testing.T) {
	updater := NewSnapshotUpdater(&snapshotRepoStub{}, 4, time.Second, &mlog.NoneLogger{})

	first := updater.shardFor("account-1")

	for i := 0; i < 10; i++ {
		assert.Equal(t, first, updater.shardFor("account-1"))
	}

	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 4)
}

func TestSnapshotUpdaterKeepsNewestPerPair(t *testing.T) {
	repo := &snapshotRepoStub{}
	updater := NewSnapshotUpdater(repo, 1, 20*time.Millisecond, &mlog.NoneLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		updater.runShard(ctx, 0)
	}()

	balance := mmodel.Balance{AccountID: "1", Currency: "USDT", Available: decimal.NewFromInt(1)}

	updater.Submit([]mmodel.SnapshotEntry{
		{Balance: balance, Timestamp: 1},
		{Balance: mmodel.Balance{AccountID: "1", Currency: "USDT", Available: decimal.NewFromInt(2)}, Timestamp: 2},
	})

	require.Eventually(t, func() bool {
		return len(repo.flushed()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	entries := repo.flushed()[0]
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Timestamp)
	assert.True(t, entries[0].Balance.Available.Equal(decimal.NewFromInt(2)))
}
