package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/lease"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLeaseRepo struct {
	mu sync.Mutex

	acquireOK  bool
	acquireErr error

	// renewResults is consumed one per Renew call; when exhausted the last
	// value repeats.
	renewResults []renewResult

	acquires int
	renews   int
	releases int
}

type renewResult struct {
	held bool
	err  error
}

func (s *stubLeaseRepo) Acquire(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.acquires++

	return s.acquireOK, s.acquireErr
}

func (s *stubLeaseRepo) Renew(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.renews++

	if len(s.renewResults) == 0 {
		return true, nil
	}

	result := s.renewResults[0]
	if len(s.renewResults) > 1 {
		s.renewResults = s.renewResults[1:]
	}

	return result.held, result.err
}

func (s *stubLeaseRepo) Release(_ context.Context, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releases++

	return nil
}

func (s *stubLeaseRepo) Find(_ context.Context, _ string) (*lease.Lease, error) {
	return nil, nil
}

func (s *stubLeaseRepo) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.acquires, s.renews, s.releases
}

func newElector(repo lease.Repository) *LeaderElector {
	return &LeaderElector{
		LeaseRepo:     repo,
		Partition:     "balance-changes-0",
		HolderID:      "worker-a",
		TTL:           100 * time.Millisecond,
		RenewInterval: 5 * time.Millisecond,
		Logger:        &mlog.NoneLogger{},
	}
}

func TestKeepAliveSignalsLossWhenRenewReportsNotHeld(t *testing.T) {
	repo := &stubLeaseRepo{renewResults: []renewResult{{held: false}}}
	elector := newElector(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lost := elector.KeepAlive(ctx)

	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("expected lease loss signal")
	}
}

func TestKeepAliveToleratesErrorsUnderBudget(t *testing.T) {
	repo := &stubLeaseRepo{renewResults: []renewResult{
		{err: errors.New("db hiccup")},
		{err: errors.New("db hiccup")},
		{held: true},
	}}
	elector := newElector(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lost := elector.KeepAlive(ctx)

	select {
	case <-lost:
		t.Fatal("lease should survive transient renew errors under the budget")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestKeepAliveSignalsLossAfterErrorBudget(t *testing.T) {
	repo := &stubLeaseRepo{renewResults: []renewResult{
		{err: errors.New("db down")},
	}}
	elector := newElector(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lost := elector.KeepAlive(ctx)

	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("expected lease loss after exhausting the renew error budget")
	}

	_, renews, _ := repo.counts()
	require.GreaterOrEqual(t, renews, renewFailureBudget)
}

func TestKeepAliveStopsOnContextCancel(t *testing.T) {
	repo := &stubLeaseRepo{}
	elector := newElector(repo)

	ctx, cancel := context.WithCancel(context.Background())

	lost := elector.KeepAlive(ctx)

	cancel()

	select {
	case <-lost:
		t.Fatal("cancellation is not lease loss")
	case <-time.After(50 * time.Millisecond):
	}

	assert.NoError(t, elector.Release(context.Background()))
}
