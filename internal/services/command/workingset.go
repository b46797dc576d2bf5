package command

import (
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	lru "github.com/hashicorp/golang-lru/v2"
)

// WorkingSet is the per-partition map of recently-touched balances. It is a
// write-through read cache: populated from the store on miss and updated to
// the post-commit state after each successful batch. The partition lease
// guarantees a single writer, so no locking is needed beyond what the LRU
// already does; the LRU bound keeps large partitions from pinning every pair.
type WorkingSet struct {
	cache *lru.Cache[string, mmodel.Balance]
}

// NewWorkingSet creates a working set bounded to size pairs.
func NewWorkingSet(size int) (*WorkingSet, error) {
	cache, err := lru.New[string, mmodel.Balance](size)
	if err != nil {
		return nil, err
	}

	return &WorkingSet{cache: cache}, nil
}

func workingSetKey(accountID, currency string) string {
	return accountID + "|" + currency
}

// Get returns the cached balance of one (account, currency) pair.
func (ws *WorkingSet) Get(accountID, currency string) (mmodel.Balance, bool) {
	return ws.cache.Get(workingSetKey(accountID, currency))
}

// Put caches the post-commit state of one pair.
func (ws *WorkingSet) Put(balance mmodel.Balance) {
	ws.cache.Add(workingSetKey(balance.AccountID, balance.Currency), balance)
}

// Len returns the number of cached pairs.
func (ws *WorkingSet) Len() int {
	return ws.cache.Len()
}

// Reset drops every cached pair. Used when a worker loses and re-acquires
// leadership: the store is re-read on demand afterwards.
func (ws *WorkingSet) Reset() {
	ws.cache.Purge()
}
