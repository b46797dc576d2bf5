package batch

import (
	"context"

	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
)

// Item is one processed record heading into a batch commit.
//
// Every item carries a terminal ledger entry. Only the last successful item
// per (account, currency) is marked Final and additionally writes the balance
// row: earlier items of the same pair already chained into its after-state in
// memory, and rejected items leave the balance unchanged.
type Item struct {
	Entry        *mmodel.LedgerEntry
	VersionAfter int64
	PairCreated  bool
	Final        bool
	Success      bool
}

// Commit is a whole batch bound for one relational transaction, fenced by the
// partition lease and advancing the consumer offset to the batch's last record.
type Commit struct {
	LeasePartition string
	HolderID       string
	Group          string
	Topic          string
	Partition      int32
	Offset         int64
	Items          []Item
}

// Repository applies a whole batch atomically. It returns
// constant.ErrLeaseLost when the fence check fails at commit time.
type Repository interface {
	Commit(ctx context.Context, commit *Commit) error
}
