package query

import (
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/balance"
	"github.com/brianYuDesign/balance-engine/internal/adapters/redis"
)

// UseCase is a struct designed to encapsulate the balance read use cases.
type UseCase struct {
	// BalanceRepo provides an abstraction on top of the committed balances data source.
	BalanceRepo balance.Repository

	// SnapshotRepo provides an abstraction on top of the external snapshot cache.
	SnapshotRepo redis.Repository

	// SnapshotReadEnabled serves reads cache-first when set. Cached values are
	// bounded-stale by the snapshot flush interval; the store stays authoritative.
	SnapshotReadEnabled bool
}
