package ledger

import (
	"context"

	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
)

// Repository provides read access to ledger entries. Writes happen inside the
// batch commit; the outbox writer and the consumer only probe the idempotency
// index here.
type Repository interface {
	ExistsTerminal(ctx context.Context, transactionID string) (bool, error)
	FindTerminalByTransactionIDs(ctx context.Context, transactionIDs []string) (map[string]*mmodel.LedgerEntry, error)
}
