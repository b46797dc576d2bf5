package ledger

import (
	"context"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mpostgres"
	"github.com/lib/pq"
)

// LedgerPostgreSQLRepository is a Postgresql-specific implementation of the ledger Repository.
type LedgerPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
}

// NewLedgerPostgreSQLRepository returns a new instance of LedgerPostgreSQLRepository using the given Postgres connection.
func NewLedgerPostgreSQLRepository(pc *mpostgres.PostgresConnection) *LedgerPostgreSQLRepository {
	r := &LedgerPostgreSQLRepository{
		connection: pc,
		tableName:  "ledger",
	}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// ExistsTerminal reports whether the transaction id already has a terminal ledger entry.
func (r *LedgerPostgreSQLRepository) ExistsTerminal(ctx context.Context, transactionID string) (bool, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return false, err
	}

	var exists bool

	row := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger WHERE transaction_id = $1 AND status IN ($2, $3))`,
		transactionID, cn.SUCCESS, cn.FAILED)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// FindTerminalByTransactionIDs loads the terminal entries among the given
// transaction ids, keyed by transaction id. Missing ids are simply absent.
func (r *LedgerPostgreSQLRepository) FindTerminalByTransactionIDs(ctx context.Context, transactionIDs []string) (map[string]*mmodel.LedgerEntry, error) {
	entries := make(map[string]*mmodel.LedgerEntry, len(transactionIDs))

	if len(transactionIDs) == 0 {
		return entries, nil
	}

	db, err := r.connection.GetDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT transaction_id, account_id, currency_code, kind, amount,
                available_before, available_after, frozen_before, frozen_after,
                status, error_message, created_at
           FROM ledger
          WHERE transaction_id = ANY($1) AND status IN ($2, $3)`,
		pq.Array(transactionIDs), cn.SUCCESS, cn.FAILED)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry mmodel.LedgerEntry
		if err := rows.Scan(
			&entry.TransactionID,
			&entry.AccountID,
			&entry.Currency,
			&entry.Kind,
			&entry.Amount,
			&entry.AvailableBefore,
			&entry.AvailableAfter,
			&entry.FrozenBefore,
			&entry.FrozenAfter,
			&entry.Status,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}

		e := entry
		entries[entry.TransactionID] = &e
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
