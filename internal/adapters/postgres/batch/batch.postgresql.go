package batch

import (
	"context"
	"database/sql"
	"errors"
	"time"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mpostgres"
	sqrl "github.com/Masterminds/squirrel"
)

// BatchPostgreSQLRepository is a Postgresql-specific implementation of the batch Repository.
//
// One Commit call is one short transaction: a row-lock fence on the lease, a
// staging insert, one set-based balance update, one insert-missing for
// first-touch pairs, one bulk ledger insert and one offset upsert. Round
// trips stay O(1) in the batch size.
type BatchPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

// NewBatchPostgreSQLRepository returns a new instance of BatchPostgreSQLRepository using the given Postgres connection.
func NewBatchPostgreSQLRepository(pc *mpostgres.PostgresConnection) *BatchPostgreSQLRepository {
	r := &BatchPostgreSQLRepository{
		connection: pc,
	}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Commit applies the whole batch in one read-committed transaction.
func (r *BatchPostgreSQLRepository) Commit(ctx context.Context, commit *Commit) error {
	db, err := r.connection.GetDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback() }()

	if err := r.fence(ctx, tx, commit.LeasePartition, commit.HolderID); err != nil {
		return err
	}

	if len(commit.Items) > 0 {
		if err := r.stage(ctx, tx, commit.Items); err != nil {
			return err
		}

		if err := r.applyBalances(ctx, tx); err != nil {
			return err
		}

		if err := r.insertLedger(ctx, tx); err != nil {
			return err
		}
	}

	if err := r.advanceOffset(ctx, tx, commit); err != nil {
		return err
	}

	return tx.Commit()
}

// fence asserts, under a row lock held to commit, that the lease still belongs
// to the committer and has not expired.
func (r *BatchPostgreSQLRepository) fence(ctx context.Context, tx *sql.Tx, partition, holderID string) error {
	var (
		holder    string
		expiresAt time.Time
	)

	row := tx.QueryRowContext(ctx,
		`SELECT holder_id, expires_at FROM leader_lease WHERE partition = $1 FOR UPDATE`,
		partition)
	if err := row.Scan(&holder, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cn.ErrLeaseLost
		}

		return err
	}

	if holder != holderID || !expiresAt.After(time.Now()) {
		return cn.ErrLeaseLost
	}

	return nil
}

func (r *BatchPostgreSQLRepository) stage(ctx context.Context, tx *sql.Tx, items []Item) error {
	_, err := tx.ExecContext(ctx,
		`CREATE TEMP TABLE batch_staging (
            transaction_id   varchar(128) NOT NULL,
            account_id       varchar(64) NOT NULL,
            currency_code    varchar(16) NOT NULL,
            kind             varchar(16) NOT NULL,
            amount           numeric(36,18) NOT NULL,
            available_before numeric(36,18) NOT NULL,
            available_after  numeric(36,18) NOT NULL,
            frozen_before    numeric(36,18) NOT NULL,
            frozen_after     numeric(36,18) NOT NULL,
            version_after    bigint NOT NULL,
            status           varchar(16) NOT NULL,
            error_message    text,
            metadata         jsonb,
            pair_created     boolean NOT NULL,
            is_final         boolean NOT NULL,
            is_success       boolean NOT NULL
        ) ON COMMIT DROP`)
	if err != nil {
		return err
	}

	insert := sqrl.Insert("batch_staging").
		Columns("transaction_id", "account_id", "currency_code", "kind", "amount",
			"available_before", "available_after", "frozen_before", "frozen_after",
			"version_after", "status", "error_message", "metadata",
			"pair_created", "is_final", "is_success").
		PlaceholderFormat(sqrl.Dollar)

	for _, item := range items {
		entry := item.Entry
		insert = insert.Values(
			entry.TransactionID,
			entry.AccountID,
			entry.Currency,
			entry.Kind,
			entry.Amount,
			entry.AvailableBefore,
			entry.AvailableAfter,
			entry.FrozenBefore,
			entry.FrozenAfter,
			item.VersionAfter,
			entry.Status,
			entry.ErrorMessage,
			entry.Metadata,
			item.PairCreated,
			item.Final,
			item.Success,
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)

	return err
}

// applyBalances writes the final after-state of every touched pair. The
// non-negativity predicate mirrors the table CHECK constraints so an invalid
// row can never partially apply.
func (r *BatchPostgreSQLRepository) applyBalances(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE balances b
            SET available = s.available_after,
                frozen = s.frozen_after,
                version = s.version_after,
                updated_at = now()
           FROM batch_staging s
          WHERE b.account_id = s.account_id
            AND b.currency_code = s.currency_code
            AND s.is_final
            AND s.is_success
            AND NOT s.pair_created
            AND s.available_after >= 0
            AND s.frozen_after >= 0`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (account_id, currency_code, available, frozen, version, updated_at)
         SELECT s.account_id, s.currency_code, s.available_after, s.frozen_after, s.version_after, now()
           FROM batch_staging s
          WHERE s.is_final
            AND s.is_success
            AND s.pair_created
            AND s.available_after >= 0
            AND s.frozen_after >= 0
         ON CONFLICT (account_id, currency_code) DO NOTHING`)

	return err
}

// insertLedger records one terminal row per mutation. The on-conflict no-op is
// redundant safety over the transaction id uniqueness: a replayed record that
// slipped past dedup cannot clobber the earlier terminal state.
func (r *BatchPostgreSQLRepository) insertLedger(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger (transaction_id, account_id, currency_code, kind, amount,
                             available_before, available_after, frozen_before, frozen_after,
                             status, error_message, metadata, created_at)
         SELECT s.transaction_id, s.account_id, s.currency_code, s.kind, s.amount,
                s.available_before, s.available_after, s.frozen_before, s.frozen_after,
                s.status, s.error_message, s.metadata, now()
           FROM batch_staging s
         ON CONFLICT (transaction_id) DO NOTHING`)

	return err
}

func (r *BatchPostgreSQLRepository) advanceOffset(ctx context.Context, tx *sql.Tx, commit *Commit) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO consumer_offset (consumer_group, topic, partition, committed_offset, updated_at)
         VALUES ($1, $2, $3, $4, now())
         ON CONFLICT (consumer_group, topic, partition) DO UPDATE
            SET committed_offset = GREATEST(consumer_offset.committed_offset, EXCLUDED.committed_offset),
                updated_at = now()`,
		commit.Group, commit.Topic, commit.Partition, commit.Offset)

	return err
}
