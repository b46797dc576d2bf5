package outbox

import (
	"context"
	"errors"
	"time"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mpostgres"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// OutboxPostgreSQLRepository is a Postgresql-specific implementation of the outbox Repository.
type OutboxPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string

	// Backoff between sweeper attempts for one row, growing by
	// RetryBackoffFactor (percent, 200 = doubling) per attempt.
	RetryInitialInterval time.Duration
	RetryBackoffFactor   int
}

// NewOutboxPostgreSQLRepository returns a new instance of OutboxPostgreSQLRepository using the given Postgres connection.
func NewOutboxPostgreSQLRepository(pc *mpostgres.PostgresConnection, retryInitialInterval time.Duration, retryBackoffFactor int) *OutboxPostgreSQLRepository {
	r := &OutboxPostgreSQLRepository{
		connection:           pc,
		tableName:            "outbox",
		RetryInitialInterval: retryInitialInterval,
		RetryBackoffFactor:   retryBackoffFactor,
	}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Create inserts a pending outbox record. A unique violation on the
// transaction id surfaces as ErrDuplicateTransaction so the writer can
// reject the request with the distinguished duplicate kind.
func (r *OutboxPostgreSQLRepository) Create(ctx context.Context, record *Record) error {
	db, err := r.connection.GetDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO outbox (event_id, transaction_id, topic, partition_key, payload, status, retry_count, next_attempt_at, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, 0, now(), now())`,
		record.EventID,
		record.TransactionID,
		record.Topic,
		record.PartitionKey,
		record.Payload,
		cn.OutboxPending,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return cn.ErrDuplicateTransaction
		}

		return err
	}

	return nil
}

// MarkSent transitions a record to sent after a successful publication.
func (r *OutboxPostgreSQLRepository) MarkSent(ctx context.Context, eventID string) error {
	db, err := r.connection.GetDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE outbox SET status = $1, sent_at = now() WHERE event_id = $2`,
		cn.OutboxSent, eventID)

	return err
}

// MarkDeadLettered transitions a record to its terminal failed state. The
// sweeper calls it once the retry budget is exhausted and the payload has been
// routed to the DLQ topic, and for a row whose payload cannot be decoded.
func (r *OutboxPostgreSQLRepository) MarkDeadLettered(ctx context.Context, eventID string) error {
	db, err := r.connection.GetDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE outbox SET status = $1 WHERE event_id = $2`,
		cn.OutboxFailed, eventID)

	return err
}

// ClaimSweepable claims pending rows stuck past the threshold whose backoff
// window elapsed. The claim runs in one transaction with FOR UPDATE SKIP
// LOCKED and bumps retry_count plus the next attempt gate, so concurrent
// sweepers never double-publish the same row.
func (r *OutboxPostgreSQLRepository) ClaimSweepable(ctx context.Context, pendingOlderThan time.Duration, limit int) ([]*Record, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT event_id, transaction_id, topic, partition_key, payload, status, retry_count, next_attempt_at, created_at, sent_at
           FROM outbox
          WHERE status = $1
            AND created_at < now() - ($2 * interval '1 millisecond')
            AND next_attempt_at <= now()
          ORDER BY created_at
          LIMIT $3
            FOR UPDATE SKIP LOCKED`,
		cn.OutboxPending, pendingOlderThan.Milliseconds(), limit)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, limit)

	for rows.Next() {
		var record Record
		if err := rows.Scan(
			&record.EventID,
			&record.TransactionID,
			&record.Topic,
			&record.PartitionKey,
			&record.Payload,
			&record.Status,
			&record.RetryCount,
			&record.NextAttemptAt,
			&record.CreatedAt,
			&record.SentAt,
		); err != nil {
			rows.Close()
			return nil, err
		}

		records = append(records, &record)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, record := range records {
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox
                SET retry_count = retry_count + 1,
                    next_attempt_at = now() + ($1 * power($2 / 100.0, retry_count + 1) * interval '1 millisecond')
              WHERE event_id = $3`,
			r.RetryInitialInterval.Milliseconds(), r.RetryBackoffFactor, record.EventID); err != nil {
			return nil, err
		}

		record.RetryCount++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return records, nil
}
