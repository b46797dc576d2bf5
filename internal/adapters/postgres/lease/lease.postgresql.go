package lease

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/brianYuDesign/balance-engine/pkg/mpostgres"
)

// LeasePostgreSQLRepository is a Postgresql-specific implementation of the lease Repository.
type LeasePostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
}

// NewLeasePostgreSQLRepository returns a new instance of LeasePostgreSQLRepository using the given Postgres connection.
func NewLeasePostgreSQLRepository(pc *mpostgres.PostgresConnection) *LeasePostgreSQLRepository {
	r := &LeasePostgreSQLRepository{
		connection: pc,
		tableName:  "leader_lease",
	}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Acquire takes the partition lease when it is free, expired, or already held
// by holderID. The upsert only rewrites the row when the stored lease expired
// or belongs to the same holder, so a live holder is never displaced by
// another; zero affected rows means someone else holds it.
func (r *LeasePostgreSQLRepository) Acquire(ctx context.Context, partition, holderID string, ttl time.Duration) (bool, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO leader_lease (partition, holder_id, acquired_at, expires_at)
         VALUES ($1, $2, now(), now() + ($3 * interval '1 millisecond'))
         ON CONFLICT (partition) DO UPDATE
            SET holder_id = EXCLUDED.holder_id,
                acquired_at = EXCLUDED.acquired_at,
                expires_at = EXCLUDED.expires_at
          WHERE leader_lease.expires_at < now() OR leader_lease.holder_id = EXCLUDED.holder_id`,
		partition, holderID, ttl.Milliseconds())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// Renew extends the lease conditional on still holding it. Zero affected rows
// means the lease expired and possibly rolled to another holder.
func (r *LeasePostgreSQLRepository) Renew(ctx context.Context, partition, holderID string, ttl time.Duration) (bool, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE leader_lease
            SET expires_at = now() + ($1 * interval '1 millisecond')
          WHERE partition = $2 AND holder_id = $3 AND expires_at > now()`,
		ttl.Milliseconds(), partition, holderID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// Release deletes the lease row only when still held by this holder.
func (r *LeasePostgreSQLRepository) Release(ctx context.Context, partition, holderID string) error {
	db, err := r.connection.GetDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`DELETE FROM leader_lease WHERE partition = $1 AND holder_id = $2`,
		partition, holderID)

	return err
}

// Find loads the current lease row of a partition, or nil when none exists.
func (r *LeasePostgreSQLRepository) Find(ctx context.Context, partition string) (*Lease, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return nil, err
	}

	var lease Lease

	row := db.QueryRowContext(ctx,
		`SELECT partition, holder_id, acquired_at, expires_at FROM leader_lease WHERE partition = $1`,
		partition)
	if err := row.Scan(&lease.Partition, &lease.HolderID, &lease.AcquiredAt, &lease.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &lease, nil
}
