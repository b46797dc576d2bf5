package offset

import (
	"context"
	"database/sql"
	"errors"

	"github.com/brianYuDesign/balance-engine/pkg/mpostgres"
)

// OffsetPostgreSQLRepository is a Postgresql-specific implementation of the offset Repository.
type OffsetPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
}

// NewOffsetPostgreSQLRepository returns a new instance of OffsetPostgreSQLRepository using the given Postgres connection.
func NewOffsetPostgreSQLRepository(pc *mpostgres.PostgresConnection) *OffsetPostgreSQLRepository {
	r := &OffsetPostgreSQLRepository{
		connection: pc,
		tableName:  "consumer_offset",
	}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Get returns the committed offset for (group, topic, partition). The second
// return reports whether an offset was ever committed.
func (r *OffsetPostgreSQLRepository) Get(ctx context.Context, group, topic string, partition int32) (int64, bool, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return 0, false, err
	}

	var committed int64

	row := db.QueryRowContext(ctx,
		`SELECT committed_offset FROM consumer_offset WHERE consumer_group = $1 AND topic = $2 AND partition = $3`,
		group, topic, partition)
	if err := row.Scan(&committed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, err
	}

	return committed, true, nil
}
