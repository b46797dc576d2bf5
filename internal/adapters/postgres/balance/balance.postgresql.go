package balance

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/brianYuDesign/balance-engine/pkg"
	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mpostgres"
	sqrl "github.com/Masterminds/squirrel"
)

// BalancePostgreSQLRepository is a Postgresql-specific implementation of the balance Repository.
type BalancePostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
}

// NewBalancePostgreSQLRepository returns a new instance of BalancePostgreSQLRepository using the given Postgres connection.
func NewBalancePostgreSQLRepository(pc *mpostgres.PostgresConnection) *BalancePostgreSQLRepository {
	r := &BalancePostgreSQLRepository{
		connection: pc,
		tableName:  "balances",
	}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Find retrieves the balance of one (account, currency) pair.
func (r *BalancePostgreSQLRepository) Find(ctx context.Context, accountID, currency string) (*mmodel.Balance, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return nil, err
	}

	record := &BalancePostgreSQLModel{}

	row := db.QueryRowContext(ctx,
		`SELECT account_id, currency_code, available, frozen, version, updated_at FROM balances WHERE account_id = $1 AND currency_code = $2`,
		accountID, currency)
	if err := row.Scan(
		&record.AccountID,
		&record.CurrencyCode,
		&record.Available,
		&record.Frozen,
		&record.Version,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(cn.ErrBalanceNotFound, reflect.TypeOf(mmodel.Balance{}).Name())
		}

		return nil, err
	}

	return record.ToEntity(), nil
}

// FindAllByAccount retrieves every currency balance held by one account.
func (r *BalancePostgreSQLRepository) FindAllByAccount(ctx context.Context, accountID string) ([]*mmodel.Balance, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return nil, err
	}

	findAll := sqrl.Select("account_id", "currency_code", "available", "frozen", "version", "updated_at").
		From(r.tableName).
		Where(sqrl.Expr("account_id = ?", accountID)).
		OrderBy("currency_code").
		PlaceholderFormat(sqrl.Dollar)

	query, args, err := findAll.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*mmodel.Balance

	for rows.Next() {
		var record BalancePostgreSQLModel
		if err := rows.Scan(
			&record.AccountID,
			&record.CurrencyCode,
			&record.Available,
			&record.Frozen,
			&record.Version,
			&record.UpdatedAt,
		); err != nil {
			return nil, err
		}

		balances = append(balances, record.ToEntity())
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return balances, nil
}
