package balance

import (
	"context"
	"time"

	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/shopspring/decimal"
)

// Repository provides read access to committed balances. All writes go
// through the batch commit repository; the working set and the query service
// only ever read here.
type Repository interface {
	Find(ctx context.Context, accountID, currency string) (*mmodel.Balance, error)
	FindAllByAccount(ctx context.Context, accountID string) ([]*mmodel.Balance, error)
}

// BalancePostgreSQLModel represents the balance row shape in postgres.
type BalancePostgreSQLModel struct {
	AccountID    string
	CurrencyCode string
	Available    decimal.Decimal
	Frozen       decimal.Decimal
	Version      int64
	UpdatedAt    time.Time
}

// ToEntity converts a BalancePostgreSQLModel to the domain entity.
func (m *BalancePostgreSQLModel) ToEntity() *mmodel.Balance {
	return &mmodel.Balance{
		AccountID: m.AccountID,
		Currency:  m.CurrencyCode,
		Available: m.Available,
		Frozen:    m.Frozen,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
}
