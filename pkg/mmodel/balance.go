package mmodel

import (
	"time"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/shopspring/decimal"
)

// Balance is the committed state of one (account, currency) pair.
//
// Available and Frozen are exact decimals and never negative in any committed
// state. Version increments on every successful mutation and doubles as the
// logical timestamp for snapshot last-writer-wins resolution.
type Balance struct {
	AccountID string          `json:"accountId"`
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Frozen    decimal.Decimal `json:"frozen"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewZeroBalance returns the balance created lazily by the first deposit
// touching an unknown (account, currency).
func NewZeroBalance(accountID, currency string) Balance {
	return Balance{
		AccountID: accountID,
		Currency:  currency,
		Available: decimal.Zero,
		Frozen:    decimal.Zero,
		Version:   0,
	}
}

// Apply computes the state after a mutation of the given kind. It returns the
// new balance with Version incremented, or a business sentinel error when the
// mutation would drive available or frozen below zero. Transfers behave as a
// withdraw on this side; the counter-deposit is a separate mutation.
func (b Balance) Apply(kind string, amount decimal.Decimal) (Balance, error) {
	next := b
	next.Version = b.Version + 1

	switch kind {
	case cn.DEPOSIT:
		next.Available = b.Available.Add(amount)
	case cn.WITHDRAW, cn.TRANSFER:
		next.Available = b.Available.Sub(amount)
		if next.Available.IsNegative() {
			return b, cn.ErrInsufficientFunds
		}
	case cn.FREEZE:
		next.Available = b.Available.Sub(amount)
		next.Frozen = b.Frozen.Add(amount)

		if next.Available.IsNegative() {
			return b, cn.ErrInsufficientFunds
		}
	case cn.UNFREEZE:
		next.Available = b.Available.Add(amount)
		next.Frozen = b.Frozen.Sub(amount)

		if next.Frozen.IsNegative() {
			return b, cn.ErrInsufficientFrozenFunds
		}
	default:
		return b, cn.ErrInvalidMutation
	}

	return next, nil
}
