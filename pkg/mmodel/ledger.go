package mmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is the terminal record of one mutation's outcome, uniquely
// keyed by TransactionID. It is the idempotency substrate of the pipeline:
// a replayed record whose transaction id already has a terminal entry is a
// no-op.
type LedgerEntry struct {
	TransactionID   string          `json:"transactionId"`
	AccountID       string          `json:"accountId"`
	Currency        string          `json:"currency"`
	Kind            string          `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	AvailableBefore decimal.Decimal `json:"availableBefore"`
	AvailableAfter  decimal.Decimal `json:"availableAfter"`
	FrozenBefore    decimal.Decimal `json:"frozenBefore"`
	FrozenAfter     decimal.Decimal `json:"frozenAfter"`
	Status          string          `json:"status"`
	ErrorMessage    *string         `json:"errorMessage,omitempty"`
	Metadata        []byte          `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}
