package mmodel

import (
	"encoding/json"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/shopspring/decimal"
)

// MutationSchemaVersion is the wire schema discriminant of MutationRequest.
const MutationSchemaVersion = 1

// CreateMutationInput is a struct designed to encapsulate request create payload data.
type CreateMutationInput struct {
	TransactionID string          `json:"transactionId" validate:"required,max=128"`
	AccountID     string          `json:"accountId" validate:"required,max=64"`
	Currency      string          `json:"currency" validate:"required,max=16"`
	Kind          string          `json:"kind" validate:"required,oneof=deposit withdraw freeze unfreeze transfer"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Description   *string         `json:"description" validate:"omitempty,max=256"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// MutationRequest is the versioned record published to the balance-changes
// topic. The message key is PartitionKey so every mutation of one account
// lands on the same partition; EventID and TransactionID travel in headers too.
type MutationRequest struct {
	Schema        int             `json:"schema"`
	EventID       string          `json:"eventId"`
	TransactionID string          `json:"transactionId"`
	AccountID     string          `json:"accountId"`
	PartitionKey  string          `json:"partitionKey"`
	Currency      string          `json:"currency"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Description   *string         `json:"description,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Validate checks the invariants a record must satisfy before it is applied.
func (m *MutationRequest) Validate() error {
	if m.TransactionID == "" || m.AccountID == "" || m.Currency == "" {
		return cn.ErrInvalidMutation
	}

	if !cn.ValidKind(m.Kind) {
		return cn.ErrInvalidMutation
	}

	if !m.Amount.IsPositive() {
		return cn.ErrInvalidMutation
	}

	return nil
}

// ToRequest builds the wire record for an accepted input.
func (i *CreateMutationInput) ToRequest(eventID string) *MutationRequest {
	return &MutationRequest{
		Schema:        MutationSchemaVersion,
		EventID:       eventID,
		TransactionID: i.TransactionID,
		AccountID:     i.AccountID,
		PartitionKey:  i.AccountID,
		Currency:      i.Currency,
		Kind:          i.Kind,
		Amount:        i.Amount,
		Description:   i.Description,
		Metadata:      i.Metadata,
	}
}
