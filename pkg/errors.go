package pkg

import (
	"errors"
	"fmt"
	"strings"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
)

// EntityNotFoundError records an error indicating an entity was not found.
// You can use it to represent a database not found, cache not found or any other repository miss.
type EntityNotFoundError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e EntityNotFoundError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		if strings.TrimSpace(e.EntityType) != "" {
			return fmt.Sprintf("Entity %s not found", e.EntityType)
		}

		if e.Err != nil {
			return e.Err.Error()
		}

		return "entity not found"
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e EntityNotFoundError) Unwrap() error {
	return e.Err
}

// ValidationError records an error indicating a request carried invalid data.
type ValidationError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e ValidationError) Unwrap() error {
	return e.Err
}

// EntityConflictError records an error indicating an entity already exists in some repository.
type EntityConflictError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e EntityConflictError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e EntityConflictError) Unwrap() error {
	return e.Err
}

// UnprocessableOperationError records a request that is well formed but cannot
// be applied against the current state, e.g. a withdraw over the available funds.
type UnprocessableOperationError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e UnprocessableOperationError) Error() string {
	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e UnprocessableOperationError) Unwrap() error {
	return e.Err
}

// InternalServerError records a genuinely unexpected condition.
type InternalServerError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e InternalServerError) Error() string {
	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e InternalServerError) Unwrap() error {
	return e.Err
}

// ValidateInternalError validates the error and returns the appropriate internal error code, title and message.
func ValidateInternalError(err error, entityType string) error {
	return InternalServerError{
		EntityType: entityType,
		Code:       cn.ErrInternalServer.Error(),
		Title:      "Internal Server Error",
		Message:    "The server encountered an unexpected error. Please try again later or contact support.",
		Err:        err,
	}
}

// ValidateBusinessError validates the error and returns the appropriate business error code, title and message.
func ValidateBusinessError(err error, entityType string, args ...any) error {
	switch {
	case errors.Is(err, cn.ErrDuplicateTransaction):
		return EntityConflictError{
			EntityType: entityType,
			Code:       cn.ErrDuplicateTransaction.Error(),
			Title:      "Duplicate Transaction",
			Message:    fmt.Sprintf("A mutation with transaction id %s has already been accepted. Submit a new transaction id, or treat this response as the prior acceptance.", args...),
			Err:        err,
		}
	case errors.Is(err, cn.ErrInsufficientFunds):
		return UnprocessableOperationError{
			EntityType: entityType,
			Code:       cn.ErrInsufficientFunds.Error(),
			Title:      "Insufficient Funds",
			Message:    "The available balance does not cover the requested amount. The mutation was recorded as failed and will not be retried.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrInsufficientFrozenFunds):
		return UnprocessableOperationError{
			EntityType: entityType,
			Code:       cn.ErrInsufficientFrozenFunds.Error(),
			Title:      "Insufficient Frozen Funds",
			Message:    "The frozen balance does not cover the requested unfreeze amount. The mutation was recorded as failed and will not be retried.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrBalanceNotFound):
		return EntityNotFoundError{
			EntityType: entityType,
			Code:       cn.ErrBalanceNotFound.Error(),
			Title:      "Balance Not Found",
			Message:    "No balance was found for the given account and currency. Balances are created by the first deposit.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrAccountNotFound):
		return EntityNotFoundError{
			EntityType: entityType,
			Code:       cn.ErrAccountNotFound.Error(),
			Title:      "Account Not Found",
			Message:    "No account was found for the given ID. Ensure the account exists before submitting mutations.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrInvalidMutation):
		return ValidationError{
			EntityType: entityType,
			Code:       cn.ErrInvalidMutation.Error(),
			Title:      "Invalid Mutation",
			Message:    fmt.Sprintf("The mutation request is invalid: %s", args...),
			Err:        err,
		}
	case errors.Is(err, cn.ErrLeaseLost):
		return UnprocessableOperationError{
			EntityType: entityType,
			Code:       cn.ErrLeaseLost.Error(),
			Title:      "Lease Lost",
			Message:    "The partition lease is no longer held by this worker. The batch was rolled back.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrTransient):
		return InternalServerError{
			EntityType: entityType,
			Code:       cn.ErrTransient.Error(),
			Title:      "Transient Failure",
			Message:    "A dependency is temporarily unavailable. Retry with the same transaction id.",
			Err:        err,
		}
	case errors.Is(err, cn.ErrMalformedRecord):
		return ValidationError{
			EntityType: entityType,
			Code:       cn.ErrMalformedRecord.Error(),
			Title:      "Malformed Record",
			Message:    "The log record could not be decoded and was routed to the dead-letter topic.",
			Err:        err,
		}
	default:
		return err
	}
}
