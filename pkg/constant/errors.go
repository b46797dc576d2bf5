package constant

import "errors"

// Business error codes. The code is the error identity; titles and messages
// are attached by pkg.ValidateBusinessError.
var (
	ErrDuplicateTransaction    = errors.New("0001")
	ErrInsufficientFunds       = errors.New("0002")
	ErrInsufficientFrozenFunds = errors.New("0003")
	ErrBalanceNotFound         = errors.New("0004")
	ErrInvalidMutation         = errors.New("0005")
	ErrLeaseLost               = errors.New("0006")
	ErrTransient               = errors.New("0007")
	ErrDeadLettered            = errors.New("0008")
	ErrAccountNotFound         = errors.New("0009")
	ErrMalformedRecord         = errors.New("0010")
	ErrInternalServer          = errors.New("0011")
)
