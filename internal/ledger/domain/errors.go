package domain

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrAttemptNotFound   = errors.New("attempt_not_found")
	ErrInvalidCost       = errors.New("invalid_cost")
)
