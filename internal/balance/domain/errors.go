package domain

import "errors"

var (
	ErrUnknownUser         = errors.New("unknown_user")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidStatus       = errors.New("invalid_subscription_status")
)
