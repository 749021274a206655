package domain

import "errors"

var (
	ErrUserExists      = errors.New("user_exists")
	ErrUserNotFound    = errors.New("user_not_found")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
)
