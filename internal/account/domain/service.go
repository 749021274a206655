package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Service interface {
	// Register creates the user plus its balance and token account rows in
	// one transaction, seeding the configured trial grant.
	Register(ctx context.Context, req RegisterRequest) (*User, error)

	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
}
