// Package domain contains the user account model owned by the credits engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the account row the ledger debits against. Authentication and
// email verification live upstream; this engine only needs identity and
// the seeded funding rows.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Email        string       `gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	PasswordHash string       `gorm:"type:text;not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
