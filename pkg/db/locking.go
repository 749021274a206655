package db

import "gorm.io/gorm"

// LockingClause returns the suffix that takes an exclusive row lock on the
// current dialect. SQLite has no FOR UPDATE syntax; its writers are
// serialized by the engine itself, so the suffix is empty there.
func LockingClause(tx *gorm.DB) string {
	if tx == nil || tx.Dialector == nil {
		return ""
	}
	if tx.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
