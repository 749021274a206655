package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/verdantlabs/verdant/internal/ledger/domain"
	"github.com/verdantlabs/verdant/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, attempt *domain.Attempt) error {
	return conn.WithContext(ctx).Create(attempt).Error
}

func (r *repo) FindForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Attempt, error) {
	var attempt domain.Attempt
	err := conn.WithContext(ctx).Raw(
		`SELECT id, user_id, action, cost, funding_source, status, metadata, created_at, refunded_at
		 FROM attempts
		 WHERE id = ?`+db.LockingClause(conn),
		id,
	).Scan(&attempt).Error
	if err != nil {
		return nil, err
	}
	if attempt.ID == 0 {
		return nil, nil
	}
	return &attempt, nil
}

func (r *repo) MarkRefunded(ctx context.Context, conn *gorm.DB, id snowflake.ID, at time.Time) error {
	result := conn.WithContext(ctx).Exec(
		`UPDATE attempts
		 SET status = ?,
		     refunded_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusRefunded,
		at,
		id,
		domain.StatusDebited,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}
