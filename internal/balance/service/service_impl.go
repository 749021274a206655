package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/verdantlabs/verdant/internal/balance/domain"
	obsmetrics "github.com/verdantlabs/verdant/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("balance.service"),
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) GetBalance(ctx context.Context, userID snowflake.ID) (*domain.Snapshot, error) {
	if userID == 0 {
		return nil, domain.ErrUnknownUser
	}
	snap, err := s.repo.Snapshot(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrUnknownUser
	}
	return snap, nil
}

func (s *Service) CreditTokens(ctx context.Context, userID snowflake.ID, amount int64) (*domain.Snapshot, error) {
	if userID == 0 {
		return nil, domain.ErrUnknownUser
	}
	if amount < 1 {
		return nil, domain.ErrInvalidAmount
	}

	var snap *domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.SnapshotForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrUnknownUser
		}
		if err := s.repo.AddPurchasedTokens(ctx, tx, userID, amount); err != nil {
			return err
		}
		snap, err = s.repo.Snapshot(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordTokensCredited(ctx, amount)
	s.log.Info("tokens credited",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.Int64("token_balance", snap.TokenBalance),
	)
	return snap, nil
}

func (s *Service) SetSubscriptionStatus(ctx context.Context, userID snowflake.ID, status domain.SubscriptionStatus) (*domain.Snapshot, error) {
	if userID == 0 {
		return nil, domain.ErrUnknownUser
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var snap *domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetSubscriptionStatus(ctx, tx, userID, status); err != nil {
			return err
		}
		var err error
		snap, err = s.repo.Snapshot(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription status updated",
		zap.String("user_id", userID.String()),
		zap.String("status", string(status)),
	)
	return snap, nil
}
