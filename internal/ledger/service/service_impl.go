package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
	"github.com/verdantlabs/verdant/internal/clock"
	"github.com/verdantlabs/verdant/internal/config"
	"github.com/verdantlabs/verdant/internal/ledger/domain"
	obsmetrics "github.com/verdantlabs/verdant/internal/observability/metrics"
	"github.com/verdantlabs/verdant/internal/ratelimit"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Credits     *config.CreditsHolder
	Window      *ratelimit.Window
	BalanceRepo balancedomain.Repository
	Repo        domain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	credits     *config.CreditsHolder
	window      *ratelimit.Window
	balanceRepo balancedomain.Repository
	repo        domain.Repository
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		credits:     p.Credits,
		window:      p.Window,
		balanceRepo: p.BalanceRepo,
		repo:        p.Repo,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) AuthorizeAndDebit(ctx context.Context, req domain.DebitRequest) (*domain.DebitReceipt, error) {
	if req.UserID == 0 {
		return nil, balancedomain.ErrUnknownUser
	}
	cost := req.Cost
	if cost == 0 {
		cost = s.credits.Current().CostFor(req.Action)
	}
	if cost < 1 {
		return nil, domain.ErrInvalidCost
	}

	// The rate limit check commits on its own: an attempt counts against
	// the window even when the debit below is denied or rolled back.
	if err := s.window.CheckAndRecord(ctx, req.UserID); err != nil {
		if denied, ok := err.(*ratelimit.DeniedError); ok {
			s.obsMetrics.RecordRateLimitDenied(ctx, req.Action)
			s.log.Info("debit rate limited",
				zap.String("user_id", req.UserID.String()),
				zap.String("action", req.Action),
				zap.Duration("retry_after", denied.RetryAfter),
			)
		}
		return nil, err
	}

	var receipt *domain.DebitReceipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap, err := s.balanceRepo.SnapshotForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if snap == nil {
			return balancedomain.ErrUnknownUser
		}

		source, err := domain.Resolve(snap, cost)
		if err != nil {
			return err
		}

		switch source {
		case domain.SourceTrial:
			if err := s.balanceRepo.DebitTrial(ctx, tx, req.UserID, cost); err != nil {
				return err
			}
		case domain.SourceToken:
			if err := s.balanceRepo.DebitTokens(ctx, tx, req.UserID, cost); err != nil {
				return err
			}
		case domain.SourceSubscription:
			// Covered by the plan. No counter moves.
		}

		attempt := &domain.Attempt{
			ID:            s.genID.Generate(),
			UserID:        req.UserID,
			Action:        req.Action,
			Cost:          cost,
			FundingSource: source,
			Status:        domain.StatusDebited,
			Metadata:      req.Metadata,
			CreatedAt:     s.clock.Now(),
		}
		if err := s.repo.Insert(ctx, tx, attempt); err != nil {
			return err
		}

		after, err := s.balanceRepo.Snapshot(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		receipt = &domain.DebitReceipt{
			AttemptID: attempt.ID,
			Source:    source,
			Cost:      cost,
			Balance:   after,
		}
		return nil
	})
	if err != nil {
		if err == domain.ErrInsufficientFunds {
			s.obsMetrics.RecordDebitDenial(ctx, "insufficient_funds")
			s.log.Info("debit denied",
				zap.String("user_id", req.UserID.String()),
				zap.String("action", req.Action),
				zap.Int64("cost", cost),
			)
		}
		return nil, err
	}

	s.obsMetrics.RecordDebit(ctx, string(receipt.Source))
	s.log.Info("debit committed",
		zap.String("user_id", req.UserID.String()),
		zap.String("attempt_id", receipt.AttemptID.String()),
		zap.String("action", req.Action),
		zap.String("funding_source", string(receipt.Source)),
		zap.Int64("cost", cost),
	)
	return receipt, nil
}

func (s *Service) Refund(ctx context.Context, attemptID snowflake.ID) (*domain.RefundReceipt, error) {
	if attemptID == 0 {
		return nil, domain.ErrAttemptNotFound
	}

	var receipt *domain.RefundReceipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := s.repo.FindForUpdate(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if attempt == nil {
			return domain.ErrAttemptNotFound
		}

		snap, err := s.balanceRepo.Snapshot(ctx, tx, attempt.UserID)
		if err != nil {
			return err
		}

		if attempt.Status == domain.StatusRefunded {
			receipt = &domain.RefundReceipt{
				AttemptID:       attempt.ID,
				Source:          attempt.FundingSource,
				Cost:            attempt.Cost,
				AlreadyRefunded: true,
				Balance:         snap,
			}
			return nil
		}

		switch attempt.FundingSource {
		case domain.SourceTrial:
			if err := s.balanceRepo.CreditTrial(ctx, tx, attempt.UserID, attempt.Cost); err != nil {
				return err
			}
		case domain.SourceToken:
			if err := s.balanceRepo.CreditTokens(ctx, tx, attempt.UserID, attempt.Cost); err != nil {
				return err
			}
		case domain.SourceSubscription:
			// Nothing was deducted; only the status flips.
		}

		if err := s.repo.MarkRefunded(ctx, tx, attempt.ID, s.clock.Now()); err != nil {
			return err
		}

		after, err := s.balanceRepo.Snapshot(ctx, tx, attempt.UserID)
		if err != nil {
			return err
		}
		receipt = &domain.RefundReceipt{
			AttemptID: attempt.ID,
			Source:    attempt.FundingSource,
			Cost:      attempt.Cost,
			Balance:   after,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if receipt.AlreadyRefunded {
		s.obsMetrics.RecordRefundNoOp(ctx)
		s.log.Info("refund replayed",
			zap.String("attempt_id", receipt.AttemptID.String()),
		)
		return receipt, nil
	}

	s.obsMetrics.RecordRefund(ctx, string(receipt.Source))
	s.log.Info("refund committed",
		zap.String("attempt_id", receipt.AttemptID.String()),
		zap.String("funding_source", string(receipt.Source)),
		zap.Int64("cost", receipt.Cost),
	)
	return receipt, nil
}
