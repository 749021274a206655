package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/verdantlabs/verdant/internal/account/domain"
	"github.com/verdantlabs/verdant/internal/account/password"
	"github.com/verdantlabs/verdant/internal/account/repository"
	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
	balancerepository "github.com/verdantlabs/verdant/internal/balance/repository"
	"github.com/verdantlabs/verdant/internal/config"
)

func newTestService(t *testing.T) (domain.Service, balancedomain.Repository, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := conn.AutoMigrate(&domain.User{}, &balancedomain.Balance{}, &balancedomain.TokenAccount{}); err != nil {
		t.Fatal(err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	balanceRepo := balancerepository.Provide()
	svc := NewService(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Credits:     config.NewStaticCreditsHolder(config.DefaultCreditsConfig()),
		BalanceRepo: balanceRepo,
		Repo:        repository.Provide(),
	})
	return svc, balanceRepo, conn
}

func TestRegister_SeedsTrialGrant(t *testing.T) {
	svc, balanceRepo, conn := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.RegisterRequest{
		Email:    "Jamie@Example.com",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)
	assert.Equal(t, "jamie@example.com", user.Email)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)

	snap, err := balanceRepo.Snapshot(ctx, conn, user.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), snap.TrialRemaining)
	assert.Equal(t, int64(0), snap.TokenBalance)
	assert.Equal(t, balancedomain.SubscriptionInactive, snap.SubscriptionStatus)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{
		Email:    "jamie@example.com",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)

	_, err = svc.Register(ctx, domain.RegisterRequest{
		Email:    "JAMIE@example.com",
		Password: "another password!",
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{Email: "not-an-email", Password: "long enough pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Register(ctx, domain.RegisterRequest{Email: "ok@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)
}

func TestGetByID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.RegisterRequest{
		Email:    "jamie@example.com",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)

	found, err := svc.GetByID(ctx, user.ID)
	assert.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = svc.GetByID(ctx, user.ID+1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRegister_PasswordRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)

	user, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email:    "jamie@example.com",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)

	assert.True(t, password.Verify("correct horse battery", user.PasswordHash))
	assert.False(t, password.Verify("wrong password!!", user.PasswordHash))
}
