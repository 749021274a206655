package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountrepository "github.com/verdantlabs/verdant/internal/account/repository"
	accountservice "github.com/verdantlabs/verdant/internal/account/service"
	balancerepository "github.com/verdantlabs/verdant/internal/balance/repository"
	balanceservice "github.com/verdantlabs/verdant/internal/balance/service"
	"github.com/verdantlabs/verdant/internal/clock"
	"github.com/verdantlabs/verdant/internal/config"
	ledgerrepository "github.com/verdantlabs/verdant/internal/ledger/repository"
	ledgerservice "github.com/verdantlabs/verdant/internal/ledger/service"
	"github.com/verdantlabs/verdant/internal/migration"
	"github.com/verdantlabs/verdant/internal/ratelimit"
)

func newTestServer(t *testing.T, credits config.CreditsConfig) (*Server, *gin.Engine, *clock.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatal(err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	holder := config.NewStaticCreditsHolder(credits)
	logger := zap.NewNop()

	balanceRepo := balancerepository.Provide()
	window := ratelimit.NewWindow(ratelimit.WindowParams{
		DB:      conn,
		Log:     logger,
		GenID:   node,
		Clock:   fc,
		Credits: holder,
	})

	accountSvc := accountservice.NewService(accountservice.Params{
		DB:          conn,
		Log:         logger,
		GenID:       node,
		Credits:     holder,
		BalanceRepo: balanceRepo,
		Repo:        accountrepository.Provide(),
	})
	balanceSvc := balanceservice.NewService(balanceservice.Params{
		DB:   conn,
		Log:  logger,
		Repo: balanceRepo,
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:          conn,
		Log:         logger,
		GenID:       node,
		Clock:       fc,
		Credits:     holder,
		Window:      window,
		BalanceRepo: balanceRepo,
		Repo:        ledgerrepository.Provide(),
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{},
		DB:         conn,
		GenID:      node,
		AccountSvc: accountSvc,
		BalanceSvc: balanceSvc,
		LedgerSvc:  ledgerSvc,
	})
	return srv, engine, fc
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(context.Background())
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/v1/users", gin.H{
		"email":    "jamie@example.com",
		"password": "correct horse battery",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		ID string `json:"id"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestSignupThenBalance(t *testing.T) {
	_, engine, _ := newTestServer(t, config.DefaultCreditsConfig())
	userID := registerUser(t, engine)

	rec := doJSON(t, engine, http.MethodGet, "/v1/users/"+userID+"/balance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		TrialRemaining     int64  `json:"trial_remaining"`
		TokenBalance       int64  `json:"token_balance"`
		SubscriptionStatus string `json:"subscription_status"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(3), snap.TrialRemaining)
	assert.Equal(t, int64(0), snap.TokenBalance)
	assert.Equal(t, "inactive", snap.SubscriptionStatus)
}

func TestSignup_DuplicateEmailConflicts(t *testing.T) {
	_, engine, _ := newTestServer(t, config.DefaultCreditsConfig())
	registerUser(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/v1/users", gin.H{
		"email":    "jamie@example.com",
		"password": "another password!",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthorize_InsufficientFundsIs402(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	credits.TrialGrant = 0
	_, engine, _ := newTestServer(t, credits)
	userID := registerUser(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/v1/ledger/authorize", gin.H{
		"user_id": userID,
		"action":  "render_design",
		"cost":    1,
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_funds")
}

func TestAuthorize_RateLimitedIs429WithRetryAfter(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	_, engine, fc := newTestServer(t, credits)
	userID := registerUser(t, engine)

	body := gin.H{"user_id": userID, "action": "render_design", "cost": 1}
	for i := 0; i < credits.RateLimitMaxAttempts; i++ {
		rec := doJSON(t, engine, http.MethodPost, "/v1/ledger/authorize", body)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	fc.Advance(15 * time.Second)
	rec := doJSON(t, engine, http.MethodPost, "/v1/ledger/authorize", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "45", rec.Header().Get("Retry-After"))
}

func TestRefund_UnknownAttemptIs404(t *testing.T) {
	_, engine, _ := newTestServer(t, config.DefaultCreditsConfig())

	rec := doJSON(t, engine, http.MethodPost, "/v1/ledger/refunds", gin.H{
		"attempt_id": "123456789",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthorizeAndRefundRoundTrip(t *testing.T) {
	_, engine, _ := newTestServer(t, config.DefaultCreditsConfig())
	userID := registerUser(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/v1/ledger/authorize", gin.H{
		"user_id": userID,
		"action":  "render_design",
		"cost":    1,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var receipt struct {
		AttemptID string `json:"attempt_id"`
		Source    string `json:"funding_source"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "trial", receipt.Source)

	rec = doJSON(t, engine, http.MethodPost, "/v1/ledger/refunds", gin.H{
		"attempt_id": receipt.AttemptID,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"already_refunded":false`)

	rec = doJSON(t, engine, http.MethodPost, "/v1/ledger/refunds", gin.H{
		"attempt_id": receipt.AttemptID,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"already_refunded":true`)
}

func TestSubscriptionLifecycle(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	credits.RateLimitMaxAttempts = 100
	_, engine, _ := newTestServer(t, credits)
	userID := registerUser(t, engine)

	rec := doJSON(t, engine, http.MethodPut, "/v1/users/"+userID+"/subscription", gin.H{
		"status": "active",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/v1/ledger/authorize", gin.H{
		"user_id": userID,
		"action":  "render_design",
		"cost":    1,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"funding_source":"subscription"`)

	rec = doJSON(t, engine, http.MethodPut, "/v1/users/"+userID+"/subscription", gin.H{
		"status": "expired",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreditTokensEndpoint(t *testing.T) {
	_, engine, _ := newTestServer(t, config.DefaultCreditsConfig())
	userID := registerUser(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/v1/users/"+userID+"/credits", gin.H{
		"amount": 10,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token_balance":10`)

	rec = doJSON(t, engine, http.MethodPost, "/v1/users/"+userID+"/credits", gin.H{
		"amount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
