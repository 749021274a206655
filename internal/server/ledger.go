package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	ledgerdomain "github.com/verdantlabs/verdant/internal/ledger/domain"
)

func (s *Server) registerLedgerRoutes() {
	v1 := s.engine.Group("/v1")
	v1.POST("/ledger/authorize", s.edgeThrottle(), s.authorize)
	v1.POST("/ledger/refunds", s.refund)
}

type authorizeRequest struct {
	UserID   string                 `json:"user_id"`
	Action   string                 `json:"action"`
	Cost     int64                  `json:"cost"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_id", "invalid identifier"))
		return
	}
	if req.Cost < 0 {
		AbortWithError(c, ledgerdomain.ErrInvalidCost)
		return
	}

	receipt, err := s.ledgerSvc.AuthorizeAndDebit(c.Request.Context(), ledgerdomain.DebitRequest{
		UserID:   userID,
		Action:   req.Action,
		Cost:     req.Cost,
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

type refundRequest struct {
	AttemptID string `json:"attempt_id"`
}

func (s *Server) refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	attemptID, err := snowflake.ParseString(req.AttemptID)
	if err != nil {
		AbortWithError(c, newValidationError("attempt_id", "invalid_id", "invalid identifier"))
		return
	}

	receipt, err := s.ledgerSvc.Refund(c.Request.Context(), attemptID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// edgeThrottle applies the redis bucket before a request reaches the DB
// window. It reads user_id without consuming the body so the handler can
// still bind it.
func (s *Server) edgeThrottle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.edgeLimiter == nil {
			c.Next()
			return
		}

		var peek authorizeRequest
		if err := c.ShouldBindBodyWith(&peek, binding.JSON); err != nil || peek.UserID == "" {
			// Let the handler produce the validation error.
			c.Next()
			return
		}

		allowed, retryAfter := s.edgeLimiter.Allow(c.Request.Context(), peek.UserID)
		if allowed {
			c.Next()
			return
		}

		secs := int(retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "edge")
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
			Type:       "rate_limited",
			Message:    "too many attempts",
			RetryAfter: secs,
		}})
	}
}
