package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
)

func (s *Server) registerBalanceRoutes() {
	v1 := s.engine.Group("/v1")
	v1.GET("/users/:id/balance", s.getBalance)
	v1.POST("/users/:id/credits", s.creditTokens)
	v1.PUT("/users/:id/subscription", s.setSubscription)
}

func (s *Server) getBalance(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snap, err := s.balanceSvc.GetBalance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

type creditRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) creditTokens(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	snap, err := s.balanceSvc.CreditTokens(c.Request.Context(), id, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

type subscriptionRequest struct {
	Status string `json:"status"`
}

func (s *Server) setSubscription(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	snap, err := s.balanceSvc.SetSubscriptionStatus(c.Request.Context(), id, balancedomain.SubscriptionStatus(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}
