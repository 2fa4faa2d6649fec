package subscription

import (
	"net/http"

	"billing-service/internal/domain/purchase"
	domain "billing-service/internal/domain/subscription"
	"billing-service/internal/middleware"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/pkg/ratelimit"
	"billing-service/internal/pkg/response"
	subsvc "billing-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	service *subsvc.Service
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

func NewSubscriptionHandler(service *subsvc.Service, limiter *ratelimit.Limiter, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		limiter: limiter,
		logger:  logger,
	}
}

// VerifyPurchase handles POST /purchases/verify. Verification hits the
// upstream stores, so it is rate limited per user.
func (h *SubscriptionHandler) VerifyPurchase(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	allowed, err := h.limiter.Allow(c.Request.Context(), userID)
	if err != nil {
		h.logger.Warn("rate limiter unavailable", zap.Error(err))
	}
	if !allowed {
		response.FromError(c, xerrors.ErrRateLimited)
		return
	}

	var req domain.VerifyPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sub, err := h.service.VerifyPurchase(c.Request.Context(), userID, req.Gateway, req.Credentials)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "purchase verified", sub.ToWire())
}

// StartFree handles POST /subscriptions/free.
func (h *SubscriptionHandler) StartFree(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req domain.StartFreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sub, err := h.service.StartFreeTier(c.Request.Context(), userID, req.ProductID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "free tier started", sub.ToWire())
}

// GetStatus handles GET /subscriptions/me.
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	status, err := h.service.Status(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription status", status)
}

// GetTrialEligibility handles GET /subscriptions/me/trial-eligibility.
// The gateway query parameter names the store to ask about.
func (h *SubscriptionHandler) GetTrialEligibility(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	gateway, err := purchase.ParseGateway(c.Query("gateway"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	eligible, err := h.service.TrialEligibility(c.Request.Context(), userID, gateway)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "trial eligibility", domain.TrialEligibilityResponse{
		Gateway:  gateway.String(),
		Eligible: eligible,
	})
}

// DeleteSubscription handles DELETE /subscriptions/me.
func (h *SubscriptionHandler) DeleteSubscription(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	if err := h.service.DeleteSubscription(c.Request.Context(), userID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription deleted", nil)
}
