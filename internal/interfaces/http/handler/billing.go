package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appentitlement "github.com/skininsight/backend/internal/application/entitlement"
	"github.com/skininsight/backend/internal/domain/identity"
	"github.com/skininsight/backend/internal/domain/shared"
	"github.com/skininsight/backend/internal/interfaces/http/dto"
	"github.com/skininsight/backend/internal/interfaces/http/middleware"
)

// BillingHandler handles subscription and usage HTTP requests
type BillingHandler struct {
	BaseHandler
	purchases *appentitlement.PurchaseService
	quota     *appentitlement.QuotaService
	profiles  identity.ProfileRepository
	logger    *zap.Logger
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(
	purchases *appentitlement.PurchaseService,
	quota *appentitlement.QuotaService,
	profiles identity.ProfileRepository,
	logger *zap.Logger,
) *BillingHandler {
	return &BillingHandler{
		purchases: purchases,
		quota:     quota,
		profiles:  profiles,
		logger:    logger,
	}
}

// resolveOrganization maps the authenticated subject to its billing
// organization. On success the organization is recorded on the gin
// context so metrics and traces can label the request. Returns false
// after writing the error response.
func (h *BillingHandler) resolveOrganization(c *gin.Context) (string, bool) {
	subject, err := getAuthSubject(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return "", false
	}

	profile, err := h.profiles.FindBySubject(c.Request.Context(), subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.ErrorWithCode(c, dto.ErrCodeMissingOrganization, "User profile missing organization")
			return "", false
		}
		h.logger.Error("Failed to load profile",
			zap.String("subject", subject),
			zap.Error(err))
		h.InternalError(c, "Failed to resolve organization")
		return "", false
	}
	if !profile.HasOrganization() {
		h.ErrorWithCode(c, dto.ErrCodeMissingOrganization, "User profile missing organization")
		return "", false
	}

	c.Set(middleware.AuthOrganizationKey, profile.OrganizationID)
	return profile.OrganizationID, true
}

// ReceiptRequest represents a store purchase receipt submission
//
//	@Description	Store purchase receipt to apply to the organization's subscription
type ReceiptRequest struct {
	CompanyID     string `json:"company_id" example:"org-4f6a"`
	ProductID     string `json:"product_id" example:"com.skininsightpro.starter.monthly"`
	TransactionID string `json:"transaction_id" example:"2000000123456789"`
	Receipt       string `json:"receipt" example:"MIIT0gYJKoZIhvcNAQcCoIITwzCC..."`
}

// SubmitReceipt godoc
// @ID           submitBillingReceipt
// @Summary      Apply a store purchase to the organization's subscription
// @Description  Verifies the receipt and grants the purchased entitlement for a calendar-clamped period
// @Tags         billing
// @Accept       json
// @Produce      json
// @Success      200 {object} APIResponse[appentitlement.PurchaseResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /billing/receipts [post]
func (h *BillingHandler) SubmitReceipt(c *gin.Context) {
	organizationID, ok := h.resolveOrganization(c)
	if !ok {
		return
	}

	var req ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
		return
	}
	if req.CompanyID == "" {
		h.ErrorWithCode(c, dto.ErrCodeMissingFields, "Missing required field: company_id")
		return
	}
	// The receipt names a company, the token names a caller. They must
	// agree or one organization could fund another's account.
	if req.CompanyID != organizationID {
		h.ErrorWithCode(c, dto.ErrCodeValidation, "company_id does not match the caller's organization")
		return
	}

	result, err := h.purchases.ProcessPurchase(c.Request.Context(), appentitlement.PurchaseInput{
		OrganizationID: organizationID,
		ProductID:      req.ProductID,
		TransactionID:  req.TransactionID,
		Receipt:        req.Receipt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetUsage godoc
// @ID           getBillingUsage
// @Summary      Get the organization's current-period usage
// @Description  Reports entitlement, consumption and remaining capacity without claiming a unit
// @Tags         billing
// @Produce      json
// @Success      200 {object} APIResponse[appentitlement.UsageSummary]
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /billing/usage [get]
func (h *BillingHandler) GetUsage(c *gin.Context) {
	organizationID, ok := h.resolveOrganization(c)
	if !ok {
		return
	}

	summary, err := h.quota.Summary(c.Request.Context(), organizationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// SubscriptionResponse represents the organization's active subscription
//
//	@Description	Active subscription details
type SubscriptionResponse struct {
	OrganizationID string    `json:"organization_id" example:"org-7f3a"`
	ProductID      string    `json:"product_id" example:"com.skininsightpro.starter.monthly"`
	Tier           string    `json:"tier" example:"starter"`
	MonthlyCap     int       `json:"monthly_cap" example:"400"`
	Status         string    `json:"status" example:"active"`
	StartedAt      time.Time `json:"started_at"`
	EndsAt         time.Time `json:"ends_at"`
}

// GetSubscription godoc
// @ID           getBillingSubscription
// @Summary      Get the organization's active subscription
// @Description  Returns the single active subscription, or 402 when there is none
// @Tags         billing
// @Produce      json
// @Success      200 {object} APIResponse[SubscriptionResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      402 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /billing/subscription [get]
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	organizationID, ok := h.resolveOrganization(c)
	if !ok {
		return
	}

	sub, err := h.quota.Subscription(c.Request.Context(), organizationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, SubscriptionResponse{
		OrganizationID: sub.OrganizationID,
		ProductID:      sub.ProductID,
		Tier:           string(sub.Tier),
		MonthlyCap:     sub.MonthlyCap,
		Status:         string(sub.Status),
		StartedAt:      sub.StartedAt,
		EndsAt:         sub.EndsAt,
	})
}
