package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appanalysis "github.com/skininsight/backend/internal/application/analysis"
	appentitlement "github.com/skininsight/backend/internal/application/entitlement"
	"github.com/skininsight/backend/internal/interfaces/http/dto"
)

// AnalysisHandler handles metered image analysis HTTP requests
type AnalysisHandler struct {
	BaseHandler
	service *appanalysis.Service
	logger  *zap.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *appanalysis.Service, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger,
	}
}

// AnalyzeRequest represents an image analysis request
//
//	@Description	Image analysis request with base64 payload and prompt
type AnalyzeRequest struct {
	Image     string `json:"image" example:"iVBORw0KGgoAAAANSUhEUg..."`
	MediaType string `json:"media_type" example:"image/jpeg"`
	Prompt    string `json:"prompt" example:"Describe the skin condition visible in this image"`
	Model     string `json:"model,omitempty" example:"claude-3-5-sonnet-20241022"`
}

// Analyze godoc
// @ID           analyzeImage
// @Summary      Run a metered image analysis
// @Description  Claims one quota unit for the caller's organization and relays the vendor's answer verbatim
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]any
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      402 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /analysis/analyze [post]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	subject, err := getAuthSubject(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
		return
	}

	result, err := h.service.Analyze(c.Request.Context(), appanalysis.AnalyzeInput{
		Subject:     subject,
		ImageBase64: req.Image,
		MediaType:   req.MediaType,
		Prompt:      req.Prompt,
		Model:       req.Model,
	})
	if err != nil {
		var quotaErr *appentitlement.QuotaExceededError
		if errors.As(err, &quotaErr) {
			h.respondQuotaDenied(c, quotaErr)
			return
		}
		h.HandleError(c, err)
		return
	}

	// Relay the vendor's answer verbatim, success or not. A vendor 4xx
	// or 5xx is for the caller to interpret; the quota unit stays spent
	// either way.
	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(result.StatusCode, contentType, result.Body)
}

// respondQuotaDenied maps a quota denial to its 402 wire code. A denial
// with a zero cap means the organization had no entitlement at all this
// period, not an exhausted one.
func (h *AnalysisHandler) respondQuotaDenied(c *gin.Context, quotaErr *appentitlement.QuotaExceededError) {
	if quotaErr.Snapshot.MonthlyCap == 0 {
		h.PaymentRequired(c, dto.ErrCodeNoActiveSubscription, "Organization has no active subscription")
		return
	}
	h.PaymentRequired(c, dto.ErrCodeQuotaExceeded, quotaErr.Message)
}
