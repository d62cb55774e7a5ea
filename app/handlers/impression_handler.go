// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/middleware"
	businessflow "github.com/videostreampro/adserver/business_flow"
)

// ImpressionHandlerInterface defines the contract for impression handlers
type ImpressionHandlerInterface interface {
	ConfirmImpression(c fiber.Ctx) error
	GetImpression(c fiber.Ctx) error
}

// ImpressionHandler handles impression confirmation and lookup requests
type ImpressionHandler struct {
	impressionFlow businessflow.ImpressionFlow
	validator      *validator.Validate
}

// NewImpressionHandler creates a new impression handler
func NewImpressionHandler(impressionFlow businessflow.ImpressionFlow) *ImpressionHandler {
	return &ImpressionHandler{
		impressionFlow: impressionFlow,
		validator:      validator.New(),
	}
}

// ConfirmImpression handles the impression event report
// @Summary Confirm Impression
// @Description Report a playback event against a reserved impression. The served event bills the budget.
// @Tags Serving
// @Accept json
// @Produce json
// @Param request body dto.ConfirmImpressionRequest true "Confirmation data"
// @Success 200 {object} dto.APIResponse{data=dto.ConfirmImpressionResponse} "Impression confirmed"
// @Failure 400 {object} dto.APIResponse "Validation error, invalid transition, or budget exhausted"
// @Failure 404 {object} dto.APIResponse "Impression not found"
// @Failure 410 {object} dto.APIResponse "Impression expired"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/impression/confirm [post]
func (h *ImpressionHandler) ConfirmImpression(c fiber.Ctx) error {
	var req dto.ConfirmImpressionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.impressionFlow.ConfirmImpression(createRequestContext(c, "/api/v1/impression/confirm"), &req, metadata)
	if err != nil {
		if !businessflow.IsValidation(err) && !businessflow.IsExpired(err) && !businessflow.IsNotFound(err) {
			log.Println("Impression confirmation failed", err)
		}
		return flowErrorResponse(c, err, "Impression confirmation failed", "CONFIRM_IMPRESSION_FAILED")
	}

	var costCents int64
	if result.BillingDetails != nil {
		costCents = result.BillingDetails.CostCents
	}
	middleware.RecordImpressionConfirmed(req.Event, costCents)

	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// GetImpression handles the impression lookup by token
// @Summary Get Impression
// @Description Look up the stored impression row behind a token
// @Tags Serving
// @Produce json
// @Param token path string true "Impression token"
// @Success 200 {object} dto.APIResponse{data=dto.ImpressionDTO} "Impression found"
// @Failure 404 {object} dto.APIResponse "Impression not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/impression/{token} [get]
func (h *ImpressionHandler) GetImpression(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Impression token is required", "MISSING_IMPRESSION_TOKEN", nil)
	}

	result, err := h.impressionFlow.GetImpression(createRequestContext(c, "/api/v1/impression/:token"), token)
	if err != nil {
		return flowErrorResponse(c, err, "Impression lookup failed", "IMPRESSION_LOOKUP_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Impression found", result)
}
