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

// AdServeHandlerInterface defines the contract for ad serving handlers
type AdServeHandlerInterface interface {
	ServeAd(c fiber.Ctx) error
}

// AdServeHandler handles the player-facing serve endpoint
type AdServeHandler struct {
	serveFlow businessflow.AdServeFlow
	validator *validator.Validate
}

// NewAdServeHandler creates a new ad serve handler
func NewAdServeHandler(serveFlow businessflow.AdServeFlow) *AdServeHandler {
	return &AdServeHandler{
		serveFlow: serveFlow,
		validator: validator.New(),
	}
}

// ServeAd handles the ad decisioning request
// @Summary Serve Ad
// @Description Select, score, and reserve one ad for a video playback slot
// @Tags Serving
// @Accept json
// @Produce json
// @Param request body dto.ServeAdRequest true "Serve request"
// @Success 200 {object} dto.APIResponse{data=dto.ServeAdResponse} "Ad reserved, or no_eligible_ads"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/ad/serve [post]
func (h *AdServeHandler) ServeAd(c fiber.Ctx) error {
	var req dto.ServeAdRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	// A viewer verified by the identity provider overrides whatever the
	// player claimed. Anonymous serving stays allowed.
	if viewerID, ok := middleware.GetViewerIDFromContext(c); ok {
		req.UserID = &viewerID
		req.AnonID = nil
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.serveFlow.ServeAd(createRequestContext(c, "/api/v1/ad/serve"), &req, metadata)
	if err != nil {
		if !businessflow.IsValidation(err) {
			log.Println("Ad serve failed", err)
		}
		return flowErrorResponse(c, err, "Ad serve failed", "AD_SERVE_FAILED")
	}

	if result.Ad == nil {
		middleware.RecordServeNoFill()
		return successResponse(c, fiber.StatusOK, "No eligible ads", result)
	}

	middleware.RecordImpressionReserved()
	return successResponse(c, fiber.StatusOK, "Ad reserved", result)
}
