// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/middleware"
	businessflow "github.com/videostreampro/adserver/business_flow"
)

// AdHandlerInterface defines the contract for ad handlers
type AdHandlerInterface interface {
	CreateAd(c fiber.Ctx) error
	UpdateAd(c fiber.Ctx) error
	DeleteAd(c fiber.Ctx) error
	GetAd(c fiber.Ctx) error
	ListAds(c fiber.Ctx) error
	ValidateAdBudget(c fiber.Ctx) error
}

// AdHandler handles team-scoped ad management requests
type AdHandler struct {
	adFlow    businessflow.AdFlow
	validator *validator.Validate
}

// NewAdHandler creates a new ad handler
func NewAdHandler(adFlow businessflow.AdFlow) *AdHandler {
	return &AdHandler{
		adFlow:    adFlow,
		validator: validator.New(),
	}
}

// CreateAd handles ad creation, carving the ad budget out of the campaign
// @Summary Create Ad
// @Description Create an ad under a campaign. A positive budget is allocated from the campaign's remaining budget; -1 inherits.
// @Tags Ads
// @Accept json
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Param request body dto.CreateAdRequest true "Ad data"
// @Success 201 {object} dto.APIResponse{data=dto.AdDTO} "Ad created"
// @Failure 400 {object} dto.APIResponse "Validation error or budget exceeds the campaign allocation"
// @Failure 404 {object} dto.APIResponse "Team or campaign not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id}/ads [post]
func (h *AdHandler) CreateAd(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.CreateAdRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	result, err := h.adFlow.CreateAd(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id/ads"), requesterID, c.Params("team_id"), c.Params("campaign_id"), &req)
	if err != nil {
		if !businessflow.IsValidation(err) && !businessflow.IsBudgetExceeded(err) && !businessflow.IsInsufficientFunds(err) {
			log.Println("Ad creation failed", err)
		}
		return flowErrorResponse(c, err, "Ad creation failed", "CREATE_AD_FAILED")
	}

	return successResponse(c, fiber.StatusCreated, "Ad created successfully", result)
}

// UpdateAd handles ad updates, re-validating any budget change against
// the campaign allocation
// @Summary Update Ad
// @Description Update ad fields. A budget change adjusts the campaign allocation by the delta.
// @Tags Ads
// @Accept json
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Param ad_id path string true "Ad UUID"
// @Param request body dto.UpdateAdRequest true "Fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.AdDTO} "Ad updated"
// @Failure 400 {object} dto.APIResponse "Validation error or budget exceeds the campaign allocation"
// @Failure 404 {object} dto.APIResponse "Team, campaign, or ad not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id}/ads/{ad_id} [put]
func (h *AdHandler) UpdateAd(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.UpdateAdRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	result, err := h.adFlow.UpdateAd(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id/ads/:ad_id"), requesterID, c.Params("team_id"), c.Params("campaign_id"), c.Params("ad_id"), &req)
	if err != nil {
		if !businessflow.IsValidation(err) && !businessflow.IsBudgetExceeded(err) && !businessflow.IsInsufficientFunds(err) {
			log.Println("Ad update failed", err)
		}
		return flowErrorResponse(c, err, "Ad update failed", "UPDATE_AD_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Ad updated successfully", result)
}

// DeleteAd handles ad deletion, freeing its allocated budget back to the
// campaign
// @Summary Delete Ad
// @Description Hard-delete an ad. Its own budget allocation is released back to the campaign.
// @Tags Ads
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Param ad_id path string true "Ad UUID"
// @Success 200 {object} dto.APIResponse "Ad deleted"
// @Failure 404 {object} dto.APIResponse "Team, campaign, or ad not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id}/ads/{ad_id} [delete]
func (h *AdHandler) DeleteAd(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	err := h.adFlow.DeleteAd(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id/ads/:ad_id"), requesterID, c.Params("team_id"), c.Params("campaign_id"), c.Params("ad_id"))
	if err != nil {
		if !businessflow.IsNotFound(err) && !businessflow.IsAccessDenied(err) {
			log.Println("Ad deletion failed", err)
		}
		return flowErrorResponse(c, err, "Ad deletion failed", "DELETE_AD_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Ad deleted successfully", nil)
}

// GetAd handles single ad lookup
// @Summary Get Ad
// @Description Retrieve one ad of the requester's campaign
// @Tags Ads
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Param ad_id path string true "Ad UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AdDTO} "Ad found"
// @Failure 404 {object} dto.APIResponse "Team, campaign, or ad not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id}/ads/{ad_id} [get]
func (h *AdHandler) GetAd(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	result, err := h.adFlow.GetAd(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id/ads/:ad_id"), requesterID, c.Params("team_id"), c.Params("campaign_id"), c.Params("ad_id"))
	if err != nil {
		return flowErrorResponse(c, err, "Ad lookup failed", "GET_AD_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Ad found", result)
}

// ListAds handles the paginated ad listing
// @Summary List Ads
// @Description List the campaign's ads, newest first
// @Tags Ads
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListAdsResponse} "Ads listed"
// @Failure 404 {object} dto.APIResponse "Team or campaign not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id}/ads [get]
func (h *AdHandler) ListAds(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	result, err := h.adFlow.ListAds(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id/ads"), requesterID, c.Params("team_id"), c.Params("campaign_id"), page, pageSize)
	if err != nil {
		return flowErrorResponse(c, err, "Ad listing failed", "LIST_ADS_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Ads listed successfully", result)
}

// ValidateAdBudget reports how a requested ad budget fits inside the
// campaign allocation without creating anything
// @Summary Validate Ad Budget
// @Description Dry-run budget check against the campaign's unallocated budget
// @Tags Ads
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Param budget_cents query int false "Requested ad budget in cents; omit or -1 for inherited"
// @Success 200 {object} dto.APIResponse{data=dto.AdBudgetValidationDTO} "Validation result"
// @Failure 404 {object} dto.APIResponse "Team or campaign not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id}/ads/budget [get]
func (h *AdHandler) ValidateAdBudget(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var requested *int64
	if raw := c.Query("budget_cents"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "budget_cents must be an integer", "INVALID_REQUEST", nil)
		}
		requested = &parsed
	}

	result, err := h.adFlow.ValidateAdBudget(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id/ads/budget"), requesterID, c.Params("team_id"), c.Params("campaign_id"), requested)
	if err != nil {
		return flowErrorResponse(c, err, "Ad budget validation failed", "VALIDATE_AD_BUDGET_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Ad budget validated", result)
}
