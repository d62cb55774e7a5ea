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

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
}

// CampaignHandler handles team-scoped campaign management requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

// CreateCampaign handles campaign creation, allocating the budget from
// the team owner's wallet
// @Summary Create Campaign
// @Description Create a campaign under a team. A positive budget is debited from the owner wallet.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param request body dto.CreateCampaignRequest true "Campaign data"
// @Success 201 {object} dto.APIResponse{data=dto.CampaignDTO} "Campaign created"
// @Failure 400 {object} dto.APIResponse "Validation error or insufficient funds"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Requester does not own the team"
// @Failure 404 {object} dto.APIResponse "Team not found"
// @Router /api/v1/teams/{team_id}/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	result, err := h.campaignFlow.CreateCampaign(createRequestContext(c, "/api/v1/teams/:team_id/campaigns"), requesterID, c.Params("team_id"), &req)
	if err != nil {
		if !businessflow.IsValidation(err) && !businessflow.IsInsufficientFunds(err) {
			log.Println("Campaign creation failed", err)
		}
		return flowErrorResponse(c, err, "Campaign creation failed", "CREATE_CAMPAIGN_FAILED")
	}

	return successResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// UpdateCampaign handles campaign updates, settling any budget delta
// against the owner wallet
// @Summary Update Campaign
// @Description Update campaign fields. A budget increase debits the owner wallet, a decrease refunds it.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Param request body dto.UpdateCampaignRequest true "Fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignDTO} "Campaign updated"
// @Failure 400 {object} dto.APIResponse "Validation error, insufficient funds, or budget below spent"
// @Failure 404 {object} dto.APIResponse "Team or campaign not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id} [put]
func (h *CampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	result, err := h.campaignFlow.UpdateCampaign(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id"), requesterID, c.Params("team_id"), c.Params("campaign_id"), &req)
	if err != nil {
		if !businessflow.IsValidation(err) && !businessflow.IsInsufficientFunds(err) && !businessflow.IsBudgetExceeded(err) {
			log.Println("Campaign update failed", err)
		}
		return flowErrorResponse(c, err, "Campaign update failed", "UPDATE_CAMPAIGN_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// DeleteCampaign handles campaign deletion, refunding the unspent budget
// @Summary Delete Campaign
// @Description Hard-delete a campaign. Ads and impressions cascade; the unspent budget is refunded to the owner wallet.
// @Tags Campaigns
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteCampaignResponse} "Campaign deleted"
// @Failure 404 {object} dto.APIResponse "Team or campaign not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id} [delete]
func (h *CampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	result, err := h.campaignFlow.DeleteCampaign(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id"), requesterID, c.Params("team_id"), c.Params("campaign_id"))
	if err != nil {
		if !businessflow.IsNotFound(err) && !businessflow.IsAccessDenied(err) {
			log.Println("Campaign deletion failed", err)
		}
		return flowErrorResponse(c, err, "Campaign deletion failed", "DELETE_CAMPAIGN_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaign deleted successfully", result)
}

// GetCampaign handles single campaign lookup
// @Summary Get Campaign
// @Description Retrieve one campaign of the requester's team
// @Tags Campaigns
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param campaign_id path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignDTO} "Campaign found"
// @Failure 404 {object} dto.APIResponse "Team or campaign not found"
// @Router /api/v1/teams/{team_id}/campaigns/{campaign_id} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	result, err := h.campaignFlow.GetCampaign(createRequestContext(c, "/api/v1/teams/:team_id/campaigns/:campaign_id"), requesterID, c.Params("team_id"), c.Params("campaign_id"))
	if err != nil {
		return flowErrorResponse(c, err, "Campaign lookup failed", "GET_CAMPAIGN_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaign found", result)
}

// ListCampaigns handles the paginated campaign listing
// @Summary List Campaigns
// @Description List the team's campaigns, newest first
// @Tags Campaigns
// @Produce json
// @Param team_id path string true "Team UUID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse} "Campaigns listed"
// @Failure 404 {object} dto.APIResponse "Team not found"
// @Router /api/v1/teams/{team_id}/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	requesterID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	result, err := h.campaignFlow.ListCampaigns(createRequestContext(c, "/api/v1/teams/:team_id/campaigns"), requesterID, c.Params("team_id"), page, pageSize)
	if err != nil {
		return flowErrorResponse(c, err, "Campaign listing failed", "LIST_CAMPAIGNS_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaigns listed successfully", result)
}
