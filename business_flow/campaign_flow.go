// Package businessflow contains the core business logic for campaign management.
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/repository"
	"github.com/videostreampro/adserver/utils"
)

// CampaignFlow handles the campaign lifecycle, including the wallet
// allocation that backs every funded campaign.
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, requesterID, teamUUID string, req *dto.CreateCampaignRequest) (*dto.CampaignDTO, error)
	UpdateCampaign(ctx context.Context, requesterID, teamUUID, campaignUUID string, req *dto.UpdateCampaignRequest) (*dto.CampaignDTO, error)
	DeleteCampaign(ctx context.Context, requesterID, teamUUID, campaignUUID string) (*dto.DeleteCampaignResponse, error)
	GetCampaign(ctx context.Context, requesterID, teamUUID, campaignUUID string) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, requesterID, teamUUID string, page, pageSize int) (*dto.ListCampaignsResponse, error)
}

// CampaignFlowImpl implements the campaign management business flow
type CampaignFlowImpl struct {
	teamRepo     repository.TeamRepository
	campaignRepo repository.CampaignRepository
	walletFlow   WalletFlow
	txm          repository.TxManager
	clk          clock.Clock
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	teamRepo repository.TeamRepository,
	campaignRepo repository.CampaignRepository,
	walletFlow WalletFlow,
	txm repository.TxManager,
	clk clock.Clock,
) CampaignFlow {
	return &CampaignFlowImpl{
		teamRepo:     teamRepo,
		campaignRepo: campaignRepo,
		walletFlow:   walletFlow,
		txm:          txm,
		clk:          clk,
	}
}

// CreateCampaign inserts a campaign and allocates its budget from the
// team owner's wallet in one transaction. An insufficient balance rolls
// back the insert.
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, requesterID, teamUUID string, req *dto.CreateCampaignRequest) (*dto.CampaignDTO, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}

	if req.Name == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign name is required", ErrCampaignNameRequired)
	}

	now := f.clk.Now().UTC()
	startDate, endDate, err := f.parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign date validation failed", err)
	}
	if startDate != nil && startDate.Before(utils.StartOfDay(now)) {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign start date is in the past", ErrStartDateInPast)
	}
	if startDate != nil && endDate != nil && !endDate.After(*startDate) {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign end date must be after start date", ErrEndDateBeforeStartDate)
	}

	status := models.CampaignStatusDraft
	if req.Activate {
		status = models.CampaignStatusActive
	}

	campaign := &models.Campaign{
		TeamID:    team.ID,
		Name:      req.Name,
		Status:    status,
		Budget:    req.BudgetCents,
		StartDate: startDate,
		EndDate:   endDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.campaignRepo.Save(txCtx, campaign); err != nil {
			return err
		}
		if req.BudgetCents != nil && *req.BudgetCents > 0 {
			_, err := f.walletFlow.DeductCampaignBudget(txCtx, team.OwnerID, campaign.ID, utils.Money(*req.BudgetCents))
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, NewBusinessError("INSUFFICIENT_FUNDS", "Wallet balance cannot cover the campaign budget", err)
		}
		return nil, NewBusinessError("CREATE_CAMPAIGN_FAILED", "Failed to create campaign", err)
	}

	return toCampaignDTO(campaign, team.UUID.String()), nil
}

// UpdateCampaign applies field updates and settles any budget delta
// against the owner wallet. An increase debits, a decrease refunds.
func (f *CampaignFlowImpl) UpdateCampaign(ctx context.Context, requesterID, teamUUID, campaignUUID string, req *dto.UpdateCampaignRequest) (*dto.CampaignDTO, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}

	var campaign *models.Campaign
	err = f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		campaign, err = f.lockTeamCampaign(txCtx, team, campaignUUID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			if *req.Name == "" {
				return ErrCampaignNameRequired
			}
			campaign.Name = *req.Name
		}
		if req.Status != nil {
			status := models.CampaignStatus(*req.Status)
			if !status.Valid() {
				return ErrInvalidCampaignStatus
			}
			campaign.Status = status
		}

		startDate, endDate, err := f.parseDates(req.StartDate, req.EndDate)
		if err != nil {
			return err
		}
		if startDate != nil {
			campaign.StartDate = startDate
		}
		if endDate != nil {
			campaign.EndDate = endDate
		}
		if campaign.StartDate != nil && campaign.EndDate != nil && !campaign.EndDate.After(*campaign.StartDate) {
			return ErrEndDateBeforeStartDate
		}

		if req.BudgetCents != nil {
			if err := f.settleBudgetDelta(txCtx, team.OwnerID, campaign, *req.BudgetCents); err != nil {
				return err
			}
		}

		campaign.UpdatedAt = f.clk.Now().UTC()
		return f.campaignRepo.Update(txCtx, campaign)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCampaignNotFound):
			return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", err)
		case errors.Is(err, ErrInsufficientFunds):
			return nil, NewBusinessError("INSUFFICIENT_FUNDS", "Wallet balance cannot cover the budget increase", err)
		case errors.Is(err, ErrBudgetExceeded):
			return nil, NewBusinessError("BUDGET_EXCEEDED", "New budget is below the amount already spent", err)
		case IsValidation(err):
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
		}
		return nil, NewBusinessError("UPDATE_CAMPAIGN_FAILED", "Failed to update campaign", err)
	}

	return toCampaignDTO(campaign, team.UUID.String()), nil
}

// settleBudgetDelta moves the difference between the old and new budget
// through the wallet. The new budget can never drop below what the
// campaign already spent or allocated.
func (f *CampaignFlowImpl) settleBudgetDelta(ctx context.Context, ownerID string, campaign *models.Campaign, newBudget int64) error {
	var oldBudget int64
	if campaign.Budget != nil {
		oldBudget = *campaign.Budget
	}
	if newBudget == oldBudget {
		return nil
	}
	if newBudget > 0 && newBudget < campaign.Spent {
		return ErrBudgetExceeded
	}

	delta := newBudget - oldBudget
	if delta > 0 {
		if _, err := f.walletFlow.DeductCampaignBudget(ctx, ownerID, campaign.ID, utils.Money(delta)); err != nil {
			return err
		}
	} else {
		if _, err := f.walletFlow.RefundCampaignBudget(ctx, ownerID, campaign.ID, utils.Money(-delta)); err != nil {
			return err
		}
	}
	campaign.Budget = &newBudget
	return nil
}

// DeleteCampaign refunds the unspent budget to the owner wallet and
// hard-deletes the campaign; ads and impressions cascade.
func (f *CampaignFlowImpl) DeleteCampaign(ctx context.Context, requesterID, teamUUID, campaignUUID string) (*dto.DeleteCampaignResponse, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}

	var refund int64
	err = f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		campaign, err := f.lockTeamCampaign(txCtx, team, campaignUUID)
		if err != nil {
			return err
		}

		if campaign.Budget != nil && *campaign.Budget > campaign.Spent {
			refund = *campaign.Budget - campaign.Spent
			if _, err := f.walletFlow.RefundCampaignBudget(txCtx, team.OwnerID, campaign.ID, utils.Money(refund)); err != nil {
				return err
			}
		}
		return f.campaignRepo.Delete(txCtx, campaign.ID)
	})
	if err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", err)
		}
		return nil, NewBusinessError("DELETE_CAMPAIGN_FAILED", "Failed to delete campaign", err)
	}

	return &dto.DeleteCampaignResponse{RefundCents: refund}, nil
}

// GetCampaign returns one campaign scoped to the requester's team
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, requesterID, teamUUID, campaignUUID string) (*dto.CampaignDTO, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}
	campaign, err := f.teamCampaign(ctx, team, campaignUUID)
	if err != nil {
		return nil, err
	}
	return toCampaignDTO(campaign, team.UUID.String()), nil
}

// ListCampaigns returns a page of the team's campaigns, newest first
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, requesterID, teamUUID string, page, pageSize int) (*dto.ListCampaignsResponse, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}

	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return nil, NewBusinessError("LIST_CAMPAIGNS_VALIDATION_FAILED", "Page must be positive", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("LIST_CAMPAIGNS_VALIDATION_FAILED", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter := models.CampaignFilter{TeamID: &team.ID}
	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_CAMPAIGNS_FAILED", "Failed to count campaigns", err)
	}
	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_CAMPAIGNS_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, *toCampaignDTO(c, team.UUID.String()))
	}

	totalPages := uint(math.Ceil(float64(total) / float64(pageSize)))
	return &dto.ListCampaignsResponse{
		Campaigns: items,
		Pagination: dto.PaginationInfo{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: uint(total),
			TotalPages: totalPages,
			HasNext:    uint(page) < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

// authorizeTeam resolves the team and checks the requester owns it
func (f *CampaignFlowImpl) authorizeTeam(ctx context.Context, requesterID, teamUUID string) (*models.Team, error) {
	team, err := f.teamRepo.ByUUID(ctx, teamUUID)
	if err != nil {
		return nil, NewBusinessError("TEAM_LOOKUP_FAILED", "Failed to look up team", err)
	}
	if team == nil {
		return nil, NewBusinessError("TEAM_NOT_FOUND", "Team not found", ErrTeamNotFound)
	}
	if team.OwnerID != requesterID {
		return nil, NewBusinessError("TEAM_ACCESS_DENIED", "Requester does not own this team", ErrTeamAccessDenied)
	}
	return team, nil
}

// teamCampaign resolves a campaign and checks it belongs to the team
func (f *CampaignFlowImpl) teamCampaign(ctx context.Context, team *models.Team, campaignUUID string) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil || campaign.TeamID != team.ID {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	return campaign, nil
}

// lockTeamCampaign resolves a team's campaign and re-reads it FOR UPDATE;
// must run inside a transaction
func (f *CampaignFlowImpl) lockTeamCampaign(ctx context.Context, team *models.Team, campaignUUID string) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, err
	}
	if campaign == nil || campaign.TeamID != team.ID {
		return nil, ErrCampaignNotFound
	}
	locked, err := f.campaignRepo.LockByID(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, ErrCampaignNotFound
	}
	return locked, nil
}

func (f *CampaignFlowImpl) parseDates(start, end *string) (*time.Time, *time.Time, error) {
	startDate, err := parseFlexibleDate(start)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start date: %w", err)
	}
	endDate, err := parseFlexibleDate(end)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end date: %w", err)
	}
	return startDate, endDate, nil
}

// parseFlexibleDate accepts RFC3339 timestamps or bare dates
func parseFlexibleDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, *value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", *value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func toCampaignDTO(c *models.Campaign, teamUUID string) *dto.CampaignDTO {
	out := &dto.CampaignDTO{
		UUID:        c.UUID.String(),
		TeamUUID:    teamUUID,
		Name:        c.Name,
		Status:      string(c.Status),
		BudgetCents: c.Budget,
		SpentCents:  c.Spent,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
	if c.StartDate != nil {
		startDate := c.StartDate.Format(time.RFC3339)
		out.StartDate = &startDate
	}
	if c.EndDate != nil {
		endDate := c.EndDate.Format(time.RFC3339)
		out.EndDate = &endDate
	}
	return out
}
