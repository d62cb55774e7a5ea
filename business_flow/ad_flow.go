// Package businessflow contains the core business logic for ad management.
package businessflow

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/repository"
	"github.com/videostreampro/adserver/utils"
)

// AdFlow handles the ad lifecycle, including the allocation of ad-level
// budgets out of the parent campaign.
type AdFlow interface {
	CreateAd(ctx context.Context, requesterID, teamUUID, campaignUUID string, req *dto.CreateAdRequest) (*dto.AdDTO, error)
	UpdateAd(ctx context.Context, requesterID, teamUUID, campaignUUID, adUUID string, req *dto.UpdateAdRequest) (*dto.AdDTO, error)
	DeleteAd(ctx context.Context, requesterID, teamUUID, campaignUUID, adUUID string) error
	GetAd(ctx context.Context, requesterID, teamUUID, campaignUUID, adUUID string) (*dto.AdDTO, error)
	ListAds(ctx context.Context, requesterID, teamUUID, campaignUUID string, page, pageSize int) (*dto.ListAdsResponse, error)
	ValidateAdBudget(ctx context.Context, requesterID, teamUUID, campaignUUID string, requested *int64) (*dto.AdBudgetValidationDTO, error)
}

// AdFlowImpl implements the ad management business flow
type AdFlowImpl struct {
	teamRepo     repository.TeamRepository
	campaignRepo repository.CampaignRepository
	adRepo       repository.AdRepository
	walletFlow   WalletFlow
	txm          repository.TxManager
	clk          clock.Clock
}

// NewAdFlow creates a new ad flow instance
func NewAdFlow(
	teamRepo repository.TeamRepository,
	campaignRepo repository.CampaignRepository,
	adRepo repository.AdRepository,
	walletFlow WalletFlow,
	txm repository.TxManager,
	clk clock.Clock,
) AdFlow {
	return &AdFlowImpl{
		teamRepo:     teamRepo,
		campaignRepo: campaignRepo,
		adRepo:       adRepo,
		walletFlow:   walletFlow,
		txm:          txm,
		clk:          clk,
	}
}

// CreateAd inserts an ad and carves its own budget out of the campaign.
// Under an uncapped campaign the ad budget is funded from the owner
// wallet instead, since there is no campaign allocation to draw from.
func (f *AdFlowImpl) CreateAd(ctx context.Context, requesterID, teamUUID, campaignUUID string, req *dto.CreateAdRequest) (*dto.AdDTO, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}

	if err := f.validateCreateAd(req); err != nil {
		return nil, NewBusinessError("AD_VALIDATION_FAILED", "Ad validation failed", err)
	}

	budget := models.InheritedBudget
	if req.BudgetCents != nil {
		budget = *req.BudgetCents
	}

	status := models.AdStatusDraft
	if req.Activate {
		status = models.AdStatusActive
	}

	now := f.clk.Now().UTC()
	var ad *models.Ad
	var campaignRef *models.Campaign

	err = f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		campaign, err := f.lockTeamCampaign(txCtx, team, campaignUUID)
		if err != nil {
			return err
		}
		campaignRef = campaign

		ad = &models.Ad{
			CampaignID:   campaign.ID,
			Status:       status,
			Title:        req.Title,
			Description:  req.Description,
			Budget:       budget,
			Categories:   pq.StringArray(req.Categories),
			Tags:         pq.StringArray(req.Tags),
			VideoURL:     req.VideoURL,
			ThumbnailURL: req.ThumbnailURL,
			CTALink:      req.CTALink,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := f.adRepo.Save(txCtx, ad); err != nil {
			return err
		}
		if budget > 0 {
			return f.allocate(txCtx, team.OwnerID, campaign, ad.ID, budget)
		}
		return nil
	})
	if err != nil {
		return nil, f.mapAdError(err, "CREATE_AD_FAILED", "Failed to create ad")
	}

	return toAdDTO(ad, campaignRef.UUID.String()), nil
}

// UpdateAd applies field updates and settles any own-budget delta
// against the campaign allocation.
func (f *AdFlowImpl) UpdateAd(ctx context.Context, requesterID, teamUUID, campaignUUID, adUUID string, req *dto.UpdateAdRequest) (*dto.AdDTO, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}

	var ad *models.Ad
	var campaignRef *models.Campaign

	err = f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		campaign, err := f.lockTeamCampaign(txCtx, team, campaignUUID)
		if err != nil {
			return err
		}
		campaignRef = campaign

		ad, err = f.lockCampaignAd(txCtx, campaign, adUUID)
		if err != nil {
			return err
		}

		if req.Title != nil {
			if *req.Title == "" {
				return ErrAdTitleRequired
			}
			ad.Title = *req.Title
		}
		if req.Description != nil {
			ad.Description = *req.Description
		}
		if req.Status != nil {
			status := models.AdStatus(*req.Status)
			if !status.Valid() {
				return ErrInvalidAdStatus
			}
			ad.Status = status
		}
		if req.Categories != nil {
			if len(req.Categories) == 0 {
				return ErrAdCategoriesEmpty
			}
			ad.Categories = pq.StringArray(req.Categories)
		}
		if req.Tags != nil {
			ad.Tags = pq.StringArray(req.Tags)
		}
		if req.VideoURL != nil {
			if *req.VideoURL == "" {
				return ErrAdVideoURLRequired
			}
			ad.VideoURL = *req.VideoURL
		}
		if req.ThumbnailURL != nil {
			ad.ThumbnailURL = *req.ThumbnailURL
		}
		if req.CTALink != nil {
			ad.CTALink = req.CTALink
		}

		if req.BudgetCents != nil {
			if err := f.settleAdBudgetDelta(txCtx, team.OwnerID, campaign, ad, *req.BudgetCents); err != nil {
				return err
			}
		}

		ad.UpdatedAt = f.clk.Now().UTC()
		return f.adRepo.Update(txCtx, ad)
	})
	if err != nil {
		return nil, f.mapAdError(err, "UPDATE_AD_FAILED", "Failed to update ad")
	}

	return toAdDTO(ad, campaignRef.UUID.String()), nil
}

// settleAdBudgetDelta reconciles a budget change. Allocations count only
// positive budgets; the inherited sentinel and zero both mean no own
// allocation. A new cap can never drop below what the ad already spent.
func (f *AdFlowImpl) settleAdBudgetDelta(ctx context.Context, ownerID string, campaign *models.Campaign, ad *models.Ad, newBudget int64) error {
	oldAlloc := ad.Budget
	if oldAlloc < 0 {
		oldAlloc = 0
	}
	newAlloc := newBudget
	if newAlloc < 0 {
		newAlloc = 0
	}

	if newAlloc > 0 && newAlloc < ad.Spent {
		return ErrBudgetExceeded
	}

	// Spent cents stay accounted for in the campaign when the cap is
	// removed; only the unspent remainder is released.
	effectiveNew := newAlloc
	if effectiveNew == 0 {
		effectiveNew = ad.Spent
	}
	if oldAlloc == 0 {
		effectiveNew = newAlloc
	}

	delta := effectiveNew - oldAlloc
	switch {
	case delta > 0:
		if err := f.allocate(ctx, ownerID, campaign, ad.ID, delta); err != nil {
			return err
		}
	case delta < 0:
		if err := f.release(ctx, ownerID, campaign, ad.ID, -delta); err != nil {
			return err
		}
	}

	ad.Budget = newBudget
	return nil
}

// allocate reserves delta cents of ad budget out of the campaign. The
// campaign guard rejects over-allocation; uncapped campaigns fund the
// allocation from the owner wallet.
func (f *AdFlowImpl) allocate(ctx context.Context, ownerID string, campaign *models.Campaign, adID uint, delta int64) error {
	if err := f.campaignRepo.AddToSpent(ctx, campaign.ID, delta); err != nil {
		if errors.Is(err, repository.ErrBudgetGuard) {
			return ErrAdBudgetUnallocated
		}
		return err
	}
	if campaign.Budget == nil || *campaign.Budget == 0 {
		_, err := f.walletFlow.DeductAdBudget(ctx, ownerID, campaign.ID, adID, utils.Money(delta))
		return err
	}
	return nil
}

// release returns delta cents of ad budget to the campaign, and to the
// owner wallet when the campaign is uncapped
func (f *AdFlowImpl) release(ctx context.Context, ownerID string, campaign *models.Campaign, adID uint, delta int64) error {
	if err := f.campaignRepo.SubtractFromSpent(ctx, campaign.ID, delta); err != nil {
		return err
	}
	if campaign.Budget == nil || *campaign.Budget == 0 {
		_, err := f.walletFlow.RefundAdBudget(ctx, ownerID, campaign.ID, adID, utils.Money(delta))
		return err
	}
	return nil
}

// DeleteAd releases the unspent own budget back to the campaign and
// hard-deletes the ad
func (f *AdFlowImpl) DeleteAd(ctx context.Context, requesterID, teamUUID, campaignUUID, adUUID string) error {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return err
	}

	err = f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		campaign, err := f.lockTeamCampaign(txCtx, team, campaignUUID)
		if err != nil {
			return err
		}
		ad, err := f.lockCampaignAd(txCtx, campaign, adUUID)
		if err != nil {
			return err
		}

		if ad.HasOwnBudget() {
			unspent := ad.Budget - ad.Spent
			if unspent > 0 {
				if err := f.release(txCtx, team.OwnerID, campaign, ad.ID, unspent); err != nil {
					return err
				}
			}
		}
		return f.adRepo.Delete(txCtx, ad.ID)
	})
	if err != nil {
		return f.mapAdError(err, "DELETE_AD_FAILED", "Failed to delete ad")
	}
	return nil
}

// GetAd returns one ad scoped to the requester's campaign
func (f *AdFlowImpl) GetAd(ctx context.Context, requesterID, teamUUID, campaignUUID, adUUID string) (*dto.AdDTO, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}
	campaign, err := f.teamCampaign(ctx, team, campaignUUID)
	if err != nil {
		return nil, err
	}
	ad, err := f.campaignAd(ctx, campaign, adUUID)
	if err != nil {
		return nil, err
	}
	return toAdDTO(ad, campaign.UUID.String()), nil
}

// ListAds returns a page of the campaign's ads, newest first
func (f *AdFlowImpl) ListAds(ctx context.Context, requesterID, teamUUID, campaignUUID string, page, pageSize int) (*dto.ListAdsResponse, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}
	campaign, err := f.teamCampaign(ctx, team, campaignUUID)
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
		return nil, NewBusinessError("LIST_ADS_VALIDATION_FAILED", "Page must be positive", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("LIST_ADS_VALIDATION_FAILED", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter := models.AdFilter{CampaignID: &campaign.ID}
	total, err := f.adRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_ADS_FAILED", "Failed to count ads", err)
	}
	ads, err := f.adRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_ADS_FAILED", "Failed to list ads", err)
	}

	items := make([]dto.AdDTO, 0, len(ads))
	for _, ad := range ads {
		items = append(items, *toAdDTO(ad, campaign.UUID.String()))
	}

	totalPages := uint(math.Ceil(float64(total) / float64(pageSize)))
	return &dto.ListAdsResponse{
		Ads: items,
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

// ValidateAdBudget reports whether a requested own budget fits in the
// campaign's unallocated remainder. Uncapped campaigns accept any
// budget; the remainder is reported as -1.
func (f *AdFlowImpl) ValidateAdBudget(ctx context.Context, requesterID, teamUUID, campaignUUID string, requested *int64) (*dto.AdBudgetValidationDTO, error) {
	team, err := f.authorizeTeam(ctx, requesterID, teamUUID)
	if err != nil {
		return nil, err
	}
	campaign, err := f.teamCampaign(ctx, team, campaignUUID)
	if err != nil {
		return nil, err
	}

	allocated, err := f.adRepo.SumOwnBudgets(ctx, campaign.ID, nil)
	if err != nil {
		return nil, NewBusinessError("VALIDATE_AD_BUDGET_FAILED", "Failed to sum allocated ad budgets", err)
	}

	out := &dto.AdBudgetValidationDTO{
		Valid:          true,
		CampaignCents:  campaign.Budget,
		AllocatedCents: allocated,
	}

	if campaign.Budget == nil || *campaign.Budget == 0 {
		out.RemainingCents = -1
		return out, nil
	}

	remaining := *campaign.Budget - allocated
	if remaining < 0 {
		remaining = 0
	}
	out.RemainingCents = remaining

	if requested != nil && *requested > 0 && *requested > remaining {
		out.Valid = false
		out.Reason = "requested budget exceeds the unallocated campaign budget"
	}
	return out, nil
}

// validateCreateAd validates the business rules for creating an ad
func (f *AdFlowImpl) validateCreateAd(req *dto.CreateAdRequest) error {
	if req.Title == "" {
		return ErrAdTitleRequired
	}
	if len(req.Categories) == 0 {
		return ErrAdCategoriesEmpty
	}
	if req.VideoURL == "" {
		return ErrAdVideoURLRequired
	}
	return nil
}

func (f *AdFlowImpl) mapAdError(err error, code, message string) error {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		return NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", err)
	case errors.Is(err, ErrAdNotFound):
		return NewBusinessError("AD_NOT_FOUND", "Ad not found", err)
	case errors.Is(err, ErrAdBudgetUnallocated):
		return NewBusinessError("AD_BUDGET_UNALLOCATED", "Requested budget exceeds the unallocated campaign budget", err)
	case errors.Is(err, ErrInsufficientFunds):
		return NewBusinessError("INSUFFICIENT_FUNDS", "Wallet balance cannot cover the ad budget", err)
	case errors.Is(err, ErrBudgetExceeded):
		return NewBusinessError("BUDGET_EXCEEDED", "New budget is below the amount already spent", err)
	case IsValidation(err):
		return NewBusinessError("AD_VALIDATION_FAILED", "Ad validation failed", err)
	}
	return NewBusinessError(code, message, err)
}

// authorizeTeam resolves the team and checks the requester owns it
func (f *AdFlowImpl) authorizeTeam(ctx context.Context, requesterID, teamUUID string) (*models.Team, error) {
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
func (f *AdFlowImpl) teamCampaign(ctx context.Context, team *models.Team, campaignUUID string) (*models.Campaign, error) {
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
func (f *AdFlowImpl) lockTeamCampaign(ctx context.Context, team *models.Team, campaignUUID string) (*models.Campaign, error) {
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

// campaignAd resolves an ad and checks it belongs to the campaign
func (f *AdFlowImpl) campaignAd(ctx context.Context, campaign *models.Campaign, adUUID string) (*models.Ad, error) {
	ad, err := f.adRepo.ByUUID(ctx, adUUID)
	if err != nil {
		return nil, NewBusinessError("AD_LOOKUP_FAILED", "Failed to look up ad", err)
	}
	if ad == nil || ad.CampaignID != campaign.ID {
		return nil, NewBusinessError("AD_NOT_FOUND", "Ad not found", ErrAdNotFound)
	}
	return ad, nil
}

// lockCampaignAd resolves a campaign's ad and re-reads it FOR UPDATE;
// must run inside a transaction
func (f *AdFlowImpl) lockCampaignAd(ctx context.Context, campaign *models.Campaign, adUUID string) (*models.Ad, error) {
	ad, err := f.adRepo.ByUUID(ctx, adUUID)
	if err != nil {
		return nil, err
	}
	if ad == nil || ad.CampaignID != campaign.ID {
		return nil, ErrAdNotFound
	}
	locked, err := f.adRepo.LockByID(ctx, ad.ID)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, ErrAdNotFound
	}
	return locked, nil
}

func toAdDTO(ad *models.Ad, campaignUUID string) *dto.AdDTO {
	return &dto.AdDTO{
		UUID:         ad.UUID.String(),
		CampaignUUID: campaignUUID,
		Title:        ad.Title,
		Description:  ad.Description,
		Status:       string(ad.Status),
		BudgetCents:  ad.Budget,
		SpentCents:   ad.Spent,
		Categories:   ad.Categories,
		Tags:         ad.Tags,
		VideoURL:     ad.VideoURL,
		ThumbnailURL: ad.ThumbnailURL,
		CTALink:      ad.CTALink,
		CreatedAt:    ad.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    ad.UpdatedAt.Format(time.RFC3339),
	}
}
