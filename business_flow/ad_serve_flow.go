// Package businessflow contains the core business logic for ad serving.
package businessflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/services"
	"github.com/videostreampro/adserver/config"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/repository"
)

// errCandidateLost marks a candidate that failed the transactional
// re-check; the serve loop moves on to the next ranked candidate.
var errCandidateLost = errors.New("candidate lost eligibility under lock")

// AdServeFlow handles the ad selection and reservation business logic
type AdServeFlow interface {
	ServeAd(ctx context.Context, req *dto.ServeAdRequest, metadata *ClientMetadata) (*dto.ServeAdResponse, error)
}

// AdServeFlowImpl implements the ad serving business flow
type AdServeFlowImpl struct {
	adRepo         repository.AdRepository
	campaignRepo   repository.CampaignRepository
	impressionRepo repository.ImpressionRepository
	tokenService   services.ImpressionTokenService
	txm            repository.TxManager
	scorer         *Scorer
	clk            clock.Clock
	cfg            config.AdServingConfig
}

// NewAdServeFlow creates a new ad serve flow instance
func NewAdServeFlow(
	adRepo repository.AdRepository,
	campaignRepo repository.CampaignRepository,
	impressionRepo repository.ImpressionRepository,
	tokenService services.ImpressionTokenService,
	txm repository.TxManager,
	scorer *Scorer,
	clk clock.Clock,
	cfg config.AdServingConfig,
) AdServeFlow {
	return &AdServeFlowImpl{
		adRepo:         adRepo,
		campaignRepo:   campaignRepo,
		impressionRepo: impressionRepo,
		tokenService:   tokenService,
		txm:            txm,
		scorer:         scorer,
		clk:            clk,
		cfg:            cfg,
	}
}

// ServeAd selects one eligible ad and reserves an impression for it.
// Reservation does not charge; billing happens on the later served
// confirmation.
func (f *AdServeFlowImpl) ServeAd(ctx context.Context, req *dto.ServeAdRequest, metadata *ClientMetadata) (*dto.ServeAdResponse, error) {
	if err := f.validateServeRequest(req); err != nil {
		return nil, NewBusinessError("SERVE_AD_VALIDATION_FAILED", "Serve ad validation failed", err)
	}

	now := f.clk.Now().UTC()

	candidates, err := f.adRepo.FetchCandidates(ctx, req.Category, req.Tags, now, f.cfg.MaxCandidates)
	if err != nil {
		return nil, NewBusinessError("SERVE_AD_FAILED", "Failed to fetch candidates", err)
	}
	if len(candidates) == 0 {
		// Fallback pool: every active ad in its date window, so fill
		// rate survives narrow targeting.
		candidates, err = f.adRepo.FetchCandidates(ctx, nil, nil, now, f.cfg.MaxCandidates)
		if err != nil {
			return nil, NewBusinessError("SERVE_AD_FAILED", "Failed to fetch fallback candidates", err)
		}
	}
	if len(candidates) == 0 {
		return noFillResponse(), nil
	}

	ranked := f.scorer.Select(candidates, req.Category, req.Tags)
	if len(ranked) == 0 {
		return noFillResponse(), nil
	}

	retries := f.cfg.ReserveRetries
	if retries > len(ranked) {
		retries = len(ranked)
	}

	for i := 0; i < retries; i++ {
		impression, ad, err := f.reserve(ctx, ranked[i].Ad.ID, req, metadata, now)
		if err != nil {
			if errors.Is(err, errCandidateLost) {
				continue
			}
			return nil, NewBusinessError("SERVE_AD_FAILED", "Failed to reserve impression", err)
		}
		return serveResponse(ad, impression), nil
	}

	// Every tried candidate lost its budget or status between scoring
	// and the locked re-check.
	return noFillResponse(), nil
}

// reserve re-checks one candidate under row locks and inserts the
// reserved impression with its final token, all in one transaction.
func (f *AdServeFlowImpl) reserve(ctx context.Context, adID uint, req *dto.ServeAdRequest, metadata *ClientMetadata, now time.Time) (*models.Impression, *models.Ad, error) {
	var impression *models.Impression
	var ad *models.Ad

	err := f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		ad, err = f.adRepo.LockByID(txCtx, adID)
		if err != nil {
			return err
		}
		if ad == nil || ad.Status != models.AdStatusActive {
			return errCandidateLost
		}

		campaign, err := f.campaignRepo.LockByID(txCtx, ad.CampaignID)
		if err != nil {
			return err
		}
		if campaign == nil || !campaign.IsActive(now) {
			return errCandidateLost
		}
		if !hasSufficientBudget(ad, campaign, f.cfg.CostPerViewCents) {
			return errCandidateLost
		}

		impression = &models.Impression{
			// Placeholder until the row ID exists; rewritten below so
			// the externally issued token is the final one.
			Token:      uuid.NewString(),
			AdID:       ad.ID,
			CampaignID: campaign.ID,
			Status:     models.ImpressionStatusReserved,
			Action:     models.ImpressionActionView,
			CostCents:  f.cfg.CostPerViewCents,
			ExpiresAt:  now.Add(f.cfg.ImpressionTTL),
			ViewerID:   req.UserID,
			AnonID:     req.AnonID,
			SessionID:  req.SessionID,
			VideoID:    req.VideoID,
			Category:   req.Category,
			Tags:       pq.StringArray(req.Tags),
			ServedAt:   &now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if metadata != nil {
			impression.DeviceType = metadata.DeviceType
			impression.OSType = metadata.OSType
			if metadata.UserAgent != "" {
				ua := metadata.UserAgent
				impression.UserAgent = &ua
			}
			if metadata.IPAddress != "" {
				ip := metadata.IPAddress
				impression.IPAddress = &ip
			}
		}

		if err := f.impressionRepo.Save(txCtx, impression); err != nil {
			return err
		}

		token, err := f.tokenService.Encode(impression.ID, impression.ExpiresAt)
		if err != nil {
			return ErrImpressionTokenRewrite
		}
		impression.Token = token
		return f.impressionRepo.Update(txCtx, impression)
	})
	if err != nil {
		return nil, nil, err
	}
	return impression, ad, nil
}

// validateServeRequest validates the business rules for serving an ad
func (f *AdServeFlowImpl) validateServeRequest(req *dto.ServeAdRequest) error {
	if req.VideoID == "" {
		return ErrVideoIDRequired
	}
	hasCategory := req.Category != nil && *req.Category != ""
	if !hasCategory && len(req.Tags) == 0 {
		return ErrTargetingRequired
	}
	hasUser := req.UserID != nil && *req.UserID != ""
	hasAnon := req.AnonID != nil && *req.AnonID != ""
	if hasUser && hasAnon {
		return ErrConflictingIdentity
	}
	if !hasUser && !hasAnon {
		return ErrIdentityRequired
	}
	return nil
}

func noFillResponse() *dto.ServeAdResponse {
	return &dto.ServeAdResponse{Reason: "no_eligible_ads"}
}

func serveResponse(ad *models.Ad, impression *models.Impression) *dto.ServeAdResponse {
	return &dto.ServeAdResponse{
		Ad: &dto.ServedAdDTO{
			ID:           ad.UUID.String(),
			Title:        ad.Title,
			Description:  ad.Description,
			VideoURL:     ad.VideoURL,
			ThumbnailURL: ad.ThumbnailURL,
			Categories:   ad.Categories,
			Tags:         ad.Tags,
			CTALink:      ad.CTALink,
		},
		ImpressionToken: impression.Token,
		CostCents:       impression.CostCents,
		ExpiresAt:       impression.ExpiresAt.Format(time.RFC3339),
	}
}
