// Package businessflow contains the core business logic for impression
// confirmation and billing.
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/services"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/repository"
)

// ImpressionFlow handles the confirmation side of the reservation
// protocol: state transitions, billing, and the creator-revenue
// notification.
type ImpressionFlow interface {
	ConfirmImpression(ctx context.Context, req *dto.ConfirmImpressionRequest, metadata *ClientMetadata) (*dto.ConfirmImpressionResponse, error)
	GetImpression(ctx context.Context, token string) (*dto.ImpressionDTO, error)
}

// ImpressionFlowImpl implements the impression confirmation business flow
type ImpressionFlowImpl struct {
	impressionRepo repository.ImpressionRepository
	adRepo         repository.AdRepository
	campaignRepo   repository.CampaignRepository
	tokenService   services.ImpressionTokenService
	monetization   services.MonetizationClient
	txm            repository.TxManager
	clk            clock.Clock
}

// NewImpressionFlow creates a new impression flow instance
func NewImpressionFlow(
	impressionRepo repository.ImpressionRepository,
	adRepo repository.AdRepository,
	campaignRepo repository.CampaignRepository,
	tokenService services.ImpressionTokenService,
	monetization services.MonetizationClient,
	txm repository.TxManager,
	clk clock.Clock,
) ImpressionFlow {
	return &ImpressionFlowImpl{
		impressionRepo: impressionRepo,
		adRepo:         adRepo,
		campaignRepo:   campaignRepo,
		tokenService:   tokenService,
		monetization:   monetization,
		txm:            txm,
		clk:            clk,
	}
}

// ConfirmImpression applies one client-reported event to an impression.
// The served event bills the ad or its campaign inside one transaction;
// clicked, completed and skipped only track. A successful billing commit
// fires the creator-revenue notification outside the transaction.
func (f *ImpressionFlowImpl) ConfirmImpression(ctx context.Context, req *dto.ConfirmImpressionRequest, metadata *ClientMetadata) (*dto.ConfirmImpressionResponse, error) {
	if err := f.validateConfirmRequest(req); err != nil {
		return nil, NewBusinessError("CONFIRM_IMPRESSION_VALIDATION_FAILED", "Confirm impression validation failed", err)
	}

	if _, err := f.tokenService.Decode(req.Token); err != nil {
		if errors.Is(err, services.ErrTokenExpired) {
			// The row still exists; flip it to expired so later debug
			// lookups agree with the rejection.
			f.expireRow(ctx, req.Token)
			return nil, NewBusinessError("IMPRESSION_EXPIRED", "Impression token has expired", ErrTokenExpired)
		}
		return nil, NewBusinessError("IMPRESSION_TOKEN_INVALID", "Impression token is invalid", ErrTokenInvalid)
	}

	event := models.ImpressionEvent(req.Event)
	now := f.clk.Now().UTC()

	var impression *models.Impression
	var billing *dto.BillingDetails

	err := f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		impression, err = f.impressionRepo.LockByToken(txCtx, req.Token)
		if err != nil {
			return err
		}
		if impression == nil {
			return ErrImpressionNotFound
		}

		if impression.Status == models.ImpressionStatusExpired {
			return ErrImpressionExpired
		}
		if !impression.Status.IsTerminal() && impression.IsExpired(now) {
			impression.Status = models.ImpressionStatusExpired
			if err := f.impressionRepo.Update(txCtx, impression); err != nil {
				return err
			}
			return ErrImpressionExpired
		}

		if !impression.CanTransition(event) {
			return fmt.Errorf("%w: allowed events are %v", ErrInvalidTransition, impression.AllowedEvents())
		}

		if event == models.ImpressionEventServed {
			billing, err = f.bill(txCtx, impression)
			if err != nil {
				return err
			}
			impression.Status = models.ImpressionStatusServed
		} else {
			impression.Status = models.ImpressionStatusConfirmed
			impression.Action = event.Action()
		}

		impression.ConfirmedAt = &now
		f.reconcileIdentity(impression, req)
		f.applyMetadata(impression, req, metadata)

		return f.impressionRepo.Update(txCtx, impression)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrImpressionNotFound):
			return nil, NewBusinessError("IMPRESSION_NOT_FOUND", "Impression not found", err)
		case errors.Is(err, ErrImpressionExpired):
			return nil, NewBusinessError("IMPRESSION_EXPIRED", "Impression has expired", err)
		case errors.Is(err, ErrInvalidTransition):
			return nil, NewBusinessError("INVALID_TRANSITION", "Event is not allowed in the current impression state", err)
		case errors.Is(err, ErrBudgetExceeded):
			return nil, NewBusinessError("BUDGET_EXCEEDED", "Budget exceeded", err)
		}
		return nil, NewBusinessError("CONFIRM_IMPRESSION_FAILED", "Failed to confirm impression", err)
	}

	if event == models.ImpressionEventServed {
		// Post-commit, fire and forget. Failures are logged and never
		// surfaced to the caller.
		go f.notifyMonetization(impression)
	}

	return &dto.ConfirmImpressionResponse{
		Success:        true,
		Message:        fmt.Sprintf("Impression %s recorded", event),
		Status:         string(impression.Status),
		Action:         string(impression.Action),
		BillingDetails: billing,
	}, nil
}

// bill charges one impression cost against the ad's own budget when it
// has one, else against the campaign. Rows are locked so concurrent
// confirms for the last credits serialize; the loser gets
// ErrBudgetExceeded.
func (f *ImpressionFlowImpl) bill(ctx context.Context, impression *models.Impression) (*dto.BillingDetails, error) {
	ad, err := f.adRepo.LockByID(ctx, impression.AdID)
	if err != nil {
		return nil, err
	}
	if ad == nil {
		return nil, ErrAdNotFound
	}
	campaign, err := f.campaignRepo.LockByID(ctx, ad.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	cost := impression.CostCents
	billing := &dto.BillingDetails{CostCents: cost}

	if ad.HasOwnBudget() {
		if err := f.adRepo.AddToSpent(ctx, ad.ID, cost); err != nil {
			if errors.Is(err, repository.ErrBudgetGuard) {
				return nil, ErrBudgetExceeded
			}
			return nil, err
		}
		remaining := ad.Budget - ad.Spent - cost
		billing.RemainingBudget = &remaining
		return billing, nil
	}

	if err := f.campaignRepo.AddToSpent(ctx, campaign.ID, cost); err != nil {
		if errors.Is(err, repository.ErrBudgetGuard) {
			return nil, ErrBudgetExceeded
		}
		return nil, err
	}
	if campaign.Budget != nil && *campaign.Budget > 0 {
		remaining := *campaign.Budget - campaign.Spent - cost
		billing.RemainingBudget = &remaining
	}
	return billing, nil
}

// reconcileIdentity promotes anonymous impressions to a known viewer. A
// supplied user ID wins and clears the anon ID; a supplied anon ID only
// sticks when no viewer is known yet.
func (f *ImpressionFlowImpl) reconcileIdentity(impression *models.Impression, req *dto.ConfirmImpressionRequest) {
	if req.UserID != nil && *req.UserID != "" {
		impression.ViewerID = req.UserID
		impression.AnonID = nil
		return
	}
	if req.AnonID != nil && *req.AnonID != "" && impression.ViewerID == nil {
		impression.AnonID = req.AnonID
	}
}

// applyMetadata copies the optional client playback details onto the row
func (f *ImpressionFlowImpl) applyMetadata(impression *models.Impression, req *dto.ConfirmImpressionRequest, metadata *ClientMetadata) {
	if req.Metadata != nil {
		if req.Metadata.UserAgent != nil {
			impression.UserAgent = req.Metadata.UserAgent
		}
		if req.Metadata.IPAddress != nil {
			impression.IPAddress = req.Metadata.IPAddress
		}
		if req.Metadata.ViewDuration != nil {
			impression.ViewDuration = req.Metadata.ViewDuration
		}
		if req.Metadata.VideoProgress != nil {
			impression.VideoProgress = req.Metadata.VideoProgress
		}
	}
	if metadata != nil {
		if impression.UserAgent == nil && metadata.UserAgent != "" {
			ua := metadata.UserAgent
			impression.UserAgent = &ua
		}
		if impression.IPAddress == nil && metadata.IPAddress != "" {
			ip := metadata.IPAddress
			impression.IPAddress = &ip
		}
		if impression.DeviceType == models.DeviceTypeUnknown || impression.DeviceType == "" {
			impression.DeviceType = metadata.DeviceType
		}
		if impression.OSType == models.OSTypeUnknown || impression.OSType == "" {
			impression.OSType = metadata.OSType
		}
	}
}

// expireRow best-effort flips a still-live row to expired after its
// token failed the expiry check
func (f *ImpressionFlowImpl) expireRow(ctx context.Context, token string) {
	err := f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		impression, err := f.impressionRepo.LockByToken(txCtx, token)
		if err != nil {
			return err
		}
		if impression == nil || impression.Status.IsTerminal() {
			return nil
		}
		impression.Status = models.ImpressionStatusExpired
		return f.impressionRepo.Update(txCtx, impression)
	})
	if err != nil {
		log.Printf("failed to expire impression row: %v", err)
	}
}

// notifyMonetization posts the billed impression to the creator-revenue
// service with its own timeout-bounded context
func (f *ImpressionFlowImpl) notifyMonetization(impression *models.Impression) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := f.monetization.NotifyAdConfirmed(ctx, services.AdConfirmedNotification{
		VideoID:   impression.VideoID,
		ViewerID:  impression.ViewerID,
		AdID:      impression.AdID,
		CostCents: impression.CostCents,
	})
	if err != nil {
		log.Printf("creator revenue notification failed for impression %d: %v", impression.ID, err)
	}
}

// validateConfirmRequest validates the business rules for confirming an impression
func (f *ImpressionFlowImpl) validateConfirmRequest(req *dto.ConfirmImpressionRequest) error {
	if req.Token == "" {
		return ErrTokenInvalid
	}
	if !models.ImpressionEvent(req.Event).Valid() {
		return ErrInvalidEvent
	}
	hasUser := req.UserID != nil && *req.UserID != ""
	hasAnon := req.AnonID != nil && *req.AnonID != ""
	if hasUser && hasAnon {
		return ErrConflictingIdentity
	}
	return nil
}

// GetImpression is the debug lookup by token
func (f *ImpressionFlowImpl) GetImpression(ctx context.Context, token string) (*dto.ImpressionDTO, error) {
	impression, err := f.impressionRepo.ByToken(ctx, token)
	if err != nil {
		return nil, NewBusinessError("GET_IMPRESSION_FAILED", "Failed to look up impression", err)
	}
	if impression == nil {
		return nil, NewBusinessError("IMPRESSION_NOT_FOUND", "Impression not found", ErrImpressionNotFound)
	}
	return toImpressionDTO(impression), nil
}

func toImpressionDTO(i *models.Impression) *dto.ImpressionDTO {
	out := &dto.ImpressionDTO{
		ID:            i.ID,
		Token:         i.Token,
		AdID:          i.AdID,
		CampaignID:    i.CampaignID,
		Status:        string(i.Status),
		Action:        string(i.Action),
		CostCents:     i.CostCents,
		ExpiresAt:     i.ExpiresAt.Format(time.RFC3339),
		ViewerID:      i.ViewerID,
		AnonID:        i.AnonID,
		SessionID:     i.SessionID,
		VideoID:       i.VideoID,
		Category:      i.Category,
		Tags:          i.Tags,
		DeviceType:    string(i.DeviceType),
		OSType:        string(i.OSType),
		ViewDuration:  i.ViewDuration,
		VideoProgress: i.VideoProgress,
		CreatedAt:     i.CreatedAt.Format(time.RFC3339),
	}
	if i.ServedAt != nil {
		servedAt := i.ServedAt.Format(time.RFC3339)
		out.ServedAt = &servedAt
	}
	if i.ConfirmedAt != nil {
		confirmedAt := i.ConfirmedAt.Format(time.RFC3339)
		out.ConfirmedAt = &confirmedAt
	}
	return out
}
