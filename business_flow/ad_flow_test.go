package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/utils"
)

type adEnv struct {
	teamRepo     *fakeTeamRepo
	campaignRepo *fakeCampaignRepo
	adRepo       *fakeAdRepo
	walletRepo   *fakeWalletRepo
	walletFlow   WalletFlow
	flow         AdFlow
	team         *models.Team
}

func newAdEnv(t *testing.T) *adEnv {
	t.Helper()
	teamRepo := newFakeTeamRepo()
	campaignRepo := newFakeCampaignRepo()
	adRepo := newFakeAdRepo(campaignRepo)
	walletRepo := newFakeWalletRepo()
	transactionRepo := newFakeTransactionRepo()
	clk := clock.NewTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	walletFlow := NewWalletFlow(walletRepo, transactionRepo, fakeTxManager{}, clk)

	team := &models.Team{Name: "growth", OwnerID: "owner-1"}
	require.NoError(t, teamRepo.Save(context.Background(), team))

	return &adEnv{
		teamRepo:     teamRepo,
		campaignRepo: campaignRepo,
		adRepo:       adRepo,
		walletRepo:   walletRepo,
		walletFlow:   walletFlow,
		flow:         NewAdFlow(teamRepo, campaignRepo, adRepo, walletFlow, fakeTxManager{}, clk),
		team:         team,
	}
}

func (e *adEnv) seedCampaign(t *testing.T, budget *int64) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		TeamID: e.team.ID,
		Name:   "spring push",
		Status: models.CampaignStatusActive,
		Budget: budget,
	}
	require.NoError(t, e.campaignRepo.Save(context.Background(), campaign))
	return campaign
}

func createAdRequest(budget *int64) *dto.CreateAdRequest {
	return &dto.CreateAdRequest{
		Title:       "creative",
		BudgetCents: budget,
		Categories:  []string{"sports"},
		Tags:        []string{"football"},
		VideoURL:    "https://cdn.example.com/creative.mp4",
		Activate:    true,
	}
}

func TestCreateAdWithOwnBudgetAllocatesFromCampaign(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)

	created, err := env.flow.CreateAd(context.Background(), "owner-1", env.team.UUID.String(), campaign.UUID.String(), createAdRequest(int64Ptr(400)))
	require.NoError(t, err)
	assert.Equal(t, int64(400), created.BudgetCents)
	assert.Equal(t, "active", created.Status)

	assert.Equal(t, int64(400), env.campaignRepo.stored(campaign.ID).Spent)
}

func TestCreateAdOverAllocationRejected(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	_, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(int64Ptr(700)))
	require.NoError(t, err)

	_, err = env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(int64Ptr(400)))
	assert.ErrorIs(t, err, ErrAdBudgetUnallocated)
	assert.Equal(t, int64(700), env.campaignRepo.stored(campaign.ID).Spent)
}

func TestCreateAdInheritedTakesNoAllocation(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)

	created, err := env.flow.CreateAd(context.Background(), "owner-1", env.team.UUID.String(), campaign.UUID.String(), createAdRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, models.InheritedBudget, created.BudgetCents)
	assert.Equal(t, int64(0), env.campaignRepo.stored(campaign.ID).Spent)
}

func TestCreateAdUnderUncappedCampaignFundsFromWallet(t *testing.T) {
	env := newAdEnv(t)
	campaign := env.seedCampaign(t, nil)
	ctx := context.Background()

	_, err := env.walletFlow.AddFunds(ctx, "owner-1", utils.Money(1000), "", "")
	require.NoError(t, err)

	_, err = env.flow.CreateAd(ctx, "owner-1", env.team.UUID.String(), campaign.UUID.String(), createAdRequest(int64Ptr(400)))
	require.NoError(t, err)

	wallet, err := env.walletRepo.ByOwnerID(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), wallet.Balance)
	assert.Equal(t, int64(400), env.campaignRepo.stored(campaign.ID).Spent)

	_, err = env.flow.CreateAd(ctx, "owner-1", env.team.UUID.String(), campaign.UUID.String(), createAdRequest(int64Ptr(5000)))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestCreateAdValidation(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	req := createAdRequest(nil)
	req.Title = ""
	_, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), req)
	assert.ErrorIs(t, err, ErrAdTitleRequired)

	req = createAdRequest(nil)
	req.Categories = nil
	_, err = env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), req)
	assert.ErrorIs(t, err, ErrAdCategoriesEmpty)

	req = createAdRequest(nil)
	req.VideoURL = ""
	_, err = env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), req)
	assert.ErrorIs(t, err, ErrAdVideoURLRequired)

	_, err = env.flow.CreateAd(ctx, "intruder", teamUUID, campaign.UUID.String(), createAdRequest(nil))
	assert.ErrorIs(t, err, ErrTeamAccessDenied)
}

func TestUpdateAdBudgetDeltas(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	created, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(int64Ptr(400)))
	require.NoError(t, err)

	// Increase carves more out of the campaign.
	updated, err := env.flow.UpdateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), created.UUID, &dto.UpdateAdRequest{
		BudgetCents: int64Ptr(600),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), updated.BudgetCents)
	assert.Equal(t, int64(600), env.campaignRepo.stored(campaign.ID).Spent)

	// Decrease hands the difference back.
	_, err = env.flow.UpdateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), created.UUID, &dto.UpdateAdRequest{
		BudgetCents: int64Ptr(250),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), env.campaignRepo.stored(campaign.ID).Spent)

	// An increase past the campaign remainder is rejected.
	_, err = env.flow.UpdateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), created.UUID, &dto.UpdateAdRequest{
		BudgetCents: int64Ptr(2000),
	})
	assert.ErrorIs(t, err, ErrAdBudgetUnallocated)
}

func TestUpdateAdBudgetBelowSpentRejected(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	created, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(int64Ptr(400)))
	require.NoError(t, err)

	ad, err := env.adRepo.ByUUID(ctx, created.UUID)
	require.NoError(t, err)
	env.adRepo.stored(ad.ID).Spent = 300

	_, err = env.flow.UpdateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), created.UUID, &dto.UpdateAdRequest{
		BudgetCents: int64Ptr(250),
	})
	assert.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestUpdateAdRemovingCapReleasesUnspent(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	created, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(int64Ptr(400)))
	require.NoError(t, err)

	ad, err := env.adRepo.ByUUID(ctx, created.UUID)
	require.NoError(t, err)
	env.adRepo.stored(ad.ID).Spent = 100

	updated, err := env.flow.UpdateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), created.UUID, &dto.UpdateAdRequest{
		BudgetCents: int64Ptr(models.InheritedBudget),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InheritedBudget, updated.BudgetCents)

	// The spent 100 stays accounted for; only the unspent 300 is released.
	assert.Equal(t, int64(100), env.campaignRepo.stored(campaign.ID).Spent)
}

func TestDeleteAdReleasesUnspent(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	created, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(int64Ptr(400)))
	require.NoError(t, err)

	ad, err := env.adRepo.ByUUID(ctx, created.UUID)
	require.NoError(t, err)
	env.adRepo.stored(ad.ID).Spent = 150

	err = env.flow.DeleteAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), created.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), env.campaignRepo.stored(campaign.ID).Spent)

	gone, err := env.adRepo.ByUUID(ctx, created.UUID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestValidateAdBudget(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	_, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(int64Ptr(700)))
	require.NoError(t, err)

	result, err := env.flow.ValidateAdBudget(ctx, "owner-1", teamUUID, campaign.UUID.String(), int64Ptr(200))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, int64(700), result.AllocatedCents)
	assert.Equal(t, int64(300), result.RemainingCents)

	result, err = env.flow.ValidateAdBudget(ctx, "owner-1", teamUUID, campaign.UUID.String(), int64Ptr(400))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Reason)

	// The inherited sentinel is always acceptable.
	result, err = env.flow.ValidateAdBudget(ctx, "owner-1", teamUUID, campaign.UUID.String(), int64Ptr(models.InheritedBudget))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateAdBudgetUncappedCampaign(t *testing.T) {
	env := newAdEnv(t)
	campaign := env.seedCampaign(t, nil)

	result, err := env.flow.ValidateAdBudget(context.Background(), "owner-1", env.team.UUID.String(), campaign.UUID.String(), int64Ptr(999999))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, int64(-1), result.RemainingCents)
}

func TestGetAndListAdsScopedToCampaign(t *testing.T) {
	env := newAdEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	other := env.seedCampaign(t, &budget)
	ctx := context.Background()
	teamUUID := env.team.UUID.String()

	created, err := env.flow.CreateAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), createAdRequest(nil))
	require.NoError(t, err)

	found, err := env.flow.GetAd(ctx, "owner-1", teamUUID, campaign.UUID.String(), created.UUID)
	require.NoError(t, err)
	assert.Equal(t, created.UUID, found.UUID)

	// The ad is invisible through a different campaign.
	_, err = env.flow.GetAd(ctx, "owner-1", teamUUID, other.UUID.String(), created.UUID)
	assert.ErrorIs(t, err, ErrAdNotFound)

	page, err := env.flow.ListAds(ctx, "owner-1", teamUUID, campaign.UUID.String(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Ads, 1)
	assert.Equal(t, uint(1), page.Pagination.TotalItems)
}
