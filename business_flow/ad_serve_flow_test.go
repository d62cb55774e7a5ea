package businessflow

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/services"
	"github.com/videostreampro/adserver/models"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

// hookedAdRepo lets a test mutate state between candidate fetch and the
// locked re-check, simulating a concurrent writer.
type hookedAdRepo struct {
	*fakeAdRepo
	onLock func(id uint)
}

func (r *hookedAdRepo) LockByID(ctx context.Context, id uint) (*models.Ad, error) {
	if r.onLock != nil {
		r.onLock(id)
	}
	return r.fakeAdRepo.LockByID(ctx, id)
}

type serveEnv struct {
	campaignRepo   *fakeCampaignRepo
	adRepo         *hookedAdRepo
	impressionRepo *fakeImpressionRepo
	tokens         services.ImpressionTokenService
	clk            *clock.TestClock
	flow           AdServeFlow
}

func newServeEnv(t *testing.T) *serveEnv {
	t.Helper()
	campaignRepo := newFakeCampaignRepo()
	adRepo := &hookedAdRepo{fakeAdRepo: newFakeAdRepo(campaignRepo)}
	impressionRepo := newFakeImpressionRepo()
	clk := clock.NewTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	tokens, err := services.NewImpressionTokenService(testTokenSecret, clk)
	require.NoError(t, err)

	cfg := testAdServingConfig()
	scorer := NewScorer(cfg, rand.New(rand.NewSource(1)))
	return &serveEnv{
		campaignRepo:   campaignRepo,
		adRepo:         adRepo,
		impressionRepo: impressionRepo,
		tokens:         tokens,
		clk:            clk,
		flow:           NewAdServeFlow(adRepo, campaignRepo, impressionRepo, tokens, fakeTxManager{}, scorer, clk, cfg),
	}
}

func (e *serveEnv) seedCampaign(t *testing.T, budget *int64) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		TeamID: 1,
		Name:   "spring push",
		Status: models.CampaignStatusActive,
		Budget: budget,
	}
	require.NoError(t, e.campaignRepo.Save(context.Background(), campaign))
	return campaign
}

func (e *serveEnv) seedAd(t *testing.T, campaign *models.Campaign, budget int64, categories, tags []string) *models.Ad {
	t.Helper()
	ad := &models.Ad{
		CampaignID: campaign.ID,
		Status:     models.AdStatusActive,
		Title:      "creative",
		Budget:     budget,
		Categories: categories,
		Tags:       tags,
		VideoURL:   "https://cdn.example.com/creative.mp4",
	}
	require.NoError(t, e.adRepo.Save(context.Background(), ad))
	return ad
}

func serveRequest(category *string, tags []string) *dto.ServeAdRequest {
	anon := "anon-1"
	return &dto.ServeAdRequest{
		VideoID:  "vid-1",
		Category: category,
		Tags:     tags,
		AnonID:   &anon,
	}
}

func TestServeAdHappyPath(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ad := env.seedAd(t, campaign, models.InheritedBudget, []string{"sports"}, []string{"football"})

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), []string{"football"}), nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Ad)
	assert.Equal(t, ad.UUID.String(), resp.Ad.ID)
	assert.Equal(t, int64(5), resp.CostCents)
	assert.Empty(t, resp.Reason)

	claims, err := env.tokens.Decode(resp.ImpressionToken)
	require.NoError(t, err)

	impression := env.impressionRepo.stored(claims.ImpressionID)
	require.NotNil(t, impression)
	assert.Equal(t, resp.ImpressionToken, impression.Token)
	assert.Equal(t, models.ImpressionStatusReserved, impression.Status)
	assert.Equal(t, ad.ID, impression.AdID)
	assert.Equal(t, campaign.ID, impression.CampaignID)
	assert.Equal(t, int64(5), impression.CostCents)
	assert.Equal(t, env.clk.Now().UTC().Add(5*time.Minute), impression.ExpiresAt)
	require.NotNil(t, impression.AnonID)
	assert.Equal(t, "anon-1", *impression.AnonID)
	assert.Nil(t, impression.ViewerID)

	// Reservation never charges.
	assert.Equal(t, int64(0), env.campaignRepo.stored(campaign.ID).Spent)
	assert.Equal(t, int64(0), env.adRepo.stored(ad.ID).Spent)
}

func TestServeAdValidation(t *testing.T) {
	env := newServeEnv(t)
	ctx := context.Background()
	anon := "anon-1"
	user := "user-1"

	_, err := env.flow.ServeAd(ctx, &dto.ServeAdRequest{Category: strPtr("sports"), AnonID: &anon}, nil)
	assert.ErrorIs(t, err, ErrVideoIDRequired)

	_, err = env.flow.ServeAd(ctx, &dto.ServeAdRequest{VideoID: "vid-1", AnonID: &anon}, nil)
	assert.ErrorIs(t, err, ErrTargetingRequired)

	_, err = env.flow.ServeAd(ctx, &dto.ServeAdRequest{VideoID: "vid-1", Category: strPtr("sports")}, nil)
	assert.ErrorIs(t, err, ErrIdentityRequired)

	_, err = env.flow.ServeAd(ctx, &dto.ServeAdRequest{VideoID: "vid-1", Category: strPtr("sports"), AnonID: &anon, UserID: &user}, nil)
	assert.ErrorIs(t, err, ErrConflictingIdentity)
}

func TestServeAdNoFill(t *testing.T) {
	env := newServeEnv(t)

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), nil), nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Ad)
	assert.Empty(t, resp.ImpressionToken)
	assert.Equal(t, "no_eligible_ads", resp.Reason)
}

func TestServeAdFallsBackToUntargetedPool(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	ad := env.seedAd(t, campaign, models.InheritedBudget, []string{"cooking"}, nil)

	// Nothing matches the requested category; the fallback pool still
	// fills, scored on budget and bid alone.
	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), nil), nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Ad)
	assert.Equal(t, ad.UUID.String(), resp.Ad.ID)
}

func TestServeAdTargetingMatchesEitherDimension(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)

	// Matches both dimensions but its own budget is spent out.
	exhausted := env.seedAd(t, campaign, 5, []string{"tech"}, []string{"golang", "go"})
	env.adRepo.stored(exhausted.ID).Spent = 5

	// Wrong category, overlapping tags. One matching dimension keeps the
	// ad in the targeted pool when the request carries both.
	tagMatch := env.seedAd(t, campaign, models.InheritedBudget, []string{"cooking"}, []string{"golang", "go"})

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("tech"), []string{"golang", "go"}), nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Ad)
	assert.Equal(t, tagMatch.UUID.String(), resp.Ad.ID)
}

func TestServeAdSkipsInactiveAndWindowedOut(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(1000)

	pausedCampaign := env.seedCampaign(t, &budget)
	env.campaignRepo.stored(pausedCampaign.ID).Status = models.CampaignStatusPaused
	env.seedAd(t, pausedCampaign, models.InheritedBudget, []string{"sports"}, nil)

	future := env.clk.Now().Add(24 * time.Hour)
	futureCampaign := env.seedCampaign(t, &budget)
	env.campaignRepo.stored(futureCampaign.ID).StartDate = &future
	env.seedAd(t, futureCampaign, models.InheritedBudget, []string{"sports"}, nil)

	liveCampaign := env.seedCampaign(t, &budget)
	pausedAd := env.seedAd(t, liveCampaign, models.InheritedBudget, []string{"sports"}, nil)
	env.adRepo.stored(pausedAd.ID).Status = models.AdStatusPaused
	liveAd := env.seedAd(t, liveCampaign, models.InheritedBudget, []string{"sports"}, nil)

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), nil), nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Ad)
	assert.Equal(t, liveAd.UUID.String(), resp.Ad.ID)
}

func TestServeAdRetriesWhenCandidateLostUnderLock(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)

	// The tag match ranks first ahead of second.
	first := env.seedAd(t, campaign, models.InheritedBudget, []string{"sports"}, []string{"football"})
	second := env.seedAd(t, campaign, models.InheritedBudget, []string{"sports"}, nil)

	env.adRepo.onLock = func(id uint) {
		if id == first.ID {
			env.adRepo.stored(first.ID).Status = models.AdStatusPaused
		}
	}

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), []string{"football"}), nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Ad)
	assert.Equal(t, second.UUID.String(), resp.Ad.ID)
}

func TestServeAdNoFillWhenAllCandidatesLost(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	env.seedAd(t, campaign, models.InheritedBudget, []string{"sports"}, nil)
	env.seedAd(t, campaign, models.InheritedBudget, []string{"sports"}, nil)

	env.adRepo.onLock = func(id uint) {
		env.adRepo.stored(id).Status = models.AdStatusPaused
	}

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), nil), nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Ad)
	assert.Equal(t, "no_eligible_ads", resp.Reason)
}

func TestServeAdRechecksBudgetUnderLock(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(10)
	campaign := env.seedCampaign(t, &budget)
	env.seedAd(t, campaign, models.InheritedBudget, []string{"sports"}, nil)

	// A concurrent confirm eats the remaining budget after scoring.
	env.adRepo.onLock = func(uint) {
		require.NoError(t, env.campaignRepo.AddToSpent(context.Background(), campaign.ID, 8))
	}

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), nil), nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Ad)
	assert.Equal(t, "no_eligible_ads", resp.Reason)
}

func TestServeAdRecordsClientMetadata(t *testing.T) {
	env := newServeEnv(t)
	budget := int64(1000)
	campaign := env.seedCampaign(t, &budget)
	env.seedAd(t, campaign, models.InheritedBudget, []string{"sports"}, nil)

	metadata := &ClientMetadata{
		IPAddress:  "198.51.100.7",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
		DeviceType: models.DeviceTypeMobile,
		OSType:     models.OSTypeIOS,
	}

	resp, err := env.flow.ServeAd(context.Background(), serveRequest(strPtr("sports"), nil), metadata)
	require.NoError(t, err)

	claims, err := env.tokens.Decode(resp.ImpressionToken)
	require.NoError(t, err)
	impression := env.impressionRepo.stored(claims.ImpressionID)
	require.NotNil(t, impression)
	assert.Equal(t, models.DeviceTypeMobile, impression.DeviceType)
	assert.Equal(t, models.OSTypeIOS, impression.OSType)
	require.NotNil(t, impression.IPAddress)
	assert.Equal(t, "198.51.100.7", *impression.IPAddress)
}
