// Package testing provides test utilities and database setup for testing the ad server
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestTeam creates a team owned by the given user
func (tf *TestFixtures) CreateTestTeam(ownerID string) (*models.Team, error) {
	team := &models.Team{
		Name:    fmt.Sprintf("Test Team %d", rand.Intn(10000)),
		OwnerID: ownerID,
	}

	if err := tf.DB.DB.Create(team).Error; err != nil {
		return nil, fmt.Errorf("failed to create test team: %w", err)
	}
	return team, nil
}

// CreateTestWallet creates a wallet for the given owner with the given
// balance in minor units
func (tf *TestFixtures) CreateTestWallet(ownerID string, balanceCents int64) (*models.Wallet, error) {
	wallet := &models.Wallet{
		OwnerID:  ownerID,
		Balance:  balanceCents,
		Currency: "USD",
	}

	if err := tf.DB.DB.Create(wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create test wallet: %w", err)
	}
	return wallet, nil
}

// CreateTestCampaign creates a campaign under the given team. budget is
// in minor units; pass nil for an uncapped campaign.
func (tf *TestFixtures) CreateTestCampaign(teamID uint, budget *int64, status models.CampaignStatus) (*models.Campaign, error) {
	now := utils.UTCNow()
	start := now.Add(-time.Hour)
	end := now.Add(24 * time.Hour)

	campaign := &models.Campaign{
		TeamID:    teamID,
		Name:      fmt.Sprintf("Test Campaign %d", rand.Intn(10000)),
		Status:    status,
		Budget:    budget,
		StartDate: &start,
		EndDate:   &end,
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestAd creates an ad under the given campaign. budget is in
// minor units; pass models.InheritedBudget to inherit the campaign's.
func (tf *TestFixtures) CreateTestAd(campaignID uint, budget int64, categories, tags []string, status models.AdStatus) (*models.Ad, error) {
	if len(categories) == 0 {
		categories = []string{"general"}
	}

	ad := &models.Ad{
		CampaignID:  campaignID,
		Status:      status,
		Title:       fmt.Sprintf("Test Ad %d", rand.Intn(10000)),
		Description: "A test creative",
		Budget:      budget,
		Categories:  pq.StringArray(categories),
		Tags:        pq.StringArray(tags),
		VideoURL:    "https://cdn.example.com/videos/test.mp4",
	}

	if err := tf.DB.DB.Create(ad).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ad: %w", err)
	}
	return ad, nil
}

// CreateTestImpression creates an impression row directly, bypassing the
// serve flow. The token is random and unique per call.
func (tf *TestFixtures) CreateTestImpression(ad *models.Ad, status models.ImpressionStatus, viewerID, anonID *string) (*models.Impression, error) {
	now := utils.UTCNow()

	impression := &models.Impression{
		Token:      fmt.Sprintf("test-token-%d-%d", now.UnixNano(), rand.Intn(100000)),
		AdID:       ad.ID,
		CampaignID: ad.CampaignID,
		Status:     status,
		Action:     models.ImpressionActionView,
		CostCents:  5,
		ExpiresAt:  now.Add(5 * time.Minute),
		ViewerID:   viewerID,
		AnonID:     anonID,
		VideoID:    fmt.Sprintf("video-%d", rand.Intn(10000)),
		DeviceType: models.DeviceTypeDesktop,
		OSType:     models.OSTypeLinux,
	}

	if status == models.ImpressionStatusServed {
		impression.ServedAt = utils.ToPtr(now)
	}

	if err := tf.DB.DB.Create(impression).Error; err != nil {
		return nil, fmt.Errorf("failed to create test impression: %w", err)
	}
	return impression, nil
}

// CreateServingSetup builds the full chain needed to serve an ad: a
// funded wallet, a team, an active campaign with the given budget, and
// one active ad inheriting that budget.
func (tf *TestFixtures) CreateServingSetup(ownerID string, walletCents int64, campaignBudget *int64, categories, tags []string) (*models.Wallet, *models.Team, *models.Campaign, *models.Ad, error) {
	wallet, err := tf.CreateTestWallet(ownerID, walletCents)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	team, err := tf.CreateTestTeam(ownerID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	campaign, err := tf.CreateTestCampaign(team.ID, campaignBudget, models.CampaignStatusActive)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	ad, err := tf.CreateTestAd(campaign.ID, models.InheritedBudget, categories, tags, models.AdStatusActive)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return wallet, team, campaign, ad, nil
}
