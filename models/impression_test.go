package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImpressionCanTransition(t *testing.T) {
	cases := []struct {
		status  ImpressionStatus
		event   ImpressionEvent
		allowed bool
	}{
		{ImpressionStatusReserved, ImpressionEventServed, true},
		{ImpressionStatusReserved, ImpressionEventClicked, false},
		{ImpressionStatusReserved, ImpressionEventCompleted, false},
		{ImpressionStatusReserved, ImpressionEventSkipped, false},
		{ImpressionStatusServed, ImpressionEventServed, false},
		{ImpressionStatusServed, ImpressionEventClicked, true},
		{ImpressionStatusServed, ImpressionEventCompleted, true},
		{ImpressionStatusServed, ImpressionEventSkipped, true},
		{ImpressionStatusConfirmed, ImpressionEventServed, false},
		{ImpressionStatusConfirmed, ImpressionEventClicked, false},
		{ImpressionStatusExpired, ImpressionEventServed, false},
		{ImpressionStatusCancelled, ImpressionEventCompleted, false},
	}

	for _, tc := range cases {
		imp := &Impression{Status: tc.status}
		assert.Equal(t, tc.allowed, imp.CanTransition(tc.event),
			"%s + %s", tc.status, tc.event)
	}
}

func TestImpressionAllowedEvents(t *testing.T) {
	assert.Equal(t,
		[]ImpressionEvent{ImpressionEventServed},
		(&Impression{Status: ImpressionStatusReserved}).AllowedEvents())

	assert.Len(t, (&Impression{Status: ImpressionStatusServed}).AllowedEvents(), 3)
	assert.Nil(t, (&Impression{Status: ImpressionStatusConfirmed}).AllowedEvents())
}

func TestImpressionIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	imp := &Impression{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, imp.IsExpired(now))

	// Exactly-now counts as expired.
	imp.ExpiresAt = now
	assert.True(t, imp.IsExpired(now))

	imp.ExpiresAt = now.Add(-time.Second)
	assert.True(t, imp.IsExpired(now))
}

func TestImpressionEventAction(t *testing.T) {
	assert.Equal(t, ImpressionActionClick, ImpressionEventClicked.Action())
	assert.Equal(t, ImpressionActionComplete, ImpressionEventCompleted.Action())
	assert.Equal(t, ImpressionActionSkip, ImpressionEventSkipped.Action())
	assert.Equal(t, ImpressionActionView, ImpressionEventServed.Action())
}

func TestAdAvailableBudget(t *testing.T) {
	budget := int64(1000)
	campaign := &Campaign{Status: CampaignStatusActive, Budget: &budget, Spent: 400}

	t.Run("OwnBudget", func(t *testing.T) {
		ad := &Ad{Budget: 500, Spent: 100}
		avail, ok := ad.AvailableBudget(campaign)
		assert.True(t, ok)
		assert.Equal(t, int64(400), avail)
	})

	t.Run("Inherited", func(t *testing.T) {
		ad := &Ad{Budget: InheritedBudget}
		avail, ok := ad.AvailableBudget(campaign)
		assert.True(t, ok)
		assert.Equal(t, int64(600), avail)
	})

	t.Run("ZeroBudgetInherits", func(t *testing.T) {
		ad := &Ad{Budget: 0}
		avail, ok := ad.AvailableBudget(campaign)
		assert.True(t, ok)
		assert.Equal(t, int64(600), avail)
	})

	t.Run("NoBudgetAnywhere", func(t *testing.T) {
		ad := &Ad{Budget: InheritedBudget}
		uncapped := &Campaign{Status: CampaignStatusActive}
		_, ok := ad.AvailableBudget(uncapped)
		assert.False(t, ok)
	})
}

func TestCampaignIsActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	c := &Campaign{Status: CampaignStatusActive}
	assert.True(t, c.IsActive(now))

	c.StartDate = &tomorrow
	assert.False(t, c.IsActive(now))

	c.StartDate = &yesterday
	c.EndDate = &tomorrow
	assert.True(t, c.IsActive(now))

	c.EndDate = &yesterday
	assert.False(t, c.IsActive(now))

	c = &Campaign{Status: CampaignStatusPaused}
	assert.False(t, c.IsActive(now))
}
