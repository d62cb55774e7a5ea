package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// AdStatus represents the review/serving status of an ad
type AdStatus string

const (
	AdStatusDraft       AdStatus = "draft"
	AdStatusActive      AdStatus = "active"
	AdStatusPaused      AdStatus = "paused"
	AdStatusCompleted   AdStatus = "completed"
	AdStatusRejected    AdStatus = "rejected"
	AdStatusUnderReview AdStatus = "under_review"
)

// String returns the string representation of the status
func (s AdStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AdStatus) Valid() bool {
	switch s {
	case AdStatusDraft, AdStatusActive, AdStatusPaused,
		AdStatusCompleted, AdStatusRejected, AdStatusUnderReview:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AdStatus
func (s *AdStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AdStatus(v)
	case []byte:
		*s = AdStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AdStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AdStatus
func (s AdStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AdStatus: %s", s)
	}
	return string(s), nil
}

// InheritedBudget is the Budget sentinel meaning "spend against the campaign".
const InheritedBudget int64 = -1

// Ad is one creative under a campaign. Budget is in minor units; the -1
// sentinel inherits the campaign budget. When Budget >= 0 the sum of ad
// budgets under a campaign never exceeds the campaign budget.
type Ad struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CampaignID uint      `gorm:"not null;index" json:"campaign_id"`
	Status     AdStatus  `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Budget int64 `gorm:"not null;default:-1" json:"budget"`
	Spent  int64 `gorm:"not null;default:0;check:spent >= 0" json:"spent"`

	Categories pq.StringArray `gorm:"type:text[];not null" json:"categories"`
	Tags       pq.StringArray `gorm:"type:text[]" json:"tags"`

	VideoURL     string  `gorm:"type:varchar(2048);not null" json:"video_url"`
	ThumbnailURL string  `gorm:"type:varchar(2048)" json:"thumbnail_url"`
	CTALink      *string `gorm:"type:varchar(2048)" json:"cta_link,omitempty"`

	// Audit fields
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relationships
	Campaign    Campaign     `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"campaign,omitempty"`
	Impressions []Impression `gorm:"foreignKey:AdID" json:"impressions,omitempty"`
}

// BeforeCreate ensures UUID and default status are set
func (a *Ad) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AdStatusDraft
	}
	return nil
}

// HasOwnBudget reports whether the ad caps its own spend rather than
// inheriting the campaign budget. A zero budget also inherits.
func (a *Ad) HasOwnBudget() bool {
	return a.Budget > 0
}

// AvailableBudget returns the spendable minor units for this ad, falling
// back to the campaign remainder when the ad inherits. ok is false when
// neither the ad nor the campaign defines a budget.
func (a *Ad) AvailableBudget(campaign *Campaign) (int64, bool) {
	if a.HasOwnBudget() {
		remaining := a.Budget - a.Spent
		if remaining < 0 {
			remaining = 0
		}
		return remaining, true
	}
	if campaign == nil {
		return 0, false
	}
	return campaign.RemainingBudget()
}

// AdFilter represents filter criteria for ads
type AdFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	CampaignID    *uint      `json:"campaign_id,omitempty"`
	Status        *AdStatus  `json:"status,omitempty"`
	Title         *string    `json:"title,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
