package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused,
		CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign is the budget-bearing parent of ads. Budget is in minor units;
// nil means uncapped. Spent tracks minor units either allocated to ads
// with their own budget or consumed by inherited-budget impressions, and
// never exceeds Budget when Budget is set.
type Campaign struct {
	ID     uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID   uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	TeamID uint           `gorm:"not null;index" json:"team_id"`
	Name   string         `gorm:"type:varchar(255);not null" json:"name"`
	Status CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	Budget *int64 `gorm:"check:budget >= 0" json:"budget,omitempty"`
	Spent  int64  `gorm:"not null;default:0;check:spent >= 0" json:"spent"`

	StartDate *time.Time `gorm:"index" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"index" json:"end_date,omitempty"`

	// Audit fields
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relationships
	Team Team `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"team,omitempty"`
	Ads  []Ad `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"ads,omitempty"`
}

// BeforeCreate ensures UUID and default status are set
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	return nil
}

// IsActive reports whether the campaign is serving at the given instant.
func (c *Campaign) IsActive(now time.Time) bool {
	if c.Status != CampaignStatusActive {
		return false
	}
	if c.StartDate != nil && c.StartDate.After(now) {
		return false
	}
	if c.EndDate != nil && c.EndDate.Before(now) {
		return false
	}
	return true
}

// RemainingBudget returns budget minus spent in minor units; ok is false
// when the campaign is uncapped.
func (c *Campaign) RemainingBudget() (int64, bool) {
	if c.Budget == nil || *c.Budget == 0 {
		return 0, false
	}
	remaining := *c.Budget - c.Spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	TeamID        *uint           `json:"team_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	Name          *string         `json:"name,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
	MinBudget     *int64          `json:"min_budget,omitempty"`
	MaxBudget     *int64          `json:"max_budget,omitempty"`
}
