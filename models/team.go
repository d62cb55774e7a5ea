package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Team groups campaigns under one owning user. Membership and roles are
// administered by the external platform; the core only needs the owner,
// whose wallet funds campaign allocations.
type Team struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Name    string    `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID string    `gorm:"type:varchar(64);not null;index" json:"owner_id"`

	// Audit fields
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relationships
	Campaigns []Campaign `gorm:"foreignKey:TeamID" json:"campaigns,omitempty"`
}

// TeamFilter represents filter criteria for team queries
type TeamFilter struct {
	ID      *uint      `json:"id,omitempty"`
	UUID    *uuid.UUID `json:"uuid,omitempty"`
	OwnerID *string    `json:"owner_id,omitempty"`
}

// BeforeCreate ensures UUID is set
func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}
