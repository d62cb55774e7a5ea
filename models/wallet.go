package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet holds the spendable balance for one owning user (a team owner).
// The balance is mutated only through ledger transactions; the sum of
// completed credits minus completed debits always equals Balance.
type Wallet struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	OwnerID string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"owner_id"`

	// Balance in minor units; never negative.
	Balance  int64  `gorm:"not null;default:0" json:"balance"`
	Currency string `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	// Audit fields
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:WalletID" json:"transactions,omitempty"`
}

// WalletFilter represents filter criteria for wallet queries
type WalletFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	OwnerID       *string    `json:"owner_id,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// BeforeCreate ensures UUID is set
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	return nil
}
