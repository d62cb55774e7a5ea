package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionType represents the direction of a ledger entry
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit" // Funds added to the wallet
	TransactionTypeDebit  TransactionType = "debit"  // Funds taken from the wallet
)

// TransactionStatus represents the current status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // Transaction is being processed
	TransactionStatusCompleted TransactionStatus = "completed" // Transaction completed successfully
	TransactionStatusFailed    TransactionStatus = "failed"    // Transaction failed
	TransactionStatusCancelled TransactionStatus = "cancelled" // Transaction was cancelled
	TransactionStatusRefunded  TransactionStatus = "refunded"  // Transaction was refunded
)

// Transaction represents an immutable ledger entry against a wallet.
// A completed debit is always paired with the balance decrement that
// happened in the same database transaction.
type Transaction struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"` // Links related transactions

	// Transaction details
	Type     TransactionType   `gorm:"type:varchar(20);not null;index" json:"type"`
	Status   TransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Amount   int64             `gorm:"not null;check:amount > 0" json:"amount"` // Minor units
	Currency string            `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	// Wallet association
	WalletID uint `gorm:"not null;index" json:"wallet_id"`

	// Budget association (set by campaign/ad allocation and refund entries)
	CampaignID *uint `gorm:"index" json:"campaign_id,omitempty"`
	AdID       *uint `gorm:"index" json:"ad_id,omitempty"`

	// Settlement metadata
	PaymentMethod string `gorm:"type:varchar(32)" json:"payment_method"`
	ReferenceID   string `gorm:"type:varchar(255);index" json:"reference_id"`

	Description string          `gorm:"type:text" json:"description"`
	Metadata    json.RawMessage `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	// Audit fields
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relationships
	Wallet Wallet `gorm:"foreignKey:WalletID;constraint:OnDelete:CASCADE" json:"wallet,omitempty"`
}

// BeforeCreate ensures UUID and CorrelationID are set
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.CorrelationID == uuid.Nil {
		t.CorrelationID = uuid.New()
	}
	return nil
}

// IsCompleted returns true if the transaction is in a final state
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled ||
		t.Status == TransactionStatusRefunded
}

// IsPending returns true if the transaction is still being processed
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// TransactionFilter represents filter criteria for transaction queries
type TransactionFilter struct {
	ID            *uint              `json:"id,omitempty"`
	UUID          *uuid.UUID         `json:"uuid,omitempty"`
	CorrelationID *uuid.UUID         `json:"correlation_id,omitempty"`
	Type          *TransactionType   `json:"type,omitempty"`
	Status        *TransactionStatus `json:"status,omitempty"`
	WalletID      *uint              `json:"wallet_id,omitempty"`
	CampaignID    *uint              `json:"campaign_id,omitempty"`
	AdID          *uint              `json:"ad_id,omitempty"`
	ReferenceID   *string            `json:"reference_id,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}
