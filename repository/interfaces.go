// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/videostreampro/adserver/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// WalletRepository defines operations for wallets
type WalletRepository interface {
	Repository[models.Wallet, models.WalletFilter]
	ByOwnerID(ctx context.Context, ownerID string) (*models.Wallet, error)
	// GetOrCreate lazily creates the owner's wallet on first access.
	GetOrCreate(ctx context.Context, ownerID string) (*models.Wallet, error)
	// LockByID reads the wallet row FOR UPDATE; must run inside a transaction.
	LockByID(ctx context.Context, id uint) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, walletID uint, newBalance int64) error
}

// TransactionRepository defines operations for ledger transactions
type TransactionRepository interface {
	Repository[models.Transaction, models.TransactionFilter]
	Update(ctx context.Context, transaction *models.Transaction) error
	SumCompletedByType(ctx context.Context, walletID uint, txType models.TransactionType) (int64, error)
}

// TeamRepository defines operations for teams
type TeamRepository interface {
	Repository[models.Team, models.TeamFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Team, error)
}

// CampaignRepository defines operations for campaigns and their budget columns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	// Delete hard-deletes the campaign; ads and impressions cascade.
	Delete(ctx context.Context, id uint) error
	// LockByID reads the campaign row FOR UPDATE; must run inside a transaction.
	LockByID(ctx context.Context, id uint) (*models.Campaign, error)
	// AddToSpent atomically increments spent, failing when the new value
	// would exceed a positive budget.
	AddToSpent(ctx context.Context, id uint, delta int64) error
	// SubtractFromSpent atomically decrements spent, failing on underflow.
	SubtractFromSpent(ctx context.Context, id uint, delta int64) error
	// CompleteEnded flips active campaigns whose end date has passed to
	// completed, returning how many rows changed.
	CompleteEnded(ctx context.Context, now time.Time) (int64, error)
}

// AdRepository defines operations for ads, including candidate fetching
type AdRepository interface {
	Repository[models.Ad, models.AdFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Ad, error)
	Update(ctx context.Context, ad *models.Ad) error
	Delete(ctx context.Context, id uint) error
	// LockByID reads the ad row FOR UPDATE; must run inside a transaction.
	LockByID(ctx context.Context, id uint) (*models.Ad, error)
	AddToSpent(ctx context.Context, id uint, delta int64) error
	SubtractFromSpent(ctx context.Context, id uint, delta int64) error
	// SumOwnBudgets returns the sum of ad budgets >= 0 under a campaign,
	// optionally excluding one ad (for update revalidation).
	SumOwnBudgets(ctx context.Context, campaignID uint, excludeAdID *uint) (int64, error)
	// FetchCandidates returns up to limit active ads under active
	// campaigns inside their date window, randomly ordered, matching the
	// category/tag targeting; pass nil/empty for the unfiltered fallback.
	FetchCandidates(ctx context.Context, category *string, tags []string, now time.Time, limit int) ([]*models.Ad, error)
}

// ImpressionRepository defines operations for impressions
type ImpressionRepository interface {
	ByID(ctx context.Context, id uint) (*models.Impression, error)
	ByToken(ctx context.Context, token string) (*models.Impression, error)
	// LockByToken reads the impression row FOR UPDATE; must run inside a transaction.
	LockByToken(ctx context.Context, token string) (*models.Impression, error)
	Save(ctx context.Context, impression *models.Impression) error
	Update(ctx context.Context, impression *models.Impression) error
	ByFilter(ctx context.Context, filter models.ImpressionFilter, orderBy string, limit, offset int) ([]*models.Impression, error)
	Count(ctx context.Context, filter models.ImpressionFilter) (int64, error)
	// ExpireStale flips reserved impressions past their expiry to
	// expired, returning how many rows changed.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
