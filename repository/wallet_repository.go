package repository

import (
	"context"
	"errors"

	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepositoryImpl implements WalletRepository interface
type WalletRepositoryImpl struct {
	*BaseRepository[models.Wallet, models.WalletFilter]
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &WalletRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Wallet, models.WalletFilter](db),
	}
}

// ByOwnerID finds a wallet by its owning user
func (r *WalletRepositoryImpl) ByOwnerID(ctx context.Context, ownerID string) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Where("owner_id = ?", ownerID).Last(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate returns the owner's wallet, creating an empty one on first access
func (r *WalletRepositoryImpl) GetOrCreate(ctx context.Context, ownerID string) (*models.Wallet, error) {
	wallet, err := r.ByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = &models.Wallet{
		OwnerID:   ownerID,
		Balance:   0,
		Currency:  utils.DefaultCurrency,
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}
	if err := r.Save(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// LockByID reads the wallet row FOR UPDATE
func (r *WalletRepositoryImpl) LockByID(ctx context.Context, id uint) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&wallet, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// UpdateBalance sets the wallet balance; callers hold the row lock
func (r *WalletRepositoryImpl) UpdateBalance(ctx context.Context, walletID uint, newBalance int64) error {
	db := r.getDB(ctx)
	return db.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"balance":    newBalance,
			"updated_at": utils.UTCNow(),
		}).Error
}

// ByFilter retrieves wallets based on filter criteria
func (r *WalletRepositoryImpl) ByFilter(ctx context.Context, filter models.WalletFilter, orderBy string, limit, offset int) ([]*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallets []*models.Wallet

	query := db.Model(&models.Wallet{})
	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

// Count returns the number of wallets matching the filter
func (r *WalletRepositoryImpl) Count(ctx context.Context, filter models.WalletFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Wallet{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies the filter to the query
func (r *WalletRepositoryImpl) applyFilter(query *gorm.DB, filter models.WalletFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
