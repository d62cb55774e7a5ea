package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdRepositoryImpl implements AdRepository interface
type AdRepositoryImpl struct {
	*BaseRepository[models.Ad, models.AdFilter]
}

// NewAdRepository creates a new ad repository
func NewAdRepository(db *gorm.DB) AdRepository {
	return &AdRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Ad, models.AdFilter](db),
	}
}

// ByUUID finds an ad by its UUID
func (r *AdRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Ad, error) {
	db := r.getDB(ctx)
	var ad models.Ad
	err := db.Where("uuid = ?", uuid).Last(&ad).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ad, nil
}

// Update persists changes to an ad row
func (r *AdRepositoryImpl) Update(ctx context.Context, ad *models.Ad) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	ad.UpdatedAt = utils.UTCNow()
	err = db.Save(ad).Error
	return err
}

// Delete hard-deletes the ad
func (r *AdRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Delete(&models.Ad{}, id).Error
	return err
}

// LockByID reads the ad row FOR UPDATE
func (r *AdRepositoryImpl) LockByID(ctx context.Context, id uint) (*models.Ad, error) {
	db := r.getDB(ctx)
	var ad models.Ad
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ad, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ad, nil
}

// AddToSpent atomically increments spent. Ads with their own positive
// budget are guarded against overspend; inherited-budget ads are capped
// by the campaign instead.
func (r *AdRepositoryImpl) AddToSpent(ctx context.Context, id uint, delta int64) error {
	db := r.getDB(ctx)
	result := db.Model(&models.Ad{}).
		Where("id = ? AND (budget <= 0 OR spent + ? <= budget)", id, delta).
		Updates(map[string]any{
			"spent":      gorm.Expr("spent + ?", delta),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBudgetGuard
	}
	return nil
}

// SubtractFromSpent atomically decrements spent, never below zero.
func (r *AdRepositoryImpl) SubtractFromSpent(ctx context.Context, id uint, delta int64) error {
	db := r.getDB(ctx)
	result := db.Model(&models.Ad{}).
		Where("id = ? AND spent - ? >= 0", id, delta).
		Updates(map[string]any{
			"spent":      gorm.Expr("spent - ?", delta),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSpentGuard
	}
	return nil
}

// SumOwnBudgets sums the budgets of ads that cap their own spend under a
// campaign, optionally excluding one ad while revalidating an update.
func (r *AdRepositoryImpl) SumOwnBudgets(ctx context.Context, campaignID uint, excludeAdID *uint) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Ad{}).
		Where("campaign_id = ? AND budget > 0", campaignID)
	if excludeAdID != nil {
		query = query.Where("id <> ?", *excludeAdID)
	}

	var sum int64
	err := query.Select("COALESCE(SUM(budget), 0)").Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// FetchCandidates returns up to limit active ads under active campaigns
// inside their date window, in random order. An ad is targeted when the
// request category is one of its categories or its tag set overlaps the
// request tags; matching either dimension is enough when both are given.
// Nil category and empty tags skip targeting entirely, yielding the
// unfiltered fallback pool.
func (r *AdRepositoryImpl) FetchCandidates(ctx context.Context, category *string, tags []string, now time.Time, limit int) ([]*models.Ad, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Ad{}).
		Joins("JOIN campaigns ON campaigns.id = ads.campaign_id").
		Where("ads.status = ?", models.AdStatusActive).
		Where("campaigns.status = ?", models.CampaignStatusActive).
		Where("(campaigns.start_date IS NULL OR campaigns.start_date <= ?)", now).
		Where("(campaigns.end_date IS NULL OR campaigns.end_date >= ?)", now)

	hasCategory := category != nil && *category != ""
	switch {
	case hasCategory && len(tags) > 0:
		query = query.Where("(? = ANY(ads.categories) OR ads.tags && ?)", *category, pq.StringArray(tags))
	case hasCategory:
		query = query.Where("? = ANY(ads.categories)", *category)
	case len(tags) > 0:
		query = query.Where("ads.tags && ?", pq.StringArray(tags))
	}

	var ads []*models.Ad
	err := query.
		Preload("Campaign").
		Order("RANDOM()").
		Limit(limit).
		Find(&ads).Error
	if err != nil {
		return nil, err
	}
	return ads, nil
}

// ByFilter retrieves ads based on filter criteria
func (r *AdRepositoryImpl) ByFilter(ctx context.Context, filter models.AdFilter, orderBy string, limit, offset int) ([]*models.Ad, error) {
	db := r.getDB(ctx)
	var ads []*models.Ad

	query := db.Model(&models.Ad{})
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

	err := query.Find(&ads).Error
	if err != nil {
		return nil, err
	}
	return ads, nil
}

// Count returns the number of ads matching the filter
func (r *AdRepositoryImpl) Count(ctx context.Context, filter models.AdFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Ad{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies the filter to the query
func (r *AdRepositoryImpl) applyFilter(query *gorm.DB, filter models.AdFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Title != nil {
		query = query.Where("title = ?", *filter.Title)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
