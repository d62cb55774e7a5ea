package repository

import (
	"context"
	"errors"
	"time"

	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImpressionRepositoryImpl implements ImpressionRepository interface
type ImpressionRepositoryImpl struct {
	*BaseRepository[models.Impression, models.ImpressionFilter]
}

// NewImpressionRepository creates a new impression repository
func NewImpressionRepository(db *gorm.DB) ImpressionRepository {
	return &ImpressionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Impression, models.ImpressionFilter](db),
	}
}

// ByToken finds an impression by its opaque token
func (r *ImpressionRepositoryImpl) ByToken(ctx context.Context, token string) (*models.Impression, error) {
	db := r.getDB(ctx)
	var impression models.Impression
	err := db.Where("token = ?", token).Last(&impression).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &impression, nil
}

// LockByToken reads the impression row FOR UPDATE
func (r *ImpressionRepositoryImpl) LockByToken(ctx context.Context, token string) (*models.Impression, error) {
	db := r.getDB(ctx)
	var impression models.Impression
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ?", token).
		First(&impression).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &impression, nil
}

// Update persists changes to an impression row
func (r *ImpressionRepositoryImpl) Update(ctx context.Context, impression *models.Impression) error {
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

	impression.UpdatedAt = utils.UTCNow()
	err = db.Save(impression).Error
	return err
}

// ByFilter retrieves impressions based on filter criteria
func (r *ImpressionRepositoryImpl) ByFilter(ctx context.Context, filter models.ImpressionFilter, orderBy string, limit, offset int) ([]*models.Impression, error) {
	db := r.getDB(ctx)
	var impressions []*models.Impression

	query := db.Model(&models.Impression{})
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

	err := query.Find(&impressions).Error
	if err != nil {
		return nil, err
	}
	return impressions, nil
}

// Count returns the number of impressions matching the filter
func (r *ImpressionRepositoryImpl) Count(ctx context.Context, filter models.ImpressionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Impression{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExpireStale flips reserved impressions past their expiry to expired.
// Billed rows keep their served status; only unconfirmed reservations
// are swept.
func (r *ImpressionRepositoryImpl) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)
	result := db.Model(&models.Impression{}).
		Where("status = ? AND expires_at <= ?", models.ImpressionStatusReserved, now).
		Updates(map[string]any{
			"status":     models.ImpressionStatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// applyFilter applies the filter to the query
func (r *ImpressionRepositoryImpl) applyFilter(query *gorm.DB, filter models.ImpressionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Token != nil {
		query = query.Where("token = ?", *filter.Token)
	}
	if filter.AdID != nil {
		query = query.Where("ad_id = ?", *filter.AdID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ViewerID != nil {
		query = query.Where("viewer_id = ?", *filter.ViewerID)
	}
	if filter.AnonID != nil {
		query = query.Where("anon_id = ?", *filter.AnonID)
	}
	if filter.VideoID != nil {
		query = query.Where("video_id = ?", *filter.VideoID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
