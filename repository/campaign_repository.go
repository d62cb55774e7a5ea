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

// Guarded spent-column updates surface these when the WHERE clause
// matched no row despite the entity existing.
var (
	ErrBudgetGuard = errors.New("spent increment would exceed budget")
	ErrSpentGuard  = errors.New("spent decrement would go negative")
)

// CampaignRepositoryImpl implements CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID finds a campaign by its UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	db := r.getDB(ctx)
	var campaign models.Campaign
	err := db.Where("uuid = ?", uuid).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// Update persists changes to a campaign row
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.Campaign) error {
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

	campaign.UpdatedAt = utils.UTCNow()
	err = db.Save(campaign).Error
	return err
}

// Delete hard-deletes the campaign; ads and impressions cascade
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, id uint) error {
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

	err = db.Delete(&models.Campaign{}, id).Error
	return err
}

// LockByID reads the campaign row FOR UPDATE
func (r *CampaignRepositoryImpl) LockByID(ctx context.Context, id uint) (*models.Campaign, error) {
	db := r.getDB(ctx)
	var campaign models.Campaign
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&campaign, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// AddToSpent atomically increments spent. The guard clause rejects the
// update when a positive budget would be exceeded; a NULL or zero budget
// is uncapped.
func (r *CampaignRepositoryImpl) AddToSpent(ctx context.Context, id uint, delta int64) error {
	db := r.getDB(ctx)
	result := db.Model(&models.Campaign{}).
		Where("id = ? AND (budget IS NULL OR budget = 0 OR spent + ? <= budget)", id, delta).
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
func (r *CampaignRepositoryImpl) SubtractFromSpent(ctx context.Context, id uint, delta int64) error {
	db := r.getDB(ctx)
	result := db.Model(&models.Campaign{}).
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

// CompleteEnded flips active campaigns whose end date has passed to
// completed.
func (r *CampaignRepositoryImpl) CompleteEnded(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)
	result := db.Model(&models.Campaign{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", models.CampaignStatusActive, now).
		Updates(map[string]any{
			"status":     models.CampaignStatusCompleted,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	var campaigns []*models.Campaign

	query := db.Model(&models.Campaign{})
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

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Campaign{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies the filter to the query
func (r *CampaignRepositoryImpl) applyFilter(query *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.TeamID != nil {
		query = query.Where("team_id = ?", *filter.TeamID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.MinBudget != nil {
		query = query.Where("budget >= ?", *filter.MinBudget)
	}
	if filter.MaxBudget != nil {
		query = query.Where("budget <= ?", *filter.MaxBudget)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
