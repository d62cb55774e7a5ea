package repository

import (
	"context"
	"errors"

	"github.com/videostreampro/adserver/models"
	"gorm.io/gorm"
)

// TeamRepositoryImpl implements TeamRepository interface
type TeamRepositoryImpl struct {
	*BaseRepository[models.Team, models.TeamFilter]
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &TeamRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Team, models.TeamFilter](db),
	}
}

// ByUUID finds a team by its UUID
func (r *TeamRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Team, error) {
	db := r.getDB(ctx)
	var team models.Team
	err := db.Where("uuid = ?", uuid).Last(&team).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &team, nil
}

// ByFilter retrieves teams based on filter criteria
func (r *TeamRepositoryImpl) ByFilter(ctx context.Context, filter models.TeamFilter, orderBy string, limit, offset int) ([]*models.Team, error) {
	db := r.getDB(ctx)
	var teams []*models.Team

	query := db.Model(&models.Team{})
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

	err := query.Find(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}

// Count returns the number of teams matching the filter
func (r *TeamRepositoryImpl) Count(ctx context.Context, filter models.TeamFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Team{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies the filter to the query
func (r *TeamRepositoryImpl) applyFilter(query *gorm.DB, filter models.TeamFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	return query
}
