package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type TimestepScoreRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.CompanyTimestepScore) ([]*types.CompanyTimestepScore, error)
	GetBySimulation(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) ([]*types.CompanyTimestepScore, error)
	GetBySimulationAndTime(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int) ([]*types.CompanyTimestepScore, error)
	GetExact(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int, companyID int64) (*types.CompanyTimestepScore, error)
	TimeRange(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) (int, int, error)
}

type timestepScoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTimestepScoreRepo(db *gorm.DB, baseLog *logger.Logger) TimestepScoreRepo {
	return &timestepScoreRepo{db: db, log: baseLog.With("repo", "TimestepScoreRepo")}
}

func (r *timestepScoreRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.CompanyTimestepScore) ([]*types.CompanyTimestepScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.CompanyTimestepScore{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *timestepScoreRepo) GetBySimulation(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) ([]*types.CompanyTimestepScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CompanyTimestepScore
	if err := transaction.WithContext(ctx).
		Where("simulation_id = ?", simulationID).
		Order("time ASC, company_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *timestepScoreRepo) GetBySimulationAndTime(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int) ([]*types.CompanyTimestepScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CompanyTimestepScore
	if err := transaction.WithContext(ctx).
		Where("simulation_id = ? AND time = ?", simulationID, time).
		Order("company_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *timestepScoreRepo) GetExact(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int, companyID int64) (*types.CompanyTimestepScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.CompanyTimestepScore
	err := transaction.WithContext(ctx).
		Where("simulation_id = ? AND time = ? AND company_id = ?", simulationID, time, companyID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *timestepScoreRepo) TimeRange(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) (int, int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var bounds struct {
		MinTime int
		MaxTime int
	}
	err := transaction.WithContext(ctx).
		Model(&types.CompanyTimestepScore{}).
		Select("COALESCE(MIN(time), 0) AS min_time, COALESCE(MAX(time), 0) AS max_time").
		Where("simulation_id = ?", simulationID).
		Scan(&bounds).Error
	if err != nil {
		return 0, 0, err
	}
	return bounds.MinTime, bounds.MaxTime, nil
}
