package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type RiskSimulationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sims []*types.RiskSimulation) ([]*types.RiskSimulation, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RiskSimulation, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	List(ctx context.Context, tx *gorm.DB, page, pageSize int, keyword string) ([]*types.RiskSimulation, int64, error)
}

type riskSimulationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRiskSimulationRepo(db *gorm.DB, baseLog *logger.Logger) RiskSimulationRepo {
	return &riskSimulationRepo{db: db, log: baseLog.With("repo", "RiskSimulationRepo")}
}

func (r *riskSimulationRepo) Create(ctx context.Context, tx *gorm.DB, sims []*types.RiskSimulation) ([]*types.RiskSimulation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sims) == 0 {
		return []*types.RiskSimulation{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sims).Error; err != nil {
		return nil, err
	}
	return sims, nil
}

func (r *riskSimulationRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RiskSimulation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RiskSimulation
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *riskSimulationRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.RiskSimulation{}).Error
}

func (r *riskSimulationRepo) List(ctx context.Context, tx *gorm.DB, page, pageSize int, keyword string) ([]*types.RiskSimulation, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	query := transaction.WithContext(ctx).Model(&types.RiskSimulation{})
	if kw := strings.TrimSpace(keyword); kw != "" {
		like := "%" + kw + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.RiskSimulation
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
