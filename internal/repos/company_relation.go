package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type CompanyRelationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, relations []*types.CompanyRelation) ([]*types.CompanyRelation, error)
	GetTouchingAny(ctx context.Context, tx *gorm.DB, companyIDs []int64) ([]*types.CompanyRelation, error)
	GetForCompany(ctx context.Context, tx *gorm.DB, companyID int64) ([]*types.CompanyRelation, error)
}

type companyRelationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompanyRelationRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRelationRepo {
	return &companyRelationRepo{db: db, log: baseLog.With("repo", "CompanyRelationRepo")}
}

func (r *companyRelationRepo) Create(ctx context.Context, tx *gorm.DB, relations []*types.CompanyRelation) ([]*types.CompanyRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(relations) == 0 {
		return []*types.CompanyRelation{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&relations).Error; err != nil {
		return nil, err
	}
	return relations, nil
}

// GetTouchingAny returns every relation with at least one endpoint in
// companyIDs. One batched query per BFS level keeps graph round trips
// proportional to the level cap, not the node count.
func (r *companyRelationRepo) GetTouchingAny(ctx context.Context, tx *gorm.DB, companyIDs []int64) ([]*types.CompanyRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CompanyRelation
	if len(companyIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("source_company_id IN ? OR target_company_id IN ?", companyIDs, companyIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *companyRelationRepo) GetForCompany(ctx context.Context, tx *gorm.DB, companyID int64) ([]*types.CompanyRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CompanyRelation
	if err := transaction.WithContext(ctx).
		Where("source_company_id = ? OR target_company_id = ?", companyID, companyID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
