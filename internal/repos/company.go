package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type CompanyRepo interface {
	Create(ctx context.Context, tx *gorm.DB, companies []*types.Company) ([]*types.Company, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Company, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Company, error)
}

type companyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return &companyRepo{db: db, log: baseLog.With("repo", "CompanyRepo")}
}

func (r *companyRepo) Create(ctx context.Context, tx *gorm.DB, companies []*types.Company) ([]*types.Company, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(companies) == 0 {
		return []*types.Company{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *companyRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Company, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var company types.Company
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *companyRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Company, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Company
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
