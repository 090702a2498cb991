package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RelationKindSupplier   = "supplier"
	RelationKindCustomer   = "customer"
	RelationKindCompetitor = "competitor"
)

// CompanyRelation is an undirected edge between two companies. The pair is
// stored in canonical order (lower id first) so (A,B) and (B,A) cannot both
// exist.
type CompanyRelation struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SourceCompanyID int64          `gorm:"column:source_company_id;not null;index:idx_company_relation_pair,unique,priority:1" json:"source_company_id"`
	TargetCompanyID int64          `gorm:"column:target_company_id;not null;index:idx_company_relation_pair,unique,priority:2" json:"target_company_id"`
	Label           string         `gorm:"column:label;not null;default:'cooperation'" json:"label"`
	Kind            string         `gorm:"column:kind;not null;index" json:"kind"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CompanyRelation) TableName() string { return "company_relation" }

// Canonicalize swaps the endpoints if they are out of order.
func (r *CompanyRelation) Canonicalize() {
	if r.SourceCompanyID > r.TargetCompanyID {
		r.SourceCompanyID, r.TargetCompanyID = r.TargetCompanyID, r.SourceCompanyID
	}
}

func (r *CompanyRelation) BeforeSave(tx *gorm.DB) error {
	r.Canonicalize()
	return nil
}

// Other returns the endpoint opposite to companyID, and false when companyID
// is not an endpoint of this relation.
func (r *CompanyRelation) Other(companyID int64) (int64, bool) {
	switch companyID {
	case r.SourceCompanyID:
		return r.TargetCompanyID, true
	case r.TargetCompanyID:
		return r.SourceCompanyID, true
	default:
		return 0, false
	}
}
