package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IndicatorCount is the fixed size of the sub-indicator hierarchy.
const IndicatorCount = 13

// WeightedIndicator is one sub-indicator of the composite risk score,
// indexed 1..IndicatorCount.
type WeightedIndicator struct {
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	Coefficient float64   `json:"coefficient"`
	Weights     []float64 `json:"weights,omitempty"`
	Score       float64   `json:"score"`
}

// CompositeFromIndicators aggregates the weighted sub-indicator scores into
// the composite risk score.
func CompositeFromIndicators(indicators []WeightedIndicator) float64 {
	var total float64
	for _, ind := range indicators {
		total += ind.Coefficient * ind.Score
	}
	return total
}

// CompanyTimestepScore is one company's scoring record at one discrete
// simulation timestep. Rows are created in bulk at dataset import time and
// immutable afterwards.
type CompanyTimestepScore struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SimulationID   uuid.UUID      `gorm:"type:uuid;column:simulation_id;not null;index:idx_timestep_score,unique,priority:1" json:"simulation_id"`
	Time           int            `gorm:"column:time;not null;index:idx_timestep_score,unique,priority:2" json:"time"`
	CompanyID      int64          `gorm:"column:company_id;not null;index:idx_timestep_score,unique,priority:3" json:"company_id"`
	CompanyName    string         `gorm:"column:company_name" json:"company_name"`
	State          int            `gorm:"column:state;not null;default:0" json:"state"`
	CompositeScore float64        `gorm:"column:composite_score;not null;default:0" json:"composite_score"`
	InternalFactor float64        `gorm:"column:internal_factor;not null;default:0" json:"internal_factor"`
	SupplierIDs    datatypes.JSON `gorm:"column:supplier_ids;type:jsonb" json:"supplier_ids,omitempty"`
	CompetitorIDs  datatypes.JSON `gorm:"column:competitor_ids;type:jsonb" json:"competitor_ids,omitempty"`
	Indicators     datatypes.JSON `gorm:"column:indicators;type:jsonb" json:"indicators,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (CompanyTimestepScore) TableName() string { return "company_timestep_score" }
