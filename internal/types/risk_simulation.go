package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RiskSimulation is the durable counterpart of a committed run. The node,
// edge and step collections are kept as opaque JSON blobs and only parsed
// again when a committed run is replayed.
type RiskSimulation struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RunID          string         `gorm:"column:run_id;not null;index" json:"run_id"`
	Name           string         `gorm:"column:name;not null;index" json:"name"`
	Description    string         `gorm:"column:description" json:"description,omitempty"`
	Creator        string         `gorm:"column:creator;index" json:"creator,omitempty"`
	StartCompanyID int64          `gorm:"column:start_company_id;not null" json:"start_company_id"`
	InitialRisk    float64        `gorm:"column:initial_risk;not null" json:"initial_risk"`
	DecayRate      float64        `gorm:"column:decay_rate;not null" json:"decay_rate"`
	MaxLevel       int            `gorm:"column:max_level;not null" json:"max_level"`
	Nodes          datatypes.JSON `gorm:"column:nodes;type:jsonb" json:"nodes,omitempty"`
	Edges          datatypes.JSON `gorm:"column:edges;type:jsonb" json:"edges,omitempty"`
	Steps          datatypes.JSON `gorm:"column:steps;type:jsonb" json:"steps,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RiskSimulation) TableName() string { return "risk_simulation" }
