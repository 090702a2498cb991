package types

import (
	"time"

	"gorm.io/gorm"
)

// Company is read-only reference data as far as the simulation engine is
// concerned; rows are owned by the master-data service.
type Company struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string         `gorm:"column:name;not null;index" json:"name"`
	Industry  string         `gorm:"column:industry;index" json:"industry,omitempty"`
	Region    string         `gorm:"column:region" json:"region,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Company) TableName() string { return "company" }
