package types

import (
	"fmt"
	"time"
)

const (
	RiskStatusCritical = "CRITICAL"
	RiskStatusWarning  = "WARNING"
	RiskStatusNormal   = "NORMAL"
)

// StatusForRisk classifies a risk value. The status is derived, never stored
// independently of the value.
func StatusForRisk(risk float64) string {
	switch {
	case risk > 0.7:
		return RiskStatusCritical
	case risk > 0.3:
		return RiskStatusWarning
	default:
		return RiskStatusNormal
	}
}

// RiskNode is the per-run state of a reached company. Company ids are strings
// on this boundary for external-facing consistency.
type RiskNode struct {
	CompanyID string  `json:"company_id"`
	Name      string  `json:"name"`
	Risk      float64 `json:"risk"`
	Level     int     `json:"level"`
}

func (n *RiskNode) Status() string { return StatusForRisk(n.Risk) }

// SimulationStep is one append-only log entry, ordered level-major and by
// discovery order within a level. TriggeredBy is nil only for the origin.
type SimulationStep struct {
	Level       int     `json:"level"`
	CompanyID   string  `json:"company_id"`
	Name        string  `json:"name"`
	Risk        float64 `json:"risk"`
	Status      string  `json:"status"`
	TriggeredBy *string `json:"triggered_by"`
}

// RiskEdge is an undirected relation actually touched during propagation,
// endpoints in canonical order.
type RiskEdge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
}

// EdgeKey builds the canonical dedup key for an undirected company pair.
func EdgeKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// SimulationRun is a completed propagation run. Write-once: it is assembled in
// full by the engine, inserted into the run cache, and never mutated after.
type SimulationRun struct {
	RunID          string            `json:"run_id"`
	StartCompanyID int64             `json:"start_company_id"`
	InitialRisk    float64           `json:"initial_risk"`
	DecayRate      float64           `json:"decay_rate"`
	MaxLevel       int               `json:"max_level"`
	Steps          []*SimulationStep `json:"steps"`
	Nodes          []*RiskNode       `json:"nodes"`
	Edges          []*RiskEdge       `json:"edges"`
	CreatedAt      time.Time         `json:"created_at"`
}
