package services

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type TopologyNode struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

type TopologyEdge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Kind     string `json:"kind"`
}

type TimeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type Topology struct {
	Nodes     []TopologyNode `json:"nodes"`
	Edges     []TopologyEdge `json:"edges"`
	TimeRange TimeRange      `json:"time_range"`
}

type NodeState struct {
	CompanyID      string  `json:"company_id"`
	State          int     `json:"state"`
	CompositeScore float64 `json:"composite_score"`
	InternalFactor float64 `json:"internal_factor"`
}

type StepData struct {
	Time   int         `json:"time"`
	States []NodeState `json:"states"`
}

// CompanyDetail is the full scoring record for one (simulation, time,
// company) triple with the JSON columns parsed out.
type CompanyDetail struct {
	SimulationID   uuid.UUID                 `json:"simulation_id"`
	Time           int                       `json:"time"`
	CompanyID      int64                     `json:"company_id"`
	CompanyName    string                    `json:"company_name"`
	State          int                       `json:"state"`
	CompositeScore float64                   `json:"composite_score"`
	InternalFactor float64                   `json:"internal_factor"`
	SupplierIDs    []int64                   `json:"supplier_ids"`
	CompetitorIDs  []int64                   `json:"competitor_ids"`
	Indicators     []types.WeightedIndicator `json:"indicators"`
}

const (
	topologyEdgeKindSupply      = "supply"
	topologyEdgeKindCompetition = "competition"
)

type TimeseriesService interface {
	GetTopology(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) (*Topology, error)
	GetStepData(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int) (*StepData, error)
	GetCompanyDetail(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int, companyID int64) (*CompanyDetail, error)
}

type timeseriesService struct {
	db        *gorm.DB
	log       *logger.Logger
	scoreRepo repos.TimestepScoreRepo
}

func NewTimeseriesService(db *gorm.DB, baseLog *logger.Logger, scoreRepo repos.TimestepScoreRepo) TimeseriesService {
	return &timeseriesService{
		db:        db,
		log:       baseLog.With("service", "TimeseriesService"),
		scoreRepo: scoreRepo,
	}
}

// GetTopology builds the static company graph for a simulation. The
// timestep-0 snapshot is preferred; when timestep 0 has no rows the whole
// dataset is scanned instead.
func (ts *timeseriesService) GetTopology(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) (*Topology, error) {
	transaction := tx
	if transaction == nil {
		transaction = ts.db
	}

	rows, err := ts.scoreRepo.GetBySimulationAndTime(ctx, transaction, simulationID, 0)
	if err != nil {
		return nil, apierr.Unavailable("load timestep 0 for simulation %s: %v", simulationID, err)
	}
	if len(rows) == 0 {
		rows, err = ts.scoreRepo.GetBySimulation(ctx, transaction, simulationID)
		if err != nil {
			return nil, apierr.Unavailable("scan dataset for simulation %s: %v", simulationID, err)
		}
	}
	if len(rows) == 0 {
		return nil, apierr.NotFound("no dataset for simulation %s", simulationID)
	}

	nodeSeen := map[int64]bool{}
	var nodes []TopologyNode
	edgeSeen := map[string]bool{}
	var edges []TopologyEdge

	addEdge := func(from, to int64, kind string) {
		key := kind + ":" + types.EdgeKey(from, to)
		if edgeSeen[key] {
			return
		}
		edgeSeen[key] = true
		if from > to {
			from, to = to, from
		}
		edges = append(edges, TopologyEdge{
			SourceID: strconv.FormatInt(from, 10),
			TargetID: strconv.FormatInt(to, 10),
			Kind:     kind,
		})
	}

	for _, row := range rows {
		if !nodeSeen[row.CompanyID] {
			nodeSeen[row.CompanyID] = true
			nodes = append(nodes, TopologyNode{
				CompanyID: strconv.FormatInt(row.CompanyID, 10),
				Name:      row.CompanyName,
			})
		}

		suppliers, err := parseIDList(row.SupplierIDs)
		if err != nil {
			return nil, apierr.Corruption("simulation %s company %d: parse supplier ids: %v", simulationID, row.CompanyID, err)
		}
		competitors, err := parseIDList(row.CompetitorIDs)
		if err != nil {
			return nil, apierr.Corruption("simulation %s company %d: parse competitor ids: %v", simulationID, row.CompanyID, err)
		}
		for _, sid := range suppliers {
			addEdge(row.CompanyID, sid, topologyEdgeKindSupply)
		}
		for _, cid := range competitors {
			addEdge(row.CompanyID, cid, topologyEdgeKindCompetition)
		}
	}

	minTime, maxTime, err := ts.scoreRepo.TimeRange(ctx, transaction, simulationID)
	if err != nil {
		return nil, apierr.Unavailable("time range for simulation %s: %v", simulationID, err)
	}

	return &Topology{
		Nodes:     nodes,
		Edges:     edges,
		TimeRange: TimeRange{Min: minTime, Max: maxTime},
	}, nil
}

// GetStepData returns the per-company states at one timestep. Absent numeric
// fields come back as 0.0 rather than failing; an empty timestep yields an
// empty state list.
func (ts *timeseriesService) GetStepData(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int) (*StepData, error) {
	transaction := tx
	if transaction == nil {
		transaction = ts.db
	}

	rows, err := ts.scoreRepo.GetBySimulationAndTime(ctx, transaction, simulationID, time)
	if err != nil {
		return nil, apierr.Unavailable("load timestep %d for simulation %s: %v", time, simulationID, err)
	}

	states := make([]NodeState, 0, len(rows))
	for _, row := range rows {
		states = append(states, NodeState{
			CompanyID:      strconv.FormatInt(row.CompanyID, 10),
			State:          row.State,
			CompositeScore: row.CompositeScore,
			InternalFactor: row.InternalFactor,
		})
	}
	return &StepData{Time: time, States: states}, nil
}

func (ts *timeseriesService) GetCompanyDetail(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int, companyID int64) (*CompanyDetail, error) {
	transaction := tx
	if transaction == nil {
		transaction = ts.db
	}

	row, err := ts.scoreRepo.GetExact(ctx, transaction, simulationID, time, companyID)
	if err != nil {
		return nil, apierr.Unavailable("load company %d at timestep %d for simulation %s: %v", companyID, time, simulationID, err)
	}
	if row == nil {
		return nil, apierr.NotFound("no record for simulation %s, time %d, company %d", simulationID, time, companyID)
	}

	detail := &CompanyDetail{
		SimulationID:   row.SimulationID,
		Time:           row.Time,
		CompanyID:      row.CompanyID,
		CompanyName:    row.CompanyName,
		State:          row.State,
		CompositeScore: row.CompositeScore,
		InternalFactor: row.InternalFactor,
	}
	if detail.SupplierIDs, err = parseIDList(row.SupplierIDs); err != nil {
		return nil, apierr.Corruption("simulation %s company %d: parse supplier ids: %v", simulationID, companyID, err)
	}
	if detail.CompetitorIDs, err = parseIDList(row.CompetitorIDs); err != nil {
		return nil, apierr.Corruption("simulation %s company %d: parse competitor ids: %v", simulationID, companyID, err)
	}
	if len(row.Indicators) > 0 {
		if err := json.Unmarshal(row.Indicators, &detail.Indicators); err != nil {
			return nil, apierr.Corruption("simulation %s company %d: parse indicators: %v", simulationID, companyID, err)
		}
	}
	return detail, nil
}

func parseIDList(raw []byte) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
