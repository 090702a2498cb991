package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/cache"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type CommitParams struct {
	RunID       string
	Name        string
	Description string
	Creator     string
}

// SimulationReplay is a committed run loaded back from durable storage with
// its node/edge/step blobs parsed into typed collections.
type SimulationReplay struct {
	ID             uuid.UUID               `json:"id"`
	RunID          string                  `json:"run_id"`
	Name           string                  `json:"name"`
	Description    string                  `json:"description,omitempty"`
	Creator        string                  `json:"creator,omitempty"`
	StartCompanyID int64                   `json:"start_company_id"`
	InitialRisk    float64                 `json:"initial_risk"`
	DecayRate      float64                 `json:"decay_rate"`
	MaxLevel       int                     `json:"max_level"`
	Steps          []*types.SimulationStep `json:"steps"`
	Nodes          []*types.RiskNode       `json:"nodes"`
	Edges          []*types.RiskEdge       `json:"edges"`
	CreatedAt      time.Time               `json:"created_at"`
}

type SimulationPage struct {
	Items    []*types.RiskSimulation `json:"items"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

type SimulationService interface {
	Commit(ctx context.Context, tx *gorm.DB, params CommitParams) (*types.RiskSimulation, error)
	GetReplay(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*SimulationReplay, error)
	List(ctx context.Context, tx *gorm.DB, page, pageSize int, keyword string) (*SimulationPage, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type simulationService struct {
	db       *gorm.DB
	log      *logger.Logger
	runCache cache.RunCache
	simRepo  repos.RiskSimulationRepo
}

func NewSimulationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	runCache cache.RunCache,
	simRepo repos.RiskSimulationRepo,
) SimulationService {
	return &simulationService{
		db:       db,
		log:      baseLog.With("service", "SimulationService"),
		runCache: runCache,
		simRepo:  simRepo,
	}
}

// Commit persists a cached run and evicts it from the cache. The eviction
// happens only after a successful write: a failed write leaves the entry
// intact so the caller can retry before the TTL fires.
func (ss *simulationService) Commit(ctx context.Context, tx *gorm.DB, params CommitParams) (*types.RiskSimulation, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}

	if strings.TrimSpace(params.RunID) == "" {
		return nil, apierr.Validation("run id is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, apierr.Validation("simulation name is required")
	}

	run, err := ss.runCache.Get(ctx, params.RunID)
	if err != nil {
		return nil, apierr.Unavailable("read run cache: %v", err)
	}
	if run == nil {
		// Expired and never-existed are indistinguishable on purpose.
		return nil, apierr.NotFound("run %s expired or never existed", params.RunID)
	}

	nodesRaw, err := json.Marshal(run.Nodes)
	if err != nil {
		return nil, err
	}
	edgesRaw, err := json.Marshal(run.Edges)
	if err != nil {
		return nil, err
	}
	stepsRaw, err := json.Marshal(run.Steps)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sim := &types.RiskSimulation{
		ID:             uuid.New(),
		RunID:          run.RunID,
		Name:           strings.TrimSpace(params.Name),
		Description:    strings.TrimSpace(params.Description),
		Creator:        strings.TrimSpace(params.Creator),
		StartCompanyID: run.StartCompanyID,
		InitialRisk:    run.InitialRisk,
		DecayRate:      run.DecayRate,
		MaxLevel:       run.MaxLevel,
		Nodes:          nodesRaw,
		Edges:          edgesRaw,
		Steps:          stepsRaw,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := ss.simRepo.Create(ctx, transaction, []*types.RiskSimulation{sim}); err != nil {
		ss.log.Error("Commit write failed, run left in cache", "run_id", params.RunID, "error", err)
		return nil, apierr.Unavailable("persist simulation for run %s: %v", params.RunID, err)
	}

	if err := ss.runCache.Remove(ctx, params.RunID); err != nil {
		// Already persisted; the sweeper will collect the stale entry.
		ss.log.Warn("Failed to evict committed run from cache", "run_id", params.RunID, "error", err)
	}

	ss.log.Info("Run committed", "run_id", params.RunID, "simulation_id", sim.ID)
	return sim, nil
}

func (ss *simulationService) GetReplay(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*SimulationReplay, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}

	sims, err := ss.simRepo.GetByIDs(ctx, transaction, []uuid.UUID{id})
	if err != nil {
		return nil, apierr.Unavailable("load simulation %s: %v", id, err)
	}
	if len(sims) == 0 || sims[0] == nil {
		return nil, apierr.NotFound("simulation %s not found", id)
	}
	sim := sims[0]

	replay := &SimulationReplay{
		ID:             sim.ID,
		RunID:          sim.RunID,
		Name:           sim.Name,
		Description:    sim.Description,
		Creator:        sim.Creator,
		StartCompanyID: sim.StartCompanyID,
		InitialRisk:    sim.InitialRisk,
		DecayRate:      sim.DecayRate,
		MaxLevel:       sim.MaxLevel,
		CreatedAt:      sim.CreatedAt,
	}
	if err := json.Unmarshal(sim.Nodes, &replay.Nodes); err != nil {
		return nil, apierr.Corruption("simulation %s: parse node payload: %v", id, err)
	}
	if err := json.Unmarshal(sim.Edges, &replay.Edges); err != nil {
		return nil, apierr.Corruption("simulation %s: parse edge payload: %v", id, err)
	}
	if err := json.Unmarshal(sim.Steps, &replay.Steps); err != nil {
		return nil, apierr.Corruption("simulation %s: parse step payload: %v", id, err)
	}
	return replay, nil
}

func (ss *simulationService) List(ctx context.Context, tx *gorm.DB, page, pageSize int, keyword string) (*SimulationPage, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	items, total, err := ss.simRepo.List(ctx, transaction, page, pageSize, keyword)
	if err != nil {
		return nil, apierr.Unavailable("list simulations: %v", err)
	}
	if items == nil {
		items = []*types.RiskSimulation{}
	}
	return &SimulationPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (ss *simulationService) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	sims, err := ss.simRepo.GetByIDs(ctx, transaction, []uuid.UUID{id})
	if err != nil {
		return apierr.Unavailable("load simulation %s: %v", id, err)
	}
	if len(sims) == 0 {
		return apierr.NotFound("simulation %s not found", id)
	}
	return ss.simRepo.DeleteByIDs(ctx, transaction, []uuid.UUID{id})
}
