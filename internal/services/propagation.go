package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/cache"
	"github.com/strataworks/chainrisk-backend/internal/graph"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

const (
	DefaultInitialRisk = 1.0
	DefaultDecayRate   = 0.6
	DefaultMaxLevel    = 5

	// Risk below this floor neither propagates nor marks an edge as touched.
	MaterialityFloor = 0.01
)

type RunParams struct {
	StartCompanyID int64
	InitialRisk    *float64
	DecayRate      *float64
	MaxLevel       *int
}

type PropagationService interface {
	Run(ctx context.Context, tx *gorm.DB, params RunParams) (*types.SimulationRun, error)
}

type propagationService struct {
	db          *gorm.DB
	log         *logger.Logger
	companyRepo repos.CompanyRepo
	graphSource graph.Source
	runCache    cache.RunCache
}

func NewPropagationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	companyRepo repos.CompanyRepo,
	graphSource graph.Source,
	runCache cache.RunCache,
) PropagationService {
	return &propagationService{
		db:          db,
		log:         baseLog.With("service", "PropagationService"),
		companyRepo: companyRepo,
		graphSource: graphSource,
		runCache:    runCache,
	}
}

// Run performs a level-synchronous BFS from the start company. Edges are
// fetched in one batched query per level and names are resolved in one
// batched query per level, so external round trips scale with the level cap
// rather than the node count. The completed run is inserted into the run
// cache under a fresh run id; nothing is cached if the run aborts.
func (ps *propagationService) Run(ctx context.Context, tx *gorm.DB, params RunParams) (*types.SimulationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = ps.db
	}

	if params.StartCompanyID <= 0 {
		return nil, apierr.Validation("start company id is required")
	}
	initialRisk := DefaultInitialRisk
	if params.InitialRisk != nil {
		initialRisk = *params.InitialRisk
	}
	decayRate := DefaultDecayRate
	if params.DecayRate != nil {
		decayRate = *params.DecayRate
	}
	if decayRate <= 0 || decayRate > 1 {
		return nil, apierr.Validation("decay rate must be in (0, 1], got %v", decayRate)
	}
	maxLevel := DefaultMaxLevel
	if params.MaxLevel != nil {
		maxLevel = *params.MaxLevel
	}
	if maxLevel < 1 {
		return nil, apierr.Validation("max level must be positive, got %d", maxLevel)
	}

	start, err := ps.companyRepo.GetByID(ctx, transaction, params.StartCompanyID)
	if err != nil {
		return nil, apierr.Unavailable("load start company %d: %v", params.StartCompanyID, err)
	}
	if start == nil {
		return nil, apierr.NotFound("company %d not found", params.StartCompanyID)
	}

	names := map[int64]string{start.ID: start.Name}
	riskNodes := map[int64]*types.RiskNode{}
	var nodes []*types.RiskNode
	var steps []*types.SimulationStep
	edgeSeen := map[string]bool{}
	var edges []*types.RiskEdge

	origin := &types.RiskNode{
		CompanyID: strconv.FormatInt(start.ID, 10),
		Name:      start.Name,
		Risk:      initialRisk,
		Level:     0,
	}
	riskNodes[start.ID] = origin
	nodes = append(nodes, origin)
	steps = append(steps, &types.SimulationStep{
		Level:       0,
		CompanyID:   origin.CompanyID,
		Name:        origin.Name,
		Risk:        origin.Risk,
		Status:      types.StatusForRisk(origin.Risk),
		TriggeredBy: nil,
	})

	frontier := []int64{start.ID}

	for level := 1; level <= maxLevel; level++ {
		relations, err := ps.graphSource.EdgesTouchingAny(ctx, frontier)
		if err != nil {
			// Abort; the partially built run is discarded, never cached.
			return nil, apierr.Unavailable("fetch edges at level %d: %v", level, err)
		}
		if len(relations) == 0 {
			break
		}

		if err := ps.resolveNames(ctx, transaction, relations, names); err != nil {
			return nil, err
		}

		inFrontier := make(map[int64]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []int64
		for _, rel := range relations {
			for _, pair := range [][2]int64{
				{rel.SourceCompanyID, rel.TargetCompanyID},
				{rel.TargetCompanyID, rel.SourceCompanyID},
			} {
				u, v := pair[0], pair[1]
				if !inFrontier[u] {
					continue
				}
				parent := riskNodes[u]
				if parent == nil {
					continue
				}
				newRisk := parent.Risk * decayRate
				if newRisk < MaterialityFloor {
					continue
				}

				key := types.EdgeKey(rel.SourceCompanyID, rel.TargetCompanyID)
				if !edgeSeen[key] {
					edgeSeen[key] = true
					edges = append(edges, &types.RiskEdge{
						SourceID: strconv.FormatInt(rel.SourceCompanyID, 10),
						TargetID: strconv.FormatInt(rel.TargetCompanyID, 10),
						Label:    rel.Label,
						Kind:     rel.Kind,
					})
				}

				existing := riskNodes[v]
				if existing == nil {
					node := &types.RiskNode{
						CompanyID: strconv.FormatInt(v, 10),
						Name:      names[v],
						Risk:      newRisk,
						Level:     level,
					}
					riskNodes[v] = node
					nodes = append(nodes, node)
					steps = append(steps, newStep(node, parent))
					next = append(next, v)
				} else if newRisk > existing.Risk {
					// Only a strictly higher candidate replaces; the node
					// keeps its level, which never moves backward.
					existing.Risk = newRisk
					steps = append(steps, newStep(existing, parent))
				}
			}
		}

		if len(next) == 0 {
			break
		}
		frontier = next
	}

	run := &types.SimulationRun{
		RunID:          uuid.New().String(),
		StartCompanyID: start.ID,
		InitialRisk:    initialRisk,
		DecayRate:      decayRate,
		MaxLevel:       maxLevel,
		Steps:          steps,
		Nodes:          nodes,
		Edges:          edges,
		CreatedAt:      time.Now(),
	}

	if err := ps.runCache.Put(ctx, run.RunID, run); err != nil {
		return nil, apierr.Unavailable("cache run %s: %v", run.RunID, err)
	}

	ps.log.Info("Propagation run completed",
		"run_id", run.RunID,
		"start_company_id", start.ID,
		"nodes", len(nodes),
		"edges", len(edges),
		"steps", len(steps))
	return run, nil
}

func newStep(node *types.RiskNode, parent *types.RiskNode) *types.SimulationStep {
	triggeredBy := parent.CompanyID
	return &types.SimulationStep{
		Level:       node.Level,
		CompanyID:   node.CompanyID,
		Name:        node.Name,
		Risk:        node.Risk,
		Status:      types.StatusForRisk(node.Risk),
		TriggeredBy: &triggeredBy,
	}
}

// resolveNames batch-loads display names for relation endpoints not seen yet.
func (ps *propagationService) resolveNames(ctx context.Context, tx *gorm.DB, relations []*types.CompanyRelation, names map[int64]string) error {
	var missing []int64
	seen := map[int64]bool{}
	for _, rel := range relations {
		for _, id := range []int64{rel.SourceCompanyID, rel.TargetCompanyID} {
			if _, ok := names[id]; !ok && !seen[id] {
				seen[id] = true
				missing = append(missing, id)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	companies, err := ps.companyRepo.GetByIDs(ctx, tx, missing)
	if err != nil {
		return apierr.Unavailable("resolve company names: %v", err)
	}
	for _, company := range companies {
		names[company.ID] = company.Name
	}
	for _, id := range missing {
		if _, ok := names[id]; !ok {
			names[id] = strconv.FormatInt(id, 10)
		}
	}
	return nil
}
