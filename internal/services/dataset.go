package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

const (
	importChunkSize   = 200
	importConcurrency = 4
)

type ImportRow struct {
	Time           int                       `json:"time"`
	CompanyID      int64                     `json:"company_id"`
	CompanyName    string                    `json:"company_name"`
	State          int                       `json:"state"`
	CompositeScore *float64                  `json:"composite_score,omitempty"`
	InternalFactor float64                   `json:"internal_factor"`
	SupplierIDs    []int64                   `json:"supplier_ids,omitempty"`
	CompetitorIDs  []int64                   `json:"competitor_ids,omitempty"`
	Indicators     []types.WeightedIndicator `json:"indicators"`
}

type DatasetService interface {
	Import(ctx context.Context, simulationID uuid.UUID, rows []ImportRow) (int, error)
}

type datasetService struct {
	db        *gorm.DB
	log       *logger.Logger
	scoreRepo repos.TimestepScoreRepo
}

func NewDatasetService(db *gorm.DB, baseLog *logger.Logger, scoreRepo repos.TimestepScoreRepo) DatasetService {
	return &datasetService{
		db:        db,
		log:       baseLog.With("service", "DatasetService"),
		scoreRepo: scoreRepo,
	}
}

// Import bulk-loads a pre-computed timestep dataset. Rows are validated up
// front (the indicator hierarchy is fixed at 13 entries), then inserted in
// chunks with bounded concurrency. When a row carries no composite score it
// is aggregated from its indicators.
func (ds *datasetService) Import(ctx context.Context, simulationID uuid.UUID, rows []ImportRow) (int, error) {
	if simulationID == uuid.Nil {
		return 0, apierr.Validation("simulation id is required")
	}
	if len(rows) == 0 {
		return 0, apierr.Validation("dataset is empty")
	}

	now := time.Now()
	records := make([]*types.CompanyTimestepScore, 0, len(rows))
	for i, row := range rows {
		if row.CompanyID <= 0 {
			return 0, apierr.Validation("row %d: company id is required", i)
		}
		if row.Time < 0 {
			return 0, apierr.Validation("row %d: time must be non-negative", i)
		}
		if len(row.Indicators) != types.IndicatorCount {
			return 0, apierr.Validation("row %d: expected %d indicators, got %d", i, types.IndicatorCount, len(row.Indicators))
		}

		composite := types.CompositeFromIndicators(row.Indicators)
		if row.CompositeScore != nil {
			composite = *row.CompositeScore
		}

		record := &types.CompanyTimestepScore{
			ID:             uuid.New(),
			SimulationID:   simulationID,
			Time:           row.Time,
			CompanyID:      row.CompanyID,
			CompanyName:    row.CompanyName,
			State:          row.State,
			CompositeScore: composite,
			InternalFactor: row.InternalFactor,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		var err error
		if record.SupplierIDs, err = json.Marshal(row.SupplierIDs); err != nil {
			return 0, err
		}
		if record.CompetitorIDs, err = json.Marshal(row.CompetitorIDs); err != nil {
			return 0, err
		}
		if record.Indicators, err = json.Marshal(row.Indicators); err != nil {
			return 0, err
		}
		records = append(records, record)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)
	for start := 0; start < len(records); start += importChunkSize {
		end := start + importChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		g.Go(func() error {
			_, err := ds.scoreRepo.Create(gctx, nil, chunk)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, apierr.Unavailable("import dataset for simulation %s: %v", simulationID, err)
	}

	ds.log.Info("Dataset imported", "simulation_id", simulationID, "rows", len(records))
	return len(records), nil
}
