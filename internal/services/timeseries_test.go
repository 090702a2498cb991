package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type fakeScoreRepo struct {
	rows    []*types.CompanyTimestepScore
	created []*types.CompanyTimestepScore
}

var _ repos.TimestepScoreRepo = (*fakeScoreRepo)(nil)

func (f *fakeScoreRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.CompanyTimestepScore) ([]*types.CompanyTimestepScore, error) {
	f.created = append(f.created, rows...)
	return rows, nil
}

func (f *fakeScoreRepo) GetBySimulation(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) ([]*types.CompanyTimestepScore, error) {
	var out []*types.CompanyTimestepScore
	for _, row := range f.rows {
		if row.SimulationID == simulationID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeScoreRepo) GetBySimulationAndTime(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int) ([]*types.CompanyTimestepScore, error) {
	var out []*types.CompanyTimestepScore
	for _, row := range f.rows {
		if row.SimulationID == simulationID && row.Time == time {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeScoreRepo) GetExact(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID, time int, companyID int64) (*types.CompanyTimestepScore, error) {
	for _, row := range f.rows {
		if row.SimulationID == simulationID && row.Time == time && row.CompanyID == companyID {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeScoreRepo) TimeRange(ctx context.Context, tx *gorm.DB, simulationID uuid.UUID) (int, int, error) {
	min, max, found := 0, 0, false
	for _, row := range f.rows {
		if row.SimulationID != simulationID {
			continue
		}
		if !found {
			min, max, found = row.Time, row.Time, true
			continue
		}
		if row.Time < min {
			min = row.Time
		}
		if row.Time > max {
			max = row.Time
		}
	}
	return min, max, nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func fullIndicators(t *testing.T) []types.WeightedIndicator {
	t.Helper()
	out := make([]types.WeightedIndicator, 0, types.IndicatorCount)
	for i := 1; i <= types.IndicatorCount; i++ {
		out = append(out, types.WeightedIndicator{
			Index:       i,
			Name:        fmt.Sprintf("indicator_%d", i),
			Coefficient: 1.0 / types.IndicatorCount,
			Weights:     []float64{0.5, 0.5},
			Score:       0.6,
		})
	}
	return out
}

func scoreRow(t *testing.T, simID uuid.UUID, time int, companyID int64, name string, suppliers, competitors []int64) *types.CompanyTimestepScore {
	t.Helper()
	return &types.CompanyTimestepScore{
		ID:             uuid.New(),
		SimulationID:   simID,
		Time:           time,
		CompanyID:      companyID,
		CompanyName:    name,
		State:          1,
		CompositeScore: 0.6,
		InternalFactor: 0.2,
		SupplierIDs:    mustJSON(t, suppliers),
		CompetitorIDs:  mustJSON(t, competitors),
		Indicators:     mustJSON(t, fullIndicators(t)),
	}
}

func TestGetTopologyPrefersTimestepZero(t *testing.T) {
	simID := uuid.New()
	repo := &fakeScoreRepo{rows: []*types.CompanyTimestepScore{
		scoreRow(t, simID, 0, 1, "A", []int64{2}, []int64{3}),
		scoreRow(t, simID, 0, 2, "B", nil, nil),
		scoreRow(t, simID, 0, 3, "C", nil, nil),
		// later timesteps declare extra relations that must not appear
		scoreRow(t, simID, 1, 1, "A", []int64{2, 3}, nil),
		scoreRow(t, simID, 1, 2, "B", nil, nil),
		scoreRow(t, simID, 1, 3, "C", nil, nil),
	}}
	svc := NewTimeseriesService(nil, logger.NewNop(), repo)

	topology, err := svc.GetTopology(context.Background(), nil, simID)
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	if len(topology.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(topology.Nodes))
	}
	if len(topology.Edges) != 2 {
		t.Fatalf("got %d edges, want 2 (supply 1-2, competition 1-3)", len(topology.Edges))
	}
	kinds := map[string]int{}
	for _, edge := range topology.Edges {
		kinds[edge.Kind]++
	}
	if kinds["supply"] != 1 || kinds["competition"] != 1 {
		t.Fatalf("unexpected edge kinds %v", kinds)
	}
	if topology.TimeRange.Min != 0 || topology.TimeRange.Max != 1 {
		t.Fatalf("time range %+v, want [0,1]", topology.TimeRange)
	}
}

func TestGetTopologyFallsBackToFullScan(t *testing.T) {
	simID := uuid.New()
	repo := &fakeScoreRepo{rows: []*types.CompanyTimestepScore{
		// no timestep-0 rows at all
		scoreRow(t, simID, 3, 1, "A", []int64{2}, nil),
		scoreRow(t, simID, 3, 2, "B", nil, nil),
		scoreRow(t, simID, 4, 1, "A", []int64{2}, nil),
		scoreRow(t, simID, 4, 2, "B", nil, nil),
	}}
	svc := NewTimeseriesService(nil, logger.NewNop(), repo)

	topology, err := svc.GetTopology(context.Background(), nil, simID)
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	// companies appear at two timesteps but nodes and edges are deduplicated
	if len(topology.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(topology.Nodes))
	}
	if len(topology.Edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(topology.Edges))
	}
	if topology.TimeRange.Min != 3 || topology.TimeRange.Max != 4 {
		t.Fatalf("time range %+v, want [3,4]", topology.TimeRange)
	}
}

func TestGetTopologyDedupesReciprocalEdges(t *testing.T) {
	simID := uuid.New()
	repo := &fakeScoreRepo{rows: []*types.CompanyTimestepScore{
		scoreRow(t, simID, 0, 1, "A", []int64{2}, nil),
		scoreRow(t, simID, 0, 2, "B", []int64{1}, nil),
	}}
	svc := NewTimeseriesService(nil, logger.NewNop(), repo)

	topology, err := svc.GetTopology(context.Background(), nil, simID)
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	if len(topology.Edges) != 1 {
		t.Fatalf("reciprocal supplier declarations must collapse to one edge, got %d", len(topology.Edges))
	}
	edge := topology.Edges[0]
	if edge.SourceID != "1" || edge.TargetID != "2" {
		t.Fatalf("edge not canonical: %+v", edge)
	}
}

func TestGetTopologyNoDataset(t *testing.T) {
	svc := NewTimeseriesService(nil, logger.NewNop(), &fakeScoreRepo{})
	_, err := svc.GetTopology(context.Background(), nil, uuid.New())
	if !apierr.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestGetStepData(t *testing.T) {
	simID := uuid.New()
	row := scoreRow(t, simID, 2, 1, "A", nil, nil)
	row.CompositeScore = 0
	row.InternalFactor = 0
	repo := &fakeScoreRepo{rows: []*types.CompanyTimestepScore{row}}
	svc := NewTimeseriesService(nil, logger.NewNop(), repo)

	step, err := svc.GetStepData(context.Background(), nil, simID, 2)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if step.Time != 2 || len(step.States) != 1 {
		t.Fatalf("unexpected step data %+v", step)
	}
	// absent numerics come back as zero values, not errors
	if step.States[0].CompositeScore != 0 || step.States[0].InternalFactor != 0 {
		t.Fatalf("zero fields must stay zero: %+v", step.States[0])
	}

	empty, err := svc.GetStepData(context.Background(), nil, simID, 99)
	if err != nil {
		t.Fatalf("empty step: %v", err)
	}
	if len(empty.States) != 0 {
		t.Fatalf("empty timestep must yield an empty state list")
	}
}

func TestGetCompanyDetail(t *testing.T) {
	simID := uuid.New()
	repo := &fakeScoreRepo{rows: []*types.CompanyTimestepScore{
		scoreRow(t, simID, 1, 7, "G", []int64{8}, []int64{9}),
	}}
	svc := NewTimeseriesService(nil, logger.NewNop(), repo)

	detail, err := svc.GetCompanyDetail(context.Background(), nil, simID, 1, 7)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.CompanyID != 7 || detail.CompanyName != "G" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if len(detail.Indicators) != types.IndicatorCount {
		t.Fatalf("got %d indicators, want %d", len(detail.Indicators), types.IndicatorCount)
	}
	if len(detail.SupplierIDs) != 1 || detail.SupplierIDs[0] != 8 {
		t.Fatalf("unexpected suppliers %v", detail.SupplierIDs)
	}

	// exact-triple miss
	if _, err := svc.GetCompanyDetail(context.Background(), nil, simID, 2, 7); !apierr.IsNotFound(err) {
		t.Fatalf("want not found for wrong time, got %v", err)
	}
	if _, err := svc.GetCompanyDetail(context.Background(), nil, simID, 1, 8); !apierr.IsNotFound(err) {
		t.Fatalf("want not found for wrong company, got %v", err)
	}
}

func TestGetCompanyDetailCorruptIndicators(t *testing.T) {
	simID := uuid.New()
	row := scoreRow(t, simID, 1, 7, "G", nil, nil)
	row.Indicators = []byte(`{bad`)
	repo := &fakeScoreRepo{rows: []*types.CompanyTimestepScore{row}}
	svc := NewTimeseriesService(nil, logger.NewNop(), repo)

	_, err := svc.GetCompanyDetail(context.Background(), nil, simID, 1, 7)
	ae, ok := apierr.From(err)
	if !ok || ae.Code != apierr.CodeDataCorruption {
		t.Fatalf("want data corruption, got %v", err)
	}
}

func TestDatasetImport(t *testing.T) {
	repo := &fakeScoreRepo{}
	svc := NewDatasetService(nil, logger.NewNop(), repo)
	simID := uuid.New()

	rows := []ImportRow{
		{Time: 0, CompanyID: 1, CompanyName: "A", State: 1, InternalFactor: 0.1, Indicators: fullIndicators(t)},
		{Time: 0, CompanyID: 2, CompanyName: "B", State: 0, InternalFactor: 0.2, Indicators: fullIndicators(t)},
	}
	count, err := svc.Import(context.Background(), simID, rows)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 2 || len(repo.created) != 2 {
		t.Fatalf("imported %d rows, repo holds %d, want 2", count, len(repo.created))
	}

	// composite aggregated from indicators when not supplied:
	// 13 * (1/13) * 0.6 = 0.6
	for _, rec := range repo.created {
		if rec.CompositeScore < 0.599 || rec.CompositeScore > 0.601 {
			t.Fatalf("composite %v, want ~0.6", rec.CompositeScore)
		}
	}
}

func TestDatasetImportValidation(t *testing.T) {
	svc := NewDatasetService(nil, logger.NewNop(), &fakeScoreRepo{})
	simID := uuid.New()

	cases := []struct {
		name string
		sim  uuid.UUID
		rows []ImportRow
	}{
		{name: "missing_sim", sim: uuid.Nil, rows: []ImportRow{{CompanyID: 1, Indicators: fullIndicators(t)}}},
		{name: "empty_rows", sim: simID, rows: nil},
		{name: "missing_company", sim: simID, rows: []ImportRow{{Indicators: fullIndicators(t)}}},
		{name: "short_indicators", sim: simID, rows: []ImportRow{{CompanyID: 1, Indicators: fullIndicators(t)[:5]}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), tc.sim, tc.rows)
			ae, ok := apierr.From(err)
			if !ok || ae.Code != apierr.CodeValidation {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}
