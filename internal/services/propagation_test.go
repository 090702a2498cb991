package services

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"gorm.io/gorm"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

type fakeCompanyRepo struct {
	companies map[int64]*types.Company
	failBatch bool
}

var _ repos.CompanyRepo = (*fakeCompanyRepo)(nil)

func (f *fakeCompanyRepo) Create(ctx context.Context, tx *gorm.DB, companies []*types.Company) ([]*types.Company, error) {
	return companies, nil
}

func (f *fakeCompanyRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Company, error) {
	return f.companies[id], nil
}

func (f *fakeCompanyRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Company, error) {
	if f.failBatch {
		return nil, fmt.Errorf("connection refused")
	}
	var out []*types.Company
	for _, id := range ids {
		if c, ok := f.companies[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeGraphSource struct {
	relations []*types.CompanyRelation
	fail      bool
	calls     int
}

func (f *fakeGraphSource) EdgesTouchingAny(ctx context.Context, companyIDs []int64) ([]*types.CompanyRelation, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("connection refused")
	}
	members := map[int64]bool{}
	for _, id := range companyIDs {
		members[id] = true
	}
	var out []*types.CompanyRelation
	for _, rel := range f.relations {
		if members[rel.SourceCompanyID] || members[rel.TargetCompanyID] {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeGraphSource) EdgesForCompany(ctx context.Context, companyID int64) ([]*types.CompanyRelation, error) {
	return f.EdgesTouchingAny(ctx, []int64{companyID})
}

type spyCache struct {
	puts    map[string]*types.SimulationRun
	removed []string
	failPut bool
}

func newSpyCache() *spyCache {
	return &spyCache{puts: map[string]*types.SimulationRun{}}
}

func (s *spyCache) Put(ctx context.Context, runID string, run *types.SimulationRun) error {
	if s.failPut {
		return fmt.Errorf("cache unavailable")
	}
	s.puts[runID] = run
	return nil
}

func (s *spyCache) Get(ctx context.Context, runID string) (*types.SimulationRun, error) {
	return s.puts[runID], nil
}

func (s *spyCache) Remove(ctx context.Context, runID string) error {
	delete(s.puts, runID)
	s.removed = append(s.removed, runID)
	return nil
}

func (s *spyCache) Close() error { return nil }

func testCompanies(names map[int64]string) map[int64]*types.Company {
	out := map[int64]*types.Company{}
	for id, name := range names {
		out[id] = &types.Company{ID: id, Name: name}
	}
	return out
}

func relation(a, b int64) *types.CompanyRelation {
	rel := &types.CompanyRelation{SourceCompanyID: a, TargetCompanyID: b, Label: "cooperation", Kind: types.RelationKindSupplier}
	rel.Canonicalize()
	return rel
}

func newTestEngine(companies map[int64]*types.Company, relations []*types.CompanyRelation) (PropagationService, *fakeGraphSource, *spyCache) {
	source := &fakeGraphSource{relations: relations}
	runCache := newSpyCache()
	svc := NewPropagationService(nil, logger.NewNop(), &fakeCompanyRepo{companies: companies}, source, runCache)
	return svc, source, runCache
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestRunTriangle(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A", 2: "B", 3: "C"})
	relations := []*types.CompanyRelation{relation(1, 2), relation(2, 3), relation(1, 3)}
	svc, _, runCache := newTestEngine(companies, relations)

	run, err := svc.Run(context.Background(), nil, RunParams{
		StartCompanyID: 1,
		InitialRisk:    floatPtr(1.0),
		DecayRate:      floatPtr(0.5),
		MaxLevel:       intPtr(2),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantNodes := map[string]struct {
		risk  float64
		level int
	}{
		"1": {risk: 1.0, level: 0},
		"2": {risk: 0.5, level: 1},
		"3": {risk: 0.5, level: 1},
	}
	if len(run.Nodes) != len(wantNodes) {
		t.Fatalf("got %d nodes, want %d", len(run.Nodes), len(wantNodes))
	}
	for _, node := range run.Nodes {
		want, ok := wantNodes[node.CompanyID]
		if !ok {
			t.Fatalf("unexpected node %s", node.CompanyID)
		}
		if node.Risk != want.risk || node.Level != want.level {
			t.Fatalf("node %s = %v@L%d, want %v@L%d", node.CompanyID, node.Risk, node.Level, want.risk, want.level)
		}
	}

	// B-C only reaches already-assigned nodes (0.25 < 0.5, no update) but
	// clears the floor, so it is still recorded as touched.
	wantEdges := map[string]bool{"1-2": true, "1-3": true, "2-3": true}
	if len(run.Edges) != len(wantEdges) {
		t.Fatalf("got %d edges, want %d", len(run.Edges), len(wantEdges))
	}
	for _, edge := range run.Edges {
		key := edge.SourceID + "-" + edge.TargetID
		if !wantEdges[key] {
			t.Fatalf("unexpected edge %s", key)
		}
	}

	if len(run.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(run.Steps))
	}
	if run.Steps[0].TriggeredBy != nil {
		t.Fatalf("origin step must have nil trigger")
	}
	for _, step := range run.Steps[1:] {
		if step.TriggeredBy == nil || *step.TriggeredBy != "1" {
			t.Fatalf("level-1 steps must be triggered by the origin")
		}
	}

	if cached, _ := runCache.Get(context.Background(), run.RunID); cached != run {
		t.Fatalf("completed run must be cached under its run id")
	}
}

func TestRunStepsAreLevelMajor(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A", 2: "B", 3: "C", 4: "D"})
	relations := []*types.CompanyRelation{relation(1, 2), relation(2, 3), relation(3, 4)}
	svc, _, _ := newTestEngine(companies, relations)

	run, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 1, DecayRate: floatPtr(0.5)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lastLevel := 0
	for _, step := range run.Steps {
		if step.Level < lastLevel {
			t.Fatalf("steps are not level-major ordered: %d after %d", step.Level, lastLevel)
		}
		lastLevel = step.Level
	}
}

func TestRunDecayMonotonicity(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A", 2: "B", 3: "C", 4: "D", 5: "E"})
	relations := []*types.CompanyRelation{relation(1, 2), relation(2, 3), relation(3, 4), relation(4, 5)}
	svc, _, _ := newTestEngine(companies, relations)

	decay := 0.6
	run, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 1, DecayRate: floatPtr(decay)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	byID := map[string]*types.RiskNode{}
	for _, node := range run.Nodes {
		byID[node.CompanyID] = node
	}
	for i := int64(2); i <= 5; i++ {
		child := byID[strconv.FormatInt(i, 10)]
		parent := byID[strconv.FormatInt(i-1, 10)]
		if child == nil || parent == nil {
			t.Fatalf("chain node %d missing", i)
		}
		if child.Risk > parent.Risk*decay+1e-12 {
			t.Fatalf("node %d risk %v exceeds parent %v * decay", i, child.Risk, parent.Risk)
		}
		if child.Level != parent.Level+1 {
			t.Fatalf("node %d at level %d, want %d", i, child.Level, parent.Level+1)
		}
	}
}

func TestRunMaterialityFloor(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A", 2: "B", 3: "C", 4: "D"})
	relations := []*types.CompanyRelation{relation(1, 2), relation(2, 3), relation(3, 4)}
	svc, _, _ := newTestEngine(companies, relations)

	// 1.0 -> 0.1 -> 0.01 -> 0.001: the last hop is below the floor
	run, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 1, DecayRate: floatPtr(0.1)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, step := range run.Steps {
		if step.Risk < MaterialityFloor {
			t.Fatalf("step for %s carries risk %v below the floor", step.CompanyID, step.Risk)
		}
	}
	for _, node := range run.Nodes {
		if node.CompanyID == "4" {
			t.Fatalf("node 4 must not be reached below the floor")
		}
	}
	for _, edge := range run.Edges {
		if edge.SourceID == "3" && edge.TargetID == "4" {
			t.Fatalf("edge 3-4 must not be touched below the floor")
		}
	}
}

func TestRunTieDoesNotUpdate(t *testing.T) {
	// Diamond: node 4 is reachable from both 2 and 3 with identical risk.
	companies := testCompanies(map[int64]string{1: "A", 2: "B", 3: "C", 4: "D"})
	relations := []*types.CompanyRelation{relation(1, 2), relation(1, 3), relation(2, 4), relation(3, 4)}
	svc, _, _ := newTestEngine(companies, relations)

	run, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 1, DecayRate: floatPtr(0.5)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	stepsForFour := 0
	for _, step := range run.Steps {
		if step.CompanyID == "4" {
			stepsForFour++
		}
	}
	if stepsForFour != 1 {
		t.Fatalf("node 4 has %d steps, want exactly 1 (tie must not update)", stepsForFour)
	}
	nodesForFour := 0
	for _, node := range run.Nodes {
		if node.CompanyID == "4" {
			nodesForFour++
		}
	}
	if nodesForFour != 1 {
		t.Fatalf("node 4 appears %d times, want 1", nodesForFour)
	}
}

func TestRunDefaultsApplied(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A"})
	svc, _, _ := newTestEngine(companies, nil)

	run, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.InitialRisk != DefaultInitialRisk || run.DecayRate != DefaultDecayRate || run.MaxLevel != DefaultMaxLevel {
		t.Fatalf("defaults not applied: %+v", run)
	}
}

func TestRunValidation(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A"})
	svc, _, _ := newTestEngine(companies, nil)

	cases := []struct {
		name   string
		params RunParams
	}{
		{name: "missing_start", params: RunParams{}},
		{name: "decay_above_one", params: RunParams{StartCompanyID: 1, DecayRate: floatPtr(1.5)}},
		{name: "decay_zero", params: RunParams{StartCompanyID: 1, DecayRate: floatPtr(0)}},
		{name: "max_level_zero", params: RunParams{StartCompanyID: 1, MaxLevel: intPtr(0)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), nil, tc.params)
			ae, ok := apierr.From(err)
			if !ok || ae.Code != apierr.CodeValidation {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestRunStartCompanyNotFound(t *testing.T) {
	svc, _, _ := newTestEngine(testCompanies(map[int64]string{1: "A"}), nil)
	_, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 99})
	if !apierr.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestRunAbortsOnGraphFailure(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A", 2: "B"})
	source := &fakeGraphSource{relations: []*types.CompanyRelation{relation(1, 2)}, fail: true}
	runCache := newSpyCache()
	svc := NewPropagationService(nil, logger.NewNop(), &fakeCompanyRepo{companies: companies}, source, runCache)

	_, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 1})
	ae, ok := apierr.From(err)
	if !ok || ae.Code != apierr.CodeStoreUnavailable {
		t.Fatalf("want store unavailable, got %v", err)
	}
	if len(runCache.puts) != 0 {
		t.Fatalf("aborted run must never be cached")
	}
}

func TestRunBatchesOneFetchPerLevel(t *testing.T) {
	companies := testCompanies(map[int64]string{1: "A", 2: "B", 3: "C", 4: "D", 5: "E"})
	relations := []*types.CompanyRelation{relation(1, 2), relation(1, 3), relation(2, 4), relation(3, 5)}
	svc, source, _ := newTestEngine(companies, relations)

	_, err := svc.Run(context.Background(), nil, RunParams{StartCompanyID: 1, MaxLevel: intPtr(2)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("graph fetched %d times, want one batched fetch per level (2)", source.calls)
	}
}
