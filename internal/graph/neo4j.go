package graph

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

// neo4jSource serves the relationship graph from Neo4j. Enabled when
// NEO4J_URI is set; companies are (:Company {id}) nodes connected by
// [:RELATED {label, kind}] relationships.
type neo4jSource struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logger.Logger
}

func NewNeo4jSourceFromEnv(log *logger.Logger) (Source, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4j source: logger required")
	}

	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, nil
	}

	user := strings.TrimSpace(os.Getenv("NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	password := strings.TrimSpace(os.Getenv("NEO4J_PASSWORD"))
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j source: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j source: verify connectivity: %w", err)
	}

	return &neo4jSource{
		driver:   driver,
		database: database,
		log:      log.With("client", "Neo4jGraphSource"),
	}, nil
}

func (s *neo4jSource) EdgesTouchingAny(ctx context.Context, companyIDs []int64) ([]*types.CompanyRelation, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}
	const query = `
		MATCH (a:Company)-[r:RELATED]-(b:Company)
		WHERE a.id IN $ids AND a.id < b.id
		RETURN a.id AS source, b.id AS target, r.label AS label, r.kind AS kind
		UNION
		MATCH (a:Company)-[r:RELATED]-(b:Company)
		WHERE b.id IN $ids AND a.id < b.id
		RETURN a.id AS source, b.id AS target, r.label AS label, r.kind AS kind`
	return s.queryRelations(ctx, query, map[string]any{"ids": companyIDs})
}

func (s *neo4jSource) EdgesForCompany(ctx context.Context, companyID int64) ([]*types.CompanyRelation, error) {
	return s.EdgesTouchingAny(ctx, []int64{companyID})
}

func (s *neo4jSource) queryRelations(ctx context.Context, query string, params map[string]any) ([]*types.CompanyRelation, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("neo4j source: query relations: %w", err)
	}

	relations := make([]*types.CompanyRelation, 0, len(result.Records))
	for _, record := range result.Records {
		rel := &types.CompanyRelation{}
		if v, ok := record.Get("source"); ok {
			if id, ok := v.(int64); ok {
				rel.SourceCompanyID = id
			}
		}
		if v, ok := record.Get("target"); ok {
			if id, ok := v.(int64); ok {
				rel.TargetCompanyID = id
			}
		}
		if v, ok := record.Get("label"); ok {
			if label, ok := v.(string); ok {
				rel.Label = label
			}
		}
		if v, ok := record.Get("kind"); ok {
			if kind, ok := v.(string); ok {
				rel.Kind = kind
			}
		}
		rel.Canonicalize()
		relations = append(relations, rel)
	}
	return relations, nil
}

func (s *neo4jSource) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}
