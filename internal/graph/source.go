package graph

import (
	"context"

	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

// Source is the relationship graph accessor consumed by the propagation
// engine. Implementations fetch edges in batches, one call per BFS level.
type Source interface {
	EdgesTouchingAny(ctx context.Context, companyIDs []int64) ([]*types.CompanyRelation, error)
	EdgesForCompany(ctx context.Context, companyID int64) ([]*types.CompanyRelation, error)
}

// relationalSource reads the graph as relational rows through the gorm repo.
// This is the default backend: the dataset may be large and most runs touch
// only a small neighbourhood, so no full adjacency structure is materialized.
type relationalSource struct {
	relationRepo repos.CompanyRelationRepo
}

func NewRelationalSource(relationRepo repos.CompanyRelationRepo) Source {
	return &relationalSource{relationRepo: relationRepo}
}

func (s *relationalSource) EdgesTouchingAny(ctx context.Context, companyIDs []int64) ([]*types.CompanyRelation, error) {
	return s.relationRepo.GetTouchingAny(ctx, nil, companyIDs)
}

func (s *relationalSource) EdgesForCompany(ctx context.Context, companyID int64) ([]*types.CompanyRelation, error) {
	return s.relationRepo.GetForCompany(ctx, nil, companyID)
}
