package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core/model"
)

type MockSource struct {
	Entities         []model.Entity
	Relationships    []model.Relationship
	EntitiesErr      error
	RelationshipsErr error
}

func (m *MockSource) GetEntitiesForCampaign(ctx context.Context, campaignID string) ([]model.Entity, error) {
	if m.EntitiesErr != nil {
		return nil, m.EntitiesErr
	}
	return m.Entities, nil
}

func (m *MockSource) GetRelationshipsForCampaign(ctx context.Context, campaignID string) ([]model.Relationship, error) {
	if m.RelationshipsErr != nil {
		return nil, m.RelationshipsErr
	}
	return m.Relationships, nil
}

func weight(w float64) *float64 {
	return &w
}

func TestFromRecords(t *testing.T) {
	entities := []model.Entity{
		{ID: "tavern", CampaignID: "c1", Type: "location"},
		{ID: "bard", CampaignID: "c1", Type: "character"},
		{ID: "amulet", CampaignID: "c1", Type: "item"},
		{ID: "hermit", CampaignID: "c1", Type: "character"},
	}
	relationships := []model.Relationship{
		{ID: "r1", SourceID: "bard", TargetID: "tavern", Type: "frequents"},
		{ID: "r2", SourceID: "tavern", TargetID: "bard", Type: "employs", Weight: weight(2)},
		{ID: "r3", SourceID: "bard", TargetID: "bard", Type: "admires"},
		{ID: "r4", SourceID: "bard", TargetID: "ghost", Type: "haunted_by"},
		{ID: "r5", SourceID: "amulet", TargetID: "bard", Type: "owned_by", Weight: weight(-1)},
	}

	g, stats, err := FromRecords("c1", entities, relationships, zap.NewNop())
	require.NoError(t, err)

	// Nodes are ordered by id.
	assert.Equal(t, []string{"amulet", "bard", "hermit", "tavern"}, g.IDs())

	// bard-tavern: default 1.0 plus explicit 2.0.
	assert.Equal(t, []Edge{{To: 3, Weight: 3}}, g.Neighbors(1))
	assert.Equal(t, 3.0, g.TotalWeight())
	assert.Equal(t, 0.0, g.SelfLoop(1))

	// Isolated entities stay in the graph.
	assert.Empty(t, g.Neighbors(2))
	assert.Empty(t, g.Neighbors(0))

	assert.Equal(t, 4, stats.Entities)
	assert.Equal(t, 5, stats.Relationships)
	assert.Equal(t, 1, stats.SelfLoops)
	assert.Equal(t, 1, stats.DanglingEndpoints)
	assert.Equal(t, 1, stats.InvalidWeights)
	assert.Equal(t, 1, stats.MergedParallel)
	assert.Equal(t, 1, stats.Edges)
}

func TestFromRecords_DuplicateEntitiesCollapsed(t *testing.T) {
	entities := []model.Entity{{ID: "a"}, {ID: "b"}, {ID: "a"}}
	g, stats, err := FromRecords("c1", entities, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 1, stats.DuplicateEntities)
}

func TestFromRecords_MalformedEntities(t *testing.T) {
	_, _, err := FromRecords("c1", []model.Entity{{ID: ""}}, nil, nil)
	assert.Error(t, err)

	_, _, err = FromRecords("c1", []model.Entity{{ID: "a", CampaignID: "c2"}}, nil, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "c2")
}

func TestLoader_Load(t *testing.T) {
	src := &MockSource{
		Entities:      []model.Entity{{ID: "a"}, {ID: "b"}},
		Relationships: []model.Relationship{{ID: "r", SourceID: "a", TargetID: "b"}},
	}
	g, err := NewLoader(src, nil).Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 1.0, g.TotalWeight())
}

func TestLoader_Load_Empty(t *testing.T) {
	g, err := NewLoader(&MockSource{}, nil).Load(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
}

func TestLoader_Load_SourceErrors(t *testing.T) {
	unreachable := errors.New("connection refused")

	_, err := NewLoader(&MockSource{EntitiesErr: unreachable}, nil).Load(context.Background(), "c1")
	var loadErr *apperrors.GraphLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "c1", loadErr.CampaignID)
	assert.ErrorIs(t, err, unreachable)

	_, err = NewLoader(&MockSource{RelationshipsErr: apperrors.ErrCampaignNotFound}, nil).Load(context.Background(), "c1")
	assert.True(t, apperrors.IsGraphLoad(err))
	assert.ErrorIs(t, err, apperrors.ErrCampaignNotFound)

	_, err = NewLoader(&MockSource{Entities: []model.Entity{{ID: ""}}}, nil).Load(context.Background(), "c1")
	assert.True(t, apperrors.IsGraphLoad(err))

	_, err = NewLoader(nil, nil).Load(context.Background(), "c1")
	assert.True(t, apperrors.IsGraphLoad(err))
}
