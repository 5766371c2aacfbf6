//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core"
	"github.com/agenthands/loregraph/internal/core/community"
	"github.com/agenthands/loregraph/internal/core/model"
	"github.com/agenthands/loregraph/internal/store"
)

func TestMemgraphBackend(t *testing.T) {
	runBackendSuite(t, memgraphBackend(t))
}

func TestPostgresBackend(t *testing.T) {
	runBackendSuite(t, postgresBackend(t))
}

func runBackendSuite(t *testing.T, backend store.Backend) {
	t.Run("detects and persists a hierarchy", func(t *testing.T) { testHierarchyRoundTrip(t, backend) })
	t.Run("unknown campaign", func(t *testing.T) { testUnknownCampaign(t, backend) })
	t.Run("empty campaign writes nothing", func(t *testing.T) { testEmptyCampaign(t, backend) })
	t.Run("missing weights default to one", func(t *testing.T) { testDefaultWeights(t, backend) })
}

// seedFactions stores two four-member factions joined by one weak link and
// returns the campaign id.
func seedFactions(t *testing.T, backend store.Backend) string {
	t.Helper()
	ctx := context.Background()
	campaignID := "it-" + uuid.New().String()
	require.NoError(t, backend.SaveCampaign(ctx, &model.Campaign{ID: campaignID, Name: "Integration"}))

	factions := [][]string{
		{"guild-master", "guild-thief", "guild-fence", "guild-spy"},
		{"temple-priest", "temple-acolyte", "temple-paladin", "temple-oracle"},
	}
	var entities []model.Entity
	var rels []model.Relationship
	link := func(a, b string, w float64) {
		rels = append(rels, model.Relationship{
			ID: campaignID + ":" + a + ":" + b, CampaignID: campaignID,
			SourceID: campaignID + ":" + a, TargetID: campaignID + ":" + b, Type: "allied_with", Weight: &w,
		})
	}
	for _, members := range factions {
		for i, a := range members {
			entities = append(entities, model.Entity{ID: campaignID + ":" + a, CampaignID: campaignID, Type: "character", Name: a})
			for _, b := range members[i+1:] {
				link(a, b, 1)
			}
		}
	}
	link("guild-spy", "temple-oracle", 0.1)

	require.NoError(t, backend.UpsertEntities(ctx, entities))
	require.NoError(t, backend.UpsertRelationships(ctx, rels))
	return campaignID
}

func testHierarchyRoundTrip(t *testing.T, backend store.Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	campaignID := seedFactions(t, backend)
	svc := core.NewDetectionService(backend, backend, nil)

	result, err := svc.DetectMultiLevelCommunities(ctx, campaignID, community.OptionOverrides{MaxLevels: community.Int(3)})
	require.NoError(t, err)
	require.Equal(t, 2, result.Levels)
	require.Len(t, result.Communities, 3)
	require.Len(t, result.Roots, 1)
	root := result.Roots[0].Community

	stored, err := svc.GetCommunityByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.MemberEntityIDs, stored.MemberEntityIDs)
	assert.Equal(t, 8, stored.Size)
	assert.Nil(t, stored.ParentCommunityID)
	assert.InDelta(t, root.InternalWeight, stored.InternalWeight, 1e-9)
	assert.WithinDuration(t, root.CreatedAt, stored.CreatedAt, time.Millisecond)

	children, err := svc.GetChildCommunities(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		assert.Equal(t, 0, child.Level)
		assert.Equal(t, 4, child.Size)
		require.NotNil(t, child.ParentCommunityID)
		assert.Equal(t, root.ID, *child.ParentCommunityID)
	}

	level := 0
	leaves, err := svc.ListCommunitiesByCampaign(ctx, campaignID, store.ListOptions{Level: &level})
	require.NoError(t, err)
	assert.Len(t, leaves, 2)

	page, err := svc.ListCommunitiesByCampaign(ctx, campaignID, store.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].Level)

	trees, err := svc.GetHierarchy(ctx, campaignID, result.RunID)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Len(t, trees[0].Children, 2)

	deleted, err := svc.DeleteCommunities(ctx, campaignID, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	_, err = svc.GetCommunityByID(ctx, root.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testUnknownCampaign(t *testing.T, backend store.Backend) {
	svc := core.NewDetectionService(backend, backend, nil)
	_, err := svc.DetectCommunities(context.Background(), "it-missing-"+uuid.New().String(), community.OptionOverrides{})
	assert.ErrorIs(t, err, apperrors.ErrCampaignNotFound)

	_, err = svc.GetChildCommunities(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testEmptyCampaign(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	campaignID := "it-empty-" + uuid.New().String()
	require.NoError(t, backend.SaveCampaign(ctx, &model.Campaign{ID: campaignID}))

	svc := core.NewDetectionService(backend, backend, nil)
	result, err := svc.DetectMultiLevelCommunities(ctx, campaignID, community.OptionOverrides{})
	require.NoError(t, err)
	assert.Empty(t, result.Communities)

	stored, err := svc.ListCommunitiesByCampaign(ctx, campaignID, store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func testDefaultWeights(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	campaignID := "it-weights-" + uuid.New().String()
	require.NoError(t, backend.SaveCampaign(ctx, &model.Campaign{ID: campaignID}))
	require.NoError(t, backend.UpsertEntities(ctx, []model.Entity{
		{ID: campaignID + ":a", CampaignID: campaignID},
		{ID: campaignID + ":b", CampaignID: campaignID},
	}))
	require.NoError(t, backend.UpsertRelationships(ctx, []model.Relationship{
		{ID: campaignID + ":ab", CampaignID: campaignID, SourceID: campaignID + ":a", TargetID: campaignID + ":b", Type: "knows"},
	}))

	rels, err := backend.GetRelationshipsForCampaign(ctx, campaignID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Nil(t, rels[0].Weight)
	assert.Equal(t, model.DefaultRelationshipWeight, rels[0].EffectiveWeight())
}
