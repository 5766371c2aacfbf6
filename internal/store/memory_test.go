package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core/model"
)

func strPtr(s string) *string {
	return &s
}

func seededMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveCampaign(ctx, &model.Campaign{ID: "c1", Name: "Saltmarsh"}))
	require.NoError(t, s.SaveCampaign(ctx, &model.Campaign{ID: "c2"}))
	require.NoError(t, s.UpsertEntities(ctx, []model.Entity{
		{ID: "b", CampaignID: "c1", Type: "character"},
		{ID: "a", CampaignID: "c1", Type: "location"},
		{ID: "x", CampaignID: "c2", Type: "item"},
	}))
	w := 2.0
	require.NoError(t, s.UpsertRelationships(ctx, []model.Relationship{
		{ID: "r2", CampaignID: "c1", SourceID: "a", TargetID: "b", Weight: &w},
		{ID: "r1", CampaignID: "c1", SourceID: "b", TargetID: "a"},
	}))
	return s
}

func TestMemoryStore_EntityReads(t *testing.T) {
	s := seededMemoryStore(t)
	ctx := context.Background()

	entities, err := s.GetEntitiesForCampaign(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "a", entities[0].ID)
	assert.Equal(t, "b", entities[1].ID)

	relationships, err := s.GetRelationshipsForCampaign(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, relationships, 2)
	assert.Equal(t, "r1", relationships[0].ID)
	assert.Nil(t, relationships[0].Weight)
	assert.Equal(t, 2.0, *relationships[1].Weight)

	empty, err := s.GetRelationshipsForCampaign(ctx, "c2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = s.GetEntitiesForCampaign(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrCampaignNotFound)
}

func TestMemoryStore_UpsertRequiresCampaign(t *testing.T) {
	s := NewMemoryStore()
	err := s.UpsertEntities(context.Background(), []model.Entity{{ID: "a", CampaignID: "nope"}})
	assert.ErrorIs(t, err, apperrors.ErrCampaignNotFound)
}

func TestMemoryStore_SaveCommunitiesIsAtomic(t *testing.T) {
	s := seededMemoryStore(t)
	ctx := context.Background()

	err := s.SaveCommunities(ctx, []model.Community{
		{ID: "ok", CampaignID: "c1"},
		{ID: "orphan", CampaignID: "c1", ParentCommunityID: strPtr("ghost")},
	})
	require.Error(t, err)

	_, err = s.GetCommunityByID(ctx, "ok")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = s.SaveCommunities(ctx, []model.Community{{ID: "dup"}, {ID: "dup"}})
	assert.Error(t, err)
}

func TestMemoryStore_CommunityQueries(t *testing.T) {
	s := seededMemoryStore(t)
	ctx := context.Background()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, s.SaveCommunities(ctx, []model.Community{
		{ID: "old-0", CampaignID: "c1", RunID: "run-1", Level: 0, MemberEntityIDs: []string{"a", "b"}, CreatedAt: older},
	}))
	require.NoError(t, s.SaveCommunities(ctx, []model.Community{
		{ID: "new-b", CampaignID: "c1", RunID: "run-2", Level: 0, MemberEntityIDs: []string{"b"}, ParentCommunityID: strPtr("new-top"), CreatedAt: newer},
		{ID: "new-a", CampaignID: "c1", RunID: "run-2", Level: 0, MemberEntityIDs: []string{"a"}, ParentCommunityID: strPtr("new-top"), CreatedAt: newer},
		{ID: "new-top", CampaignID: "c1", RunID: "run-2", Level: 1, MemberEntityIDs: []string{"a", "b"}, CreatedAt: newer},
		{ID: "other", CampaignID: "c2", RunID: "run-3", CreatedAt: newer},
	}))

	all, err := s.ListCommunitiesByCampaign(ctx, "c1", ListOptions{})
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, c := range all {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"new-a", "new-b", "old-0", "new-top"}, ids)

	level := 1
	top, err := s.ListCommunitiesByCampaign(ctx, "c1", ListOptions{Level: &level})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "new-top", top[0].ID)

	run1, err := s.ListCommunitiesByCampaign(ctx, "c1", ListOptions{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, run1, 1)

	page, err := s.ListCommunitiesByCampaign(ctx, "c1", ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "new-b", page[0].ID)

	children, err := s.GetChildCommunities(ctx, "new-top")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "new-a", children[0].ID)

	_, err = s.GetChildCommunities(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Returned records are copies.
	got, err := s.GetCommunityByID(ctx, "new-top")
	require.NoError(t, err)
	got.MemberEntityIDs[0] = "mutated"
	again, err := s.GetCommunityByID(ctx, "new-top")
	require.NoError(t, err)
	assert.Equal(t, "a", again.MemberEntityIDs[0])

	deleted, err := s.DeleteCommunities(ctx, "c1", "run-2")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	remaining, err := s.ListCommunitiesByCampaign(ctx, "c1", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
