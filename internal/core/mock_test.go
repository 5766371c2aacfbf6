package core

import (
	"context"
	"fmt"

	"github.com/agenthands/loregraph/internal/core/model"
	"github.com/agenthands/loregraph/internal/store"
)

type MockEntityReader struct {
	Entities      []model.Entity
	Relationships []model.Relationship
	Err           error
	Calls         int
}

func (m *MockEntityReader) GetEntitiesForCampaign(ctx context.Context, campaignID string) ([]model.Entity, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Entities, nil
}

func (m *MockEntityReader) GetRelationshipsForCampaign(ctx context.Context, campaignID string) ([]model.Relationship, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Relationships, nil
}

// MockCommunityStore fails SaveCommunities while SaveErr is set and
// otherwise delegates to an in-memory store.
type MockCommunityStore struct {
	*store.MemoryStore
	SaveErr   error
	SaveCalls int
}

func (m *MockCommunityStore) SaveCommunities(ctx context.Context, communities []model.Community) error {
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	return m.MemoryStore.SaveCommunities(ctx, communities)
}

// sequentialIDs returns a generator yielding id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
