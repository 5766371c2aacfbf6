package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core/model"
)

// MemoryStore keeps everything in process. It backs local runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	campaigns     map[string]model.Campaign
	entities      map[string]model.Entity
	relationships map[string]model.Relationship
	communities   map[string]model.Community
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:     make(map[string]model.Campaign),
		entities:      make(map[string]model.Entity),
		relationships: make(map[string]model.Relationship),
		communities:   make(map[string]model.Community),
	}
}

var _ Backend = (*MemoryStore)(nil)

func (s *MemoryStore) SaveCampaign(ctx context.Context, campaign *model.Campaign) error {
	if campaign.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.campaigns[campaign.ID]; ok {
		campaign.CreatedAt = existing.CreatedAt
	} else if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	s.campaigns[campaign.ID] = *campaign
	return nil
}

func (s *MemoryStore) UpsertEntities(ctx context.Context, entities []model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entities {
		if e.ID == "" {
			return fmt.Errorf("entity id is required")
		}
		if _, ok := s.campaigns[e.CampaignID]; !ok {
			return fmt.Errorf("entity %s: %w", e.ID, apperrors.ErrCampaignNotFound)
		}
	}
	for _, e := range entities {
		s.entities[e.ID] = e
	}
	return nil
}

func (s *MemoryStore) UpsertRelationships(ctx context.Context, relationships []model.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range relationships {
		if r.ID == "" {
			return fmt.Errorf("relationship id is required")
		}
		if _, ok := s.campaigns[r.CampaignID]; !ok {
			return fmt.Errorf("relationship %s: %w", r.ID, apperrors.ErrCampaignNotFound)
		}
	}
	for _, r := range relationships {
		if r.Weight != nil {
			w := *r.Weight
			r.Weight = &w
		}
		s.relationships[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) GetEntitiesForCampaign(ctx context.Context, campaignID string) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.campaigns[campaignID]; !ok {
		return nil, apperrors.ErrCampaignNotFound
	}

	out := []model.Entity{}
	for _, e := range s.entities {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetRelationshipsForCampaign(ctx context.Context, campaignID string) ([]model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.campaigns[campaignID]; !ok {
		return nil, apperrors.ErrCampaignNotFound
	}

	out := []model.Relationship{}
	for _, r := range s.relationships {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveCommunities(ctx context.Context, communities []model.Community) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(communities))
	for _, c := range communities {
		if c.ID == "" {
			return fmt.Errorf("community id is required")
		}
		if _, ok := s.communities[c.ID]; ok {
			return fmt.Errorf("community %s already exists", c.ID)
		}
		if _, ok := batch[c.ID]; ok {
			return fmt.Errorf("duplicate community %s in batch", c.ID)
		}
		batch[c.ID] = struct{}{}
	}
	for _, c := range communities {
		if c.ParentCommunityID == nil {
			continue
		}
		if _, ok := batch[*c.ParentCommunityID]; !ok {
			if _, ok := s.communities[*c.ParentCommunityID]; !ok {
				return fmt.Errorf("community %s references unknown parent %s", c.ID, *c.ParentCommunityID)
			}
		}
	}

	for _, c := range communities {
		s.communities[c.ID] = cloneCommunity(c)
	}
	return nil
}

func (s *MemoryStore) GetCommunityByID(ctx context.Context, id string) (*model.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.communities[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := cloneCommunity(c)
	return &out, nil
}

func (s *MemoryStore) ListCommunitiesByCampaign(ctx context.Context, campaignID string, opts ListOptions) ([]model.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.Community
	for _, c := range s.communities {
		if c.CampaignID != campaignID {
			continue
		}
		if opts.Level != nil && c.Level != *opts.Level {
			continue
		}
		if opts.RunID != "" && c.RunID != opts.RunID {
			continue
		}
		matched = append(matched, c)
	}
	sortCommunities(matched)

	out := []model.Community{}
	for i := opts.offset(); i < len(matched) && len(out) < opts.limit(); i++ {
		out = append(out, cloneCommunity(matched[i]))
	}
	return out, nil
}

func (s *MemoryStore) GetChildCommunities(ctx context.Context, parentID string) ([]model.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.communities[parentID]; !ok {
		return nil, apperrors.ErrNotFound
	}

	out := []model.Community{}
	for _, c := range s.communities {
		if c.ParentCommunityID != nil && *c.ParentCommunityID == parentID {
			out = append(out, cloneCommunity(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteCommunities(ctx context.Context, campaignID, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, c := range s.communities {
		if c.CampaignID == campaignID && (runID == "" || c.RunID == runID) {
			delete(s.communities, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func cloneCommunity(c model.Community) model.Community {
	c.MemberEntityIDs = append([]string(nil), c.MemberEntityIDs...)
	if c.ParentCommunityID != nil {
		parent := *c.ParentCommunityID
		c.ParentCommunityID = &parent
	}
	return c
}
