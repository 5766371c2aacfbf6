// Package store holds the campaign graph and community backends.
package store

import (
	"context"
	"sort"

	"github.com/agenthands/loregraph/internal/core/model"
)

// DefaultListLimit applies when ListOptions.Limit is not positive.
const DefaultListLimit = 100

// EntityReader is the read side used by the graph loader. Unknown campaigns
// return apperrors.ErrCampaignNotFound; a known campaign without entities
// returns an empty slice.
type EntityReader interface {
	GetEntitiesForCampaign(ctx context.Context, campaignID string) ([]model.Entity, error)
	GetRelationshipsForCampaign(ctx context.Context, campaignID string) ([]model.Relationship, error)
}

// EntityWriter seeds campaigns and their graph.
type EntityWriter interface {
	SaveCampaign(ctx context.Context, campaign *model.Campaign) error
	UpsertEntities(ctx context.Context, entities []model.Entity) error
	UpsertRelationships(ctx context.Context, relationships []model.Relationship) error
}

// ListOptions filters ListCommunitiesByCampaign. A nil Level and an empty
// RunID match everything.
type ListOptions struct {
	Level  *int
	RunID  string
	Limit  int
	Offset int
}

// CommunityStore persists detection results. SaveCommunities is
// all-or-nothing; reads return apperrors.ErrNotFound for unknown ids.
type CommunityStore interface {
	SaveCommunities(ctx context.Context, communities []model.Community) error
	GetCommunityByID(ctx context.Context, id string) (*model.Community, error)
	ListCommunitiesByCampaign(ctx context.Context, campaignID string, opts ListOptions) ([]model.Community, error)
	GetChildCommunities(ctx context.Context, parentID string) ([]model.Community, error)
	DeleteCommunities(ctx context.Context, campaignID, runID string) (int, error)
}

// Backend bundles everything one storage engine provides.
type Backend interface {
	EntityReader
	EntityWriter
	CommunityStore
	Close(ctx context.Context) error
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

func (o ListOptions) offset() int {
	if o.Offset < 0 {
		return 0
	}
	return o.Offset
}

// sortCommunities applies the list order shared by every backend: level
// ascending, newest run first, then id.
func sortCommunities(communities []model.Community) {
	sort.SliceStable(communities, func(i, j int) bool {
		a, b := communities[i], communities[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
