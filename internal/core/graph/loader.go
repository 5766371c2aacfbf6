package graph

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core/model"
)

// Source is the read side of the entity/relationship store.
type Source interface {
	GetEntitiesForCampaign(ctx context.Context, campaignID string) ([]model.Entity, error)
	GetRelationshipsForCampaign(ctx context.Context, campaignID string) ([]model.Relationship, error)
}

// LoadStats counts what happened to the source rows while building a graph.
type LoadStats struct {
	Entities          int
	DuplicateEntities int
	Relationships     int
	SelfLoops         int
	DanglingEndpoints int
	InvalidWeights    int
	MergedParallel    int
	Edges             int
}

type Loader struct {
	Source Source
	Logger *zap.Logger
}

func NewLoader(source Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Source: source, Logger: logger}
}

// Load reads one campaign snapshot and converts it into a Graph. Every failure
// is reported as *apperrors.GraphLoadError.
func (l *Loader) Load(ctx context.Context, campaignID string) (*Graph, error) {
	if l.Source == nil {
		return nil, &apperrors.GraphLoadError{CampaignID: campaignID, Err: fmt.Errorf("no entity source configured")}
	}

	entities, err := l.Source.GetEntitiesForCampaign(ctx, campaignID)
	if err != nil {
		return nil, &apperrors.GraphLoadError{CampaignID: campaignID, Err: fmt.Errorf("failed to fetch entities: %w", err)}
	}

	relationships, err := l.Source.GetRelationshipsForCampaign(ctx, campaignID)
	if err != nil {
		return nil, &apperrors.GraphLoadError{CampaignID: campaignID, Err: fmt.Errorf("failed to fetch relationships: %w", err)}
	}

	g, stats, err := FromRecords(campaignID, entities, relationships, l.Logger)
	if err != nil {
		return nil, &apperrors.GraphLoadError{CampaignID: campaignID, Err: err}
	}

	l.Logger.Debug("Loaded campaign graph",
		zap.String("campaign_id", campaignID),
		zap.Int("nodes", g.Len()),
		zap.Int("edges", stats.Edges),
		zap.Int("self_loops_dropped", stats.SelfLoops),
		zap.Int("dangling_dropped", stats.DanglingEndpoints),
		zap.Int("parallel_merged", stats.MergedParallel))

	return g, nil
}

// FromRecords builds the clustering graph for one campaign. Nodes are indexed
// in ascending entity id order. Rows that cannot form a graph at all (empty or
// foreign entity ids) are an error; individual bad relationships are dropped
// with a warning.
func FromRecords(campaignID string, entities []model.Entity, relationships []model.Relationship, logger *zap.Logger) (*Graph, LoadStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats LoadStats

	ids := make([]string, 0, len(entities))
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			return nil, stats, fmt.Errorf("entity with empty id")
		}
		if e.CampaignID != "" && campaignID != "" && e.CampaignID != campaignID {
			return nil, stats, fmt.Errorf("entity %s belongs to campaign %s", e.ID, e.CampaignID)
		}
		if _, dup := seen[e.ID]; dup {
			stats.DuplicateEntities++
			continue
		}
		seen[e.ID] = struct{}{}
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)

	if stats.DuplicateEntities > 0 {
		logger.Warn("Duplicate entity ids collapsed",
			zap.String("campaign_id", campaignID),
			zap.Int("duplicates", stats.DuplicateEntities))
	}

	b := NewBuilder()
	for _, id := range ids {
		b.AddNode(id)
	}
	stats.Entities = len(ids)

	type pair struct{ a, b string }
	pairs := make(map[pair]struct{})

	for _, r := range relationships {
		stats.Relationships++

		if r.SourceID == r.TargetID {
			stats.SelfLoops++
			continue
		}

		if !b.Has(r.SourceID) || !b.Has(r.TargetID) {
			stats.DanglingEndpoints++
			logger.Warn("Dropping relationship with unknown endpoint",
				zap.String("campaign_id", campaignID),
				zap.String("relationship_id", r.ID),
				zap.String("source_entity_id", r.SourceID),
				zap.String("target_entity_id", r.TargetID))
			continue
		}

		w := r.EffectiveWeight()
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			stats.InvalidWeights++
			logger.Warn("Dropping relationship with invalid weight",
				zap.String("campaign_id", campaignID),
				zap.String("relationship_id", r.ID),
				zap.Float64("weight", w))
			continue
		}
		if w == 0 {
			continue
		}

		key := pair{r.SourceID, r.TargetID}
		if key.b < key.a {
			key.a, key.b = key.b, key.a
		}
		if _, ok := pairs[key]; ok {
			stats.MergedParallel++
		} else {
			pairs[key] = struct{}{}
		}

		b.AddEdge(r.SourceID, r.TargetID, w)
	}

	g := b.Build()
	stats.Edges = g.EdgeCount()
	return g, stats, nil
}
