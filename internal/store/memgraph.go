package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core/model"
	"github.com/agenthands/loregraph/internal/driver"
)

// MemgraphStore keeps campaigns, entities and communities as graph nodes.
type MemgraphStore struct {
	Driver driver.GraphDriver
	Logger *zap.Logger
}

func NewMemgraphStore(d driver.GraphDriver, logger *zap.Logger) *MemgraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemgraphStore{Driver: d, Logger: logger}
}

var _ Backend = (*MemgraphStore)(nil)

func (s *MemgraphStore) SaveCampaign(ctx context.Context, campaign *model.Campaign) error {
	if campaign.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}

	params := map[string]interface{}{
		"uuid":       campaign.ID,
		"name":       campaign.Name,
		"created_at": campaign.CreatedAt.Format(time.RFC3339Nano),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveCampaignQuery, params); err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

func (s *MemgraphStore) UpsertEntities(ctx context.Context, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			return fmt.Errorf("entity id is required")
		}
		rows = append(rows, map[string]interface{}{
			"uuid":        e.ID,
			"campaign_id": e.CampaignID,
			"name":        e.Name,
			"type":        e.Type,
			"summary":     e.Summary,
		})
	}

	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveEntitiesQuery, map[string]interface{}{"entities": rows}); err != nil {
		return fmt.Errorf("failed to save entities: %w", err)
	}
	return nil
}

func (s *MemgraphStore) UpsertRelationships(ctx context.Context, relationships []model.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(relationships))
	for _, r := range relationships {
		if r.ID == "" {
			return fmt.Errorf("relationship id is required")
		}
		var weight interface{}
		if r.Weight != nil {
			weight = *r.Weight
		}
		rows = append(rows, map[string]interface{}{
			"uuid":        r.ID,
			"campaign_id": r.CampaignID,
			"source_uuid": r.SourceID,
			"target_uuid": r.TargetID,
			"type":        r.Type,
			"weight":      weight,
		})
	}

	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveRelationshipsQuery, map[string]interface{}{"relationships": rows}); err != nil {
		return fmt.Errorf("failed to save relationships: %w", err)
	}
	return nil
}

func (s *MemgraphStore) requireCampaign(ctx context.Context, campaignID string) error {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetCampaignQuery, map[string]interface{}{"uuid": campaignID})
	if err != nil {
		return fmt.Errorf("failed to look up campaign: %w", err)
	}
	if len(res.Records) == 0 {
		return apperrors.ErrCampaignNotFound
	}
	return nil
}

func (s *MemgraphStore) GetEntitiesForCampaign(ctx context.Context, campaignID string) ([]model.Entity, error) {
	if err := s.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	res, err := s.Driver.ExecuteQuery(ctx, driver.GetCampaignEntitiesQuery, map[string]interface{}{"campaign_id": campaignID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}

	entities := make([]model.Entity, 0, len(res.Records))
	for _, rec := range res.Records {
		entities = append(entities, model.Entity{
			ID:         stringValue(rec, "uuid"),
			CampaignID: stringValue(rec, "campaign_id"),
			Name:       stringValue(rec, "name"),
			Type:       stringValue(rec, "type"),
			Summary:    stringValue(rec, "summary"),
		})
	}
	return entities, nil
}

func (s *MemgraphStore) GetRelationshipsForCampaign(ctx context.Context, campaignID string) ([]model.Relationship, error) {
	if err := s.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	res, err := s.Driver.ExecuteQuery(ctx, driver.GetCampaignRelationshipsQuery, map[string]interface{}{"campaign_id": campaignID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationships: %w", err)
	}

	relationships := make([]model.Relationship, 0, len(res.Records))
	for _, rec := range res.Records {
		r := model.Relationship{
			ID:         stringValue(rec, "uuid"),
			CampaignID: campaignID,
			SourceID:   stringValue(rec, "source_uuid"),
			TargetID:   stringValue(rec, "target_uuid"),
			Type:       stringValue(rec, "type"),
		}
		if w, ok := floatValue(rec, "weight"); ok {
			r.Weight = &w
		}
		relationships = append(relationships, r)
	}
	return relationships, nil
}

// SaveCommunities writes the nodes, their level-0 HAS_MEMBER edges and the
// HAS_CHILD edges of a run in a single write transaction.
func (s *MemgraphStore) SaveCommunities(ctx context.Context, communities []model.Community) error {
	if len(communities) == 0 {
		return nil
	}

	nodes := make([]interface{}, 0, len(communities))
	var members, links []interface{}
	for _, c := range communities {
		var parent interface{}
		if c.ParentCommunityID != nil {
			parent = *c.ParentCommunityID
			links = append(links, map[string]interface{}{
				"parent_uuid": *c.ParentCommunityID,
				"child_uuid":  c.ID,
			})
		}

		ids := make([]interface{}, len(c.MemberEntityIDs))
		for i, id := range c.MemberEntityIDs {
			ids[i] = id
		}

		nodes = append(nodes, map[string]interface{}{
			"uuid":              c.ID,
			"campaign_id":       c.CampaignID,
			"run_id":            c.RunID,
			"level":             int64(c.Level),
			"member_entity_ids": ids,
			"parent_uuid":       parent,
			"size":              int64(c.Size),
			"internal_weight":   c.InternalWeight,
			"total_weight":      c.TotalWeight,
			"created_at":        c.CreatedAt.UTC().Format(time.RFC3339Nano),
		})

		if c.Level == 0 {
			for _, id := range c.MemberEntityIDs {
				members = append(members, map[string]interface{}{
					"community_uuid": c.ID,
					"entity_uuid":    id,
					"campaign_id":    c.CampaignID,
				})
			}
		}
	}

	statements := []driver.Statement{
		{Query: driver.SaveCommunitiesQuery, Params: map[string]interface{}{"communities": nodes}},
	}
	if len(members) > 0 {
		statements = append(statements, driver.Statement{Query: driver.SaveCommunityMembersQuery, Params: map[string]interface{}{"members": members}})
	}
	if len(links) > 0 {
		statements = append(statements, driver.Statement{Query: driver.SaveCommunityChildrenQuery, Params: map[string]interface{}{"links": links}})
	}

	if err := s.Driver.ExecuteWrite(ctx, statements); err != nil {
		return fmt.Errorf("failed to save communities: %w", err)
	}

	s.Logger.Debug("Saved communities",
		zap.String("campaign_id", communities[0].CampaignID),
		zap.String("run_id", communities[0].RunID),
		zap.Int("communities", len(communities)))
	return nil
}

func (s *MemgraphStore) GetCommunityByID(ctx context.Context, id string) (*model.Community, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetCommunityByIDQuery, map[string]interface{}{"uuid": id})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch community: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, apperrors.ErrNotFound
	}
	c, err := recordToCommunity(res.Records[0])
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MemgraphStore) ListCommunitiesByCampaign(ctx context.Context, campaignID string, opts ListOptions) ([]model.Community, error) {
	var level interface{}
	if opts.Level != nil {
		level = int64(*opts.Level)
	}
	params := map[string]interface{}{
		"campaign_id": campaignID,
		"level":       level,
		"run_id":      opts.RunID,
		"offset":      int64(opts.offset()),
		"limit":       int64(opts.limit()),
	}

	res, err := s.Driver.ExecuteQuery(ctx, driver.ListCommunitiesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	return recordsToCommunities(res.Records)
}

func (s *MemgraphStore) GetChildCommunities(ctx context.Context, parentID string) ([]model.Community, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetChildCommunitiesQuery, map[string]interface{}{"uuid": parentID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch child communities: %w", err)
	}
	if len(res.Records) == 0 {
		if _, err := s.GetCommunityByID(ctx, parentID); err != nil {
			return nil, err
		}
	}
	return recordsToCommunities(res.Records)
}

func (s *MemgraphStore) DeleteCommunities(ctx context.Context, campaignID, runID string) (int, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.DeleteCampaignCommunitiesQuery, map[string]interface{}{
		"campaign_id": campaignID,
		"run_id":      runID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete communities: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	deleted, _ := intValue(res.Records[0], "deleted")
	return int(deleted), nil
}

func (s *MemgraphStore) Close(ctx context.Context) error {
	return s.Driver.Close(ctx)
}

func recordsToCommunities(records []*neo4j.Record) ([]model.Community, error) {
	out := make([]model.Community, 0, len(records))
	for _, rec := range records {
		c, err := recordToCommunity(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func recordToCommunity(rec *neo4j.Record) (model.Community, error) {
	c := model.Community{
		ID:         stringValue(rec, "uuid"),
		CampaignID: stringValue(rec, "campaign_id"),
		RunID:      stringValue(rec, "run_id"),
	}

	level, _ := intValue(rec, "level")
	c.Level = int(level)
	size, _ := intValue(rec, "size")
	c.Size = int(size)
	c.InternalWeight, _ = floatValue(rec, "internal_weight")
	c.TotalWeight, _ = floatValue(rec, "total_weight")

	if parent := stringValue(rec, "parent_uuid"); parent != "" {
		c.ParentCommunityID = &parent
	}

	if raw, ok := rec.Get("member_entity_ids"); ok && raw != nil {
		list, ok := raw.([]interface{})
		if !ok {
			return model.Community{}, fmt.Errorf("community %s: unexpected member list type %T", c.ID, raw)
		}
		c.MemberEntityIDs = make([]string, 0, len(list))
		for _, v := range list {
			id, ok := v.(string)
			if !ok {
				return model.Community{}, fmt.Errorf("community %s: unexpected member id type %T", c.ID, v)
			}
			c.MemberEntityIDs = append(c.MemberEntityIDs, id)
		}
	}

	if created := stringValue(rec, "created_at"); created != "" {
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return model.Community{}, fmt.Errorf("community %s: invalid created_at: %w", c.ID, err)
		}
		c.CreatedAt = t
	}
	return c, nil
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intValue(rec *neo4j.Record, key string) (int64, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func floatValue(rec *neo4j.Record, key string) (float64, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}
