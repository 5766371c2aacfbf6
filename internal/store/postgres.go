package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core/model"
)

// PostgresStore keeps the campaign graph and communities in relational
// tables created by the migrations/ directory.
type PostgresStore struct {
	Pool   *pgxpool.Pool
	Logger *zap.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{Pool: pool, Logger: logger}
}

var _ Backend = (*PostgresStore)(nil)

const communityColumns = `id, campaign_id, run_id, level, member_entity_ids, parent_community_id,
	size, internal_weight, total_weight, created_at`

func (s *PostgresStore) SaveCampaign(ctx context.Context, campaign *model.Campaign) error {
	if campaign.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO campaigns (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at`

	if err := s.Pool.QueryRow(ctx, query, campaign.ID, campaign.Name, campaign.CreatedAt).Scan(&campaign.CreatedAt); err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertEntities(ctx context.Context, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	query := `
		INSERT INTO campaign_entities (id, campaign_id, type, name, summary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET campaign_id = EXCLUDED.campaign_id, type = EXCLUDED.type,
		    name = EXCLUDED.name, summary = EXCLUDED.summary`

	batch := &pgx.Batch{}
	for _, e := range entities {
		if e.ID == "" {
			return fmt.Errorf("entity id is required")
		}
		batch.Queue(query, e.ID, e.CampaignID, e.Type, e.Name, e.Summary)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert entities: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertRelationships(ctx context.Context, relationships []model.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}

	query := `
		INSERT INTO campaign_relationships (id, campaign_id, source_entity_id, target_entity_id, type, weight)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET campaign_id = EXCLUDED.campaign_id, source_entity_id = EXCLUDED.source_entity_id,
		    target_entity_id = EXCLUDED.target_entity_id, type = EXCLUDED.type, weight = EXCLUDED.weight`

	batch := &pgx.Batch{}
	for _, r := range relationships {
		if r.ID == "" {
			return fmt.Errorf("relationship id is required")
		}
		batch.Queue(query, r.ID, r.CampaignID, r.SourceID, r.TargetID, r.Type, r.Weight)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert relationships: %w", err)
	}
	return nil
}

func (s *PostgresStore) requireCampaign(ctx context.Context, campaignID string) error {
	var exists bool
	err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, campaignID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up campaign: %w", err)
	}
	if !exists {
		return apperrors.ErrCampaignNotFound
	}
	return nil
}

func (s *PostgresStore) GetEntitiesForCampaign(ctx context.Context, campaignID string) ([]model.Entity, error) {
	if err := s.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, campaign_id, type, name, summary
		FROM campaign_entities
		WHERE campaign_id = $1
		ORDER BY id`

	rows, err := s.Pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}
	entities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Entity, error) {
		var e model.Entity
		err := row.Scan(&e.ID, &e.CampaignID, &e.Type, &e.Name, &e.Summary)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan entities: %w", err)
	}
	return entities, nil
}

func (s *PostgresStore) GetRelationshipsForCampaign(ctx context.Context, campaignID string) ([]model.Relationship, error) {
	if err := s.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, campaign_id, source_entity_id, target_entity_id, type, weight
		FROM campaign_relationships
		WHERE campaign_id = $1 AND invalid_at IS NULL
		ORDER BY id`

	rows, err := s.Pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationships: %w", err)
	}
	relationships, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Relationship, error) {
		var r model.Relationship
		err := row.Scan(&r.ID, &r.CampaignID, &r.SourceID, &r.TargetID, &r.Type, &r.Weight)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan relationships: %w", err)
	}
	return relationships, nil
}

// SaveCommunities inserts a whole run in one transaction. The parent foreign
// key is deferred, so children may precede their parents in the slice.
func (s *PostgresStore) SaveCommunities(ctx context.Context, communities []model.Community) error {
	if len(communities) == 0 {
		return nil
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.Logger.Warn("Failed to roll back community save", zap.Error(err))
		}
	}()

	query := `INSERT INTO communities (` + communityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	batch := &pgx.Batch{}
	for _, c := range communities {
		batch.Queue(query,
			c.ID, c.CampaignID, c.RunID, c.Level, c.MemberEntityIDs, c.ParentCommunityID,
			c.Size, c.InternalWeight, c.TotalWeight, c.CreatedAt)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range communities {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to insert community %s: %w", communities[i].ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert communities: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit communities: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCommunityByID(ctx context.Context, id string) (*model.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities WHERE id = $1`

	rows, err := s.Pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch community: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCommunity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan community: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListCommunitiesByCampaign(ctx context.Context, campaignID string, opts ListOptions) ([]model.Community, error) {
	query := `SELECT ` + communityColumns + `
		FROM communities
		WHERE campaign_id = $1
		  AND ($2::int IS NULL OR level = $2)
		  AND ($3 = '' OR run_id = $3)
		ORDER BY level ASC, created_at DESC, id ASC
		LIMIT $4 OFFSET $5`

	rows, err := s.Pool.Query(ctx, query, campaignID, opts.Level, opts.RunID, opts.limit(), opts.offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	communities, err := pgx.CollectRows(rows, scanCommunity)
	if err != nil {
		return nil, fmt.Errorf("failed to scan communities: %w", err)
	}
	return communities, nil
}

func (s *PostgresStore) GetChildCommunities(ctx context.Context, parentID string) ([]model.Community, error) {
	query := `SELECT ` + communityColumns + `
		FROM communities
		WHERE parent_community_id = $1
		ORDER BY id`

	rows, err := s.Pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch child communities: %w", err)
	}
	children, err := pgx.CollectRows(rows, scanCommunity)
	if err != nil {
		return nil, fmt.Errorf("failed to scan child communities: %w", err)
	}
	if len(children) == 0 {
		if _, err := s.GetCommunityByID(ctx, parentID); err != nil {
			return nil, err
		}
	}
	return children, nil
}

func (s *PostgresStore) DeleteCommunities(ctx context.Context, campaignID, runID string) (int, error) {
	result, err := s.Pool.Exec(ctx,
		`DELETE FROM communities WHERE campaign_id = $1 AND ($2 = '' OR run_id = $2)`,
		campaignID, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete communities: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.Pool.Close()
	return nil
}

func (s *PostgresStore) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanCommunity(row pgx.CollectableRow) (model.Community, error) {
	var c model.Community
	err := row.Scan(&c.ID, &c.CampaignID, &c.RunID, &c.Level, &c.MemberEntityIDs, &c.ParentCommunityID,
		&c.Size, &c.InternalWeight, &c.TotalWeight, &c.CreatedAt)
	return c, err
}
