package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core/community"
	"github.com/agenthands/loregraph/internal/core/graph"
	"github.com/agenthands/loregraph/internal/core/model"
	"github.com/agenthands/loregraph/internal/metrics"
	"github.com/agenthands/loregraph/internal/store"
)

// DetectionResult is everything one run produced. Communities holds every
// record that was (or, on a PersistenceError, would have been) saved.
type DetectionResult struct {
	RunID       string                         `json:"run_id"`
	CampaignID  string                         `json:"campaign_id"`
	Options     community.Options              `json:"options"`
	Communities []model.Community              `json:"communities"`
	Roots       []*model.Hierarchy             `json:"roots"`
	Levels      int                            `json:"levels"`
	Modularity  []float64                      `json:"modularity"`
	Warnings    []community.ConvergenceWarning `json:"warnings,omitempty"`
}

// PersistenceError means detection finished but the store rejected the
// result. Result can be handed to SaveResult to retry without recomputing.
type PersistenceError struct {
	Err    error
	Result *DetectionResult
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist run %s: %v", e.Result.RunID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type DetectionService struct {
	Loader      *graph.Loader
	Detector    community.CommunityDetector
	Communities store.CommunityStore
	Logger      *zap.Logger
	Metrics     *metrics.Collector

	// Defaults fill the options a request leaves unset.
	Defaults      community.Options
	UUIDGenerator func() string
	Clock         func() time.Time
}

func NewDetectionService(entities store.EntityReader, communities store.CommunityStore, logger *zap.Logger) *DetectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetectionService{
		Loader:        graph.NewLoader(entities, logger),
		Detector:      community.NewLouvainDetector(),
		Communities:   communities,
		Logger:        logger,
		Defaults:      community.DefaultOptions(),
		UUIDGenerator: func() string { return uuid.New().String() },
		Clock:         func() time.Time { return time.Now().UTC() },
	}
}

// DetectCommunities computes and persists a flat, level-0 partition of the
// campaign. A max_levels override is validated but otherwise ignored.
func (s *DetectionService) DetectCommunities(ctx context.Context, campaignID string, overrides community.OptionOverrides) (*DetectionResult, error) {
	return s.detect(ctx, metrics.ModeSingle, campaignID, overrides)
}

// DetectMultiLevelCommunities computes and persists the full hierarchy.
func (s *DetectionService) DetectMultiLevelCommunities(ctx context.Context, campaignID string, overrides community.OptionOverrides) (*DetectionResult, error) {
	return s.detect(ctx, metrics.ModeMulti, campaignID, overrides)
}

func (s *DetectionService) detect(ctx context.Context, mode, campaignID string, overrides community.OptionOverrides) (*DetectionResult, error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		s.Metrics.RecordRun(mode, outcome, time.Since(start))
	}()

	opts, err := overrides.Resolve(s.Defaults)
	if err != nil {
		outcome = metrics.OutcomeInvalidOptions
		return nil, err
	}
	if mode == metrics.ModeSingle {
		opts.MaxLevels = 1
	}

	logger := s.Logger.With(zap.String("campaign_id", campaignID), zap.String("mode", mode))

	g, err := s.Loader.Load(ctx, campaignID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome = metrics.OutcomeCancelled
			return nil, ctxErr
		}
		outcome = metrics.OutcomeLoadFailed
		logger.Error("Failed to load campaign graph", zap.Error(err))
		return nil, err
	}

	runID := s.UUIDGenerator()
	logger = logger.With(zap.String("run_id", runID))
	result := &DetectionResult{
		RunID:       runID,
		CampaignID:  campaignID,
		Options:     opts,
		Communities: []model.Community{},
		Roots:       []*model.Hierarchy{},
		Modularity:  []float64{},
	}

	if g.Len() == 0 {
		logger.Info("Campaign has no entities, nothing to detect")
		return result, nil
	}

	h, err := s.Detector.Detect(ctx, g, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeCancelled
			logger.Info("Detection cancelled", zap.Error(err))
			return nil, err
		}
		outcome = metrics.OutcomeDetectionFailure
		logger.Error("Community detection failed", zap.Error(err))
		return nil, fmt.Errorf("community detection failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		outcome = metrics.OutcomeCancelled
		return nil, err
	}

	for _, w := range h.Warnings {
		logger.Warn("Optimizer did not converge",
			zap.Int("level", w.Level),
			zap.Int("passes", w.Passes),
			zap.Float64("modularity", w.Modularity))
	}

	result.Communities = toRecords(h, campaignID, runID, s.Clock(), s.UUIDGenerator)
	result.Roots = BuildTrees(result.Communities)
	result.Levels = len(h.Levels)
	result.Warnings = h.Warnings
	for _, level := range h.Levels {
		result.Modularity = append(result.Modularity, level.Modularity)
	}

	if err := s.SaveResult(ctx, result); err != nil {
		outcome = metrics.OutcomePersistFailed
		logger.Error("Failed to persist communities", zap.Error(err))
		return nil, err
	}

	for l, level := range h.Levels {
		s.Metrics.RecordLevel(l, len(level.Communities), level.Passes, level.Converged)
	}
	logger.Info("Detected communities",
		zap.Int("levels", result.Levels),
		zap.Int("communities", len(result.Communities)),
		zap.Int("entities", g.Len()),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// SaveResult writes a computed result in one all-or-nothing batch. Failures
// come back as *PersistenceError.
func (s *DetectionService) SaveResult(ctx context.Context, result *DetectionResult) error {
	if result == nil || len(result.Communities) == 0 {
		return nil
	}
	if err := s.Communities.SaveCommunities(ctx, result.Communities); err != nil {
		return &PersistenceError{Err: err, Result: result}
	}
	return nil
}

func (s *DetectionService) ListCommunitiesByCampaign(ctx context.Context, campaignID string, opts store.ListOptions) ([]model.Community, error) {
	if opts.Limit <= 0 {
		opts.Limit = store.DefaultListLimit
	}
	return s.Communities.ListCommunitiesByCampaign(ctx, campaignID, opts)
}

func (s *DetectionService) GetCommunityByID(ctx context.Context, id string) (*model.Community, error) {
	return s.Communities.GetCommunityByID(ctx, id)
}

func (s *DetectionService) GetChildCommunities(ctx context.Context, parentID string) ([]model.Community, error) {
	return s.Communities.GetChildCommunities(ctx, parentID)
}

// DeleteCommunities removes one run, or every run of the campaign when runID
// is empty.
func (s *DetectionService) DeleteCommunities(ctx context.Context, campaignID, runID string) (int, error) {
	n, err := s.Communities.DeleteCommunities(ctx, campaignID, runID)
	if err != nil {
		return 0, err
	}
	s.Logger.Info("Deleted communities",
		zap.String("campaign_id", campaignID),
		zap.String("run_id", runID),
		zap.Int("communities", n))
	return n, nil
}

// hierarchyPageSize bounds each list call while GetHierarchy reads a run.
const hierarchyPageSize = 500

// GetHierarchy rebuilds the stored trees of one run.
func (s *DetectionService) GetHierarchy(ctx context.Context, campaignID, runID string) ([]*model.Hierarchy, error) {
	if runID == "" {
		return nil, apperrors.ErrNotFound
	}

	var all []model.Community
	for offset := 0; ; offset += hierarchyPageSize {
		page, err := s.Communities.ListCommunitiesByCampaign(ctx, campaignID, store.ListOptions{
			RunID:  runID,
			Limit:  hierarchyPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < hierarchyPageSize {
			break
		}
	}
	if len(all) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return BuildTrees(all), nil
}

// GetCommunityMembers returns a community together with its member entities,
// in member id order. Members no longer in the campaign are skipped.
func (s *DetectionService) GetCommunityMembers(ctx context.Context, id string) (*model.Community, []model.Entity, error) {
	c, err := s.Communities.GetCommunityByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.Loader == nil || s.Loader.Source == nil {
		return nil, nil, fmt.Errorf("no entity source configured")
	}

	entities, err := s.Loader.Source.GetEntitiesForCampaign(ctx, c.CampaignID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch community members: %w", err)
	}
	byID := make(map[string]model.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	members := make([]model.Entity, 0, len(c.MemberEntityIDs))
	for _, memberID := range c.MemberEntityIDs {
		if e, ok := byID[memberID]; ok {
			members = append(members, e)
		}
	}
	return c, members, nil
}
