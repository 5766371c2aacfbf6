package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/apperrors"
	"github.com/agenthands/loregraph/internal/core"
	"github.com/agenthands/loregraph/internal/core/community"
	"github.com/agenthands/loregraph/internal/core/model"
	"github.com/agenthands/loregraph/internal/core/summary"
	"github.com/agenthands/loregraph/internal/metrics"
	"github.com/agenthands/loregraph/internal/store"
)

type Server struct {
	Service    *core.DetectionService
	Entities   store.EntityWriter
	Summarizer *summary.Summarizer // nil disables POST /communities/:id/summary
	Metrics    *metrics.Collector
	Logger     *zap.Logger

	// DetectTimeout bounds each detection request; zero means no limit
	// beyond the client's own.
	DetectTimeout time.Duration
}

func New(service *core.DetectionService, entities store.EntityWriter, summarizer *summary.Summarizer, collector *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Service:    service,
		Entities:   entities,
		Summarizer: summarizer,
		Metrics:    collector,
		Logger:     logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	r.POST("/campaigns", s.CreateCampaign)

	campaigns := r.Group("/campaigns/:campaign_id")
	campaigns.POST("/entities", s.UpsertGraph)
	campaigns.POST("/communities/detect", s.DetectCommunities)
	campaigns.POST("/communities/detect-hierarchy", s.DetectHierarchy)
	campaigns.GET("/communities", s.ListCommunities)
	campaigns.DELETE("/communities", s.DeleteCommunities)
	campaigns.GET("/runs/:run_id/hierarchy", s.GetHierarchy)

	communities := r.Group("/communities/:id")
	communities.GET("", s.GetCommunity)
	communities.GET("/children", s.GetChildCommunities)
	communities.POST("/summary", s.SummarizeCommunity)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.Metrics.RecordHTTP(c.Request.Method, route, status)
		s.Logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)))
	}
}

type campaignRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

func (s *Server) CreateCampaign(c *gin.Context) {
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign := &model.Campaign{ID: req.ID, Name: req.Name}
	if err := s.Entities.SaveCampaign(c.Request.Context(), campaign); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

type entityInput struct {
	ID      string `json:"id" binding:"required"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type relationshipInput struct {
	ID       string   `json:"id" binding:"required"`
	SourceID string   `json:"source_entity_id" binding:"required"`
	TargetID string   `json:"target_entity_id" binding:"required"`
	Type     string   `json:"type"`
	Weight   *float64 `json:"weight" binding:"omitempty,gte=0"`
}

type graphRequest struct {
	Entities      []entityInput       `json:"entities" binding:"dive"`
	Relationships []relationshipInput `json:"relationships" binding:"dive"`
}

// UpsertGraph seeds or updates a campaign's entities and relationships.
func (s *Server) UpsertGraph(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	var req graphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entities := make([]model.Entity, len(req.Entities))
	for i, e := range req.Entities {
		entities[i] = model.Entity{ID: e.ID, CampaignID: campaignID, Type: e.Type, Name: e.Name, Summary: e.Summary}
	}
	relationships := make([]model.Relationship, len(req.Relationships))
	for i, r := range req.Relationships {
		relationships[i] = model.Relationship{
			ID: r.ID, CampaignID: campaignID, SourceID: r.SourceID, TargetID: r.TargetID, Type: r.Type, Weight: r.Weight,
		}
	}

	ctx := c.Request.Context()
	if err := s.Entities.UpsertEntities(ctx, entities); err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.Entities.UpsertRelationships(ctx, relationships); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": len(entities), "relationships": len(relationships)})
}

func (s *Server) DetectCommunities(c *gin.Context) {
	s.detect(c, s.Service.DetectCommunities)
}

func (s *Server) DetectHierarchy(c *gin.Context) {
	s.detect(c, s.Service.DetectMultiLevelCommunities)
}

type detectFunc func(ctx context.Context, campaignID string, overrides community.OptionOverrides) (*core.DetectionResult, error)

func (s *Server) detect(c *gin.Context, run detectFunc) {
	var overrides community.OptionOverrides
	if err := c.ShouldBindJSON(&overrides); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.DetectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.DetectTimeout)
		defer cancel()
	}

	result, err := run(ctx, c.Param("campaign_id"), overrides)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type listQuery struct {
	Level  *int   `form:"level" binding:"omitempty,gte=0"`
	RunID  string `form:"run_id"`
	Limit  int    `form:"limit" binding:"omitempty,gte=1,lte=1000"`
	Offset int    `form:"offset" binding:"gte=0"`
}

func (s *Server) ListCommunities(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	communities, err := s.Service.ListCommunitiesByCampaign(c.Request.Context(), c.Param("campaign_id"), store.ListOptions{
		Level:  q.Level,
		RunID:  q.RunID,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": communities})
}

func (s *Server) DeleteCommunities(c *gin.Context) {
	deleted, err := s.Service.DeleteCommunities(c.Request.Context(), c.Param("campaign_id"), c.Query("run_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) GetHierarchy(c *gin.Context) {
	roots, err := s.Service.GetHierarchy(c.Request.Context(), c.Param("campaign_id"), c.Param("run_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roots": roots})
}

func (s *Server) GetCommunity(c *gin.Context) {
	found, err := s.Service.GetCommunityByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) GetChildCommunities(c *gin.Context) {
	children, err := s.Service.GetChildCommunities(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": children})
}

func (s *Server) SummarizeCommunity(c *gin.Context) {
	if s.Summarizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summarization is not configured"})
		return
	}

	ctx := c.Request.Context()
	target, members, err := s.Service.GetCommunityMembers(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.Summarizer.SummarizeCommunity(ctx, *target, members)
	if err != nil {
		if ctx.Err() != nil {
			s.writeError(c, ctx.Err())
			return
		}
		s.Logger.Error("Failed to summarize community", zap.String("community_id", target.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var invalid *apperrors.InvalidOptionsError
	var persist *core.PersistenceError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "violations": invalid.Violations})
	case errors.Is(err, apperrors.ErrCampaignNotFound), errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case apperrors.IsGraphLoad(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &persist):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run_id": persist.Result.RunID})
	default:
		s.Logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
