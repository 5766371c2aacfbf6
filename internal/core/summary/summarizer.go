package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/config"
	"github.com/agenthands/loregraph/internal/core/common"
	"github.com/agenthands/loregraph/internal/core/model"
	"github.com/agenthands/loregraph/internal/llm"
)

const (
	DefaultChunkSize   = 20
	DefaultKeyEntities = 5
)

// Summarizer describes detected communities with an LLM. It only reads
// community records; detection never calls it.
type Summarizer struct {
	LLM         llm.LLMClient
	Reranker    llm.RerankerClient
	Prompts     config.SummaryPrompts
	ChunkSize   int
	KeyEntities int
	Logger      *zap.Logger
}

func NewSummarizer(llmClient llm.LLMClient, cfg config.SummaryConfig, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	chunkSize := cfg.ChunkSize
	if chunkSize < 2 {
		chunkSize = DefaultChunkSize
	}
	keyEntities := cfg.KeyEntities
	if keyEntities < 0 {
		keyEntities = DefaultKeyEntities
	}
	return &Summarizer{
		LLM:         llmClient,
		Reranker:    llm.NewSimpleLLMReranker(llmClient),
		Prompts:     cfg.Prompts,
		ChunkSize:   chunkSize,
		KeyEntities: keyEntities,
		Logger:      logger,
	}
}

// SummarizeCommunity produces a summary, a name and the key members of one
// community. members should be the community's entities.
func (s *Summarizer) SummarizeCommunity(ctx context.Context, community model.Community, members []model.Entity) (*model.CommunitySummary, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("community %s has no members to summarize", community.ID)
	}

	lines := make([]string, len(members))
	for i, m := range members {
		lines[i] = describe(m)
	}

	text, err := s.reduce(ctx, lines)
	if err != nil {
		return nil, err
	}

	name, err := s.GenerateCommunityName(ctx, text)
	if err != nil {
		return nil, err
	}

	return &model.CommunitySummary{
		CommunityID:  community.ID,
		Name:         name,
		Summary:      text,
		KeyEntityIDs: s.keyEntities(ctx, text, members, lines),
	}, nil
}

// reduce summarizes lines directly when they fit one chunk, otherwise
// summarizes each chunk and recurses on the partial summaries.
func (s *Summarizer) reduce(ctx context.Context, lines []string) (string, error) {
	if len(lines) <= s.ChunkSize {
		return s.summarizeChunk(ctx, lines)
	}

	var parts []string
	for start := 0; start < len(lines); start += s.ChunkSize {
		end := min(start+s.ChunkSize, len(lines))
		part, err := s.summarizeChunk(ctx, lines[start:end])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			s.Logger.Warn("Skipping community chunk that failed to summarize",
				zap.Int("chunk_start", start),
				zap.Error(err))
			continue
		}
		parts = append(parts, fmt.Sprintf("- Part %d: %s", len(parts)+1, part))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("every chunk of the community failed to summarize")
	}
	return s.reduce(ctx, parts)
}

func (s *Summarizer) summarizeChunk(ctx context.Context, lines []string) (string, error) {
	prompt := fmt.Sprintf(s.Prompts.Communities, strings.Join(lines, "\n"))
	response, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate community summary: %w", err)
	}

	if result, err := common.ParseJSON[model.ChunkSummary](response); err == nil && result.Summary != "" {
		return result.Summary, nil
	}
	return strings.TrimSpace(response), nil
}

// GenerateCommunityName returns "" when no naming prompt is configured.
func (s *Summarizer) GenerateCommunityName(ctx context.Context, summary string) (string, error) {
	if s.Prompts.CommunityName == "" {
		return "", nil
	}

	response, err := s.LLM.Generate(ctx, fmt.Sprintf(s.Prompts.CommunityName, summary))
	if err != nil {
		return "", fmt.Errorf("failed to generate community name: %w", err)
	}

	if result, err := common.ParseJSON[model.CommunityName](response); err == nil && result.Name != "" {
		return result.Name, nil
	}
	return strings.Trim(strings.TrimSpace(response), `"`), nil
}

// keyEntities ranks member descriptions against the summary. Without a
// reranker, or if ranking fails, members keep their given order.
func (s *Summarizer) keyEntities(ctx context.Context, summary string, members []model.Entity, lines []string) []string {
	k := min(s.KeyEntities, len(members))
	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}

	if s.Reranker != nil && k > 0 {
		ranked, err := s.Reranker.Rank(ctx, summary, lines)
		if err != nil {
			s.Logger.Warn("Falling back to member order for key entities", zap.Error(err))
		} else if len(ranked) == len(members) {
			order = ranked
		}
	}

	ids := make([]string, 0, k)
	for _, i := range order[:k] {
		ids = append(ids, members[i].ID)
	}
	return ids
}

func describe(e model.Entity) string {
	label := e.Name
	if label == "" {
		label = e.ID
	}
	if e.Type != "" {
		label = fmt.Sprintf("%s (%s)", label, e.Type)
	}
	if e.Summary == "" {
		return "- " + label
	}
	return fmt.Sprintf("- %s: %s", label, e.Summary)
}
