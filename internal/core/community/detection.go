package community

import (
	"context"

	"github.com/agenthands/loregraph/internal/core/graph"
)

type CommunityDetector interface {
	Detect(ctx context.Context, g *graph.Graph, opts Options) (*Hierarchy, error)
}

// LouvainDetector is the default CommunityDetector.
type LouvainDetector struct{}

func NewLouvainDetector() CommunityDetector {
	return &LouvainDetector{}
}

func (d *LouvainDetector) Detect(ctx context.Context, g *graph.Graph, opts Options) (*Hierarchy, error) {
	return BuildHierarchy(ctx, g, opts)
}
