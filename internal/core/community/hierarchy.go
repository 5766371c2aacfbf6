package community

import (
	"context"
	"fmt"
	"sort"

	"github.com/agenthands/loregraph/internal/core/graph"
)

// Hierarchy is the arena produced by one detection run. Nodes reference each
// other by index: Node.Children indexes the level below, Node.Parent the level
// above, and Node.Entities indexes EntityIDs.
type Hierarchy struct {
	EntityIDs []string
	Levels    []Level
	Warnings  []ConvergenceWarning
}

type Level struct {
	Communities []Node

	// Modularity of this level's entity partition on the loaded graph.
	Modularity float64
	Passes     int
	Converged  bool
}

type Node struct {
	Entities       []int
	Children       []int
	Parent         int // -1 at the top level
	InternalWeight float64
	TotalWeight    float64
}

// ConvergenceWarning reports a level whose optimizer hit the pass cap. The
// partition is still usable.
type ConvergenceWarning struct {
	Level      int     `json:"level"`
	Passes     int     `json:"passes"`
	Modularity float64 `json:"modularity"`
}

func (w ConvergenceWarning) String() string {
	return fmt.Sprintf("level %d did not converge after %d passes (modularity %.6f)", w.Level, w.Passes, w.Modularity)
}

// Size is the number of raw entities in the given community.
func (h *Hierarchy) Size(level, community int) int {
	return len(h.Levels[level].Communities[community].Entities)
}

// Members resolves a community's entity indices to ids, ascending.
func (h *Hierarchy) Members(level, community int) []string {
	entities := h.Levels[level].Communities[community].Entities
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = h.EntityIDs[e]
	}
	return ids
}

// Top returns the index of the highest level, or -1 for an empty hierarchy.
func (h *Hierarchy) Top() int {
	return len(h.Levels) - 1
}

// BuildHierarchy clusters g into level 0 and then repeatedly clusters the
// coarsened graph of the previous level. It stops after MaxLevels levels,
// when the previous level already has a single community, or when a new
// level would not reduce the community count (that level is discarded).
//
// Coarsened graphs keep the previous level's internal weight as carried
// weight only, so each level is optimized on the links between the
// communities below it.
func BuildHierarchy(ctx context.Context, g *graph.Graph, opts Options) (*Hierarchy, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	h := &Hierarchy{EntityIDs: g.IDs()}
	if g.Len() == 0 {
		return h, nil
	}

	p, err := clusterLevel(ctx, g, opts)
	if err != nil {
		return nil, err
	}

	base := make([]Node, p.Count())
	for c, members := range p.Communities {
		base[c] = Node{
			Entities:       members,
			Parent:         -1,
			InternalWeight: p.InternalWeight[c],
			TotalWeight:    p.TotalWeight[c],
		}
	}
	h.appendLevel(g, base, p, opts.Resolution)
	if !p.Converged {
		h.Warnings = append(h.Warnings, ConvergenceWarning{Level: 0, Passes: p.Passes, Modularity: h.Levels[0].Modularity})
	}

	current := g
	prev := p
	for len(h.Levels) < opts.MaxLevels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if prev.Count() <= 1 {
			break
		}

		coarse := graph.Aggregate(current, prev.Membership, prev.Count(), false)
		next, err := clusterLevel(ctx, coarse, opts)
		if err != nil {
			return nil, err
		}
		if next.Count() >= prev.Count() {
			break
		}

		below := h.Levels[len(h.Levels)-1].Communities
		level := len(h.Levels)
		nodes := make([]Node, next.Count())
		for c, children := range next.Communities {
			var entities []int
			for _, child := range children {
				below[child].Parent = c
				entities = append(entities, below[child].Entities...)
			}
			sort.Ints(entities)
			nodes[c] = Node{
				Entities:       entities,
				Children:       children,
				Parent:         -1,
				InternalWeight: next.InternalWeight[c],
				TotalWeight:    next.TotalWeight[c],
			}
		}
		h.appendLevel(g, nodes, next, opts.Resolution)
		if !next.Converged {
			h.Warnings = append(h.Warnings, ConvergenceWarning{Level: level, Passes: next.Passes, Modularity: h.Levels[level].Modularity})
		}

		current = coarse
		prev = next
	}

	return h, nil
}

func clusterLevel(ctx context.Context, g *graph.Graph, opts Options) (*Partition, error) {
	p, err := Optimize(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	return MergeSmallCommunities(g, p, opts.MinCommunitySize, opts.Resolution), nil
}

func (h *Hierarchy) appendLevel(g *graph.Graph, nodes []Node, p *Partition, resolution float64) {
	membership := make([]int, len(h.EntityIDs))
	for c, n := range nodes {
		for _, e := range n.Entities {
			membership[e] = c
		}
	}
	h.Levels = append(h.Levels, Level{
		Communities: nodes,
		Modularity:  Modularity(g, membership, resolution),
		Passes:      p.Passes,
		Converged:   p.Converged,
	})
}
