package community

import (
	"context"
	"math"
	"sort"

	"github.com/agenthands/loregraph/internal/core/graph"
)

const (
	// gainEpsilon absorbs float noise so equal gains never trigger a move.
	gainEpsilon = 1e-12

	// maxSweeps bounds one local moving phase.
	maxSweeps = 1000
)

// Optimize runs Louvain passes over g. Each pass is a local moving phase
// followed by aggregation of the found communities into super-nodes. Passes
// stop when the relative modularity gain drops below MinImprovement, when a
// pass merges nothing, or after MaxIterations passes. Converged is false when
// the pass cap was hit or a local moving phase ran out of sweeps.
//
// The context is checked between passes, never inside one.
func Optimize(ctx context.Context, g *graph.Graph, opts Options) (*Partition, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := g.Len()
	membership := make([]int, n)
	for i := range membership {
		membership[i] = i
	}

	if n == 0 || g.TotalWeight() == 0 {
		p := newPartition(g, membership, n, opts.Resolution)
		p.Converged = true
		return p, nil
	}

	current := g
	prevQ := Modularity(g, membership, opts.Resolution)
	passes := 0
	converged := false
	unsettled := false

	for passes < opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		local, k, settled := moveNodes(current, opts.Resolution, maxSweeps)
		passes++
		if !settled {
			unsettled = true
		}

		for i := range membership {
			membership[i] = local[membership[i]]
		}

		if k == current.Len() {
			converged = true
			break
		}

		q := Modularity(g, membership, opts.Resolution)
		if relativeImprovement(prevQ, q) < opts.MinImprovement {
			converged = true
			break
		}
		prevQ = q

		current = graph.Aggregate(current, local, k, true)
	}

	// Composition keeps labels in first-member order, but renumber anyway so
	// the invariant does not depend on that.
	k := renumber(membership)
	p := newPartition(g, membership, k, opts.Resolution)
	p.Passes = passes
	p.Converged = converged && !unsettled
	return p, nil
}

// moveNodes is the local moving phase. Nodes are visited in index order and
// moved to the neighbouring community with the strictly best gain; ties keep
// the current community, then prefer the lowest community id. settled is false
// when nodes were still moving after sweeps full sweeps.
func moveNodes(g *graph.Graph, resolution float64, sweeps int) (comm []int, k int, settled bool) {
	n := g.Len()
	m2 := 2 * g.TotalWeight()

	comm = make([]int, n)
	tot := make([]float64, n)
	for i := 0; i < n; i++ {
		comm[i] = i
		tot[i] = g.Degree(i)
	}

	linkWeight := make([]float64, n)
	stamp := make([]int, n)
	for i := range stamp {
		stamp[i] = -1
	}
	candidates := make([]int, 0, 16)

	for sweep := 0; sweep < sweeps && !settled; sweep++ {
		moved := false

		for i := 0; i < n; i++ {
			current := comm[i]
			ki := g.Degree(i)

			candidates = candidates[:0]
			mark := sweep*n + i
			for _, e := range g.Neighbors(i) {
				c := comm[e.To]
				if stamp[c] != mark {
					stamp[c] = mark
					linkWeight[c] = 0
					candidates = append(candidates, c)
				}
				linkWeight[c] += e.Weight
			}
			sort.Ints(candidates)

			tot[current] -= ki

			best := current
			bestGain := 0.0
			if stamp[current] == mark {
				bestGain = linkWeight[current]
			}
			bestGain -= resolution * ki * tot[current] / m2

			for _, c := range candidates {
				if c == current {
					continue
				}
				gain := linkWeight[c] - resolution*ki*tot[c]/m2
				if gain > bestGain+gainEpsilon {
					best = c
					bestGain = gain
				}
			}

			tot[best] += ki
			if best != current {
				comm[i] = best
				moved = true
			}
		}

		settled = !moved
	}

	k = renumber(comm)
	return comm, k, settled
}

func relativeImprovement(prev, next float64) float64 {
	if math.Abs(prev) < 1e-12 {
		return next - prev
	}
	return (next - prev) / math.Abs(prev)
}
