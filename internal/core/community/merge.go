package community

import "github.com/agenthands/loregraph/internal/core/graph"

// MergeSmallCommunities folds every community with fewer than minSize raw
// entities into the neighbouring community it shares the most edge weight
// with, lowest id first on ties. Communities without neighbours are kept.
// Communities are scanned in ascending id until a full scan merges nothing,
// so a merge target that is itself still too small is handled as well.
//
// The returned partition is renumbered; Passes and Converged carry over.
func MergeSmallCommunities(g *graph.Graph, p *Partition, minSize int, resolution float64) *Partition {
	if minSize <= 1 || p.Count() <= 1 {
		return p
	}

	k := p.Count()
	label := make([]int, k) // community -> surviving community
	sizes := make([]int, k)
	links := make([]map[int]float64, k)
	for c := 0; c < k; c++ {
		label[c] = c
		sizes[c] = p.Sizes[c]
		links[c] = make(map[int]float64)
	}

	for i := 0; i < g.Len(); i++ {
		ci := p.Membership[i]
		for _, e := range g.Neighbors(i) {
			cj := p.Membership[e.To]
			if e.To > i && ci != cj {
				links[ci][cj] += e.Weight
				links[cj][ci] += e.Weight
			}
		}
	}

	merged := false
	for {
		changed := false
		for c := 0; c < k; c++ {
			if label[c] != c || sizes[c] >= minSize {
				continue
			}
			target, ok := heaviestNeighbor(links[c])
			if !ok {
				continue
			}

			for other, w := range links[c] {
				delete(links[other], c)
				if other == target {
					continue
				}
				links[target][other] += w
				links[other][target] += w
			}
			links[c] = nil

			for j := range label {
				if label[j] == c {
					label[j] = target
				}
			}
			sizes[target] += sizes[c]
			sizes[c] = 0
			changed = true
		}
		if !changed {
			break
		}
		merged = true
	}

	if !merged {
		return p
	}

	membership := make([]int, len(p.Membership))
	for i, c := range p.Membership {
		membership[i] = label[c]
	}
	out := newPartition(g, membership, renumber(membership), resolution)
	out.Passes = p.Passes
	out.Converged = p.Converged
	return out
}

func heaviestNeighbor(links map[int]float64) (int, bool) {
	best := -1
	bestWeight := 0.0
	for c, w := range links {
		if w <= 0 {
			continue
		}
		if best == -1 || w > bestWeight || (w == bestWeight && c < best) {
			best = c
			bestWeight = w
		}
	}
	return best, best != -1
}
