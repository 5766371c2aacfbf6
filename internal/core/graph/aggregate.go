package graph

import "strconv"

// Aggregate collapses every community of membership into one super-node.
// Community c of k becomes node c; the edge weight between two super-nodes is
// the summed weight between their members.
//
// With keepLoops the intra-community weight becomes a self-loop that still
// counts toward degrees, which is what one optimizer run needs between its
// passes. Without it the intra weight is carried as inner weight only, so the
// next hierarchy level clusters on inter-community structure alone.
func Aggregate(g *Graph, membership []int, k int, keepLoops bool) *Graph {
	b := NewBuilder()
	sizes := make([]int, k)
	loops := make([]float64, k)
	inner := make([]float64, k)

	for i := 0; i < g.Len(); i++ {
		c := membership[i]
		sizes[c] += g.sizes[i]
		loops[c] += g.loops[i]
		inner[c] += g.inner[i]
	}

	for c := 0; c < k; c++ {
		b.addNode(strconv.Itoa(c), sizes[c], 0)
	}

	for i := 0; i < g.Len(); i++ {
		ci := membership[i]
		for _, e := range g.adj[i] {
			if e.To < i {
				continue
			}
			cj := membership[e.To]
			if ci == cj {
				loops[ci] += e.Weight
				continue
			}
			b.addEdge(ci, cj, e.Weight)
		}
	}

	for c := 0; c < k; c++ {
		if keepLoops {
			b.loops[c] = loops[c]
			b.inner[c] = inner[c]
		} else {
			b.inner[c] = inner[c] + loops[c]
		}
	}

	return b.Build()
}
