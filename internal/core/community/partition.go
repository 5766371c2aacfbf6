package community

import "github.com/agenthands/loregraph/internal/core/graph"

// Partition assigns every node of one graph to a community. Community ids are
// dense (0..Count()-1) and numbered by their smallest member index.
type Partition struct {
	Membership  []int
	Communities [][]int // member node indices, ascending

	// Sizes counts raw entities, not graph nodes.
	Sizes []int

	InternalWeight []float64
	TotalWeight    []float64

	Modularity float64
	Passes     int
	Converged  bool
}

func (p *Partition) Count() int {
	return len(p.Communities)
}

// newPartition derives the per-community statistics for membership, which must
// already be renumbered to 0..k-1.
func newPartition(g *graph.Graph, membership []int, k int, resolution float64) *Partition {
	p := &Partition{
		Membership:     membership,
		Communities:    make([][]int, k),
		Sizes:          make([]int, k),
		InternalWeight: make([]float64, k),
		TotalWeight:    make([]float64, k),
	}

	for i := 0; i < g.Len(); i++ {
		c := membership[i]
		p.Communities[c] = append(p.Communities[c], i)
		p.Sizes[c] += g.Size(i)
		p.InternalWeight[c] += g.SelfLoop(i) + g.Inner(i)
		p.TotalWeight[c] += g.RawDegree(i)
		for _, e := range g.Neighbors(i) {
			if e.To > i && membership[e.To] == c {
				p.InternalWeight[c] += e.Weight
			}
		}
	}

	p.Modularity = Modularity(g, membership, resolution)
	return p
}

// Modularity computes
//
//	Q = sum_c [ in_c/m - resolution * (tot_c/2m)^2 ]
//
// where in_c is the edge and self-loop weight inside c and tot_c the summed
// degree of its nodes. Carried inner weight of coarsened nodes is ignored. A
// graph without edges has modularity 0.
func Modularity(g *graph.Graph, membership []int, resolution float64) float64 {
	m := g.TotalWeight()
	if m == 0 {
		return 0
	}

	k := 0
	for _, c := range membership {
		if c+1 > k {
			k = c + 1
		}
	}
	in := make([]float64, k)
	tot := make([]float64, k)

	for i := 0; i < g.Len(); i++ {
		c := membership[i]
		in[c] += g.SelfLoop(i)
		tot[c] += g.Degree(i)
		for _, e := range g.Neighbors(i) {
			if e.To > i && membership[e.To] == c {
				in[c] += e.Weight
			}
		}
	}

	q := 0.0
	for c := 0; c < k; c++ {
		share := tot[c] / (2 * m)
		q += in[c]/m - resolution*share*share
	}
	return q
}

// renumber relabels communities in order of their first member and returns
// the number of distinct communities.
func renumber(membership []int) int {
	next := 0
	seen := make(map[int]int)
	for i, c := range membership {
		id, ok := seen[c]
		if !ok {
			id = next
			seen[c] = id
			next++
		}
		membership[i] = id
	}
	return next
}
