package graph

import "sort"

// Edge is one adjacency entry. Self-loops are never stored as edges.
type Edge struct {
	To     int
	Weight float64
}

// Graph is an undirected weighted graph indexed by position. Node order is
// fixed at build time and is the iteration order every algorithm uses.
type Graph struct {
	ids   []string
	adj   [][]Edge
	loops []float64 // counted in modularity degrees
	inner []float64 // carried internal weight of coarsened nodes, accounting only
	sizes []int     // raw entities represented by each node

	degrees     []float64
	totalWeight float64
}

func (g *Graph) Len() int {
	return len(g.ids)
}

func (g *Graph) ID(i int) string {
	return g.ids[i]
}

// IDs returns a copy of the node ids in index order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Neighbors returns the adjacency of i sorted by neighbour index.
// The slice is shared with the graph and must not be modified.
func (g *Graph) Neighbors(i int) []Edge {
	return g.adj[i]
}

func (g *Graph) SelfLoop(i int) float64 {
	return g.loops[i]
}

func (g *Graph) Inner(i int) float64 {
	return g.inner[i]
}

func (g *Graph) Size(i int) int {
	return g.sizes[i]
}

// Degree is the weighted degree used by modularity: incident edge weight plus
// twice the self-loop.
func (g *Graph) Degree(i int) float64 {
	return g.degrees[i]
}

// RawDegree is Degree plus twice the carried inner weight, i.e. the summed
// degree of the raw entities a coarsened node stands for.
func (g *Graph) RawDegree(i int) float64 {
	return g.degrees[i] + 2*g.inner[i]
}

// TotalWeight is m: every edge counted once plus every self-loop.
func (g *Graph) TotalWeight() float64 {
	return g.totalWeight
}

// EdgeCount counts undirected edges, excluding self-loops.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, edges := range g.adj {
		count += len(edges)
	}
	return count / 2
}

// Builder accumulates nodes and edges. Parallel edges are summed and an edge
// whose endpoints coincide becomes a self-loop.
type Builder struct {
	index   map[string]int
	ids     []string
	weights []map[int]float64
	loops   []float64
	inner   []float64
	sizes   []int
}

func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// AddNode registers id with size 1 and returns its index. Registering an id
// twice returns the existing index.
func (b *Builder) AddNode(id string) int {
	return b.addNode(id, 1, 0)
}

func (b *Builder) addNode(id string, size int, inner float64) int {
	if idx, ok := b.index[id]; ok {
		return idx
	}
	idx := len(b.ids)
	b.index[id] = idx
	b.ids = append(b.ids, id)
	b.weights = append(b.weights, nil)
	b.loops = append(b.loops, 0)
	b.inner = append(b.inner, inner)
	b.sizes = append(b.sizes, size)
	return idx
}

func (b *Builder) Has(id string) bool {
	_, ok := b.index[id]
	return ok
}

// AddEdge adds weight between two registered nodes. It returns false when
// either endpoint is unknown.
func (b *Builder) AddEdge(from, to string, weight float64) bool {
	i, ok := b.index[from]
	if !ok {
		return false
	}
	j, ok := b.index[to]
	if !ok {
		return false
	}
	b.addEdge(i, j, weight)
	return true
}

func (b *Builder) addEdge(i, j int, weight float64) {
	if i == j {
		b.loops[i] += weight
		return
	}
	if b.weights[i] == nil {
		b.weights[i] = make(map[int]float64)
	}
	if b.weights[j] == nil {
		b.weights[j] = make(map[int]float64)
	}
	b.weights[i][j] += weight
	b.weights[j][i] += weight
}

func (b *Builder) Build() *Graph {
	n := len(b.ids)
	g := &Graph{
		ids:     b.ids,
		adj:     make([][]Edge, n),
		loops:   b.loops,
		inner:   b.inner,
		sizes:   b.sizes,
		degrees: make([]float64, n),
	}

	for i := 0; i < n; i++ {
		neighbors := make([]int, 0, len(b.weights[i]))
		for j := range b.weights[i] {
			neighbors = append(neighbors, j)
		}
		sort.Ints(neighbors)

		edges := make([]Edge, 0, len(neighbors))
		for _, j := range neighbors {
			w := b.weights[i][j]
			if w == 0 {
				continue
			}
			edges = append(edges, Edge{To: j, Weight: w})
		}
		g.adj[i] = edges
	}

	// Sums run in index order so repeated builds are bit-identical.
	for i := 0; i < n; i++ {
		deg := 2 * g.loops[i]
		for _, e := range g.adj[i] {
			deg += e.Weight
			if e.To > i {
				g.totalWeight += e.Weight
			}
		}
		g.degrees[i] = deg
		g.totalWeight += g.loops[i]
	}

	return g
}
