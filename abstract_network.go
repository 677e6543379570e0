package bikenet

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// WeightFunc returns weight of a candidate connection between two street nodes (by index)
type WeightFunc func(u, v int) float64

// Weighting selects how candidate connections are weighted
type Weighting string

const (
	// WeightEuclidean is the haversine straight-line distance between POIs
	WeightEuclidean = Weighting("euclidean")
	// WeightRouted is the street shortest-path distance; unreachable pairs weigh +Inf
	WeightRouted = Weighting("routed")
)

// EuclideanWeight returns straight-line weighting over given street graph
func EuclideanWeight(graph *StreetGraph) WeightFunc {
	return func(u, v int) float64 {
		return greatCircleDistance(graph.Nodes[u].Point, graph.Nodes[v].Point)
	}
}

// AbstractEdge is a POI-to-POI candidate connection. U and V are street node indices
type AbstractEdge struct {
	U       int
	V       int
	Weight  float64
	Measure float64
	// Rank is the position in pruning order (0 is retained first); -1 when not ranked
	Rank int
}

// AbstractNetwork is POI-to-POI topology admitted at some prune quantile
type AbstractNetwork struct {
	Graph      *StreetGraph
	Nodes      []int
	Edges      []AbstractEdge
	Quantile   float64
	PruneIndex int
}

// EdgeKey identifies undirected abstract edge by its endpoints ids (lower id first)
type EdgeKey struct {
	A osm.NodeID
	B osm.NodeID
}

func newEdgeKey(a, b osm.NodeID) EdgeKey {
	if a > b {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// EdgeKeys returns set of edges keyed by endpoint ids
func (net *AbstractNetwork) EdgeKeys() map[EdgeKey]struct{} {
	keys := make(map[EdgeKey]struct{}, len(net.Edges))
	for _, edge := range net.Edges {
		keys[newEdgeKey(net.Graph.Nodes[edge.U].ID, net.Graph.Nodes[edge.V].ID)] = struct{}{}
	}
	return keys
}

// Weight returns sum of edge weights
func (net *AbstractNetwork) Weight() float64 {
	total := 0.0
	for _, edge := range net.Edges {
		total += edge.Weight
	}
	return total
}

// Connected checks whether all network nodes are reachable from each other
func (net *AbstractNetwork) Connected() bool {
	if len(net.Nodes) <= 1 {
		return true
	}
	position := make(map[int]int, len(net.Nodes))
	for i, idx := range net.Nodes {
		position[idx] = i
	}
	sets := newDisjointSet(len(net.Nodes))
	for _, edge := range net.Edges {
		sets.union(position[edge.U], position[edge.V])
	}
	root := sets.find(0)
	for i := 1; i < len(net.Nodes); i++ {
		if sets.find(i) != root {
			return false
		}
	}
	return true
}

// Geometry returns straight lines between connected POIs
func (net *AbstractNetwork) Geometry() Geometry {
	if len(net.Edges) == 0 {
		return CollectionGeometry(nil)
	}
	lines := make([]orb.LineString, len(net.Edges))
	for i, edge := range net.Edges {
		lines[i] = orb.LineString{net.Graph.Nodes[edge.U].Point, net.Graph.Nodes[edge.V].Point}
	}
	return LinesGeometry(lines)
}

// candidate is a weighted POI pair; I and J are positions in POI order with I < J
type candidate struct {
	I      int
	J      int
	Weight float64
}

// candidatePairs returns complete graph over POIs sorted by (weight, i, j)
func candidatePairs(pois []int, weight WeightFunc) []candidate {
	n := len(pois)
	pairs := make([]candidate, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := weight(pois[i], pois[j])
			if math.IsNaN(w) {
				w = math.Inf(1)
			}
			pairs = append(pairs, candidate{I: i, J: j, Weight: w})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].Weight != pairs[b].Weight {
			return pairs[a].Weight < pairs[b].Weight
		}
		if pairs[a].I != pairs[b].I {
			return pairs[a].I < pairs[b].I
		}
		return pairs[a].J < pairs[b].J
	})
	return pairs
}

// disjointSet is union-find with path compression and union by rank
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

func (ds *disjointSet) find(x int) int {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

// union merges sets and reports whether they were distinct
func (ds *disjointSet) union(a, b int) bool {
	ra, rb := ds.find(a), ds.find(b)
	if ra == rb {
		return false
	}
	switch {
	case ds.rank[ra] < ds.rank[rb]:
		ds.parent[ra] = rb
	case ds.rank[ra] > ds.rank[rb]:
		ds.parent[rb] = ra
	default:
		ds.parent[rb] = ra
		ds.rank[ra]++
	}
	return true
}
