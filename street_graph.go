package bikenet

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

// StreetGraph is an undirected, simple street graph stored in arenas: relations are indices
// into Nodes and Edges. It is immutable once built
type StreetGraph struct {
	CityID      string
	NetworkType string

	Nodes []StreetNode
	Edges []StreetEdge

	nodeIndex  map[osm.NodeID]int
	adjacency  [][]int // per node: indices of incident edges
	components int
	bound      orb.Bound
}

// NewStreetGraph builds StreetGraph from records
//
// Self-loops are dropped, parallel edges collapse to the shortest one and
// connected components are labeled. Edges referencing unknown nodes make the graph unusable
func NewStreetGraph(cityID, networkType string, nodes []NodeRecord, edges []EdgeRecord) (*StreetGraph, error) {
	graph := &StreetGraph{
		CityID:      cityID,
		NetworkType: networkType,
		Nodes:       make([]StreetNode, 0, len(nodes)),
		Edges:       make([]StreetEdge, 0, len(edges)),
		nodeIndex:   make(map[osm.NodeID]int, len(nodes)),
	}
	for _, rec := range nodes {
		if _, ok := graph.nodeIndex[rec.ID]; ok {
			continue
		}
		graph.nodeIndex[rec.ID] = len(graph.Nodes)
		graph.Nodes = append(graph.Nodes, StreetNode{ID: rec.ID, Point: rec.Point, Component: -1})
		if len(graph.Nodes) == 1 {
			graph.bound = rec.Point.Bound()
		} else {
			graph.bound = graph.bound.Extend(rec.Point)
		}
	}
	graph.adjacency = make([][]int, len(graph.Nodes))

	type pairKey struct{ a, b int }
	seen := make(map[pairKey]int, len(edges))
	for i, rec := range edges {
		source, ok := graph.nodeIndex[rec.Source]
		if !ok {
			return nil, errors.Errorf("Edge %d references missing source node %d", rec.ID, rec.Source)
		}
		target, ok := graph.nodeIndex[rec.Target]
		if !ok {
			return nil, errors.Errorf("Edge %d references missing target node %d", rec.ID, rec.Target)
		}
		if source == target {
			continue
		}
		edge := StreetEdge{
			ID:     rec.ID,
			WayID:  rec.WayID,
			Source: source,
			Target: target,
			Geom:   graph.orientGeometry(source, target, rec.Geom),
		}
		if edge.ID == 0 {
			edge.ID = EdgeID(i + 1)
		}
		edge.Length = rec.Length
		if edge.Length <= 0 {
			edge.Length = getSphericalLength(edge.Geom)
		}
		key := pairKey{source, target}
		if source > target {
			key = pairKey{target, source}
		}
		if existing, ok := seen[key]; ok {
			if edge.Length < graph.Edges[existing].Length {
				graph.Edges[existing] = edge
			}
			continue
		}
		seen[key] = len(graph.Edges)
		graph.Edges = append(graph.Edges, edge)
	}
	for i := range graph.Edges {
		graph.adjacency[graph.Edges[i].Source] = append(graph.adjacency[graph.Edges[i].Source], i)
		graph.adjacency[graph.Edges[i].Target] = append(graph.adjacency[graph.Edges[i].Target], i)
	}
	graph.labelComponents()
	return graph, nil
}

// orientGeometry makes geometry run from source node to target node
func (graph *StreetGraph) orientGeometry(source, target int, geom orb.LineString) orb.LineString {
	sourcePt := graph.Nodes[source].Point
	targetPt := graph.Nodes[target].Point
	if !validLine(geom) {
		return orb.LineString{sourcePt, targetPt}
	}
	first := geom[0]
	last := geom[len(geom)-1]
	if greatCircleDistance(first, targetPt)+greatCircleDistance(last, sourcePt) < greatCircleDistance(first, sourcePt)+greatCircleDistance(last, targetPt) {
		return reverseLine(geom)
	}
	out := make(orb.LineString, len(geom))
	copy(out, geom)
	return out
}

// labelComponents assigns component ids by breadth-first search in node order
func (graph *StreetGraph) labelComponents() {
	component := 0
	queue := make([]int, 0)
	for start := range graph.Nodes {
		if graph.Nodes[start].Component >= 0 {
			continue
		}
		graph.Nodes[start].Component = component
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, edgeIdx := range graph.adjacency[current] {
				next := graph.Other(edgeIdx, current)
				if graph.Nodes[next].Component < 0 {
					graph.Nodes[next].Component = component
					queue = append(queue, next)
				}
			}
		}
		component++
	}
	graph.components = component
}

// NodeIndex returns arena index for given node id
func (graph *StreetGraph) NodeIndex(id osm.NodeID) (int, bool) {
	idx, ok := graph.nodeIndex[id]
	return idx, ok
}

// Node returns node by its id
func (graph *StreetGraph) Node(id osm.NodeID) (StreetNode, bool) {
	idx, ok := graph.nodeIndex[id]
	if !ok {
		return StreetNode{}, false
	}
	return graph.Nodes[idx], true
}

// Other returns index of the opposite endpoint of edge
func (graph *StreetGraph) Other(edgeIdx, nodeIdx int) int {
	edge := graph.Edges[edgeIdx]
	if edge.Source == nodeIdx {
		return edge.Target
	}
	return edge.Source
}

// EdgeBetween returns index of the edge connecting two nodes (by index)
func (graph *StreetGraph) EdgeBetween(u, v int) (int, bool) {
	for _, edgeIdx := range graph.adjacency[u] {
		if graph.Other(edgeIdx, u) == v {
			return edgeIdx, true
		}
	}
	return -1, false
}

// ComponentsNum returns number of connected components
func (graph *StreetGraph) ComponentsNum() int {
	return graph.components
}

// SameComponent checks whether two nodes (by id) are connected
func (graph *StreetGraph) SameComponent(u, v osm.NodeID) bool {
	a, okA := graph.nodeIndex[u]
	b, okB := graph.nodeIndex[v]
	if !okA || !okB {
		return false
	}
	return graph.Nodes[a].Component == graph.Nodes[b].Component
}

// Bound returns bounding box of all nodes
func (graph *StreetGraph) Bound() orb.Bound {
	return graph.bound
}

// EdgeGeometry returns geometry of edge oriented from node `from` (by index)
func (graph *StreetGraph) EdgeGeometry(edgeIdx, from int) orb.LineString {
	edge := graph.Edges[edgeIdx]
	if edge.Source == from {
		return edge.Geom
	}
	return reverseLine(edge.Geom)
}
