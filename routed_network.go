package bikenet

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Segment is a piece of street consumed by routed network.
// After overlap resolution Source/Target may be zero when the piece does not end at street nodes
type Segment struct {
	EdgeID EdgeID
	Source osm.NodeID
	Target osm.NodeID
	Length float64
	Geom   orb.LineString
}

// Route is a routed abstract edge
type Route struct {
	U      osm.NodeID
	V      osm.NodeID
	Edges  []EdgeID
	Geom   orb.LineString
	Length float64
}

// RoutedNode is a network vertex which must be present even without incident segments (POI)
type RoutedNode struct {
	ID    osm.NodeID
	Point orb.Point
}

// RoutedNetwork is a network realized on streets. Every street edge appears in Segments at most once
type RoutedNetwork struct {
	Nodes    []RoutedNode
	Segments []Segment
	Routes   []Route
}

// Length sums segment lengths
func (net *RoutedNetwork) Length() float64 {
	if net == nil {
		return 0
	}
	total := 0.0
	for _, seg := range net.Segments {
		total += seg.Length
	}
	return total
}

// Empty checks whether network has no segments
func (net *RoutedNetwork) Empty() bool {
	return net == nil || len(net.Segments) == 0
}

// Vacant checks whether network has neither segments nor nodes
func (net *RoutedNetwork) Vacant() bool {
	return net.Empty() && (net == nil || len(net.Nodes) == 0)
}

// Geometry returns segments as LineString/MultiLineString; empty network gives an empty collection
func (net *RoutedNetwork) Geometry() Geometry {
	if net.Empty() {
		return CollectionGeometry(nil)
	}
	lines := make([]orb.LineString, len(net.Segments))
	for i := range net.Segments {
		lines[i] = net.Segments[i].Geom
	}
	return LinesGeometry(lines)
}

// NewRoutedNetworkFromGraph turns every street edge into a segment (existing infrastructure)
func NewRoutedNetworkFromGraph(graph *StreetGraph) *RoutedNetwork {
	net := &RoutedNetwork{Segments: make([]Segment, len(graph.Edges))}
	for i, edge := range graph.Edges {
		net.Segments[i] = Segment{
			EdgeID: edge.ID,
			Source: graph.Nodes[edge.Source].ID,
			Target: graph.Nodes[edge.Target].ID,
			Length: edge.Length,
			Geom:   edge.Geom,
		}
	}
	return net
}

// pointKey identifies network vertex by coordinates rounded to coordEpsilon
type pointKey struct {
	x int64
	y int64
}

func newPointKey(pt orb.Point) pointKey {
	return pointKey{
		x: int64(math.Round(pt[0] / coordEpsilon)),
		y: int64(math.Round(pt[1] / coordEpsilon)),
	}
}

// netGraph builds metric graph of segments; vertices are segment endpoints matched by coordinates.
// Malformed segments are skipped and reported
func (net *RoutedNetwork) netGraph() (*netGraph, map[pointKey]int, []error) {
	index := map[pointKey]int{}
	points := []orb.Point{}
	vertex := func(pt orb.Point) int {
		key := newPointKey(pt)
		if idx, ok := index[key]; ok {
			return idx
		}
		index[key] = len(points)
		points = append(points, pt)
		return len(points) - 1
	}
	type arc struct {
		u, v int
		w    float64
	}
	for _, node := range net.Nodes {
		vertex(node.Point)
	}
	arcs := make([]arc, 0, len(net.Segments))
	var errs []error
	for i, seg := range net.Segments {
		if !validLine(seg.Geom) {
			errs = append(errs, &GeometryConversionError{Item: segmentName(i, seg), Reason: "less than two finite points"})
			continue
		}
		u := vertex(seg.Geom[0])
		v := vertex(seg.Geom[len(seg.Geom)-1])
		w := seg.Length
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			w = getSphericalLength(seg.Geom)
		}
		arcs = append(arcs, arc{u, v, w})
	}
	graph := newNetGraph(points)
	for _, a := range arcs {
		graph.addEdge(a.u, a.v, a.w)
	}
	return graph, index, errs
}

func segmentName(i int, seg Segment) string {
	return fmt.Sprintf("segment #%d (edge %d)", i, seg.EdgeID)
}
