package bikenet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// cellsPerBuffer is raster resolution of coverage: cell size is buffer / cellsPerBuffer
const cellsPerBuffer = 5

type cellKey struct {
	x int64
	y int64
}

type planarSegment struct {
	a orb.Point
	b orb.Point
}

// segmentBuffers is a rasterized union of buffers around routed segments in local metric frame
type segmentBuffers struct {
	frame    localFrame
	radius   float64
	cell     float64
	covered  map[cellKey]struct{}
	buckets  map[cellKey][]planarSegment
	segments int
}

func newSegmentBuffers(net *RoutedNetwork, frame localFrame, radius float64) *segmentBuffers {
	buffers := &segmentBuffers{
		frame:   frame,
		radius:  radius,
		cell:    radius / cellsPerBuffer,
		covered: make(map[cellKey]struct{}),
		buckets: make(map[cellKey][]planarSegment),
	}
	for _, seg := range net.Segments {
		if !validLine(seg.Geom) {
			continue
		}
		line := frame.projectLine(seg.Geom)
		for i := 1; i < len(line); i++ {
			buffers.add(planarSegment{a: line[i-1], b: line[i]})
		}
	}
	return buffers
}

func (buffers *segmentBuffers) add(seg planarSegment) {
	buffers.segments++
	bound := orb.LineString{seg.a, seg.b}.Bound()
	// raster cells whose centers are within radius
	minX := int64(math.Floor((bound.Min[0] - buffers.radius) / buffers.cell))
	maxX := int64(math.Floor((bound.Max[0] + buffers.radius) / buffers.cell))
	minY := int64(math.Floor((bound.Min[1] - buffers.radius) / buffers.cell))
	maxY := int64(math.Floor((bound.Max[1] + buffers.radius) / buffers.cell))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			key := cellKey{x, y}
			if _, ok := buffers.covered[key]; ok {
				continue
			}
			center := orb.Point{(float64(x) + 0.5) * buffers.cell, (float64(y) + 0.5) * buffers.cell}
			if planar.DistanceFromSegment(seg.a, seg.b, center) <= buffers.radius {
				buffers.covered[key] = struct{}{}
			}
		}
	}
	// coarse buckets of radius size for point queries
	bMinX := int64(math.Floor(bound.Min[0] / buffers.radius))
	bMaxX := int64(math.Floor(bound.Max[0] / buffers.radius))
	bMinY := int64(math.Floor(bound.Min[1] / buffers.radius))
	bMaxY := int64(math.Floor(bound.Max[1] / buffers.radius))
	for x := bMinX; x <= bMaxX; x++ {
		for y := bMinY; y <= bMaxY; y++ {
			key := cellKey{x, y}
			buffers.buckets[key] = append(buffers.buckets[key], seg)
		}
	}
}

// coverage returns covered share of projected reference polygon, capped to 1
func (buffers *segmentBuffers) coverage(reference orb.Polygon) float64 {
	area := math.Abs(planar.Area(reference))
	if area == 0 || len(buffers.covered) == 0 {
		return 0
	}
	bound := reference.Bound()
	inside := 0
	for key := range buffers.covered {
		center := orb.Point{(float64(key.x) + 0.5) * buffers.cell, (float64(key.y) + 0.5) * buffers.cell}
		if !bound.Contains(center) {
			continue
		}
		if planar.PolygonContains(reference, center) {
			inside++
		}
	}
	share := float64(inside) * buffers.cell * buffers.cell / area
	return math.Min(share, 1)
}

// within checks whether geo-point lies within radius of any segment
func (buffers *segmentBuffers) within(pt orb.Point) bool {
	projected := buffers.frame.project(pt)
	bx := int64(math.Floor(projected[0] / buffers.radius))
	by := int64(math.Floor(projected[1] / buffers.radius))
	for x := bx - 1; x <= bx+1; x++ {
		for y := by - 1; y <= by+1; y++ {
			for _, seg := range buffers.buckets[cellKey{x, y}] {
				if planar.DistanceFromSegment(seg.a, seg.b, projected) <= buffers.radius {
					return true
				}
			}
		}
	}
	return false
}

// share returns fraction of given geo-points within radius of the network
func (buffers *segmentBuffers) share(points []orb.Point) float64 {
	if len(points) == 0 || buffers.segments == 0 {
		return 0
	}
	covered := 0
	for _, pt := range points {
		if buffers.within(pt) {
			covered++
		}
	}
	return float64(covered) / float64(len(points))
}
