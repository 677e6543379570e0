package bikenet

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
)

func TestGreatCircleDistance(t *testing.T) {
	p1 := orb.Point{37.6417350769043, 55.751849391735284}
	p2 := orb.Point{37.668514251708984, 55.73261980350401}
	assert.InDelta(t, 2717.0, greatCircleDistance(p1, p2), 30.0)
	assert.Equal(t, 0.0, greatCircleDistance(p1, p1))
}

func TestSphericalLength(t *testing.T) {
	line := orb.LineString{{37.6417350769043, 55.751849391735284}, {37.655, 55.742}, {37.668514251708984, 55.73261980350401}}
	assert.Equal(t, 0.0, getSphericalLength(line[:1]))
	direct := greatCircleDistance(line[0], line[2])
	assert.GreaterOrEqual(t, getSphericalLength(line), direct)
}

func TestLocalFrame(t *testing.T) {
	p1 := orb.Point{13.40, 52.50}
	p2 := orb.Point{13.41, 52.51}
	frame := newLocalFrameForBound(orb.MultiPoint{p1, p2}.Bound())
	planarDist := planar.Distance(frame.project(p1), frame.project(p2))
	assert.InEpsilon(t, greatCircleDistance(p1, p2), planarDist, 0.005)
}

func TestSegmentsCross(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, p3, p4 orb.Point
		expected       bool
	}{
		{"cross", orb.Point{0, 0}, orb.Point{2, 2}, orb.Point{0, 2}, orb.Point{2, 0}, true},
		{"disjoint", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{0, 1}, orb.Point{1, 1}, false},
		{"shared endpoint", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 0}, orb.Point{1, 1}, false},
		{"collinear continuation", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 0}, orb.Point{2, 0}, false},
		{"collinear overlap from shared endpoint", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{0, 0}, orb.Point{1, 0}, true},
		{"same segment", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{2, 0}, orb.Point{0, 0}, true},
		{"touching interior", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{1, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, segmentsCross(tt.p1, tt.p2, tt.p3, tt.p4))
			assert.Equal(t, tt.expected, segmentsCross(tt.p3, tt.p4, tt.p1, tt.p2))
		})
	}
}

func TestProjectOnSegment(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{10, 0}
	assert.InDelta(t, 0.3, projectOnSegment(a, b, orb.Point{3, 5}), 1e-12)
	assert.InDelta(t, -0.1, projectOnSegment(a, b, orb.Point{-1, 0}), 1e-12)
	assert.Equal(t, 0.0, projectOnSegment(a, a, orb.Point{3, 5}))
	pt := pointOnSegmentByFraction(a, b, 0.3)
	assert.InDelta(t, 3.0, pt[0], 1e-12)
	assert.InDelta(t, 0.0, pt[1], 1e-12)
}

func TestLines(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 0}, {1, 1}}
	assert.Equal(t, orb.LineString{{1, 1}, {1, 0}, {0, 0}}, reverseLine(line))
	assert.True(t, sameLine(line, reverseLine(line)))
	assert.False(t, sameLine(line, orb.LineString{{0, 0}, {1, 1}}))
	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}, {1, 1}, {2, 1}}, appendLine(orb.LineString{{0, 0}, {1, 0}, {1, 1}}, orb.LineString{{1, 1}, {2, 1}}))
	assert.True(t, validLine(line))
	assert.False(t, validLine(line[:1]))
}
