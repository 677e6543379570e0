package bikenet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	pi180 = math.Pi / 180.0
	// coordinates closer than this (degrees) are considered equal
	coordEpsilon = 1e-7
	// tolerance for planar orientation tests (projected meters)
	planarEpsilon = 1e-6
)

// degreesToRadians deg = r * pi / 180
func degreesToRadians(d float64) float64 {
	return d * pi180
}

// greatCircleDistance returns distance between two geo-points (meters)
func greatCircleDistance(p, q orb.Point) float64 {
	return geo.DistanceHaversine(p, q)
}

// getSphericalLength returns length for given line (meters)
func getSphericalLength(line orb.LineString) float64 {
	if len(line) < 2 {
		return 0
	}
	return geo.LengthHaversine(line)
}

// samePoint checks whether two geo-points coincide up to coordEpsilon
func samePoint(p, q orb.Point) bool {
	return math.Abs(p[0]-q[0]) <= coordEpsilon && math.Abs(p[1]-q[1]) <= coordEpsilon
}

// orientation returns sign of cross product (q - p) x (r - p)
func orientation(p, q, r orb.Point) int {
	v := (q[0]-p[0])*(r[1]-p[1]) - (q[1]-p[1])*(r[0]-p[0])
	if v > planarEpsilon {
		return 1
	}
	if v < -planarEpsilon {
		return -1
	}
	return 0
}

// onSegment checks whether collinear point r lies within bounding box of segment p-q
func onSegment(p, q, r orb.Point) bool {
	return r[0] <= math.Max(p[0], q[0])+planarEpsilon && r[0] >= math.Min(p[0], q[0])-planarEpsilon &&
		r[1] <= math.Max(p[1], q[1])+planarEpsilon && r[1] >= math.Min(p[1], q[1])-planarEpsilon
}

// segmentsCross checks if segments p1-p2 and p3-p4 cross each other
// Segments touching at a shared endpoint do not cross; collinear overlapping segments do
// Note: Euclidean space
func segmentsCross(p1, p2, p3, p4 orb.Point) bool {
	shared := 0
	if p1 == p3 || p1 == p4 {
		shared++
	}
	if p2 == p3 || p2 == p4 {
		shared++
	}
	o1 := orientation(p1, p2, p3)
	o2 := orientation(p1, p2, p4)
	o3 := orientation(p3, p4, p1)
	o4 := orientation(p3, p4, p2)
	if shared > 0 {
		// Only a collinear overlap beyond the shared endpoint counts
		if o1 != 0 || o2 != 0 {
			return false
		}
		if shared == 2 {
			return true
		}
		var a, b, c orb.Point // a is shared, b is the other end of first segment, c of second
		switch {
		case p1 == p3:
			a, b, c = p1, p2, p4
		case p1 == p4:
			a, b, c = p1, p2, p3
		case p2 == p3:
			a, b, c = p2, p1, p4
		default:
			a, b, c = p2, p1, p3
		}
		// Overlap iff both other ends are on the same side of the shared point
		return (b[0]-a[0])*(c[0]-a[0])+(b[1]-a[1])*(c[1]-a[1]) > 0
	}
	if o1 != o2 && o3 != o4 && o1 != 0 && o2 != 0 && o3 != 0 && o4 != 0 {
		return true
	}
	if o1 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if o2 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	if o3 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if o4 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	return false
}

// projectOnSegment returns fraction of point p projected onto segment a-b (not clamped)
func projectOnSegment(a, b, p orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return 0
	}
	return ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
}

// pointOnSegmentByFraction returns a point on given segment using fraction of its length
func pointOnSegmentByFraction(p, q orb.Point, fraction float64) orb.Point {
	return orb.Point{
		(1-fraction)*p[0] + (fraction * q[0]),
		(1-fraction)*p[1] + (fraction * q[1]),
	}
}

// reverseLine reverses order of points in given line. Returns new slice
func reverseLine(pts orb.LineString) orb.LineString {
	inputLen := len(pts)
	output := make(orb.LineString, inputLen)
	for i, n := range pts {
		j := inputLen - i - 1
		output[j] = n
	}
	return output
}

// appendLine appends next to line skipping duplicated joint point
func appendLine(line, next orb.LineString) orb.LineString {
	if len(next) == 0 {
		return line
	}
	if len(line) > 0 && samePoint(line[len(line)-1], next[0]) {
		next = next[1:]
	}
	return append(line, next...)
}

// validLine checks that line has at least two points and finite coordinates
func validLine(line orb.LineString) bool {
	if len(line) < 2 {
		return false
	}
	for _, pt := range line {
		if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			return false
		}
	}
	return true
}

// sameLine checks whether two lines have the same vertices in either orientation
func sameLine(l1, l2 orb.LineString) bool {
	if len(l1) != len(l2) {
		return false
	}
	forward := true
	for i := range l1 {
		if !samePoint(l1[i], l2[i]) {
			forward = false
			break
		}
	}
	if forward {
		return true
	}
	n := len(l1)
	for i := range l1 {
		if !samePoint(l1[i], l2[n-1-i]) {
			return false
		}
	}
	return true
}
