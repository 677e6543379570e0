package bikenet

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

const (
	// overlapTolerance is max distance (meters) between collinear pieces treated as shared
	overlapTolerance = 0.5
	// minPieceLength drops slivers (meters) left by geometric difference
	minPieceLength = 0.01
)

// segmentMatcher finds one-to-one counterparts of segments in other network
type segmentMatcher struct {
	other   []Segment
	used    []bool
	byEdge  map[EdgeID][]int
	byPair  map[EdgeKey][]int
	byStart map[pointKey][]int
}

func newSegmentMatcher(other *RoutedNetwork) *segmentMatcher {
	matcher := &segmentMatcher{
		byEdge:  map[EdgeID][]int{},
		byPair:  map[EdgeKey][]int{},
		byStart: map[pointKey][]int{},
	}
	if other == nil {
		return matcher
	}
	matcher.other = other.Segments
	matcher.used = make([]bool, len(other.Segments))
	for i, seg := range other.Segments {
		if seg.EdgeID != 0 {
			matcher.byEdge[seg.EdgeID] = append(matcher.byEdge[seg.EdgeID], i)
		}
		if seg.Source != 0 && seg.Target != 0 {
			key := newEdgeKey(seg.Source, seg.Target)
			matcher.byPair[key] = append(matcher.byPair[key], i)
		}
		if validLine(seg.Geom) {
			// indexed by both ends so either orientation is found
			first := newPointKey(seg.Geom[0])
			last := newPointKey(seg.Geom[len(seg.Geom)-1])
			matcher.byStart[first] = append(matcher.byStart[first], i)
			if last != first {
				matcher.byStart[last] = append(matcher.byStart[last], i)
			}
		}
	}
	return matcher
}

// match returns index of unused counterpart with the same geometry. Candidates sharing street
// edge id or endpoint pair are tried first
func (matcher *segmentMatcher) match(seg Segment) (int, bool) {
	if !validLine(seg.Geom) {
		return -1, false
	}
	take := func(candidates []int) (int, bool) {
		for _, idx := range candidates {
			if matcher.used[idx] || !sameLine(seg.Geom, matcher.other[idx].Geom) {
				continue
			}
			matcher.used[idx] = true
			return idx, true
		}
		return -1, false
	}
	if seg.EdgeID != 0 {
		if idx, ok := take(matcher.byEdge[seg.EdgeID]); ok {
			return idx, true
		}
	}
	if seg.Source != 0 && seg.Target != 0 {
		if idx, ok := take(matcher.byPair[newEdgeKey(seg.Source, seg.Target)]); ok {
			return idx, true
		}
	}
	return take(matcher.byStart[newPointKey(seg.Geom[0])])
}

// Intersect returns segments of a which have a counterpart of equal geometry in b
func Intersect(a, b *RoutedNetwork) (*RoutedNetwork, []error) {
	result := &RoutedNetwork{Segments: []Segment{}}
	if a.Empty() || b.Empty() {
		return result, nil
	}
	var errs []error
	matcher := newSegmentMatcher(b)
	for i, seg := range a.Segments {
		if !validLine(seg.Geom) {
			errs = append(errs, &GeometryConversionError{Item: segmentName(i, seg), Reason: "less than two finite points"})
			continue
		}
		if _, ok := matcher.match(seg); ok {
			result.Segments = append(result.Segments, seg)
		}
	}
	return result, errs
}

// Subtract returns a with geometry shared with b removed. Segments of equal geometry vanish
// entirely, others lose their collinear overlaps with b and keep the remaining pieces
func Subtract(a, b *RoutedNetwork) (*RoutedNetwork, []error) {
	result := &RoutedNetwork{Segments: []Segment{}}
	if a.Empty() {
		return result, nil
	}
	var errs []error
	if b.Empty() {
		for i, seg := range a.Segments {
			if !validLine(seg.Geom) {
				errs = append(errs, &GeometryConversionError{Item: segmentName(i, seg), Reason: "less than two finite points"})
				continue
			}
			result.Segments = append(result.Segments, seg)
		}
		return result, errs
	}

	bound := networkBound(a).Union(networkBound(b))
	frame := newLocalFrameForBound(bound)
	index := newPieceIndex(b, frame)
	matcher := newSegmentMatcher(b)
	for i, seg := range a.Segments {
		if !validLine(seg.Geom) {
			errs = append(errs, &GeometryConversionError{Item: segmentName(i, seg), Reason: "less than two finite points"})
			continue
		}
		if _, ok := matcher.match(seg); ok {
			continue
		}
		for _, part := range index.difference(seg.Geom) {
			length := getSphericalLength(part)
			if length < minPieceLength {
				continue
			}
			out := Segment{EdgeID: seg.EdgeID, Length: length, Geom: part}
			if len(part) == len(seg.Geom) && sameLine(part, seg.Geom) {
				out.Source, out.Target, out.Length = seg.Source, seg.Target, seg.Length
			}
			result.Segments = append(result.Segments, out)
		}
	}
	return result, errs
}

func networkBound(net *RoutedNetwork) orb.Bound {
	first := true
	bound := orb.Bound{}
	for _, seg := range net.Segments {
		if !validLine(seg.Geom) {
			continue
		}
		if first {
			bound = seg.Geom.Bound()
			first = false
			continue
		}
		bound = bound.Union(seg.Geom.Bound())
	}
	return bound
}

// piece is a straight projected part of a segment stored in quadtree by its midpoint
type piece struct {
	a    orb.Point
	b    orb.Point
	half float64
}

func (p piece) Point() orb.Point {
	return orb.Point{(p.a[0] + p.b[0]) / 2, (p.a[1] + p.b[1]) / 2}
}

type pieceIndex struct {
	frame   localFrame
	tree    *quadtree.Quadtree
	maxHalf float64
}

func newPieceIndex(net *RoutedNetwork, frame localFrame) *pieceIndex {
	pieces := []piece{}
	var bound orb.Bound
	for _, seg := range net.Segments {
		if !validLine(seg.Geom) {
			continue
		}
		line := frame.projectLine(seg.Geom)
		for i := 1; i < len(line); i++ {
			p := piece{a: line[i-1], b: line[i], half: planar.Distance(line[i-1], line[i]) / 2}
			if len(pieces) == 0 {
				bound = p.Point().Bound()
			} else {
				bound = bound.Extend(p.Point())
			}
			pieces = append(pieces, p)
		}
	}
	index := &pieceIndex{frame: frame, tree: quadtree.New(bound.Pad(1))}
	for _, p := range pieces {
		// Add only fails on points outside bound
		_ = index.tree.Add(p)
		if p.half > index.maxHalf {
			index.maxHalf = p.half
		}
	}
	return index
}

type interval struct {
	from float64
	to   float64
}

// difference splits geo line into pieces not covered by indexed geometry
func (index *pieceIndex) difference(geom orb.LineString) []orb.LineString {
	line := index.frame.projectLine(geom)
	pieces := []orb.LineString{}
	var current orb.LineString
	flush := func() {
		if len(current) >= 2 {
			pieces = append(pieces, current)
		}
		current = nil
	}
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		kept := complement(index.overlaps(a, b))
		for _, iv := range kept {
			start := pointOnSegmentByFraction(geom[i-1], geom[i], iv.from)
			end := pointOnSegmentByFraction(geom[i-1], geom[i], iv.to)
			if iv.from > 0 || len(current) == 0 {
				flush()
				current = orb.LineString{start}
			}
			current = append(current, end)
			if iv.to < 1 {
				flush()
			}
		}
		if len(kept) == 0 {
			flush()
		}
	}
	flush()
	return pieces
}

// overlaps returns merged parameter intervals of segment a-b shared with indexed collinear pieces
func (index *pieceIndex) overlaps(a, b orb.Point) []interval {
	length := planar.Distance(a, b)
	if length == 0 {
		return nil
	}
	query := orb.LineString{a, b}.Bound().Pad(index.maxHalf + overlapTolerance)
	found := index.tree.InBound(nil, query)
	intervals := make([]interval, 0, len(found))
	for _, ptr := range found {
		p := ptr.(piece)
		if distanceToLine(a, b, p.a) > overlapTolerance || distanceToLine(a, b, p.b) > overlapTolerance {
			continue
		}
		t1 := projectOnSegment(a, b, p.a)
		t2 := projectOnSegment(a, b, p.b)
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		t1 = math.Max(t1, 0)
		t2 = math.Min(t2, 1)
		if (t2-t1)*length <= minPieceLength {
			continue
		}
		intervals = append(intervals, interval{t1, t2})
	}
	return mergeIntervals(intervals)
}

// distanceToLine is distance from p to infinite line through a and b
func distanceToLine(a, b, p orb.Point) float64 {
	length := planar.Distance(a, b)
	if length == 0 {
		return planar.Distance(a, p)
	}
	return math.Abs((b[0]-a[0])*(p[1]-a[1])-(b[1]-a[1])*(p[0]-a[0])) / length
}

func mergeIntervals(intervals []interval) []interval {
	if len(intervals) == 0 {
		return nil
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].from < intervals[j].from
	})
	merged := []interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.from <= last.to {
			last.to = math.Max(last.to, iv.to)
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// complement returns parts of [0, 1] not covered by merged intervals
func complement(covered []interval) []interval {
	kept := []interval{}
	pos := 0.0
	for _, iv := range covered {
		if iv.from > pos {
			kept = append(kept, interval{pos, iv.from})
		}
		pos = math.Max(pos, iv.to)
	}
	if pos < 1 {
		kept = append(kept, interval{pos, 1})
	}
	return kept
}
