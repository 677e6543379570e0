package bikenet

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

const (
	// DEFAULT_SNAP_THRESHOLD is max distance (meters) between a POI and its street node
	DEFAULT_SNAP_THRESHOLD = 500.0
)

// POISet is an ordered, duplicate-free set of street node ids. First occurrence wins
type POISet []osm.NodeID

// NewPOISet collapses duplicates keeping first occurrence order
func NewPOISet(ids []osm.NodeID) POISet {
	seen := make(map[osm.NodeID]struct{}, len(ids))
	set := make(POISet, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	return set
}

// Contains checks whether node id is in set
func (set POISet) Contains(id osm.NodeID) bool {
	for _, poi := range set {
		if poi == id {
			return true
		}
	}
	return false
}

// OnGraph keeps POIs which exist in given street graph and returns their node indices as well
func (set POISet) OnGraph(graph *StreetGraph) (POISet, []int) {
	kept := make(POISet, 0, len(set))
	indices := make([]int, 0, len(set))
	for _, id := range set {
		if idx, ok := graph.NodeIndex(id); ok {
			kept = append(kept, id)
			indices = append(indices, idx)
		}
	}
	return kept, indices
}

// ReadPOIs reads one node id per line. Blank lines are ignored
func ReadPOIs(r io.Reader) (POISet, error) {
	scanner := bufio.NewScanner(r)
	ids := []osm.NodeID{}
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad POI node id at line %d", line)
		}
		ids = append(ids, osm.NodeID(id))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't scan POI list")
	}
	return NewPOISet(ids), nil
}

// LoadPOIFile reads POI node ids from file. Missing file is reported as *DataNotFoundError
func LoadPOIFile(fname, cityID string) (POISet, error) {
	file, err := os.Open(fname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &DataNotFoundError{CityID: cityID, NetworkType: "poi", Source: fname}
		}
		return nil, errors.Wrap(err, "Can't open POI file")
	}
	defer file.Close()
	return ReadPOIs(file)
}

// WritePOIs writes one node id per line
func WritePOIs(w io.Writer, set POISet) error {
	buf := bufio.NewWriter(w)
	for _, id := range set {
		if _, err := buf.WriteString(strconv.FormatInt(int64(id), 10) + "\n"); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// nodePointer adapts street node for quadtree; pt is projected
type nodePointer struct {
	idx int
	pt  orb.Point
}

func (np nodePointer) Point() orb.Point {
	return np.pt
}

// Snapper finds nearest street node for arbitrary locations
type Snapper struct {
	graph     *StreetGraph
	frame     localFrame
	tree      *quadtree.Quadtree
	threshold float64
}

// NewSnapper indexes all street nodes. Non-positive threshold means DEFAULT_SNAP_THRESHOLD
func NewSnapper(graph *StreetGraph, threshold float64) *Snapper {
	if threshold <= 0 {
		threshold = DEFAULT_SNAP_THRESHOLD
	}
	frame := newLocalFrameForBound(graph.Bound())
	projected := make([]orb.Point, len(graph.Nodes))
	var bound orb.Bound
	for i := range graph.Nodes {
		projected[i] = frame.project(graph.Nodes[i].Point)
		if i == 0 {
			bound = projected[i].Bound()
		} else {
			bound = bound.Extend(projected[i])
		}
	}
	tree := quadtree.New(bound.Pad(1))
	for i := range projected {
		// Add only fails on points outside bound
		_ = tree.Add(nodePointer{idx: i, pt: projected[i]})
	}
	return &Snapper{graph: graph, frame: frame, tree: tree, threshold: threshold}
}

// Snap returns nearest node within threshold. Equidistant candidates resolve to the lowest node id
func (snapper *Snapper) Snap(pt orb.Point) (osm.NodeID, bool) {
	if len(snapper.graph.Nodes) == 0 {
		return 0, false
	}
	candidates := snapper.tree.KNearest(nil, snapper.frame.project(pt), 4)
	bestIdx := -1
	bestDist := 0.0
	for _, c := range candidates {
		np := c.(nodePointer)
		d := greatCircleDistance(pt, snapper.graph.Nodes[np.idx].Point)
		if bestIdx < 0 || d < bestDist || (d == bestDist && snapper.graph.Nodes[np.idx].ID < snapper.graph.Nodes[bestIdx].ID) {
			bestIdx = np.idx
			bestDist = d
		}
	}
	if bestIdx < 0 || bestDist > snapper.threshold {
		return 0, false
	}
	return snapper.graph.Nodes[bestIdx].ID, true
}

// CategoryResult is the outcome of snapping one POI category
type CategoryResult struct {
	Category string
	POIs     POISet
	Dropped  int
	Err      error
}

// SnapCategories snaps every category independently. A failing category does not stop the others;
// its error is kept in the result. Categories are processed in lexical order; the union keeps that order
func (snapper *Snapper) SnapCategories(categories map[string][]orb.Point) (POISet, []CategoryResult) {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CategoryResult, 0, len(names))
	union := []osm.NodeID{}
	for _, name := range names {
		points := categories[name]
		res := CategoryResult{Category: name}
		if len(points) == 0 {
			res.Err = errors.Errorf("No POIs in category '%s'", name)
			results = append(results, res)
			continue
		}
		ids := make([]osm.NodeID, 0, len(points))
		for _, pt := range points {
			if !validLine(orb.LineString{pt, pt}) {
				res.Dropped++
				continue
			}
			id, ok := snapper.Snap(pt)
			if !ok {
				res.Dropped++
				continue
			}
			ids = append(ids, id)
		}
		res.POIs = NewPOISet(ids)
		if len(res.POIs) == 0 {
			res.Err = errors.Errorf("No POIs of category '%s' within %.0f m of the street graph", name, snapper.threshold)
		}
		union = append(union, res.POIs...)
		results = append(results, res)
	}
	return NewPOISet(union), results
}
