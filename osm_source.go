package bikenet

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OSMScanner is common part of PBF and XML scanners
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// osmWay is a highway way kept after the first scan
type osmWay struct {
	ID    osm.WayID
	Nodes []osm.NodeID
	Tags  osm.Tags
}

// osmExtract is the part of an OSM file needed to build street records of any network type
type osmExtract struct {
	cityID string
	ways   []osmWay
	nodes  map[osm.NodeID]orb.Point
}

// OSMSource builds street records straight from '<dir>/<city>/<city>.osm.pbf' (or '<city>.osm').
// Network types carall, biketrack and bikeable are selected by way tags. The '_simplified'
// variant splits ways at crossings only, the plain one at every way node
type OSMSource struct {
	dir     string
	procs   int
	logger  *zap.Logger
	mu      sync.Mutex
	extract *osmExtract
}

// NewOSMSource returns source over given directory
func NewOSMSource(dir string, options ...func(*OSMSource)) *OSMSource {
	src := &OSMSource{
		dir:    dir,
		procs:  4,
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(src)
	}
	return src
}

// WithOSMProcs sets number of PBF decoding goroutines
func WithOSMProcs(procs int) func(*OSMSource) {
	return func(src *OSMSource) {
		if procs > 0 {
			src.procs = procs
		}
	}
}

func WithOSMLogger(logger *zap.Logger) func(*OSMSource) {
	return func(src *OSMSource) {
		if logger != nil {
			src.logger = logger
		}
	}
}

// File returns existing OSM file of the city, PBF is preferred
func (src *OSMSource) File(cityID string) (string, bool) {
	for _, ext := range []string{".osm.pbf", ".pbf", ".osm", ".xml"} {
		fname := filepath.Join(src.dir, cityID, cityID+ext)
		if _, err := os.Stat(fname); err == nil {
			return fname, true
		}
	}
	return "", false
}

// LoadRecords implements RecordSource
func (src *OSMSource) LoadRecords(ctx context.Context, cityID, networkType string) ([]NodeRecord, []EdgeRecord, error) {
	base, simplified := strings.CutSuffix(networkType, simplifiedSuffix)
	filter, ok := wayFilter(base)
	if !ok {
		return nil, nil, &DataNotFoundError{CityID: cityID, NetworkType: networkType, Source: "no OSM tag filter"}
	}
	extract, err := src.load(ctx, cityID)
	if err != nil {
		return nil, nil, err
	}

	ways := make([]osmWay, 0)
	useCount := make(map[osm.NodeID]int)
	for _, way := range extract.ways {
		if !filter(way.Tags) {
			continue
		}
		if missing, ok := extract.missingNode(way); ok {
			src.logger.Warn("way skipped", zap.Int64("way_id", int64(way.ID)), zap.Int64("missing_node", int64(missing)))
			continue
		}
		ways = append(ways, way)
		for i, nodeID := range way.Nodes {
			if i == 0 || i == len(way.Nodes)-1 {
				useCount[nodeID] += 2
			} else {
				useCount[nodeID]++
			}
		}
	}
	if len(ways) == 0 {
		return nil, nil, &DataNotFoundError{CityID: cityID, NetworkType: networkType, Source: "no matching OSM ways"}
	}

	edges := []EdgeRecord{}
	endpoints := make(map[osm.NodeID]struct{})
	for _, way := range ways {
		start := 0
		geom := orb.LineString{extract.nodes[way.Nodes[0]]}
		for i := 1; i < len(way.Nodes); i++ {
			nodeID := way.Nodes[i]
			geom = append(geom, extract.nodes[nodeID])
			if simplified && useCount[nodeID] < 2 && i != len(way.Nodes)-1 {
				continue
			}
			edges = append(edges, EdgeRecord{
				ID:     wayPieceID(way.ID, start),
				WayID:  way.ID,
				Source: way.Nodes[start],
				Target: nodeID,
				Geom:   geom,
			})
			endpoints[way.Nodes[start]] = struct{}{}
			endpoints[nodeID] = struct{}{}
			start = i
			geom = orb.LineString{extract.nodes[nodeID]}
		}
	}
	nodes := make([]NodeRecord, 0, len(endpoints))
	for nodeID := range endpoints {
		nodes = append(nodes, NodeRecord{ID: nodeID, Point: extract.nodes[nodeID]})
	}
	src.logger.Debug("OSM records prepared",
		zap.String("city", cityID),
		zap.String("network_type", networkType),
		zap.Int("ways", len(ways)),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)
	return nodes, edges, nil
}

// wayPieceID numbers pieces of a way by position of their first node, so
// the same street piece has the same id in every network type
func wayPieceID(wayID osm.WayID, start int) EdgeID {
	return EdgeID(int64(wayID)<<16 | int64(start&0xffff))
}

func (extract *osmExtract) missingNode(way osmWay) (osm.NodeID, bool) {
	for _, nodeID := range way.Nodes {
		if _, ok := extract.nodes[nodeID]; !ok {
			return nodeID, true
		}
	}
	return 0, false
}

// load returns extract of the city, the last one is kept for further network types
func (src *OSMSource) load(ctx context.Context, cityID string) (*osmExtract, error) {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.extract != nil && src.extract.cityID == cityID {
		return src.extract, nil
	}
	fname, ok := src.File(cityID)
	if !ok {
		return nil, &DataNotFoundError{CityID: cityID, NetworkType: "osm", Source: filepath.Join(src.dir, cityID)}
	}
	extract, err := src.readOSM(ctx, fname)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse OSM file '%s'", fname)
	}
	extract.cityID = cityID
	src.extract = extract
	return extract, nil
}

func (src *OSMSource) scanner(ctx context.Context, fname string, file io.Reader) (OSMScanner, error) {
	switch {
	case strings.HasSuffix(fname, ".pbf"):
		return osmpbf.New(ctx, file, src.procs), nil
	case strings.HasSuffix(fname, ".osm"), strings.HasSuffix(fname, ".xml"):
		return osmxml.New(ctx, file), nil
	default:
		return nil, fmt.Errorf("File extension '%s' for file '%s' is not handled yet", filepath.Ext(fname), fname)
	}
}

// readOSM scans ways with 'highway' tag first and then coordinates of their nodes
func (src *OSMSource) readOSM(ctx context.Context, fname string) (*osmExtract, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	st := time.Now()
	extract := &osmExtract{nodes: make(map[osm.NodeID]orb.Point)}
	nodesSeen := make(map[osm.NodeID]struct{})
	{
		scannerWays, err := src.scanner(ctx, fname, file)
		if err != nil {
			return nil, err
		}
		defer scannerWays.Close()
		for scannerWays.Scan() {
			obj := scannerWays.Object()
			if obj.ObjectID().Type() != osm.TypeWay {
				continue
			}
			way := obj.(*osm.Way)
			if way.Tags.Find("highway") == "" || len(way.Nodes) < 2 {
				continue
			}
			prepared := osmWay{
				ID:    way.ID,
				Nodes: make([]osm.NodeID, 0, len(way.Nodes)),
				Tags:  make(osm.Tags, len(way.Tags)),
			}
			copy(prepared.Tags, way.Tags)
			for _, node := range way.Nodes {
				nodesSeen[node.ID] = struct{}{}
				prepared.Nodes = append(prepared.Nodes, node.ID)
			}
			extract.ways = append(extract.ways, prepared)
		}
		if err := scannerWays.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on ways")
		}
	}
	src.logger.Debug("OSM ways scanned", zap.String("file", fname), zap.Int("ways", len(extract.ways)), zap.Duration("took", time.Since(st)))

	// Seek file to start
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	st = time.Now()
	{
		scannerNodes, err := src.scanner(ctx, fname, file)
		if err != nil {
			return nil, err
		}
		defer scannerNodes.Close()
		for scannerNodes.Scan() {
			obj := scannerNodes.Object()
			if obj.ObjectID().Type() != osm.TypeNode {
				continue
			}
			node := obj.(*osm.Node)
			if _, ok := nodesSeen[node.ID]; ok {
				delete(nodesSeen, node.ID)
				extract.nodes[node.ID] = orb.Point{node.Lon, node.Lat}
			}
		}
		if err := scannerNodes.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on nodes")
		}
	}
	src.logger.Debug("OSM nodes scanned", zap.String("file", fname), zap.Int("nodes", len(extract.nodes)), zap.Duration("took", time.Since(st)))
	return extract, nil
}
