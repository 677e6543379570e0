package bikenet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

// CSVSource reads street records from '<dir>/<city>/<city>_<type>_nodes.csv' and '..._edges.csv'
//
// Nodes columns: osmid (or id), x (or lon), y (or lat).
// Edges columns: u (or source), v (or target), optional: length, id (or edge_id), osmid (or way_id), geom (WKT)
type CSVSource struct {
	Dir   string
	Comma rune
}

// NewCSVSource returns source with ';' separator as used by exports of this package
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir, Comma: ';'}
}

// Files returns expected file names for given city and network type
func (src *CSVSource) Files(cityID, networkType string) (string, string) {
	base := filepath.Join(src.Dir, cityID, fmt.Sprintf("%s_%s", cityID, networkType))
	return base + "_nodes.csv", base + "_edges.csv"
}

// LoadRecords implements RecordSource
func (src *CSVSource) LoadRecords(ctx context.Context, cityID, networkType string) ([]NodeRecord, []EdgeRecord, error) {
	fnameNodes, fnameEdges := src.Files(cityID, networkType)
	nodes, err := src.readNodes(fnameNodes)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, nil, &DataNotFoundError{CityID: cityID, NetworkType: networkType, Source: fnameNodes}
		}
		return nil, nil, errors.Wrap(err, "Can't read nodes")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	edges, err := src.readEdges(fnameEdges)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, nil, &DataNotFoundError{CityID: cityID, NetworkType: networkType, Source: fnameEdges}
		}
		return nil, nil, errors.Wrap(err, "Can't read edges")
	}
	return nodes, edges, nil
}

func (src *CSVSource) open(fname string) (*os.File, *csv.Reader, map[string]int, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, nil, nil, err
	}
	reader := csv.NewReader(file)
	reader.Comma = src.Comma
	if reader.Comma == 0 {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, nil, nil, errors.Wrapf(err, "Can't read header of '%s'", fname)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return file, reader, columns, nil
}

func column(columns map[string]int, names ...string) int {
	for _, name := range names {
		if idx, ok := columns[name]; ok {
			return idx
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (src *CSVSource) readNodes(fname string) ([]NodeRecord, error) {
	file, reader, columns, err := src.open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	idCol := column(columns, "osmid", "id", "node_id")
	xCol := column(columns, "x", "lon", "longitude")
	yCol := column(columns, "y", "lat", "latitude")
	if idCol < 0 || xCol < 0 || yCol < 0 {
		return nil, errors.Errorf("Nodes file '%s' must have id, x and y columns", fname)
	}
	nodes := []NodeRecord{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't read line %d", line)
		}
		id, err := strconv.ParseInt(field(row, idCol), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad node id at line %d", line)
		}
		x, err := strconv.ParseFloat(field(row, xCol), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad x at line %d", line)
		}
		y, err := strconv.ParseFloat(field(row, yCol), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad y at line %d", line)
		}
		nodes = append(nodes, NodeRecord{ID: osm.NodeID(id), Point: orb.Point{x, y}})
	}
	return nodes, nil
}

func (src *CSVSource) readEdges(fname string) ([]EdgeRecord, error) {
	file, reader, columns, err := src.open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	uCol := column(columns, "u", "source", "from_vertex_id")
	vCol := column(columns, "v", "target", "to_vertex_id")
	lengthCol := column(columns, "length", "length_meters", "weight")
	idCol := column(columns, "id", "edge_id")
	wayCol := column(columns, "osmid", "way_id", "osm_way_id")
	geomCol := column(columns, "geom", "geometry")
	if uCol < 0 || vCol < 0 {
		return nil, errors.Errorf("Edges file '%s' must have u and v columns", fname)
	}
	edges := []EdgeRecord{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't read line %d", line)
		}
		u, err := strconv.ParseInt(field(row, uCol), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad source node at line %d", line)
		}
		v, err := strconv.ParseInt(field(row, vCol), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad target node at line %d", line)
		}
		rec := EdgeRecord{Source: osm.NodeID(u), Target: osm.NodeID(v)}
		if s := field(row, lengthCol); s != "" {
			if rec.Length, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, errors.Wrapf(err, "Bad length at line %d", line)
			}
		}
		if s := field(row, idCol); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Bad edge id at line %d", line)
			}
			rec.ID = EdgeID(id)
		}
		if s := field(row, wayCol); s != "" {
			// osmnx exports lists for merged ways; keep the first one
			s = strings.Trim(strings.SplitN(s, ",", 2)[0], "[] ")
			if way, err := strconv.ParseInt(s, 10, 64); err == nil {
				rec.WayID = osm.WayID(way)
			}
		}
		if s := field(row, geomCol); s != "" {
			geom, err := wkt.UnmarshalLineString(s)
			if err != nil {
				return nil, errors.Wrapf(err, "Bad WKT geometry at line %d", line)
			}
			rec.Geom = geom
		}
		edges = append(edges, rec)
	}
	return edges, nil
}
