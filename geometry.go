package bikenet

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// CRS of every geometry exchanged by this package
const CRS = "EPSG:4326"

// GeometryKind enumerates geometry variants
type GeometryKind uint16

const (
	GEOMETRY_POINT = GeometryKind(iota + 1)
	GEOMETRY_LINESTRING
	GEOMETRY_MULTILINESTRING
	GEOMETRY_COLLECTION
	GEOMETRY_UNDEFINED = GeometryKind(0)
)

func (iotaIdx GeometryKind) String() string {
	return [...]string{"undefined", "point", "linestring", "multilinestring", "collection"}[iotaIdx]
}

// Geometry is a tagged union of the geometry kinds produced by networks
type Geometry struct {
	Kind       GeometryKind
	Point      orb.Point
	Line       orb.LineString
	MultiLine  orb.MultiLineString
	Collection []Geometry
}

func PointGeometry(pt orb.Point) Geometry {
	return Geometry{Kind: GEOMETRY_POINT, Point: pt}
}

func LineGeometry(line orb.LineString) Geometry {
	return Geometry{Kind: GEOMETRY_LINESTRING, Line: line}
}

// LinesGeometry collapses a set of lines into the narrowest kind:
// single line becomes LineString, several become MultiLineString
func LinesGeometry(lines []orb.LineString) Geometry {
	if len(lines) == 1 {
		return LineGeometry(lines[0])
	}
	mls := make(orb.MultiLineString, len(lines))
	copy(mls, lines)
	return Geometry{Kind: GEOMETRY_MULTILINESTRING, MultiLine: mls}
}

func CollectionGeometry(items []Geometry) Geometry {
	return Geometry{Kind: GEOMETRY_COLLECTION, Collection: items}
}

// Orb converts geometry to orb representation
func (g Geometry) Orb() (orb.Geometry, error) {
	switch g.Kind {
	case GEOMETRY_POINT:
		return g.Point, nil
	case GEOMETRY_LINESTRING:
		return g.Line, nil
	case GEOMETRY_MULTILINESTRING:
		return g.MultiLine, nil
	case GEOMETRY_COLLECTION:
		coll := make(orb.Collection, 0, len(g.Collection))
		for i := range g.Collection {
			item, err := g.Collection[i].Orb()
			if err != nil {
				return nil, err
			}
			coll = append(coll, item)
		}
		return coll, nil
	case GEOMETRY_UNDEFINED:
		return nil, &GeometryConversionError{Item: "geometry", Reason: "undefined kind"}
	default:
		return nil, &GeometryConversionError{Item: "geometry", Reason: fmt.Sprintf("unknown kind %d", g.Kind)}
	}
}

// GeometryFromOrb converts orb geometry to tagged union. Only kinds produced by networks are accepted
func GeometryFromOrb(og orb.Geometry) (Geometry, error) {
	switch v := og.(type) {
	case orb.Point:
		return PointGeometry(v), nil
	case orb.LineString:
		if !validLine(v) {
			return Geometry{}, &GeometryConversionError{Item: "linestring", Reason: "less than two finite points"}
		}
		return LineGeometry(v), nil
	case orb.MultiLineString:
		lines := make([]orb.LineString, 0, len(v))
		for _, line := range v {
			if !validLine(line) {
				return Geometry{}, &GeometryConversionError{Item: "multilinestring", Reason: "less than two finite points in member"}
			}
			lines = append(lines, line)
		}
		return Geometry{Kind: GEOMETRY_MULTILINESTRING, MultiLine: lines}, nil
	case orb.Collection:
		items := make([]Geometry, 0, len(v))
		for _, member := range v {
			item, err := GeometryFromOrb(member)
			if err != nil {
				return Geometry{}, err
			}
			items = append(items, item)
		}
		return CollectionGeometry(items), nil
	case nil:
		return Geometry{}, &GeometryConversionError{Item: "geometry", Reason: "empty"}
	default:
		return Geometry{}, &GeometryConversionError{Item: og.GeoJSONType(), Reason: "unsupported geometry type"}
	}
}

// WKT returns WKT representation of geometry
func (g Geometry) WKT() (string, error) {
	og, err := g.Orb()
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(og), nil
}

// GeoJSON returns GeoJSON representation of geometry
func (g Geometry) GeoJSON() (*geojson.Geometry, error) {
	switch g.Kind {
	case GEOMETRY_POINT:
		return geojson.NewPointGeometry([]float64{g.Point.Lon(), g.Point.Lat()}), nil
	case GEOMETRY_LINESTRING:
		return geojson.NewLineStringGeometry(lineCoords(g.Line)), nil
	case GEOMETRY_MULTILINESTRING:
		lines := make([][][]float64, len(g.MultiLine))
		for i := range g.MultiLine {
			lines[i] = lineCoords(g.MultiLine[i])
		}
		return geojson.NewMultiLineStringGeometry(lines...), nil
	case GEOMETRY_COLLECTION:
		items := make([]*geojson.Geometry, 0, len(g.Collection))
		for i := range g.Collection {
			item, err := g.Collection[i].GeoJSON()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return geojson.NewCollectionGeometry(items...), nil
	case GEOMETRY_UNDEFINED:
		return nil, &GeometryConversionError{Item: "geometry", Reason: "undefined kind"}
	default:
		return nil, &GeometryConversionError{Item: "geometry", Reason: fmt.Sprintf("unknown kind %d", g.Kind)}
	}
}

func lineCoords(line orb.LineString) [][]float64 {
	pts2d := make([][]float64, len(line))
	for i := range line {
		pts2d[i] = []float64{line[i].Lon(), line[i].Lat()}
	}
	return pts2d
}
