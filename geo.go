package bikenet

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	earthR = 20037508.34
)

func epsg4326To3857(lon, lat float64) (float64, float64) {
	x := lon * earthR / 180
	y := math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	y = y * earthR / 180
	return x, y
}

func pointToEuclidean(pt orb.Point) orb.Point {
	euclideanX, euclideanY := epsg4326To3857(pt.Lon(), pt.Lat())
	return orb.Point{euclideanX, euclideanY}
}

// localFrame is a Web Mercator projection rescaled by the cosine of a reference latitude,
// so that distances near that latitude come out in meters
type localFrame struct {
	scale float64
}

func newLocalFrame(refLat float64) localFrame {
	return localFrame{scale: math.Cos(degreesToRadians(refLat))}
}

// newLocalFrameForBound picks the reference latitude in the middle of bound
func newLocalFrameForBound(bound orb.Bound) localFrame {
	return newLocalFrame(bound.Center().Lat())
}

func (f localFrame) project(pt orb.Point) orb.Point {
	e := pointToEuclidean(pt)
	return orb.Point{e[0] * f.scale, e[1] * f.scale}
}

func (f localFrame) projectLine(line orb.LineString) orb.LineString {
	newLine := make(orb.LineString, len(line))
	for i, pt := range line {
		newLine[i] = f.project(pt)
	}
	return newLine
}
