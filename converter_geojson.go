package bikenet

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"
)

// NewFeatureCollection returns empty collection tagged with named CRS member
func NewFeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.CRS = map[string]interface{}{
		"type": "name",
		"properties": map[string]interface{}{
			"name": "urn:ogc:def:crs:" + CRS,
		},
	}
	return fc
}

// PrepareGeoJSONFeature returns feature for geometry with given properties
func PrepareGeoJSONFeature(g Geometry, properties map[string]interface{}) (*geojson.Feature, error) {
	geom, err := g.GeoJSON()
	if err != nil {
		return nil, err
	}
	feature := geojson.NewFeature(geom)
	for k, v := range properties {
		feature.SetProperty(k, v)
	}
	return feature, nil
}

// PrepareGeoJSONString returns GeoJSON representation of geometry or empty string if it can't be converted
func PrepareGeoJSONString(g Geometry) string {
	geom, err := g.GeoJSON()
	if err != nil {
		fmt.Printf("Warning. Can not convert geometry to geojson format: %s", err.Error())
		return ""
	}
	b, err := geom.MarshalJSON()
	if err != nil {
		fmt.Printf("Warning. Can not convert geometry to geojson format: %s", err.Error())
		return ""
	}
	return string(b)
}

// stepFeatures returns abstract and routed features of one prune index
func stepFeatures(step *StepResult) ([]*geojson.Feature, error) {
	features := make([]*geojson.Feature, 0, 2)
	base := func(kind string) map[string]interface{} {
		return map[string]interface{}{
			"task_id":      step.TaskID,
			"city_id":      step.CityID,
			"connectivity": step.Connectivity,
			"prune_index":  step.PruneIndex,
			"quantile":     step.Quantile,
			"kind":         kind,
		}
	}
	if step.Abstract != nil {
		props := base("abstract")
		props["edges"] = len(step.Abstract.Edges)
		feature, err := PrepareGeoJSONFeature(step.Abstract.Geometry(), props)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
	}
	if step.Routed != nil {
		props := base("routed")
		props["length"] = step.Routed.Length()
		feature, err := PrepareGeoJSONFeature(step.Routed.Geometry(), props)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
	}
	return features, nil
}
