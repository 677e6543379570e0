package bikenet

import (
	"regexp"
	"strconv"

	"github.com/paulmach/osm"
)

// TagKind is an OSM tag key taking part in network filters
type TagKind uint16

const (
	TAG_HIGHWAY = TagKind(iota + 1)
	TAG_MOTOR_VEHICLE
	TAG_MOTORCAR
	TAG_ACCESS
	TAG_SERVICE
	TAG_BICYCLE
	TAG_AREA
	TAG_CYCLEWAY
	TAG_CYCLEWAY_LEFT
	TAG_CYCLEWAY_RIGHT
	TAG_CYCLEWAY_BOTH
	TAG_BICYCLE_ROAD
	TAG_UNDEFINED = TagKind(0)
)

func (iotaIdx TagKind) String() string {
	return [...]string{"undefined", "highway", "motor_vehicle", "motorcar", "access", "service", "bicycle", "area", "cycleway", "cycleway:left", "cycleway:right", "cycleway:both", "bicycle_road"}[iotaIdx]
}

type tagValues map[TagKind]map[string]struct{}

func (values tagValues) match(tags osm.Tags) bool {
	for kind, allowed := range values {
		if _, ok := allowed[tags.Find(kind.String())]; ok {
			return true
		}
	}
	return false
}

var (
	// carallInclude lists highways usable by cars
	carallInclude = tagValues{
		TAG_HIGHWAY: {
			"motorway": {}, "motorway_link": {}, "trunk": {}, "trunk_link": {},
			"primary": {}, "primary_link": {}, "secondary": {}, "secondary_link": {},
			"tertiary": {}, "tertiary_link": {}, "unclassified": {}, "residential": {},
			"living_street": {}, "service": {}, "road": {},
		},
	}

	carallExclude = tagValues{
		TAG_AREA:          {"yes": {}},
		TAG_MOTOR_VEHICLE: {"no": {}},
		TAG_MOTORCAR:      {"no": {}},
		TAG_ACCESS:        {"private": {}, "no": {}},
		TAG_SERVICE: {
			"parking": {}, "parking_aisle": {}, "driveway": {}, "private": {}, "emergency_access": {},
		},
	}

	// biketrackInclude lists protected bicycle infrastructure
	biketrackInclude = tagValues{
		TAG_HIGHWAY:        {"cycleway": {}},
		TAG_CYCLEWAY:       {"track": {}, "opposite_track": {}},
		TAG_CYCLEWAY_LEFT:  {"track": {}},
		TAG_CYCLEWAY_RIGHT: {"track": {}},
		TAG_CYCLEWAY_BOTH:  {"track": {}},
		TAG_BICYCLE_ROAD:   {"yes": {}},
	}

	// bikeableExtra is what is bikeable without being a track
	bikeableExtra = tagValues{
		TAG_HIGHWAY:        {"living_street": {}},
		TAG_CYCLEWAY:       {"lane": {}, "opposite_lane": {}, "shared_lane": {}},
		TAG_CYCLEWAY_LEFT:  {"lane": {}},
		TAG_CYCLEWAY_RIGHT: {"lane": {}},
		TAG_CYCLEWAY_BOTH:  {"lane": {}},
	}

	bikeExclude = tagValues{
		TAG_AREA:    {"yes": {}},
		TAG_BICYCLE: {"no": {}},
		TAG_ACCESS:  {"private": {}, "no": {}},
		TAG_SERVICE: {"private": {}},
	}

	// designatedPaths count as bicycle tracks with bicycle=designated
	designatedPaths = map[string]struct{}{
		"path": {}, "footway": {}, "track": {}, "pedestrian": {},
	}

	mphRegExp   = regexp.MustCompile(`^(\d+\.?\d*) ?mph$`)
	kmhRegExp   = regexp.MustCompile(`^(\d+\.?\d*) ?(km/h)?$`)
	zoneRegExp  = regexp.MustCompile(`^[A-Z]{2}:(zone)?(\d+)$`)
	mphToKmh    = 1.609344
	calmedSpeed = 30.0
)

// parseMaxSpeed returns km/h value of 'maxspeed' tag or -1 when absent or unparsable
func parseMaxSpeed(text string) float64 {
	if text == "" {
		return -1
	}
	if found := kmhRegExp.FindStringSubmatch(text); found != nil {
		value, err := strconv.ParseFloat(found[1], 64)
		if err == nil {
			return value
		}
	}
	if found := mphRegExp.FindStringSubmatch(text); found != nil {
		value, err := strconv.ParseFloat(found[1], 64)
		if err == nil {
			return value * mphToKmh
		}
	}
	// e.g. 'DE:zone30'
	if found := zoneRegExp.FindStringSubmatch(text); found != nil {
		value, err := strconv.ParseFloat(found[2], 64)
		if err == nil {
			return value
		}
	}
	return -1
}

func isBiketrack(tags osm.Tags) bool {
	if bikeExclude.match(tags) {
		return false
	}
	if biketrackInclude.match(tags) {
		return true
	}
	if _, ok := designatedPaths[tags.Find("highway")]; ok {
		return tags.Find("bicycle") == "designated"
	}
	return false
}

func isBikeable(tags osm.Tags) bool {
	if isBiketrack(tags) {
		return true
	}
	if tags.Find("highway") == "" || bikeExclude.match(tags) {
		return false
	}
	if bikeableExtra.match(tags) {
		return true
	}
	speed := parseMaxSpeed(tags.Find("maxspeed"))
	return speed > 0 && speed <= calmedSpeed
}

func isCarall(tags osm.Tags) bool {
	return carallInclude.match(tags) && !carallExclude.match(tags)
}

// wayFilter returns predicate selecting ways of given base network type
func wayFilter(networkType string) (func(osm.Tags) bool, bool) {
	switch networkType {
	case NETWORK_CARALL:
		return isCarall, true
	case NETWORK_BIKETRACK:
		return isBiketrack, true
	case NETWORK_BIKEABLE:
		return isBikeable, true
	default:
		return nil, false
	}
}
