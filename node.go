package bikenet

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// StreetNode is a street graph vertex
type StreetNode struct {
	ID        osm.NodeID
	Point     orb.Point
	Component int
}

// NodeRecord is a persisted street node as handed over by a RecordSource
type NodeRecord struct {
	ID    osm.NodeID
	Point orb.Point
}
