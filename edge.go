package bikenet

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// EdgeID identifies an edge of StreetGraph
type EdgeID int64

// StreetEdge is an undirected street segment between two StreetGraph nodes
type StreetEdge struct {
	ID     EdgeID
	WayID  osm.WayID
	Source int // index in StreetGraph.Nodes
	Target int // index in StreetGraph.Nodes
	Length float64
	Geom   orb.LineString
}

// EdgeRecord is a persisted street edge as handed over by a RecordSource
type EdgeRecord struct {
	ID     EdgeID
	WayID  osm.WayID
	Source osm.NodeID
	Target osm.NodeID
	// Length in meters. Non-positive values are replaced by the geometry length
	Length float64
	// Geom may be empty: a straight segment between endpoints is used then
	Geom orb.LineString
}
