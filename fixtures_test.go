package bikenet

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/require"
)

// triangleGraph has three nodes joined by streets of 10, 15 and 20 meters
func triangleGraph(t *testing.T) *StreetGraph {
	t.Helper()
	nodes := []NodeRecord{
		{ID: 1, Point: orb.Point{13.4000, 52.5000}},
		{ID: 2, Point: orb.Point{13.4010, 52.5000}},
		{ID: 3, Point: orb.Point{13.4005, 52.5010}},
	}
	edges := []EdgeRecord{
		{ID: 101, Source: 1, Target: 2, Length: 10},
		{ID: 102, Source: 2, Target: 3, Length: 15},
		{ID: 103, Source: 3, Target: 1, Length: 20},
	}
	graph, err := NewStreetGraph("triangle", NETWORK_CARALL, nodes, edges)
	require.NoError(t, err)
	return graph
}

// twoComponentGraph has two separate streets: 1-2 and 3-4
func twoComponentGraph(t *testing.T) *StreetGraph {
	t.Helper()
	nodes := []NodeRecord{
		{ID: 1, Point: orb.Point{13.4000, 52.5000}},
		{ID: 2, Point: orb.Point{13.4010, 52.5000}},
		{ID: 3, Point: orb.Point{13.4000, 52.5100}},
		{ID: 4, Point: orb.Point{13.4010, 52.5100}},
	}
	edges := []EdgeRecord{
		{ID: 201, Source: 1, Target: 2},
		{ID: 202, Source: 3, Target: 4},
	}
	graph, err := NewStreetGraph("split", NETWORK_CARALL, nodes, edges)
	require.NoError(t, err)
	return graph
}

// gridNodeID numbers grid nodes row by row starting from 1
func gridNodeID(row, col, size int) osm.NodeID {
	return osm.NodeID(row*size + col + 1)
}

// gridGraph is a size x size street grid with spacing step (degrees)
func gridGraph(t *testing.T, size int, step float64) *StreetGraph {
	t.Helper()
	nodes := make([]NodeRecord, 0, size*size)
	edges := make([]EdgeRecord, 0, 2*size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			nodes = append(nodes, NodeRecord{
				ID:    gridNodeID(row, col, size),
				Point: orb.Point{13.4 + float64(col)*step, 52.5 + float64(row)*step},
			})
			if col+1 < size {
				edges = append(edges, EdgeRecord{ID: EdgeID(len(edges) + 1), Source: gridNodeID(row, col, size), Target: gridNodeID(row, col+1, size)})
			}
			if row+1 < size {
				edges = append(edges, EdgeRecord{ID: EdgeID(len(edges) + 1), Source: gridNodeID(row, col, size), Target: gridNodeID(row+1, col, size)})
			}
		}
	}
	graph, err := NewStreetGraph("grid", NETWORK_CARALL, nodes, edges)
	require.NoError(t, err)
	return graph
}

// nodeIndices maps node ids to graph indices
func nodeIndices(t *testing.T, graph *StreetGraph, ids ...osm.NodeID) []int {
	t.Helper()
	indices := make([]int, len(ids))
	for i, id := range ids {
		idx, ok := graph.NodeIndex(id)
		require.True(t, ok, "node %d is missing", id)
		indices[i] = idx
	}
	return indices
}

// gridPOIs picks scattered nodes of a 6x6 grid
func gridPOIs() POISet {
	return POISet{
		gridNodeID(0, 0, 6), gridNodeID(0, 5, 6), gridNodeID(5, 0, 6), gridNodeID(5, 5, 6),
		gridNodeID(2, 1, 6), gridNodeID(3, 1, 6), gridNodeID(2, 4, 6), gridNodeID(3, 4, 6),
	}
}
