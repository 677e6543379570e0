package bikenet

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPOISetDeduplicates(t *testing.T) {
	set := NewPOISet([]osm.NodeID{5, 3, 5, 1, 3})
	assert.Equal(t, POISet{5, 3, 1}, set)
	assert.True(t, set.Contains(1))
	assert.False(t, set.Contains(2))
}

func TestReadPOIs(t *testing.T) {
	set, err := ReadPOIs(strings.NewReader("10\n\n 20 \n10\n30\n"))
	require.NoError(t, err)
	assert.Equal(t, POISet{10, 20, 30}, set)

	_, err = ReadPOIs(strings.NewReader("10\nabc\n"))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePOIs(&buf, set))
	again, err := ReadPOIs(&buf)
	require.NoError(t, err)
	assert.Equal(t, set, again)
}

func TestFilePOISource(t *testing.T) {
	src := &FilePOISource{Dir: t.TempDir()}
	ctx := context.Background()

	_, err := src.LoadPOIs(ctx, "task", "city", nil)
	require.Error(t, err)
	assert.True(t, IsDataNotFound(err))

	require.NoError(t, src.SavePOIs("task", "city", POISet{1, 2}))
	set, err := src.LoadPOIs(ctx, "task", "city", nil)
	require.NoError(t, err)
	assert.Equal(t, POISet{1, 2}, set)
}

func TestPOIsOnGraph(t *testing.T) {
	graph := triangleGraph(t)
	kept, indices := POISet{3, 42, 1}.OnGraph(graph)
	assert.Equal(t, POISet{3, 1}, kept)
	assert.Equal(t, nodeIndices(t, graph, 3, 1), indices)
}

func TestSnapper(t *testing.T) {
	graph := triangleGraph(t)
	snapper := NewSnapper(graph, 50)

	id, ok := snapper.Snap(orb.Point{13.40002, 52.50001})
	require.True(t, ok)
	assert.Equal(t, osm.NodeID(1), id)

	id, ok = snapper.Snap(orb.Point{13.40098, 52.50003})
	require.True(t, ok)
	assert.Equal(t, osm.NodeID(2), id)

	// roughly 700 meters away from every node
	_, ok = snapper.Snap(orb.Point{13.4005, 52.5070})
	assert.False(t, ok)
}

func TestSnapperTieBreak(t *testing.T) {
	nodes := []NodeRecord{
		{ID: 9, Point: orb.Point{13.0, 0}},
		{ID: 4, Point: orb.Point{14.0, 0}},
	}
	graph, err := NewStreetGraph("equator", NETWORK_CARALL, nodes, nil)
	require.NoError(t, err)
	snapper := NewSnapper(graph, 100000)
	id, ok := snapper.Snap(orb.Point{13.5, 0})
	require.True(t, ok)
	assert.Equal(t, osm.NodeID(4), id)
}

func TestSnapCategories(t *testing.T) {
	graph := triangleGraph(t)
	snapper := NewSnapper(graph, 50)
	set, results := snapper.SnapCategories(map[string][]orb.Point{
		"school":   {{13.40002, 52.50001}, {13.40001, 52.50000}, {13.4005, 52.5070}},
		"hospital": {{13.4005, 52.50101}},
		"empty":    {},
		"far":      {{14.0, 53.0}},
		"broken":   {{math.NaN(), 52.5}},
	})
	assert.Equal(t, POISet{3, 1}, set)
	require.Len(t, results, 5)

	byName := map[string]CategoryResult{}
	for _, res := range results {
		byName[res.Category] = res
	}
	assert.Error(t, byName["empty"].Err)
	assert.Error(t, byName["far"].Err)
	assert.Error(t, byName["broken"].Err)
	assert.Equal(t, 1, byName["broken"].Dropped)
	assert.NoError(t, byName["hospital"].Err)
	assert.Equal(t, POISet{3}, byName["hospital"].POIs)
	assert.NoError(t, byName["school"].Err)
	assert.Equal(t, POISet{1}, byName["school"].POIs)
	assert.Equal(t, 1, byName["school"].Dropped)
}
