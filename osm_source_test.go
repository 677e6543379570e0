package bikenet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
 <node id="1" lat="52.5000" lon="13.4000"/>
 <node id="2" lat="52.5000" lon="13.4010"/>
 <node id="3" lat="52.5000" lon="13.4020"/>
 <node id="4" lat="52.5010" lon="13.4010"/>
 <node id="5" lat="52.5010" lon="13.4020"/>
 <node id="6" lat="52.5020" lon="13.4020"/>
 <way id="10">
  <nd ref="1"/><nd ref="2"/><nd ref="3"/>
  <tag k="highway" v="residential"/>
 </way>
 <way id="11">
  <nd ref="2"/><nd ref="4"/>
  <tag k="highway" v="cycleway"/>
 </way>
 <way id="12">
  <nd ref="4"/><nd ref="5"/>
  <tag k="highway" v="service"/><tag k="service" v="parking_aisle"/>
 </way>
 <way id="13">
  <nd ref="3"/><nd ref="5"/>
  <tag k="highway" v="residential"/><tag k="maxspeed" v="30"/><tag k="cycleway" v="lane"/>
 </way>
 <way id="14">
  <nd ref="5"/><nd ref="6"/>
  <tag k="building" v="yes"/>
 </way>
</osm>
`

func writeSampleOSM(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sample"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample", "sample.osm"), []byte(sampleOSM), 0o644))
	return dir
}

func TestOSMSourceNetworkTypes(t *testing.T) {
	src := NewOSMSource(writeSampleOSM(t))
	ctx := context.Background()

	fname, ok := src.File("sample")
	require.True(t, ok)
	assert.Equal(t, "sample.osm", filepath.Base(fname))

	tests := []struct {
		networkType string
		nodes       int
		edges       []EdgeID
	}{
		{NETWORK_CARALL, 4, []EdgeID{wayPieceID(10, 0), wayPieceID(10, 1), wayPieceID(13, 0)}},
		{NETWORK_CARALL + simplifiedSuffix, 3, []EdgeID{wayPieceID(10, 0), wayPieceID(13, 0)}},
		{NETWORK_BIKETRACK, 2, []EdgeID{wayPieceID(11, 0)}},
		{NETWORK_BIKEABLE, 4, []EdgeID{wayPieceID(11, 0), wayPieceID(13, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.networkType, func(t *testing.T) {
			nodes, edges, err := src.LoadRecords(ctx, "sample", tt.networkType)
			require.NoError(t, err)
			assert.Len(t, nodes, tt.nodes)
			ids := make([]EdgeID, len(edges))
			for i, edge := range edges {
				ids[i] = edge.ID
			}
			assert.ElementsMatch(t, tt.edges, ids)
		})
	}
}

func TestOSMSourceSimplifiedGeometry(t *testing.T) {
	src := NewOSMSource(writeSampleOSM(t))
	_, edges, err := src.LoadRecords(context.Background(), "sample", NETWORK_CARALL+simplifiedSuffix)
	require.NoError(t, err)
	for _, edge := range edges {
		if edge.WayID != 10 {
			continue
		}
		assert.Equal(t, osm.NodeID(1), edge.Source)
		assert.Equal(t, osm.NodeID(3), edge.Target)
		assert.Len(t, edge.Geom, 3)
	}
}

func TestOSMSourceThroughLoader(t *testing.T) {
	loader := NewGraphLoader(NewOSMSource(writeSampleOSM(t)), nil)
	graph, err := loader.Load(context.Background(), "sample", NETWORK_CARALL)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 4)
	assert.Len(t, graph.Edges, 3)
	assert.Equal(t, 1, graph.ComponentsNum())
	for _, edge := range graph.Edges {
		assert.Greater(t, edge.Length, 50.0)
	}
}

func TestOSMSourceMissing(t *testing.T) {
	src := NewOSMSource(writeSampleOSM(t))
	ctx := context.Background()

	_, _, err := src.LoadRecords(ctx, "absent", NETWORK_CARALL)
	assert.True(t, IsDataNotFound(err))

	_, _, err = src.LoadRecords(ctx, "sample", NETWORK_BIKETRACK_ONSTREET)
	assert.True(t, IsDataNotFound(err))
}

func TestParseMaxSpeed(t *testing.T) {
	tests := []struct {
		text     string
		expected float64
	}{
		{"30", 30},
		{"50 km/h", 50},
		{"20 mph", 20 * 1.609344},
		{"DE:zone30", 30},
		{"DE:urban", -1},
		{"walk", -1},
		{"", -1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, parseMaxSpeed(tt.text), 1e-9, tt.text)
	}
}

func TestWayFilters(t *testing.T) {
	tags := func(kv ...string) osm.Tags {
		result := osm.Tags{}
		for i := 0; i+1 < len(kv); i += 2 {
			result = append(result, osm.Tag{Key: kv[i], Value: kv[i+1]})
		}
		return result
	}
	assert.True(t, isCarall(tags("highway", "primary")))
	assert.False(t, isCarall(tags("highway", "primary", "access", "private")))
	assert.False(t, isCarall(tags("highway", "cycleway")))

	assert.True(t, isBiketrack(tags("highway", "cycleway")))
	assert.True(t, isBiketrack(tags("highway", "secondary", "cycleway:right", "track")))
	assert.True(t, isBiketrack(tags("highway", "path", "bicycle", "designated")))
	assert.False(t, isBiketrack(tags("highway", "path")))
	assert.False(t, isBiketrack(tags("highway", "cycleway", "access", "no")))

	assert.True(t, isBikeable(tags("highway", "living_street")))
	assert.True(t, isBikeable(tags("highway", "residential", "maxspeed", "20")))
	assert.False(t, isBikeable(tags("highway", "residential", "maxspeed", "50")))
	assert.False(t, isBikeable(tags("cycleway", "lane")))

	_, ok := wayFilter(NETWORK_BIKEABLE_OFFSTREET)
	assert.False(t, ok)
}
