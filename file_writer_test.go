package bikenet

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleStep(t *testing.T) *StepResult {
	t.Helper()
	graph := triangleGraph(t)
	nodes := nodeIndices(t, graph, 1, 2)
	routed := NewRoutedNetworkFromGraph(graph)
	return &StepResult{
		TaskID:       "task",
		CityID:       "city",
		Connectivity: CONNECTIVITY_GT,
		PruneIndex:   0,
		Quantile:     1,
		Abstract: &AbstractNetwork{
			Graph: graph,
			Nodes: nodes,
			Edges: []AbstractEdge{{U: nodes[0], V: nodes[1]}},
		},
		Routed: routed,
		Metrics: MetricsRow{
			TaskID:        "task",
			CityID:        "city",
			NetworkType:   NETWORK_BIKETRACK,
			Connectivity:  CONNECTIVITY_GT,
			Quantile:      1,
			MetricsRecord: EmptyMetrics(),
		},
		Segments: SegmentRows("task", "city", CONNECTIVITY_GT, 0, 1, routed),
	}
}

func readCSV(t *testing.T, fname string) [][]string {
	t.Helper()
	file, err := os.Open(fname)
	require.NoError(t, err)
	defer file.Close()
	reader := csv.NewReader(file)
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	return records
}

func TestFileWriterStep(t *testing.T) {
	dir := t.TempDir()
	writer := NewFileWriter(dir, "", nil)
	ctx := context.Background()
	require.NoError(t, writer.WriteStep(ctx, triangleStep(t)))

	cityDir := filepath.Join(dir, "task", "city")
	_, err := os.Stat(cityDir)
	assert.True(t, os.IsNotExist(err), "nothing is written before city is finished")

	require.NoError(t, writer.FinishCity(ctx, "task", "city"))

	b, err := os.ReadFile(filepath.Join(cityDir, "city_networks.geojson"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(b)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
	assert.Contains(t, string(b), "urn:ogc:def:crs:EPSG:4326")
	assert.Equal(t, "abstract", fc.Features[0].Properties["kind"])
	assert.Equal(t, "routed", fc.Features[1].Properties["kind"])

	metrics := readCSV(t, filepath.Join(cityDir, "city_metrics.csv"))
	require.Len(t, metrics, 2)
	assert.Len(t, metrics[0], 7+len(MetricsColumns()))
	assert.Equal(t, "task_id", metrics[0][0])
	assert.Equal(t, NETWORK_BIKETRACK, metrics[1][2])
	assert.Equal(t, "false", metrics[1][6])

	segments := readCSV(t, filepath.Join(cityDir, "city_segments.csv"))
	require.Len(t, segments, 4)
	for _, row := range segments[1:] {
		assert.True(t, strings.HasPrefix(row[6], "LINESTRING"), row[6])
	}

	_, err = os.Stat(filepath.Join(cityDir, "city_existing.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileWriterGeoJSONSegments(t *testing.T) {
	dir := t.TempDir()
	writer := NewFileWriter(dir, "GeoJSON", nil)
	ctx := context.Background()
	require.NoError(t, writer.WriteStep(ctx, triangleStep(t)))
	require.NoError(t, writer.FinishCity(ctx, "task", "city"))

	segments := readCSV(t, filepath.Join(dir, "task", "city", "city_segments.csv"))
	require.Len(t, segments, 4)
	geom, err := geojson.UnmarshalGeometry([]byte(segments[1][6]))
	require.NoError(t, err)
	assert.True(t, geom.IsLineString())
}

func TestFileWriterBaseline(t *testing.T) {
	dir := t.TempDir()
	writer := NewFileWriter(dir, "wkt", nil)
	ctx := context.Background()
	rows := []MetricsRow{
		{TaskID: "task", CityID: "city", NetworkType: NETWORK_CARALL, Connectivity: CONNECTIVITY_EXISTING, PruneIndex: -1, Quantile: 1, IsBase: true, MetricsRecord: EmptyMetrics()},
		{TaskID: "task", CityID: "city", NetworkType: NETWORK_BIKETRACK, Connectivity: CONNECTIVITY_EXISTING, PruneIndex: -1, Quantile: 1, IsBase: true, MetricsRecord: EmptyMetrics()},
	}
	require.NoError(t, writer.WriteBaseline(ctx, rows))
	require.NoError(t, writer.WriteBaseline(ctx, nil))
	require.NoError(t, writer.FinishCity(ctx, "task", "city"))

	existing := readCSV(t, filepath.Join(dir, "task", "city", "city_existing.csv"))
	require.Len(t, existing, 3)
	assert.Equal(t, "-1", existing[1][4])
	assert.Equal(t, "true", existing[2][6])

	// unknown city has nothing to flush
	require.NoError(t, writer.FinishCity(ctx, "task", "other"))
	_, err := os.Stat(filepath.Join(dir, "task", "other"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileWriterCancelled(t *testing.T) {
	writer := NewFileWriter(t.TempDir(), "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, writer.WriteStep(ctx, triangleStep(t)), context.Canceled)
	assert.ErrorIs(t, writer.WriteBaseline(ctx, []MetricsRow{{TaskID: "task", CityID: "city"}}), context.Canceled)
}
