package bikenet

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryWriter keeps everything in memory
type memoryWriter struct {
	mu       sync.Mutex
	steps    []*StepResult
	baseline []MetricsRow
	finished []string
	failOn   string
}

func (writer *memoryWriter) WriteStep(ctx context.Context, step *StepResult) error {
	if step.CityID == writer.failOn {
		return errors.New("disk is full")
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()
	writer.steps = append(writer.steps, step)
	return nil
}

func (writer *memoryWriter) WriteBaseline(ctx context.Context, rows []MetricsRow) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	writer.baseline = append(writer.baseline, rows...)
	return nil
}

func (writer *memoryWriter) FinishCity(ctx context.Context, taskID, cityID string) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	writer.finished = append(writer.finished, taskID+"/"+cityID)
	return nil
}

// prepareRunDir writes 'grid' city (carall and biketrack networks) with its POIs
func prepareRunDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	grid := gridGraph(t, 6, 0.001)
	writeCityCSV(t, dir, "grid", NETWORK_CARALL, grid)

	// biketrack follows the first grid row
	nodes := []NodeRecord{}
	for _, node := range grid.Nodes {
		if node.Point[1] == grid.Nodes[0].Point[1] {
			nodes = append(nodes, NodeRecord{ID: node.ID, Point: node.Point})
		}
	}
	edges := []EdgeRecord{}
	for _, edge := range grid.Edges {
		source, target := grid.Nodes[edge.Source], grid.Nodes[edge.Target]
		if source.Point[1] == grid.Nodes[0].Point[1] && target.Point[1] == grid.Nodes[0].Point[1] {
			edges = append(edges, EdgeRecord{ID: edge.ID, Source: source.ID, Target: target.ID, Length: edge.Length, Geom: edge.Geom})
		}
	}
	track, err := NewStreetGraph("grid", NETWORK_BIKETRACK, nodes, edges)
	require.NoError(t, err)
	require.Len(t, track.Edges, 5)
	writeCityCSV(t, dir, "grid", NETWORK_BIKETRACK, track)

	poiSource := &FilePOISource{Dir: dir}
	fname := poiSource.File("task", "grid")
	require.NoError(t, os.MkdirAll(filepath.Dir(fname), 0o755))
	file, err := os.Create(fname)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, WritePOIs(file, gridPOIs()))
	return dir
}

func newTestRunner(t *testing.T, dir string, writer ResultWriter, modify func(cfg *Config)) *Runner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.OutputDir = dir
	cfg.Cities = []string{"grid"}
	cfg.PruneQuantiles = 4
	cfg.Workers = 2
	if modify != nil {
		modify(&cfg)
	}
	runner, err := NewRunner(cfg, NewCSVSource(dir), &FilePOISource{Dir: dir}, writer, nil)
	require.NoError(t, err)
	return runner
}

func TestRunnerGenerate(t *testing.T) {
	dir := prepareRunDir(t)
	writer := &memoryWriter{}
	runner := newTestRunner(t, dir, writer, nil)

	report, err := runner.Generate(context.Background(), Task{ID: "task", Cities: []string{"grid", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"grid"}, report.Completed)
	assert.Equal(t, []string{"missing"}, report.Skipped)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []string{"task/grid"}, writer.finished)

	require.Len(t, writer.steps, 5)
	segments := 0
	for i, step := range writer.steps[:4] {
		assert.Equal(t, CONNECTIVITY_GT, step.Connectivity)
		assert.Equal(t, i, step.PruneIndex)
		assert.Equal(t, NETWORK_CARALL, step.Metrics.NetworkType)
		assert.Equal(t, step.Quantile, step.Metrics.Quantile)
		if i > 0 {
			assert.Greater(t, step.Quantile, writer.steps[i-1].Quantile)
			assert.GreaterOrEqual(t, step.Metrics.Length, writer.steps[i-1].Metrics.Length-1e-6)
		}
		segments += len(step.Segments)
	}
	last := writer.steps[3]
	assert.Equal(t, 1.0, last.Quantile)
	assert.Equal(t, len(last.Routed.Segments), segments)
	assert.Equal(t, 1, last.Metrics.Components)

	mst := writer.steps[4]
	assert.Equal(t, CONNECTIVITY_MST, mst.Connectivity)
	assert.Len(t, mst.Abstract.Edges, len(gridPOIs())-1)
	assert.Equal(t, 1, mst.Metrics.Components)
}

func TestRunnerGenerateRoutedWeighting(t *testing.T) {
	dir := prepareRunDir(t)
	writer := &memoryWriter{}
	runner := newTestRunner(t, dir, writer, func(cfg *Config) {
		cfg.Weighting = string(WeightRouted)
		cfg.PruneMeasure = string(PRUNE_RANDOM)
		cfg.Contraction = false
	})

	report, err := runner.Generate(context.Background(), Task{ID: "task"})
	require.NoError(t, err)
	assert.Equal(t, []string{"grid"}, report.Completed)
	assert.Len(t, writer.steps, 5)
}

func TestRunnerWriterFailure(t *testing.T) {
	dir := prepareRunDir(t)
	writer := &memoryWriter{failOn: "grid"}
	runner := newTestRunner(t, dir, writer, nil)

	report, err := runner.Generate(context.Background(), Task{ID: "task"})
	require.NoError(t, err)
	assert.Empty(t, report.Completed)
	require.Contains(t, report.Failed, "grid")
	assert.Contains(t, report.Failed["grid"].Error(), "disk is full")
	assert.Empty(t, writer.finished)
}

func TestRunnerCancelled(t *testing.T) {
	dir := prepareRunDir(t)
	writer := &memoryWriter{}
	runner := newTestRunner(t, dir, writer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.Generate(ctx, Task{ID: "task"})
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = runner.Baseline(ctx, Task{ID: "task"})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, writer.steps)
	assert.Empty(t, writer.baseline)
}

func TestRunnerBaselineArea(t *testing.T) {
	dir := prepareRunDir(t)
	ctx := context.Background()
	coverage := func(areas map[string]string) float64 {
		writer := &memoryWriter{}
		runner := newTestRunner(t, dir, writer, func(cfg *Config) {
			cfg.BaselineNetworkTypes = []string{NETWORK_CARALL}
			cfg.Areas = areas
		})
		_, err := runner.Baseline(ctx, Task{ID: "task"})
		require.NoError(t, err)
		require.Len(t, writer.baseline, 1)
		return writer.baseline[0].Coverage
	}
	byBound := coverage(nil)
	byArea := coverage(map[string]string{
		"grid": "POLYGON((13.35 52.45, 13.45 52.45, 13.45 52.55, 13.35 52.55, 13.35 52.45))",
	})
	assert.Greater(t, byBound, 0.5)
	assert.Greater(t, byArea, 0.0)
	assert.Less(t, byArea, 0.1)
}

func TestRunnerBaseline(t *testing.T) {
	dir := prepareRunDir(t)
	writer := &memoryWriter{}
	runner := newTestRunner(t, dir, writer, nil)

	report, err := runner.Baseline(context.Background(), Task{ID: "task", Cities: []string{"grid", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"grid"}, report.Completed)
	assert.Equal(t, []string{"missing"}, report.Skipped)

	require.Len(t, writer.baseline, len(DefaultBaselineNetworkTypes()))
	rows := map[string]MetricsRow{}
	for _, row := range writer.baseline {
		assert.Equal(t, CONNECTIVITY_EXISTING, row.Connectivity)
		assert.Equal(t, -1, row.PruneIndex)
		assert.True(t, row.IsBase)
		rows[row.NetworkType] = row
	}

	carall := rows[NETWORK_CARALL]
	assert.Equal(t, 1, carall.Components)
	assert.InDelta(t, 1.0, carall.POICoverage, 1e-9)
	assert.Greater(t, carall.Length, 0.0)

	track := rows[NETWORK_BIKETRACK]
	assert.Greater(t, track.Length, 0.0)
	assert.Less(t, track.Length, carall.Length)
	assert.InDelta(t, track.Length, rows[NETWORK_BIKETRACK_ONSTREET].Length, 1e-6)

	// no bikeable records: both bikeable types are zero
	assert.Equal(t, EmptyMetrics(), rows[NETWORK_BIKEABLE].MetricsRecord)
	assert.Equal(t, EmptyMetrics(), rows[NETWORK_BIKEABLE_OFFSTREET].MetricsRecord)
	assert.NotEmpty(t, report.Items)
}

func TestRunnerBaselineWithoutCarall(t *testing.T) {
	dir := t.TempDir()
	writeCityCSV(t, dir, "lonely", NETWORK_BIKETRACK, triangleGraph(t))
	writer := &memoryWriter{}
	runner := newTestRunner(t, dir, writer, nil)

	report, err := runner.Baseline(context.Background(), Task{ID: "task", Cities: []string{"lonely"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"lonely"}, report.Skipped)
	assert.Empty(t, writer.baseline)
}
