package bikenet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CONNECTIVITY_EXISTING marks baseline (existing infrastructure) metrics rows
const CONNECTIVITY_EXISTING = "existing"

// MetricsRow is a metrics record keyed for persistence
type MetricsRow struct {
	TaskID       string  `db:"task_id" json:"task_id"`
	CityID       string  `db:"city_id" json:"city_id"`
	NetworkType  string  `db:"network_type" json:"network_type"`
	Connectivity string  `db:"connectivity" json:"connectivity"`
	PruneIndex   int     `db:"prune_index" json:"prune_index"`
	Quantile     float64 `db:"quantile" json:"quantile"`
	IsBase       bool    `db:"is_base" json:"is_base"`
	MetricsRecord
}

// SegmentRow is a piece of geometry added to network at some prune index
type SegmentRow struct {
	TaskID       string
	CityID       string
	Connectivity string
	PruneIndex   int
	Quantile     float64
	Geometry     Geometry
}

// StepResult is everything produced for one prune index (or MST) of one city. Writers persist it atomically
type StepResult struct {
	TaskID       string
	CityID       string
	Connectivity string
	PruneIndex   int
	Quantile     float64
	Abstract     *AbstractNetwork
	Routed       *RoutedNetwork
	Metrics      MetricsRow
	Segments     []SegmentRow
}

// ResultWriter accepts results of runs
type ResultWriter interface {
	// WriteStep persists one prune index completely or not at all
	WriteStep(ctx context.Context, step *StepResult) error
	// WriteBaseline persists metrics of existing infrastructure of one city
	WriteBaseline(ctx context.Context, rows []MetricsRow) error
	// FinishCity is called once all results of a city are written
	FinishCity(ctx context.Context, taskID, cityID string) error
}

// POISource hands over POIs of a city. Graph is given for sources which snap raw locations
type POISource interface {
	LoadPOIs(ctx context.Context, taskID, cityID string, graph *StreetGraph) (POISet, error)
}

// FilePOISource reads '<dir>/<task>/<city>_nnids_sliders.csv' with one node id per line
type FilePOISource struct {
	Dir string
}

// File returns POI file name for task and city
func (src *FilePOISource) File(taskID, cityID string) string {
	return filepath.Join(src.Dir, taskID, fmt.Sprintf("%s_nnids_sliders.csv", cityID))
}

// LoadPOIs implements POISource
func (src *FilePOISource) LoadPOIs(ctx context.Context, taskID, cityID string, graph *StreetGraph) (POISet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadPOIFile(src.File(taskID, cityID), cityID)
}

// SavePOIs writes POIs in the layout read by LoadPOIs
func (src *FilePOISource) SavePOIs(taskID, cityID string, set POISet) error {
	fname := src.File(taskID, cityID)
	if err := os.MkdirAll(filepath.Dir(fname), 0o755); err != nil {
		return err
	}
	file, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer file.Close()
	return WritePOIs(file, set)
}
