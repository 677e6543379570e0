package bikenet

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FileWriter keeps results of a city in memory and writes them into
// '<dir>/<task>/<city>/' once the city is finished:
//
//	<city>_networks.geojson - abstract and routed networks per prune index and MST
//	<city>_metrics.csv - metrics rows
//	<city>_segments.csv - segments added at each prune index
//	<city>_existing.csv - baseline metrics rows
type FileWriter struct {
	dir        string
	geomFormat string
	logger     *zap.Logger

	mu     sync.Mutex
	cities map[string]*cityResults
}

type cityResults struct {
	features *geojson.FeatureCollection
	metrics  []MetricsRow
	segments []SegmentRow
	baseline []MetricsRow
}

// NewFileWriter returns writer into given directory. geomFormat is 'wkt' (default) or 'geojson'
func NewFileWriter(dir, geomFormat string, logger *zap.Logger) *FileWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWriter{
		dir:        dir,
		geomFormat: strings.ToLower(geomFormat),
		logger:     logger,
		cities:     map[string]*cityResults{},
	}
}

func (writer *FileWriter) city(taskID, cityID string) *cityResults {
	key := taskID + "/" + cityID
	res, ok := writer.cities[key]
	if !ok {
		res = &cityResults{features: NewFeatureCollection()}
		writer.cities[key] = res
	}
	return res
}

// WriteStep implements ResultWriter. Step is either buffered whole or rejected
func (writer *FileWriter) WriteStep(ctx context.Context, step *StepResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	features, err := stepFeatures(step)
	if err != nil {
		return errors.Wrap(err, "Can't convert networks to GeoJSON")
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()
	res := writer.city(step.TaskID, step.CityID)
	for _, feature := range features {
		res.features.AddFeature(feature)
	}
	res.metrics = append(res.metrics, step.Metrics)
	res.segments = append(res.segments, step.Segments...)
	return nil
}

// WriteBaseline implements ResultWriter
func (writer *FileWriter) WriteBaseline(ctx context.Context, rows []MetricsRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()
	res := writer.city(rows[0].TaskID, rows[0].CityID)
	res.baseline = append(res.baseline, rows...)
	return nil
}

// FinishCity implements ResultWriter
func (writer *FileWriter) FinishCity(ctx context.Context, taskID, cityID string) error {
	writer.mu.Lock()
	key := taskID + "/" + cityID
	res, ok := writer.cities[key]
	delete(writer.cities, key)
	writer.mu.Unlock()
	if !ok {
		return nil
	}
	dir := filepath.Join(writer.dir, taskID, cityID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "Can't create output directory")
	}
	prefix := filepath.Join(dir, cityID)
	if len(res.features.Features) > 0 {
		if err := writer.exportGeoJSON(prefix+"_networks.geojson", res.features); err != nil {
			return errors.Wrap(err, "Can't export networks")
		}
	}
	if len(res.metrics) > 0 {
		if err := exportMetricsToCSV(prefix+"_metrics.csv", res.metrics); err != nil {
			return errors.Wrap(err, "Can't export metrics")
		}
	}
	if len(res.segments) > 0 {
		if err := writer.exportSegmentsToCSV(prefix+"_segments.csv", res.segments); err != nil {
			return errors.Wrap(err, "Can't export segments")
		}
	}
	if len(res.baseline) > 0 {
		if err := exportMetricsToCSV(prefix+"_existing.csv", res.baseline); err != nil {
			return errors.Wrap(err, "Can't export baseline metrics")
		}
	}
	writer.logger.Info("city results written", zap.String("task", taskID), zap.String("city", cityID), zap.String("dir", dir))
	return nil
}

func (writer *FileWriter) exportGeoJSON(fname string, fc *geojson.FeatureCollection) error {
	b, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Can't marshal feature collection")
	}
	return os.WriteFile(fname, b, 0o644)
}

func exportMetricsToCSV(fname string, rows []MetricsRow) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	header := append([]string{"task_id", "city_id", "network_type", "connectivity", "prune_index", "quantile", "is_base"}, MetricsColumns()...)
	err = writer.Write(header)
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for _, row := range rows {
		err = writer.Write(append([]string{
			row.TaskID,
			row.CityID,
			row.NetworkType,
			row.Connectivity,
			fmt.Sprintf("%d", row.PruneIndex),
			fmt.Sprintf("%f", row.Quantile),
			fmt.Sprintf("%t", row.IsBase),
		}, row.Values()...))
		if err != nil {
			return errors.Wrap(err, "Can't write metrics row")
		}
	}
	return nil
}

func (writer *FileWriter) exportSegmentsToCSV(fname string, rows []SegmentRow) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	csvWriter := csv.NewWriter(file)
	defer csvWriter.Flush()
	csvWriter.Comma = ';'

	err = csvWriter.Write([]string{"id", "task_id", "city_id", "connectivity", "prune_index", "quantile", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for i, row := range rows {
		geomStr := ""
		if writer.geomFormat == "geojson" {
			geomStr = PrepareGeoJSONString(row.Geometry)
		} else {
			geomStr, err = row.Geometry.WKT()
			if err != nil {
				writer.logger.Warn("segment skipped", zap.Int("id", i), zap.Error(err))
				continue
			}
		}
		err = csvWriter.Write([]string{
			fmt.Sprintf("%d", i),
			row.TaskID,
			row.CityID,
			row.Connectivity,
			fmt.Sprintf("%d", row.PruneIndex),
			fmt.Sprintf("%f", row.Quantile),
			geomStr,
		})
		if err != nil {
			return errors.Wrap(err, "Can't write segment")
		}
	}
	return nil
}
