package bikenet

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RecordSource hands over persisted street records for one city and one network type
//
// Implementations must return *DataNotFoundError when records are absent
type RecordSource interface {
	LoadRecords(ctx context.Context, cityID, networkType string) ([]NodeRecord, []EdgeRecord, error)
}

// GraphLoader materializes StreetGraph from a RecordSource
type GraphLoader struct {
	source RecordSource
	logger *zap.Logger
}

// NewGraphLoader returns loader over given source
func NewGraphLoader(source RecordSource, logger *zap.Logger) *GraphLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphLoader{source: source, logger: logger}
}

// Load returns simple street graph annotated with component ids
func (loader *GraphLoader) Load(ctx context.Context, cityID, networkType string) (*StreetGraph, error) {
	st := time.Now()
	nodes, edges, err := loader.source.LoadRecords(ctx, cityID, networkType)
	if err != nil {
		if IsDataNotFound(err) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "Can't read records for city '%s' (%s)", cityID, networkType)
	}
	if len(nodes) == 0 {
		return nil, &DataNotFoundError{CityID: cityID, NetworkType: networkType, Source: "no node records"}
	}
	graph, err := NewStreetGraph(cityID, networkType, nodes, edges)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't build street graph for city '%s' (%s)", cityID, networkType)
	}
	loader.logger.Debug("street graph loaded",
		zap.String("city", cityID),
		zap.String("network_type", networkType),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)),
		zap.Int("components", graph.ComponentsNum()),
		zap.Duration("took", time.Since(st)),
	)
	return graph, nil
}
