package bikenet

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Task is one requested run over a set of cities
type Task struct {
	ID     string
	Cities []string
}

// ItemError is a per-item failure which did not stop the run
type ItemError struct {
	CityID       string
	NetworkType  string
	Connectivity string
	PruneIndex   int
	Err          error
}

// Report summarizes a run
type Report struct {
	TaskID    string
	Completed []string
	Skipped   []string
	Failed    map[string]error
	Items     []ItemError
}

func newReport(taskID string) *Report {
	return &Report{TaskID: taskID, Failed: map[string]error{}}
}

func (report *Report) addItems(cityID, networkType, connectivity string, pruneIndex int, errs []error) {
	for _, err := range errs {
		report.Items = append(report.Items, ItemError{
			CityID:       cityID,
			NetworkType:  networkType,
			Connectivity: connectivity,
			PruneIndex:   pruneIndex,
			Err:          err,
		})
	}
}

// Runner orchestrates generation and baseline runs city by city
type Runner struct {
	cfg    Config
	loader *GraphLoader
	pois   POISource
	writer ResultWriter
	logger *zap.Logger
}

// NewRunner validates configuration and wires collaborators
func NewRunner(cfg Config, source RecordSource, pois POISource, writer ResultWriter, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		loader: NewGraphLoader(source, logger),
		pois:   pois,
		writer: writer,
		logger: logger,
	}, nil
}

func isCancel(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// forEachCity runs fn per city: missing data skips the city, other errors fail it, cancellation stops the run
func (runner *Runner) forEachCity(ctx context.Context, task Task, kind string, fn func(cityID string, report *Report) error) (*Report, error) {
	report := newReport(task.ID)
	cities := task.Cities
	if len(cities) == 0 {
		cities = runner.cfg.Cities
	}
	for _, cityID := range cities {
		if ctx.Err() != nil {
			runner.logger.Warn("run cancelled", zap.String("task", task.ID), zap.String("kind", kind))
			return report, ErrCancelled
		}
		st := time.Now()
		runner.logger.Info("processing city", zap.String("task", task.ID), zap.String("city", cityID), zap.String("kind", kind))
		err := fn(cityID, report)
		switch {
		case err == nil:
			report.Completed = append(report.Completed, cityID)
			runner.logger.Info("city done", zap.String("city", cityID), zap.Duration("took", time.Since(st)))
		case isCancel(ctx, err):
			runner.logger.Warn("run cancelled", zap.String("task", task.ID), zap.String("city", cityID), zap.String("kind", kind))
			return report, ErrCancelled
		case IsDataNotFound(err):
			report.Skipped = append(report.Skipped, cityID)
			runner.logger.Warn("city skipped", zap.String("city", cityID), zap.Error(err))
		default:
			report.Failed[cityID] = err
			runner.logger.Error("city failed", zap.String("city", cityID), zap.Error(err))
		}
	}
	return report, nil
}

// Generate grows greedy triangulation networks and MST for every city of task
func (runner *Runner) Generate(ctx context.Context, task Task) (*Report, error) {
	return runner.forEachCity(ctx, task, "generate", func(cityID string, report *Report) error {
		return runner.generateCity(ctx, task.ID, cityID, report)
	})
}

func (runner *Runner) metricsEngine(cityID string, graph *StreetGraph, pois POISet) (*MetricsEngine, error) {
	area, err := runner.cfg.Area(cityID)
	if err != nil {
		return nil, err
	}
	return NewMetricsEngine(graph, pois,
		WithArea(area),
		WithBufferWalk(runner.cfg.BufferWalk),
		WithNumNodePairs(runner.cfg.NumNodePairs),
		WithWorkers(runner.cfg.Workers),
		WithSamplingSeed(runner.cfg.Seed),
		WithDirectnessMode(DirectnessMode(runner.cfg.Directness)),
		WithLinkwiseMode(LinkwiseMode(runner.cfg.Linkwise)),
		WithMetricsLogger(runner.logger),
	), nil
}

func (runner *Runner) generateCity(ctx context.Context, taskID, cityID string, report *Report) error {
	graph, err := runner.loader.Load(ctx, cityID, runner.cfg.NetworkType)
	if err != nil {
		return err
	}
	routing, err := NewRoutingEngine(graph, WithContraction(runner.cfg.Contraction), WithRoutingLogger(runner.logger))
	if err != nil {
		return errors.Wrap(err, "Can't prepare routing")
	}
	pois, err := runner.pois.LoadPOIs(ctx, taskID, cityID, graph)
	if err != nil {
		return err
	}
	pois, indices := pois.OnGraph(graph)
	runner.logger.Debug("POIs on street graph", zap.String("city", cityID), zap.Int("pois", len(indices)))

	weight := EuclideanWeight(graph)
	if Weighting(runner.cfg.Weighting) == WeightRouted {
		weight = routing.WeightFunc()
	}
	planner := NewTriangulationPlanner(
		WithPruneMeasure(PruneMeasure(runner.cfg.PruneMeasure)),
		WithPruneQuantiles(runner.cfg.Quantiles()),
		WithPruneSeed(runner.cfg.Seed),
		WithPlannerLogger(runner.logger),
	)
	_, networks, err := planner.Plan(ctx, graph, indices, weight)
	if err != nil {
		return errors.Wrap(err, "Can't plan greedy triangulation")
	}
	metrics, err := runner.metricsEngine(cityID, graph, pois)
	if err != nil {
		return err
	}

	var previous *RoutedNetwork
	for _, net := range networks {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		step, err := runner.step(ctx, taskID, cityID, CONNECTIVITY_GT, net, routing, metrics, previous, report)
		if err != nil {
			return err
		}
		if err := runner.writer.WriteStep(ctx, step); err != nil {
			return errors.Wrapf(err, "Can't write prune index %d", net.PruneIndex)
		}
		previous = step.Routed
	}

	if ctx.Err() != nil {
		return ErrCancelled
	}
	mst := NewMSTPlanner(runner.logger).Plan(graph, indices, weight)
	step, err := runner.step(ctx, taskID, cityID, CONNECTIVITY_MST, mst, routing, metrics, nil, report)
	if err != nil {
		return err
	}
	if err := runner.writer.WriteStep(ctx, step); err != nil {
		return errors.Wrap(err, "Can't write MST")
	}
	return runner.writer.FinishCity(ctx, taskID, cityID)
}

// step routes network, computes its metrics and new segments compared to previous routed network
func (runner *Runner) step(ctx context.Context, taskID, cityID, connectivity string, net *AbstractNetwork, routing *RoutingEngine, metrics *MetricsEngine, previous *RoutedNetwork, report *Report) (*StepResult, error) {
	routed, errs := routing.Route(ctx, net)
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	for _, err := range errs {
		runner.logger.Debug("abstract edge skipped", zap.String("city", cityID), zap.Int("prune_index", net.PruneIndex), zap.Error(err))
	}
	report.addItems(cityID, runner.cfg.NetworkType, connectivity, net.PruneIndex, errs)

	rec, errs := metrics.Compute(ctx, net, routed)
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	report.addItems(cityID, runner.cfg.NetworkType, connectivity, net.PruneIndex, errs)

	diff, errs := Subtract(routed, previous)
	report.addItems(cityID, runner.cfg.NetworkType, connectivity, net.PruneIndex, errs)

	step := &StepResult{
		TaskID:       taskID,
		CityID:       cityID,
		Connectivity: connectivity,
		PruneIndex:   net.PruneIndex,
		Quantile:     net.Quantile,
		Abstract:     net,
		Routed:       routed,
		Metrics: MetricsRow{
			TaskID:        taskID,
			CityID:        cityID,
			NetworkType:   runner.cfg.NetworkType,
			Connectivity:  connectivity,
			PruneIndex:    net.PruneIndex,
			Quantile:      net.Quantile,
			MetricsRecord: rec,
		},
		Segments: SegmentRows(taskID, cityID, connectivity, net.PruneIndex, net.Quantile, diff),
	}
	runner.logger.Info("prune index done",
		zap.String("city", cityID),
		zap.String("connectivity", connectivity),
		zap.Int("prune_index", net.PruneIndex),
		zap.Float64("quantile", net.Quantile),
		zap.Int("edges", len(net.Edges)),
		zap.Float64("length", rec.Length),
	)
	return step, nil
}

// SegmentRows converts segments into rows of one prune index
func SegmentRows(taskID, cityID, connectivity string, pruneIndex int, quantile float64, net *RoutedNetwork) []SegmentRow {
	if net.Empty() {
		return nil
	}
	rows := make([]SegmentRow, 0, len(net.Segments))
	for _, seg := range net.Segments {
		rows = append(rows, SegmentRow{
			TaskID:       taskID,
			CityID:       cityID,
			Connectivity: connectivity,
			PruneIndex:   pruneIndex,
			Quantile:     quantile,
			Geometry:     LineGeometry(seg.Geom),
		})
	}
	return rows
}

// Baseline computes metrics of existing infrastructure for every city of task
func (runner *Runner) Baseline(ctx context.Context, task Task) (*Report, error) {
	return runner.forEachCity(ctx, task, "baseline", func(cityID string, report *Report) error {
		return runner.baselineCity(ctx, task.ID, cityID, report)
	})
}

// baselineNetworks loads and derives existing networks of one city on demand
type baselineNetworks struct {
	runner   *Runner
	cityID   string
	networks map[string]*RoutedNetwork
	loaded   map[string]error
}

func (bn *baselineNetworks) get(ctx context.Context, networkType string, report *Report) (*RoutedNetwork, error) {
	if err, ok := bn.loaded[networkType]; ok {
		return bn.networks[networkType], err
	}
	var net *RoutedNetwork
	var err error
	switch networkType {
	case NETWORK_BIKETRACK_ONSTREET, NETWORK_BIKETRACK_ONSTREET + simplifiedSuffix:
		suffix := networkType[len(NETWORK_BIKETRACK_ONSTREET):]
		net, err = bn.derive(ctx, NETWORK_BIKETRACK+suffix, NETWORK_CARALL+suffix, report, Intersect)
	case NETWORK_BIKEABLE_OFFSTREET, NETWORK_BIKEABLE_OFFSTREET + simplifiedSuffix:
		suffix := networkType[len(NETWORK_BIKEABLE_OFFSTREET):]
		net, err = bn.derive(ctx, NETWORK_BIKEABLE+suffix, NETWORK_CARALL+suffix, report, Subtract)
	default:
		var graph *StreetGraph
		graph, err = bn.runner.loader.Load(ctx, bn.cityID, networkType)
		if err == nil {
			net = NewRoutedNetworkFromGraph(graph)
		}
	}
	bn.networks[networkType] = net
	bn.loaded[networkType] = err
	return net, err
}

func (bn *baselineNetworks) derive(ctx context.Context, left, right string, report *Report, op func(a, b *RoutedNetwork) (*RoutedNetwork, []error)) (*RoutedNetwork, error) {
	a, err := bn.get(ctx, left, report)
	if err != nil {
		return nil, err
	}
	b, err := bn.get(ctx, right, report)
	if err != nil {
		return nil, err
	}
	net, errs := op(a, b)
	report.addItems(bn.cityID, left, CONNECTIVITY_EXISTING, -1, errs)
	return net, nil
}

func (runner *Runner) baselineCity(ctx context.Context, taskID, cityID string, report *Report) error {
	reference, err := runner.loader.Load(ctx, cityID, NETWORK_CARALL)
	if err != nil {
		return err
	}
	pois, err := runner.pois.LoadPOIs(ctx, taskID, cityID, reference)
	if err != nil {
		if !IsDataNotFound(err) {
			return err
		}
		runner.logger.Warn("no POIs for city, POI based metrics are zero", zap.String("city", cityID), zap.Error(err))
		pois = POISet{}
	}
	metrics, err := runner.metricsEngine(cityID, reference, pois)
	if err != nil {
		return err
	}
	networks := &baselineNetworks{
		runner:   runner,
		cityID:   cityID,
		networks: map[string]*RoutedNetwork{NETWORK_CARALL: NewRoutedNetworkFromGraph(reference)},
		loaded:   map[string]error{NETWORK_CARALL: nil},
	}

	types := runner.cfg.BaselineNetworkTypes
	if len(types) == 0 {
		types = DefaultBaselineNetworkTypes()
	}
	rows := make([]MetricsRow, 0, len(types))
	for _, networkType := range types {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		row := MetricsRow{
			TaskID:       taskID,
			CityID:       cityID,
			NetworkType:  networkType,
			Connectivity: CONNECTIVITY_EXISTING,
			PruneIndex:   -1,
			Quantile:     1,
			IsBase:       true,
		}
		net, err := networks.get(ctx, networkType, report)
		if err != nil {
			if !IsDataNotFound(err) {
				return errors.Wrapf(err, "Can't prepare '%s' network", networkType)
			}
			runner.logger.Warn("network type missing, metrics are zero", zap.String("city", cityID), zap.String("network_type", networkType), zap.Error(err))
			report.addItems(cityID, networkType, CONNECTIVITY_EXISTING, -1, []error{err})
			row.MetricsRecord = EmptyMetrics()
			rows = append(rows, row)
			continue
		}
		simplified, err := networks.get(ctx, networkType+simplifiedSuffix, report)
		if err != nil && !IsDataNotFound(err) {
			return errors.Wrapf(err, "Can't prepare simplified '%s' network", networkType)
		}
		rec, errs := metrics.ComputeBaseline(ctx, net, simplified)
		if ctx.Err() != nil {
			return ErrCancelled
		}
		report.addItems(cityID, networkType, CONNECTIVITY_EXISTING, -1, errs)
		row.MetricsRecord = rec
		rows = append(rows, row)
		runner.logger.Info("baseline network done",
			zap.String("city", cityID),
			zap.String("network_type", networkType),
			zap.Float64("length", rec.Length),
			zap.Int("components", rec.Components),
		)
	}
	if err := runner.writer.WriteBaseline(ctx, rows); err != nil {
		return errors.Wrap(err, "Can't write baseline metrics")
	}
	return runner.writer.FinishCity(ctx, taskID, cityID)
}
