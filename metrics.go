package bikenet

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DEFAULT_BUFFER_WALK is walking buffer (meters) used by coverage metrics
	DEFAULT_BUFFER_WALK = 500.0
	// DEFAULT_NUM_NODE_PAIRS bounds number of sampled nodes (not pairs) for directness and efficiency.
	// Distances are taken between all sampled nodes, so 500 nodes give about 125k pairs
	DEFAULT_NUM_NODE_PAIRS = 500
)

// DirectnessMode is aggregation used by path-level directness
type DirectnessMode string

const (
	// DIRECTNESS_SUM is sum of straight-line distances over sum of network distances
	DIRECTNESS_SUM = DirectnessMode("sum")
	// DIRECTNESS_MEAN is mean of per-pair ratios
	DIRECTNESS_MEAN = DirectnessMode("mean")
)

// LinkwiseMode is normalization used by linkwise directness
type LinkwiseMode string

const (
	// LINKWISE_PAIRS is mean of per-pair ratios; unreachable pairs count as 0
	LINKWISE_PAIRS = LinkwiseMode("pairs")
	// LINKWISE_EDGES is mean of ratios over individual routed edges
	LINKWISE_EDGES = LinkwiseMode("edges")
)

// MetricsRecord holds metrics of one network variant at one prune index
type MetricsRecord struct {
	Length                 float64 `db:"length" json:"length" csv:"length"`
	LengthLCC              float64 `db:"length_lcc" json:"length_lcc" csv:"length_lcc"`
	Coverage               float64 `db:"coverage" json:"coverage" csv:"coverage"`
	Directness             float64 `db:"directness" json:"directness" csv:"directness"`
	DirectnessLCC          float64 `db:"directness_lcc" json:"directness_lcc" csv:"directness_lcc"`
	POICoverage            float64 `db:"poi_coverage" json:"poi_coverage" csv:"poi_coverage"`
	Components             int     `db:"components" json:"components" csv:"components"`
	EfficiencyGlobal       float64 `db:"efficiency_global" json:"efficiency_global" csv:"efficiency_global"`
	EfficiencyLocal        float64 `db:"efficiency_local" json:"efficiency_local" csv:"efficiency_local"`
	EfficiencyGlobalRouted float64 `db:"efficiency_global_routed" json:"efficiency_global_routed" csv:"efficiency_global_routed"`
	EfficiencyLocalRouted  float64 `db:"efficiency_local_routed" json:"efficiency_local_routed" csv:"efficiency_local_routed"`
	DirectnessLCCLinkwise  float64 `db:"directness_lcc_linkwise" json:"directness_lcc_linkwise" csv:"directness_lcc_linkwise"`
	DirectnessAllLinkwise  float64 `db:"directness_all_linkwise" json:"directness_all_linkwise" csv:"directness_all_linkwise"`
}

// EmptyMetrics is the record of a network without edges
func EmptyMetrics() MetricsRecord {
	return MetricsRecord{}
}

// MetricsColumns returns column names in record order
func MetricsColumns() []string {
	return []string{
		"length", "length_lcc", "coverage", "directness", "directness_lcc", "poi_coverage", "components",
		"efficiency_global", "efficiency_local", "efficiency_global_routed", "efficiency_local_routed",
		"directness_lcc_linkwise", "directness_all_linkwise",
	}
}

// Values returns textual values in MetricsColumns order
func (rec MetricsRecord) Values() []string {
	f := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return []string{
		f(rec.Length), f(rec.LengthLCC), f(rec.Coverage), f(rec.Directness), f(rec.DirectnessLCC), f(rec.POICoverage),
		strconv.Itoa(rec.Components),
		f(rec.EfficiencyGlobal), f(rec.EfficiencyLocal), f(rec.EfficiencyGlobalRouted), f(rec.EfficiencyLocalRouted),
		f(rec.DirectnessLCCLinkwise), f(rec.DirectnessAllLinkwise),
	}
}

// MetricsEngine computes MetricsRecord for networks over one street graph and POI set
type MetricsEngine struct {
	graph        *StreetGraph
	pois         []orb.Point
	bufferWalk   float64
	numNodePairs int
	workers      int
	seed         int64
	directness   DirectnessMode
	linkwise     LinkwiseMode
	area         orb.Polygon
	logger       *zap.Logger
}

func (engine *MetricsEngine) String() string {
	return fmt.Sprintf(`
Metrics engine parameters:
	buffer_walk: %f
	numnodepairs: %d
	workers: %d
	seed: %d
	directness: '%s'
	linkwise: '%s'
	explicit area?: %t
	`,
		engine.bufferWalk,
		engine.numNodePairs,
		engine.workers,
		engine.seed,
		engine.directness,
		engine.linkwise,
		len(engine.area) > 0,
	)
}

// NewMetricsEngine returns engine for given reference street graph and POIs.
// POIs missing from the graph are ignored
func NewMetricsEngine(graph *StreetGraph, pois POISet, options ...func(*MetricsEngine)) *MetricsEngine {
	engine := &MetricsEngine{
		graph:        graph,
		bufferWalk:   DEFAULT_BUFFER_WALK,
		numNodePairs: DEFAULT_NUM_NODE_PAIRS,
		workers:      runtime.NumCPU(),
		directness:   DIRECTNESS_SUM,
		linkwise:     LINKWISE_PAIRS,
		logger:       zap.NewNop(),
	}
	for _, option := range options {
		option(engine)
	}
	if graph != nil {
		_, indices := pois.OnGraph(graph)
		engine.pois = make([]orb.Point, len(indices))
		for i, idx := range indices {
			engine.pois[i] = graph.Nodes[idx].Point
		}
	}
	return engine
}

func WithBufferWalk(bufferWalk float64) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		if bufferWalk > 0 {
			engine.bufferWalk = bufferWalk
		}
	}
}

func WithNumNodePairs(numNodePairs int) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		if numNodePairs > 0 {
			engine.numNodePairs = numNodePairs
		}
	}
}

func WithWorkers(workers int) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		if workers > 0 {
			engine.workers = workers
		}
	}
}

func WithSamplingSeed(seed int64) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		engine.seed = seed
	}
}

func WithDirectnessMode(mode DirectnessMode) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		engine.directness = mode
	}
}

func WithLinkwiseMode(mode LinkwiseMode) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		engine.linkwise = mode
	}
}

// WithArea sets reference area for coverage. Street graph bounding box is used otherwise
func WithArea(area orb.Polygon) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		engine.area = area
	}
}

func WithMetricsLogger(logger *zap.Logger) func(*MetricsEngine) {
	return func(engine *MetricsEngine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// Compute returns metrics of a generated network: raw efficiencies on abstract topology, the rest on routed one.
// Abstract network without edges gives EmptyMetrics()
func (engine *MetricsEngine) Compute(ctx context.Context, abstract *AbstractNetwork, routed *RoutedNetwork) (MetricsRecord, []error) {
	if abstract != nil && len(abstract.Edges) == 0 {
		return EmptyMetrics(), nil
	}
	var raw *netGraph
	if abstract != nil {
		raw = abstractIdealGraph(abstract)
	}
	return engine.compute(ctx, raw, routed)
}

// ComputeBaseline returns metrics of existing infrastructure. Raw efficiencies are computed on simplified
// network when given, otherwise on the network itself
func (engine *MetricsEngine) ComputeBaseline(ctx context.Context, network, simplified *RoutedNetwork) (MetricsRecord, []error) {
	var raw *netGraph
	var errs []error
	if !simplified.Empty() {
		raw, _, errs = simplified.netGraph()
	}
	rec, computeErrs := engine.compute(ctx, raw, network)
	return rec, append(errs, computeErrs...)
}

func (engine *MetricsEngine) compute(ctx context.Context, raw *netGraph, routed *RoutedNetwork) (MetricsRecord, []error) {
	if routed.Vacant() {
		return EmptyMetrics(), nil
	}
	st := time.Now()
	rec := MetricsRecord{}
	graph, index, errs := routed.netGraph()
	labels, count := graph.components()
	lcc := largestComponent(labels, count)
	rec.Components = count
	rec.Length = routed.Length()
	rec.LengthLCC = componentLength(graph, labels, lcc)

	frame := newLocalFrameForBound(engine.referenceBound())
	if !routed.Empty() {
		buffers := newSegmentBuffers(routed, frame, engine.bufferWalk)
		rec.Coverage = buffers.coverage(engine.referenceArea(frame))
		rec.POICoverage = buffers.share(engine.pois)
	}

	rnd := rand.New(rand.NewSource(engine.seed))
	pairNodes := engine.pairNodes(graph, index)
	directness, err := engine.directnessMetrics(ctx, graph, pairNodes, labels, lcc, routed, rnd)
	if err != nil {
		return EmptyMetrics(), append(errs, err)
	}
	rec.Directness = directness.all
	rec.DirectnessLCC = directness.lcc
	rec.DirectnessAllLinkwise = directness.allLinkwise
	rec.DirectnessLCCLinkwise = directness.lccLinkwise

	rec.EfficiencyGlobalRouted, err = engine.efficiencyGlobal(ctx, graph, rnd)
	if err != nil {
		return EmptyMetrics(), append(errs, err)
	}
	rec.EfficiencyLocalRouted, err = engine.efficiencyLocal(ctx, graph, rnd)
	if err != nil {
		return EmptyMetrics(), append(errs, err)
	}
	if raw == nil {
		rec.EfficiencyGlobal = rec.EfficiencyGlobalRouted
		rec.EfficiencyLocal = rec.EfficiencyLocalRouted
	} else {
		rec.EfficiencyGlobal, err = engine.efficiencyGlobal(ctx, raw, rnd)
		if err != nil {
			return EmptyMetrics(), append(errs, err)
		}
		rec.EfficiencyLocal, err = engine.efficiencyLocal(ctx, raw, rnd)
		if err != nil {
			return EmptyMetrics(), append(errs, err)
		}
	}
	engine.logger.Debug("metrics computed",
		zap.Int("vertices", graph.order()),
		zap.Int("segments", len(routed.Segments)),
		zap.Int("components", rec.Components),
		zap.Duration("took", time.Since(st)),
	)
	return rec, errs
}

func (engine *MetricsEngine) referenceBound() orb.Bound {
	if len(engine.area) > 0 {
		return engine.area.Bound()
	}
	if engine.graph != nil && len(engine.graph.Nodes) > 0 {
		return engine.graph.Bound()
	}
	return orb.Bound{}
}

// referenceArea returns projected reference polygon
func (engine *MetricsEngine) referenceArea(frame localFrame) orb.Polygon {
	if len(engine.area) > 0 {
		poly := make(orb.Polygon, len(engine.area))
		for i, ring := range engine.area {
			poly[i] = orb.Ring(frame.projectLine(orb.LineString(ring)))
		}
		return poly
	}
	bound := engine.referenceBound()
	return orb.Polygon{orb.Ring(frame.projectLine(orb.LineString(bound.ToRing())))}
}

// abstractIdealGraph is abstract topology weighted by straight-line distances
func abstractIdealGraph(abstract *AbstractNetwork) *netGraph {
	position := make(map[int]int, len(abstract.Nodes))
	points := make([]orb.Point, len(abstract.Nodes))
	for i, idx := range abstract.Nodes {
		position[idx] = i
		points[i] = abstract.Graph.Nodes[idx].Point
	}
	graph := newNetGraph(points)
	for _, edge := range abstract.Edges {
		u, okU := position[edge.U]
		v, okV := position[edge.V]
		if !okU || !okV {
			continue
		}
		graph.addEdge(u, v, greatCircleDistance(points[u], points[v]))
	}
	return graph
}

// componentLength sums edge weights inside component with given label
func componentLength(graph *netGraph, labels []int, label int) float64 {
	if label < 0 {
		return 0
	}
	total := 0.0
	for u, arcs := range graph.adj {
		if labels[u] != label {
			continue
		}
		for _, arc := range arcs {
			if u < arc.to {
				total += arc.w
			}
		}
	}
	return total
}

// pairNodes returns POI vertices present in network when there are at least two, all vertices otherwise
func (engine *MetricsEngine) pairNodes(graph *netGraph, index map[pointKey]int) []int {
	nodes := make([]int, 0, len(engine.pois))
	seen := make(map[int]struct{}, len(engine.pois))
	for _, pt := range engine.pois {
		idx, ok := index[newPointKey(pt)]
		if !ok {
			continue
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		nodes = append(nodes, idx)
	}
	if len(nodes) >= 2 {
		return nodes
	}
	nodes = make([]int, graph.order())
	for i := range nodes {
		nodes[i] = i
	}
	return nodes
}

// sampleNodes keeps at most limit nodes chosen at random when there are more than threshold of them
func sampleNodes(nodes []int, threshold, limit int, rnd *rand.Rand) []int {
	if len(nodes) <= threshold || limit <= 0 || limit >= len(nodes) {
		return nodes
	}
	shuffled := append([]int(nil), nodes...)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:limit]
}

func wrapCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(ErrCancelled, err.Error())
	}
	return err
}
