package bikenet

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TriangulationPlanner grows greedy triangulation networks over POIs
type TriangulationPlanner struct {
	measure   PruneMeasure
	quantiles PruneQuantiles
	seed      int64
	logger    *zap.Logger
}

func (planner *TriangulationPlanner) String() string {
	return fmt.Sprintf(`
Triangulation planner parameters:
	prune_measure: '%s'
	prune_quantiles: %d
	seed: %d
	`,
		planner.measure,
		len(planner.quantiles),
		planner.seed,
	)
}

// NewTriangulationPlanner returns planner with betweenness pruning and default quantiles unless overridden
func NewTriangulationPlanner(options ...func(*TriangulationPlanner)) *TriangulationPlanner {
	planner := &TriangulationPlanner{
		measure:   PRUNE_BETWEENNESS,
		quantiles: DefaultPruneQuantiles(DEFAULT_PRUNE_QUANTILES),
		seed:      0,
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(planner)
	}
	return planner
}

func WithPruneMeasure(measure PruneMeasure) func(*TriangulationPlanner) {
	return func(planner *TriangulationPlanner) {
		planner.measure = measure
	}
}

func WithPruneQuantiles(quantiles PruneQuantiles) func(*TriangulationPlanner) {
	return func(planner *TriangulationPlanner) {
		planner.quantiles = quantiles
	}
}

func WithPruneSeed(seed int64) func(*TriangulationPlanner) {
	return func(planner *TriangulationPlanner) {
		planner.seed = seed
	}
}

func WithPlannerLogger(logger *zap.Logger) func(*TriangulationPlanner) {
	return func(planner *TriangulationPlanner) {
		if logger != nil {
			planner.logger = logger
		}
	}
}

// Quantiles returns the configured sequence
func (planner *TriangulationPlanner) Quantiles() PruneQuantiles {
	return planner.quantiles
}

// Plan returns the maximal greedy triangulation over POIs (street node indices) and
// one network per prune quantile. Network i is contained in network i+1
func (planner *TriangulationPlanner) Plan(ctx context.Context, graph *StreetGraph, pois []int, weight WeightFunc) (*AbstractNetwork, []*AbstractNetwork, error) {
	if err := planner.measure.Validate(); err != nil {
		return nil, nil, err
	}
	if err := planner.quantiles.Validate(); err != nil {
		return nil, nil, err
	}
	st := time.Now()
	pairs := candidatePairs(pois, weight)
	var accepted []candidate
	var err error
	if len(pois) < 3 {
		accepted = pairs
	} else {
		accepted, err = greedyTriangulation(ctx, graph, pois, pairs)
		if err != nil {
			return nil, nil, err
		}
	}

	maximal := &AbstractNetwork{
		Graph:      graph,
		Nodes:      append([]int(nil), pois...),
		Edges:      make([]AbstractEdge, len(accepted)),
		Quantile:   1,
		PruneIndex: -1,
	}
	for i, c := range accepted {
		maximal.Edges[i] = AbstractEdge{U: pois[c.I], V: pois[c.J], Weight: c.Weight, Rank: -1}
	}
	if err := rankEdges(maximal.Nodes, maximal.Edges, planner.measure, planner.seed); err != nil {
		return nil, nil, errors.Wrap(err, "Can't rank triangulation edges")
	}

	networks := make([]*AbstractNetwork, len(planner.quantiles))
	for idx, q := range planner.quantiles {
		networks[idx] = pruneNetwork(maximal, q, idx)
	}
	planner.logger.Debug("greedy triangulation done",
		zap.String("city", graph.CityID),
		zap.Int("pois", len(pois)),
		zap.Int("edges", len(maximal.Edges)),
		zap.String("prune_measure", string(planner.measure)),
		zap.Duration("took", time.Since(st)),
	)
	return maximal, networks, nil
}

// pruneNetwork keeps edges ranked within top q fraction. Nodes are endpoints of kept edges in POI order
func pruneNetwork(maximal *AbstractNetwork, q float64, pruneIndex int) *AbstractNetwork {
	k := retainedCount(q, len(maximal.Edges))
	net := &AbstractNetwork{
		Graph:      maximal.Graph,
		Quantile:   q,
		PruneIndex: pruneIndex,
		Edges:      make([]AbstractEdge, 0, k),
	}
	used := make(map[int]struct{}, 2*k)
	for _, edge := range maximal.Edges {
		if edge.Rank < 0 || edge.Rank >= k {
			continue
		}
		net.Edges = append(net.Edges, edge)
		used[edge.U] = struct{}{}
		used[edge.V] = struct{}{}
	}
	net.Nodes = make([]int, 0, len(used))
	for _, idx := range maximal.Nodes {
		if _, ok := used[idx]; ok {
			net.Nodes = append(net.Nodes, idx)
		}
	}
	return net
}

// greedyTriangulation accepts candidate pairs in order unless they cross an accepted one.
// Pairs with infinite weight (unreachable on streets) are never accepted
func greedyTriangulation(ctx context.Context, graph *StreetGraph, pois []int, pairs []candidate) ([]candidate, error) {
	frame := newLocalFrameForBound(graph.Bound())
	projected := make([]orb.Point, len(pois))
	for i, idx := range pois {
		projected[i] = frame.project(graph.Nodes[idx].Point)
	}
	// a planar graph on n vertices has at most 3n-6 edges
	maxEdges := 3*len(pois) - 6
	accepted := make([]candidate, 0, maxEdges)
	bounds := make([]orb.Bound, 0, maxEdges)
	for i, c := range pairs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(accepted) >= maxEdges {
			break
		}
		if math.IsInf(c.Weight, 1) {
			break
		}
		p1, p2 := projected[c.I], projected[c.J]
		bound := orb.LineString{p1, p2}.Bound().Pad(planarEpsilon)
		crosses := false
		for j, other := range accepted {
			if !bound.Intersects(bounds[j]) {
				continue
			}
			if segmentsCross(p1, p2, projected[other.I], projected[other.J]) {
				crosses = true
				break
			}
		}
		if crosses {
			continue
		}
		accepted = append(accepted, c)
		bounds = append(bounds, bound)
	}
	return accepted, nil
}
