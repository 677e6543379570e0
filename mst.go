package bikenet

import (
	"time"

	"go.uber.org/zap"
)

// Connectivity names of generated variants
const (
	CONNECTIVITY_GT  = "GTs"
	CONNECTIVITY_MST = "MST"
)

// MSTPlanner builds minimum spanning tree over POIs
type MSTPlanner struct {
	logger *zap.Logger
}

func NewMSTPlanner(logger *zap.Logger) *MSTPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MSTPlanner{logger: logger}
}

// Plan runs Kruskal over complete weighted graph on POIs (street node indices).
// Ties are resolved by POI order, so the tree is deterministic. Result has max(N-1, 0) edges
func (planner *MSTPlanner) Plan(graph *StreetGraph, pois []int, weight WeightFunc) *AbstractNetwork {
	st := time.Now()
	net := &AbstractNetwork{
		Graph:      graph,
		Nodes:      append([]int(nil), pois...),
		Quantile:   1,
		PruneIndex: 0,
	}
	if len(pois) < 2 {
		return net
	}
	net.Edges = make([]AbstractEdge, 0, len(pois)-1)
	sets := newDisjointSet(len(pois))
	for _, c := range candidatePairs(pois, weight) {
		if !sets.union(c.I, c.J) {
			continue
		}
		net.Edges = append(net.Edges, AbstractEdge{U: pois[c.I], V: pois[c.J], Weight: c.Weight, Rank: len(net.Edges)})
		if len(net.Edges) == len(pois)-1 {
			break
		}
	}
	planner.logger.Debug("minimum spanning tree done",
		zap.String("city", graph.CityID),
		zap.Int("pois", len(pois)),
		zap.Float64("weight", net.Weight()),
		zap.Duration("took", time.Since(st)),
	)
	return net
}
