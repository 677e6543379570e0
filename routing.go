package bikenet

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/LdDl/ch"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RoutingEngine maps abstract edges onto street shortest paths.
// Vertex labels of the underlying ch.Graph are street node indices
type RoutingEngine struct {
	graph       *StreetGraph
	chGraph     ch.Graph
	contraction bool
	mu          sync.Mutex
	logger      *zap.Logger
}

func WithContraction(contraction bool) func(*RoutingEngine) {
	return func(engine *RoutingEngine) {
		engine.contraction = contraction
	}
}

func WithRoutingLogger(logger *zap.Logger) func(*RoutingEngine) {
	return func(engine *RoutingEngine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// NewRoutingEngine prepares shortest path graph for given street graph.
// Contraction hierarchies are prepared unless disabled via WithContraction(false)
func NewRoutingEngine(graph *StreetGraph, options ...func(*RoutingEngine)) (*RoutingEngine, error) {
	engine := &RoutingEngine{
		graph:       graph,
		chGraph:     ch.Graph{},
		contraction: true,
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(engine)
	}
	for i := range graph.Nodes {
		err := engine.chGraph.CreateVertex(int64(i))
		if err != nil {
			return nil, errors.Wrap(err, "Can not create vertex")
		}
	}
	for _, edge := range graph.Edges {
		source := int64(edge.Source)
		target := int64(edge.Target)
		err := engine.chGraph.AddEdge(source, target, edge.Length)
		if err != nil {
			return nil, errors.Wrap(err, "Can not wrap Source and Target vertices as Edge")
		}
		err = engine.chGraph.AddEdge(target, source, edge.Length)
		if err != nil {
			return nil, errors.Wrap(err, "Can not wrap Target and Source vertices as Edge")
		}
	}
	if engine.contraction && len(graph.Edges) > 0 {
		st := time.Now()
		engine.chGraph.PrepareContractionHierarchies()
		engine.logger.Debug("contraction hierarchies prepared",
			zap.String("city", graph.CityID),
			zap.Int("vertices", len(graph.Nodes)),
			zap.Duration("took", time.Since(st)),
		)
	} else {
		engine.contraction = false
	}
	return engine, nil
}

// Graph returns street graph the engine routes on
func (engine *RoutingEngine) Graph() *StreetGraph {
	return engine.graph
}

// path returns cost and node indices of the shortest path between two street nodes (by index)
func (engine *RoutingEngine) path(u, v int) (float64, []int, bool) {
	if u == v {
		return 0, []int{u}, true
	}
	if engine.graph.Nodes[u].Component != engine.graph.Nodes[v].Component {
		return math.Inf(1), nil, false
	}
	engine.mu.Lock()
	var cost float64
	var labels []int64
	if engine.contraction {
		cost, labels = engine.chGraph.ShortestPath(int64(u), int64(v))
	} else {
		cost, labels = engine.chGraph.VanillaShortestPath(int64(u), int64(v))
	}
	engine.mu.Unlock()
	if cost < 0 || len(labels) == 0 {
		return math.Inf(1), nil, false
	}
	path := make([]int, len(labels))
	for i, label := range labels {
		path[i] = int(label)
	}
	return cost, path, true
}

// Distance returns street shortest path length between two nodes (by index); +Inf if unreachable
func (engine *RoutingEngine) Distance(u, v int) float64 {
	cost, _, _ := engine.path(u, v)
	return cost
}

// WeightFunc returns routed weighting for candidate POI pairs
func (engine *RoutingEngine) WeightFunc() WeightFunc {
	return engine.Distance
}

// Route realizes every edge of abstract network on streets.
// Unroutable edges are skipped with *UnreachableNodesError; each street edge is accounted once
func (engine *RoutingEngine) Route(ctx context.Context, net *AbstractNetwork) (*RoutedNetwork, []error) {
	routed := &RoutedNetwork{
		Segments: []Segment{},
		Routes:   make([]Route, 0, len(net.Edges)),
	}
	routed.Nodes = make([]RoutedNode, len(net.Nodes))
	for i, idx := range net.Nodes {
		routed.Nodes[i] = RoutedNode{ID: engine.graph.Nodes[idx].ID, Point: engine.graph.Nodes[idx].Point}
	}
	var errs []error
	consumed := make(map[int]struct{})
	for _, abstractEdge := range net.Edges {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return routed, errs
		}
		uID := engine.graph.Nodes[abstractEdge.U].ID
		vID := engine.graph.Nodes[abstractEdge.V].ID
		_, path, ok := engine.path(abstractEdge.U, abstractEdge.V)
		if !ok {
			errs = append(errs, &UnreachableNodesError{Source: uID, Target: vID})
			continue
		}
		pathEdges := make([]int, 0, len(path)-1)
		for i := 1; i < len(path); i++ {
			edgeIdx, found := engine.graph.EdgeBetween(path[i-1], path[i])
			if !found {
				break
			}
			pathEdges = append(pathEdges, edgeIdx)
		}
		if len(pathEdges) != len(path)-1 {
			errs = append(errs, errors.Errorf("Street path between nodes %d and %d is broken", uID, vID))
			continue
		}
		route := Route{U: uID, V: vID, Edges: make([]EdgeID, 0, len(pathEdges))}
		for i, edgeIdx := range pathEdges {
			edge := engine.graph.Edges[edgeIdx]
			route.Edges = append(route.Edges, edge.ID)
			route.Length += edge.Length
			route.Geom = appendLine(route.Geom, engine.graph.EdgeGeometry(edgeIdx, path[i]))
			if _, ok := consumed[edgeIdx]; ok {
				continue
			}
			consumed[edgeIdx] = struct{}{}
			routed.Segments = append(routed.Segments, Segment{
				EdgeID: edge.ID,
				Source: engine.graph.Nodes[edge.Source].ID,
				Target: engine.graph.Nodes[edge.Target].ID,
				Length: edge.Length,
				Geom:   edge.Geom,
			})
		}
		routed.Routes = append(routed.Routes, route)
	}
	return routed, errs
}
