package bikenet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingContractionMatchesDijkstra(t *testing.T) {
	graph := gridGraph(t, 5, 0.001)
	contracted, err := NewRoutingEngine(graph)
	require.NoError(t, err)
	plain, err := NewRoutingEngine(graph, WithContraction(false))
	require.NoError(t, err)

	pairs := [][2]int{{0, 24}, {3, 20}, {7, 13}, {12, 12}}
	for _, pair := range pairs {
		assert.InDelta(t, plain.Distance(pair[0], pair[1]), contracted.Distance(pair[0], pair[1]), 1e-6)
	}
	assert.Equal(t, 0.0, plain.Distance(12, 12))
}

func TestRouteCountsStreetEdgesOnce(t *testing.T) {
	graph := gridGraph(t, 5, 0.001)
	routing, err := NewRoutingEngine(graph, WithContraction(false))
	require.NoError(t, err)
	nodes := nodeIndices(t, graph, gridNodeID(0, 0, 5), gridNodeID(0, 2, 5), gridNodeID(0, 3, 5))

	single := &AbstractNetwork{
		Graph: graph,
		Nodes: []int{nodes[0], nodes[2]},
		Edges: []AbstractEdge{{U: nodes[0], V: nodes[2]}},
	}
	shared := &AbstractNetwork{
		Graph: graph,
		Nodes: nodes,
		Edges: []AbstractEdge{
			{U: nodes[0], V: nodes[2]},
			{U: nodes[0], V: nodes[1]},
			{U: nodes[1], V: nodes[2]},
		},
	}
	ctx := context.Background()
	routedSingle, errs := routing.Route(ctx, single)
	require.Empty(t, errs)
	routedShared, errs := routing.Route(ctx, shared)
	require.Empty(t, errs)

	assert.Len(t, routedSingle.Segments, 3)
	assert.Len(t, routedShared.Segments, 3)
	assert.Len(t, routedShared.Routes, 3)
	assert.InDelta(t, routedSingle.Length(), routedShared.Length(), 1e-9)
	assert.InDelta(t, routing.Distance(nodes[0], nodes[2]), routedShared.Length(), 1e-6)

	route := routedShared.Routes[0]
	assert.Equal(t, graph.Nodes[nodes[0]].Point, route.Geom[0])
	assert.Equal(t, graph.Nodes[nodes[2]].Point, route.Geom[len(route.Geom)-1])
	assert.Len(t, route.Geom, 4)
}

func TestRouteUnreachable(t *testing.T) {
	graph := twoComponentGraph(t)
	routing, err := NewRoutingEngine(graph)
	require.NoError(t, err)
	pois := nodeIndices(t, graph, 1, 3)

	_, networks, err := NewTriangulationPlanner(WithPruneQuantiles(PruneQuantiles{1})).Plan(context.Background(), graph, pois, EuclideanWeight(graph))
	require.NoError(t, err)
	require.Len(t, networks[0].Edges, 1)

	routed, errs := routing.Route(context.Background(), networks[0])
	require.Len(t, errs, 1)
	assert.True(t, IsUnreachable(errs[0]))
	assert.True(t, routed.Empty())
	assert.Len(t, routed.Nodes, 2)

	metrics := NewMetricsEngine(graph, POISet{1, 3}, WithWorkers(2))
	rec, errs := metrics.Compute(context.Background(), networks[0], routed)
	assert.Empty(t, errs)
	assert.Equal(t, 2, rec.Components)
	assert.Equal(t, 0.0, rec.Length)
}

func TestRouteCancelled(t *testing.T) {
	graph := triangleGraph(t)
	routing, err := NewRoutingEngine(graph)
	require.NoError(t, err)
	mst := NewMSTPlanner(nil).Plan(graph, nodeIndices(t, graph, 1, 2, 3), EuclideanWeight(graph))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	routed, errs := routing.Route(ctx, mst)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[len(errs)-1], context.Canceled)
	assert.True(t, routed.Empty())
}
