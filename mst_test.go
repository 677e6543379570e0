package bikenet

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSTTriangle(t *testing.T) {
	graph := triangleGraph(t)
	routing, err := NewRoutingEngine(graph, WithContraction(false))
	require.NoError(t, err)

	mst := NewMSTPlanner(nil).Plan(graph, nodeIndices(t, graph, 1, 2, 3), routing.WeightFunc())
	require.Len(t, mst.Edges, 2)
	weights := []float64{mst.Edges[0].Weight, mst.Edges[1].Weight}
	sort.Float64s(weights)
	assert.Equal(t, []float64{10, 15}, weights)
	assert.True(t, mst.Connected())
	assert.Equal(t, 0, mst.PruneIndex)

	routed, errs := routing.Route(context.Background(), mst)
	assert.Empty(t, errs)
	assert.Equal(t, 25.0, routed.Length())
}

func TestMSTSize(t *testing.T) {
	graph := gridGraph(t, 6, 0.001)
	_, pois := gridPOIs().OnGraph(graph)
	planner := NewMSTPlanner(nil)
	for n := 0; n <= len(pois); n++ {
		mst := planner.Plan(graph, pois[:n], EuclideanWeight(graph))
		expected := n - 1
		if expected < 0 {
			expected = 0
		}
		assert.Len(t, mst.Edges, expected)
		assert.True(t, mst.Connected())
	}
}

func TestMSTDeterministic(t *testing.T) {
	graph := gridGraph(t, 6, 0.001)
	_, pois := gridPOIs().OnGraph(graph)
	first := NewMSTPlanner(nil).Plan(graph, pois, EuclideanWeight(graph))
	second := NewMSTPlanner(nil).Plan(graph, pois, EuclideanWeight(graph))
	assert.Equal(t, first.Edges, second.Edges)
}

func TestMSTUnreachable(t *testing.T) {
	graph := twoComponentGraph(t)
	routing, err := NewRoutingEngine(graph)
	require.NoError(t, err)
	mst := NewMSTPlanner(nil).Plan(graph, nodeIndices(t, graph, 1, 2, 3), routing.WeightFunc())
	assert.Len(t, mst.Edges, 2)
	assert.True(t, mst.Connected())
}
