package bikenet

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// PruneMeasure is the edge ranking used to grow networks
type PruneMeasure string

const (
	PRUNE_BETWEENNESS = PruneMeasure("betweenness")
	PRUNE_CLOSENESS   = PruneMeasure("closeness")
	PRUNE_RANDOM      = PruneMeasure("random")
)

// Validate checks that measure is known
func (measure PruneMeasure) Validate() error {
	switch measure {
	case PRUNE_BETWEENNESS, PRUNE_CLOSENESS, PRUNE_RANDOM:
		return nil
	default:
		return errors.Errorf("Unknown prune measure '%s'", measure)
	}
}

const (
	// DEFAULT_PRUNE_QUANTILES is number of quantiles in default sequence
	DEFAULT_PRUNE_QUANTILES = 40
	quantileEpsilon         = 1e-9
)

// PruneQuantiles is a strictly ascending sequence of thresholds in (0, 1]
type PruneQuantiles []float64

// DefaultPruneQuantiles returns [1/n, 2/n, ..., 1]
func DefaultPruneQuantiles(n int) PruneQuantiles {
	if n <= 0 {
		n = DEFAULT_PRUNE_QUANTILES
	}
	quantiles := make(PruneQuantiles, n)
	for i := range quantiles {
		quantiles[i] = float64(i+1) / float64(n)
	}
	return quantiles
}

// Validate checks the sequence invariants
func (quantiles PruneQuantiles) Validate() error {
	if len(quantiles) == 0 {
		return errors.New("Prune quantiles sequence is empty")
	}
	for i, q := range quantiles {
		if math.IsNaN(q) || q <= 0 || q > 1 {
			return errors.Errorf("Prune quantile #%d is out of (0, 1]: %f", i, q)
		}
		if i > 0 && q <= quantiles[i-1] {
			return errors.Errorf("Prune quantiles must be strictly ascending: #%d (%f) <= #%d (%f)", i, q, i-1, quantiles[i-1])
		}
	}
	return nil
}

// retainedCount returns number of top ranked edges admitted at quantile q out of m
func retainedCount(q float64, m int) int {
	k := int(math.Floor(q*float64(m) + quantileEpsilon))
	if k > m {
		k = m
	}
	if k < 0 {
		k = 0
	}
	return k
}

// rankEdges computes measure for every edge and assigns ranks: measure desc, weight asc, then edge order
func rankEdges(nodes []int, edges []AbstractEdge, measure PruneMeasure, seed int64) error {
	if len(edges) == 0 {
		return nil
	}
	graph, ends := abstractNetGraph(nodes, edges)
	switch measure {
	case PRUNE_BETWEENNESS:
		values := edgeBetweenness(graph)
		for i := range edges {
			edges[i].Measure = values[i]
		}
	case PRUNE_CLOSENESS:
		values := nodeCloseness(graph)
		for i := range edges {
			edges[i].Measure = math.Min(values[ends[i][0]], values[ends[i][1]])
		}
	case PRUNE_RANDOM:
		perm := rand.New(rand.NewSource(seed)).Perm(len(edges))
		for i := range edges {
			edges[i].Measure = float64(perm[i])
		}
	default:
		return errors.Errorf("Unknown prune measure '%s'", measure)
	}
	order := make([]int, len(edges))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := edges[order[a]], edges[order[b]]
		if ea.Measure != eb.Measure {
			return ea.Measure > eb.Measure
		}
		if ea.Weight != eb.Weight {
			return ea.Weight < eb.Weight
		}
		return order[a] < order[b]
	})
	for rank, idx := range order {
		edges[idx].Rank = rank
	}
	return nil
}

// abstractNetGraph converts abstract edges into netGraph over node positions.
// Edge numbers match positions in edges; ends holds endpoint positions per edge
func abstractNetGraph(nodes []int, edges []AbstractEdge) (*netGraph, [][2]int) {
	position := make(map[int]int, len(nodes))
	for i, idx := range nodes {
		position[idx] = i
	}
	graph := newNetGraph(make([]orb.Point, len(nodes)))
	ends := make([][2]int, len(edges))
	for i, edge := range edges {
		u, v := position[edge.U], position[edge.V]
		graph.addEdge(u, v, edge.Weight)
		ends[i] = [2]int{u, v}
	}
	return graph, ends
}

// edgeBetweenness is weighted edge betweenness (Brandes) for undirected graph
func edgeBetweenness(graph *netGraph) []float64 {
	n := graph.order()
	values := make([]float64, graph.edges)
	dist := make([]float64, n)
	sigma := make([]float64, n)
	delta := make([]float64, n)
	settled := make([]bool, n)
	preds := make([][]netArc, n)
	stack := make([]int, 0, n)
	for s := 0; s < n; s++ {
		for i := 0; i < n; i++ {
			dist[i] = math.Inf(1)
			sigma[i] = 0
			delta[i] = 0
			settled[i] = false
			preds[i] = preds[i][:0]
		}
		stack = stack[:0]
		dist[s] = 0
		sigma[s] = 1
		pq := &distQueue{{node: s, dist: 0}}
		for pq.Len() > 0 {
			item := heap.Pop(pq).(distItem)
			v := item.node
			if settled[v] || item.dist > dist[v] {
				continue
			}
			settled[v] = true
			stack = append(stack, v)
			for _, arc := range graph.adj[v] {
				w := arc.to
				if settled[w] {
					continue
				}
				alt := dist[v] + arc.w
				switch {
				case sameDistance(alt, dist[w]):
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], netArc{to: v, edge: arc.edge})
				case alt < dist[w]:
					dist[w] = alt
					sigma[w] = sigma[v]
					preds[w] = append(preds[w][:0], netArc{to: v, edge: arc.edge})
					heap.Push(pq, distItem{node: w, dist: alt})
				}
			}
		}
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, pred := range preds[w] {
				c := sigma[pred.to] / sigma[w] * (1 + delta[w])
				values[pred.edge] += c
				delta[pred.to] += c
			}
		}
	}
	// every pair was counted from both ends
	for i := range values {
		values[i] /= 2
	}
	return values
}

func sameDistance(a, b float64) bool {
	if math.IsInf(a, 1) || math.IsInf(b, 1) {
		return false
	}
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// nodeCloseness is closeness centrality scaled by reachable share (Wasserman-Faust)
func nodeCloseness(graph *netGraph) []float64 {
	n := graph.order()
	values := make([]float64, n)
	if n < 2 {
		return values
	}
	dist := make([]float64, n)
	for s := 0; s < n; s++ {
		graph.dijkstra(s, dist)
		reachable := 0
		total := 0.0
		for t, d := range dist {
			if t == s || math.IsInf(d, 1) {
				continue
			}
			reachable++
			total += d
		}
		if total > 0 {
			values[s] = float64(reachable) / total * float64(reachable) / float64(n-1)
		}
	}
	return values
}
