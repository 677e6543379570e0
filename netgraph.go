package bikenet

import (
	"container/heap"
	"math"

	"github.com/paulmach/orb"
)

// netArc is one direction of an undirected edge in netGraph
type netArc struct {
	to   int
	w    float64
	edge int
}

// netGraph is a light undirected weighted graph used for measures and metrics.
// Nodes are dense indices, edges are numbered in insertion order
type netGraph struct {
	points []orb.Point
	adj    [][]netArc
	edges  int
}

func newNetGraph(points []orb.Point) *netGraph {
	return &netGraph{
		points: points,
		adj:    make([][]netArc, len(points)),
	}
}

func (g *netGraph) order() int {
	return len(g.points)
}

// addEdge adds undirected edge and returns its number. Self-loops are ignored (-1)
func (g *netGraph) addEdge(u, v int, w float64) int {
	if u == v {
		return -1
	}
	id := g.edges
	g.adj[u] = append(g.adj[u], netArc{to: v, w: w, edge: id})
	g.adj[v] = append(g.adj[v], netArc{to: u, w: w, edge: id})
	g.edges++
	return id
}

// neighbours returns distinct adjacent nodes
func (g *netGraph) neighbours(u int) []int {
	seen := make(map[int]struct{}, len(g.adj[u]))
	out := make([]int, 0, len(g.adj[u]))
	for _, arc := range g.adj[u] {
		if _, ok := seen[arc.to]; ok {
			continue
		}
		seen[arc.to] = struct{}{}
		out = append(out, arc.to)
	}
	return out
}

// inducedSubgraph returns graph on given nodes keeping edges between them
func (g *netGraph) inducedSubgraph(nodes []int) *netGraph {
	position := make(map[int]int, len(nodes))
	points := make([]orb.Point, len(nodes))
	for i, u := range nodes {
		position[u] = i
		points[i] = g.points[u]
	}
	sub := newNetGraph(points)
	for i, u := range nodes {
		for _, arc := range g.adj[u] {
			j, ok := position[arc.to]
			if !ok || j <= i {
				continue
			}
			sub.addEdge(i, j, arc.w)
		}
	}
	return sub
}

// components labels connected components; returns labels and their count
func (g *netGraph) components() ([]int, int) {
	labels := make([]int, g.order())
	for i := range labels {
		labels[i] = -1
	}
	count := 0
	stack := []int{}
	for start := range labels {
		if labels[start] >= 0 {
			continue
		}
		labels[start] = count
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, arc := range g.adj[u] {
				if labels[arc.to] < 0 {
					labels[arc.to] = count
					stack = append(stack, arc.to)
				}
			}
		}
		count++
	}
	return labels, count
}

// largestComponent returns label of component with the most nodes (lowest label on ties) or -1 for empty graph
func largestComponent(labels []int, count int) int {
	if count == 0 {
		return -1
	}
	sizes := make([]int, count)
	for _, label := range labels {
		sizes[label]++
	}
	best := 0
	for label := 1; label < count; label++ {
		if sizes[label] > sizes[best] {
			best = label
		}
	}
	return best
}

// dijkstra fills dist with shortest distances from source; unreachable nodes get +Inf
func (g *netGraph) dijkstra(source int, dist []float64) {
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[source] = 0
	pq := &distQueue{{node: source, dist: 0}}
	for pq.Len() > 0 {
		item := heap.Pop(pq).(distItem)
		if item.dist > dist[item.node] {
			continue
		}
		for _, arc := range g.adj[item.node] {
			alt := item.dist + arc.w
			if alt < dist[arc.to] {
				dist[arc.to] = alt
				heap.Push(pq, distItem{node: arc.to, dist: alt})
			}
		}
	}
}

type distItem struct {
	node int
	dist float64
}

// distQueue is a min-heap by distance (lower node index first on ties)
type distQueue []distItem

func (pq distQueue) Len() int { return len(pq) }

func (pq distQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}

func (pq distQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *distQueue) Push(x interface{}) {
	*pq = append(*pq, x.(distItem))
}

func (pq *distQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
