package bikenet

import (
	"context"
	"math"
	"math/rand"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// distanceMatrix runs single-source Dijkstra from every source on the worker pool.
// Row i holds distances from sources[i] to each of targets; rows are stored by source position
func (engine *MetricsEngine) distanceMatrix(ctx context.Context, graph *netGraph, sources, targets []int) ([][]float64, error) {
	rows := make([][]float64, len(sources))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(engine.workers)
	for i := range sources {
		i := i
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dist := make([]float64, graph.order())
			graph.dijkstra(sources[i], dist)
			row := make([]float64, len(targets))
			for j, target := range targets {
				row[j] = dist[target]
			}
			rows[i] = row
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, wrapCancel(err)
	}
	return rows, nil
}

type directnessResult struct {
	all         float64
	lcc         float64
	allLinkwise float64
	lccLinkwise float64
}

type directnessAcc struct {
	euclid   float64
	network  float64
	ratioSum float64
	ratioNum int
	linkSum  float64
	linkNum  int
}

func (acc *directnessAcc) add(euclid, network float64) {
	ratio := 0.0
	if !math.IsInf(network, 1) && network > 0 {
		ratio = euclid / network
		acc.euclid += euclid
		acc.network += network
		acc.ratioSum += ratio
		acc.ratioNum++
	}
	acc.linkSum += ratio
	acc.linkNum++
}

func (acc *directnessAcc) directness(mode DirectnessMode) float64 {
	if mode == DIRECTNESS_MEAN {
		if acc.ratioNum == 0 {
			return 0
		}
		return acc.ratioSum / float64(acc.ratioNum)
	}
	if acc.network == 0 {
		return 0
	}
	return acc.euclid / acc.network
}

func (acc *directnessAcc) linkwise() float64 {
	if acc.linkNum == 0 {
		return 0
	}
	return acc.linkSum / float64(acc.linkNum)
}

// directnessMetrics estimates path-level and linkwise directness over sampled node pairs
func (engine *MetricsEngine) directnessMetrics(ctx context.Context, graph *netGraph, pairNodes []int, labels []int, lcc int, routed *RoutedNetwork, rnd *rand.Rand) (directnessResult, error) {
	res := directnessResult{}
	nodes := sampleNodes(pairNodes, 2*engine.numNodePairs, engine.numNodePairs, rnd)
	if len(nodes) < 2 {
		return res, nil
	}
	rows, err := engine.distanceMatrix(ctx, graph, nodes, nodes)
	if err != nil {
		return res, err
	}
	all := directnessAcc{}
	inLCC := directnessAcc{}
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			u, v := nodes[i], nodes[j]
			euclid := greatCircleDistance(graph.points[u], graph.points[v])
			all.add(euclid, rows[i][j])
			if labels[u] == lcc && labels[v] == lcc {
				inLCC.add(euclid, rows[i][j])
			}
		}
	}
	res.all = all.directness(engine.directness)
	res.lcc = inLCC.directness(engine.directness)
	if engine.linkwise == LINKWISE_EDGES {
		res.allLinkwise, res.lccLinkwise = edgeDirectness(graph, labels, lcc, routed)
	} else {
		res.allLinkwise = all.linkwise()
		res.lccLinkwise = inLCC.linkwise()
	}
	return res, nil
}

type linkLine struct {
	first  pointKey
	euclid float64
	length float64
}

// edgeDirectness is mean ratio of straight-line to routed length over routes (segments when there are no routes)
func edgeDirectness(graph *netGraph, labels []int, lcc int, routed *RoutedNetwork) (float64, float64) {
	lines := make([]linkLine, 0, len(routed.Routes))
	add := func(first, last orb.Point, length float64) {
		lines = append(lines, linkLine{
			first:  newPointKey(first),
			euclid: greatCircleDistance(first, last),
			length: length,
		})
	}
	if len(routed.Routes) > 0 {
		for _, route := range routed.Routes {
			if !validLine(route.Geom) {
				continue
			}
			add(route.Geom[0], route.Geom[len(route.Geom)-1], route.Length)
		}
	} else {
		for _, seg := range routed.Segments {
			if !validLine(seg.Geom) {
				continue
			}
			add(seg.Geom[0], seg.Geom[len(seg.Geom)-1], seg.Length)
		}
	}
	index := make(map[pointKey]int, graph.order())
	for i, pt := range graph.points {
		index[newPointKey(pt)] = i
	}
	all := directnessAcc{}
	inLCC := directnessAcc{}
	for _, line := range lines {
		all.add(line.euclid, line.length)
		u, okU := index[line.first]
		if okU && labels[u] == lcc {
			inLCC.add(line.euclid, line.length)
		}
	}
	return all.linkwise(), inLCC.linkwise()
}

// efficiencyGlobal is sum of inverse network distances normalized by sum of inverse straight-line distances
func (engine *MetricsEngine) efficiencyGlobal(ctx context.Context, graph *netGraph, rnd *rand.Rand) (float64, error) {
	if graph.order() < 2 {
		return 0, nil
	}
	nodes := make([]int, graph.order())
	for i := range nodes {
		nodes[i] = i
	}
	nodes = sampleNodes(nodes, engine.numNodePairs, engine.numNodePairs, rnd)
	rows, err := engine.distanceMatrix(ctx, graph, nodes, nodes)
	if err != nil {
		return 0, err
	}
	return globalEfficiency(graph, nodes, rows), nil
}

func globalEfficiency(graph *netGraph, nodes []int, rows [][]float64) float64 {
	actual := 0.0
	ideal := 0.0
	for i, u := range nodes {
		for j, v := range nodes {
			if i == j {
				continue
			}
			euclid := greatCircleDistance(graph.points[u], graph.points[v])
			if euclid <= 0 {
				continue
			}
			ideal += 1 / euclid
			if d := rows[i][j]; !math.IsInf(d, 1) && d > 0 {
				actual += 1 / d
			}
		}
	}
	if ideal == 0 {
		return 0
	}
	return actual / ideal
}

// efficiencyLocal is mean over (sampled) nodes of global efficiency of their neighbourhood subgraphs.
// Nodes with less than two neighbours contribute 0
func (engine *MetricsEngine) efficiencyLocal(ctx context.Context, graph *netGraph, rnd *rand.Rand) (float64, error) {
	if graph.order() == 0 {
		return 0, nil
	}
	nodes := make([]int, graph.order())
	for i := range nodes {
		nodes[i] = i
	}
	nodes = sampleNodes(nodes, engine.numNodePairs, engine.numNodePairs, rnd)
	total := 0.0
	for i, u := range nodes {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, wrapCancel(err)
			}
		}
		neighbours := graph.neighbours(u)
		if len(neighbours) < 2 {
			continue
		}
		sub := graph.inducedSubgraph(neighbours)
		subNodes := make([]int, sub.order())
		rows := make([][]float64, sub.order())
		for k := range subNodes {
			subNodes[k] = k
			rows[k] = make([]float64, sub.order())
			sub.dijkstra(k, rows[k])
		}
		total += globalEfficiency(sub, subNodes, rows)
	}
	return total / float64(len(nodes)), nil
}
