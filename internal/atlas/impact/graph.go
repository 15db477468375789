package impact

import (
	"container/heap"
	"math"
	"sort"

	"ospfatlas/internal/atlas/domain"
)

// graph is a directed, weighted adjacency view of a topology snapshot.
// Routing follows the directed edges exactly as advertised, so asymmetric
// costs produce asymmetric paths.
type graph struct {
	nodes []string
	adj   map[string][]arc
}

type arc struct {
	to   string
	cost int
}

func newGraph(snapshot *domain.TopologySnapshot) *graph {
	g := &graph{adj: make(map[string][]arc)}
	for _, n := range snapshot.Nodes {
		g.nodes = append(g.nodes, n.ID)
		g.adj[n.ID] = nil
	}
	for _, e := range snapshot.Edges {
		// Edges may point at routers outside the node set (unparsed
		// neighbors); those carry no reverse data and are not routable.
		if _, ok := g.adj[e.Source]; !ok {
			continue
		}
		if _, ok := g.adj[e.Target]; !ok {
			continue
		}
		g.adj[e.Source] = append(g.adj[e.Source], arc{to: e.Target, cost: e.Cost})
	}
	sort.Strings(g.nodes)
	for id := range g.adj {
		arcs := g.adj[id]
		sort.SliceStable(arcs, func(i, j int) bool {
			if arcs[i].to != arcs[j].to {
				return arcs[i].to < arcs[j].to
			}
			return arcs[i].cost < arcs[j].cost
		})
		g.adj[id] = arcs
	}
	return g
}

// pathResult is the best route from one source to one target.
type pathResult struct {
	cost int
	path []string // source..target inclusive; nil when unreachable
}

type pqItem struct {
	node string
	dist int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// shortestPathsFrom runs Dijkstra from source. Ties between equal-cost
// paths break toward the lexicographically smaller predecessor so repeated
// runs over the same graph always return the same paths.
func (g *graph) shortestPathsFrom(source string) map[string]pathResult {
	dist := make(map[string]int, len(g.nodes))
	prev := make(map[string]string, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		dist[n] = math.MaxInt
	}
	dist[source] = 0

	pq := &priorityQueue{{node: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if done[item.node] || item.dist > dist[item.node] {
			continue
		}
		done[item.node] = true

		for _, a := range g.adj[item.node] {
			next := item.dist + a.cost
			switch {
			case next < dist[a.to]:
				dist[a.to] = next
				prev[a.to] = item.node
				heap.Push(pq, pqItem{node: a.to, dist: next})
			case next == dist[a.to] && !done[a.to] && item.node < prev[a.to]:
				prev[a.to] = item.node
			}
		}
	}

	results := make(map[string]pathResult, len(g.nodes))
	for _, target := range g.nodes {
		if target == source {
			continue
		}
		if dist[target] == math.MaxInt {
			results[target] = pathResult{cost: -1}
			continue
		}
		var path []string
		for at := target; ; at = prev[at] {
			path = append(path, at)
			if at == source {
				break
			}
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		results[target] = pathResult{cost: dist[target], path: path}
	}
	return results
}
