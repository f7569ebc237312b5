package wansim

// conncheck.go checks the physical topology before a run.  The links are
// expressed as a weighted undirected graph and shortest-path trees answer
// whether every node can physically reach every other, so a scenario with a
// partitioned topology is reported before any traffic is generated.

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// buildConnGraph returns a graph.Graph representation of the topology's
// nodes and links.  Node ids in the graph are the topology's node ids.
func buildConnGraph(topo *Topology) (graph.Graph, map[int]simple.Node) {
	gNodes := make(map[int]simple.Node)
	connGraph := simple.NewWeightedUndirectedGraph(0, math.Inf(1))

	for _, node := range topo.nodeByID {
		_, present := gNodes[node.id]
		if present {
			continue
		}
		gNodes[node.id] = simple.Node(node.id)
	}

	for _, link := range topo.links {
		id1 := link.endpts[0].device.id
		id2 := link.endpts[1].device.id
		weightedEdge := simple.WeightedEdge{F: gNodes[id1], T: gNodes[id2], W: link.latency}
		connGraph.SetWeightedEdge(weightedEdge)
	}
	return connGraph, gNodes
}

// CheckConnectivity reports whether the physical topology connects every
// pair of nodes.  A shortest path tree is computed from each node; any
// unreachable peer makes the check fail.
func CheckConnectivity(topo *Topology) error {
	nodes := topo.Nodes()
	if len(nodes) < 2 {
		return nil
	}

	connGraph, gNodes := buildConnGraph(topo)

	errList := []error{}
	for _, src := range nodes {
		spTree := path.DijkstraFrom(gNodes[src.id], connGraph)
		for _, dst := range nodes {
			if src.id == dst.id {
				continue
			}
			_, weight := spTree.To(int64(dst.id))
			if math.IsInf(weight, 1) {
				errList = append(errList,
					topoErrorf("no physical path from node %s to node %s", src.name, dst.name))
			}
		}
	}
	return ReportErrs(errList)
}
