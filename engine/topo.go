package engine

import (
	"strings"

	"github.com/nodegraph/dataflow/flow"
)

// taskDriven reports whether a node participates in the ordered walk.
// Streaming-mode nodes are data-driven: they contribute no ordering
// constraints and are launched as long-lived tasks instead.
func taskDriven(n flow.Node) bool {
	return n.Mode() == flow.ModeSequential || n.Mode() == flow.ModeHybrid
}

// topoOrder computes a Kahn ordering of the task-driven nodes using
// only value edges whose endpoints are both task-driven. In-degree
// ties are broken by declaration order, which is why the caller passes
// the node ids as an ordered slice rather than a map.
func topoOrder(declOrder []string, nodes map[string]flow.Node, valueEdges []flow.Connection) ([]string, error) {
	inTask := make(map[string]bool, len(nodes))
	for _, id := range declOrder {
		if n, ok := nodes[id]; ok && taskDriven(n) {
			inTask[id] = true
		}
	}

	indeg := make(map[string]int, len(inTask))
	succ := make(map[string][]string, len(inTask))
	for _, e := range valueEdges {
		if !inTask[e.Src.NodeID] || !inTask[e.Dst.NodeID] {
			continue
		}
		indeg[e.Dst.NodeID]++
		succ[e.Src.NodeID] = append(succ[e.Src.NodeID], e.Dst.NodeID)
	}

	visited := make(map[string]bool, len(inTask))
	order := make([]string, 0, len(inTask))
	for len(order) < len(inTask) {
		progressed := false
		for _, id := range declOrder {
			if !inTask[id] || visited[id] || indeg[id] > 0 {
				continue
			}
			visited[id] = true
			order = append(order, id)
			for _, next := range succ[id] {
				indeg[next]--
			}
			progressed = true
		}
		if !progressed {
			var stuck []string
			for _, id := range declOrder {
				if inTask[id] && !visited[id] {
					stuck = append(stuck, id)
				}
			}
			return nil, &flow.Error{Kind: flow.ErrCycle,
				Msg: "cycle among value edges: " + strings.Join(stuck, ",")}
		}
	}
	return order, nil
}
