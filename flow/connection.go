package flow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nodegraph/dataflow/schema"
)

// Endpoint names a single (node, port) pair.
type Endpoint struct {
	NodeID string
	Port   string
}

func (e Endpoint) String() string { return e.NodeID + "." + e.Port }

// ParseEndpoint splits a "<node_id>.<port_name>" reference.
func ParseEndpoint(ref string) (Endpoint, error) {
	nodeID, port, ok := strings.Cut(ref, ".")
	if !ok || nodeID == "" || port == "" {
		return Endpoint{}, fmt.Errorf("flow: malformed endpoint reference %q", ref)
	}
	return Endpoint{NodeID: nodeID, Port: port}, nil
}

// EdgeSpec is the raw (from, to) pair as parsed from a workflow
// description, before validation against the node set.
type EdgeSpec struct {
	From string
	To   string
}

// Connection is a validated directed edge between two port endpoints.
type Connection struct {
	Src  Endpoint
	Dst  Endpoint
	Kind string // "streaming" or "value", mirrors schema.Kind
}

// Graph holds the validated connection set for a workflow and the
// indices needed to answer routing and ordering queries in O(1)/O(deg).
type Graph struct {
	nodes map[string]Node

	edges []Connection

	bySource map[Endpoint][]Connection
	byDest   map[Endpoint][]Connection

	streamingEdges []Connection
	valueEdges     []Connection
}

// BuildGraph executes the edge building rules in order: unknown
// endpoints, kind mismatches, schema mismatches, then indexing and
// value-edge cycle detection.
func BuildGraph(nodes map[string]Node, specs []EdgeSpec) (*Graph, error) {
	g := &Graph{
		nodes:    nodes,
		bySource: make(map[Endpoint][]Connection),
		byDest:   make(map[Endpoint][]Connection),
	}

	for _, spec := range specs {
		srcRef, err := ParseEndpoint(spec.From)
		if err != nil {
			return nil, newf(ErrUnknownEndpoint, "", "", "%v", err)
		}
		dstRef, err := ParseEndpoint(spec.To)
		if err != nil {
			return nil, newf(ErrUnknownEndpoint, "", "", "%v", err)
		}

		srcNode, ok := nodes[srcRef.NodeID]
		if !ok {
			return nil, newf(ErrUnknownEndpoint, srcRef.NodeID, srcRef.Port, "source node does not exist")
		}
		srcPort, ok := srcNode.Outputs()[srcRef.Port]
		if !ok {
			return nil, newf(ErrUnknownEndpoint, srcRef.NodeID, srcRef.Port, "source output port does not exist")
		}

		dstNode, ok := nodes[dstRef.NodeID]
		if !ok {
			return nil, newf(ErrUnknownEndpoint, dstRef.NodeID, dstRef.Port, "destination node does not exist")
		}
		dstPort, ok := dstNode.Inputs()[dstRef.Port]
		if !ok {
			return nil, newf(ErrUnknownEndpoint, dstRef.NodeID, dstRef.Port, "destination input port does not exist")
		}

		if srcPort.Schema.Kind != dstPort.Schema.Kind {
			return nil, newf(ErrKindMismatch, "", "", "%s (%s) -> %s (%s)",
				srcRef, srcPort.Schema.Kind, dstRef, dstPort.Schema.Kind)
		}
		if !schema.Equal(srcPort.Schema, dstPort.Schema) {
			return nil, newf(ErrSchemaMismatch, "", "", "%s schema %s does not match %s schema %s",
				srcRef, srcPort.Schema, dstRef, dstPort.Schema)
		}

		conn := Connection{Src: srcRef, Dst: dstRef, Kind: string(srcPort.Schema.Kind)}
		g.edges = append(g.edges, conn)
		g.bySource[srcRef] = append(g.bySource[srcRef], conn)
		g.byDest[dstRef] = append(g.byDest[dstRef], conn)
		if conn.Kind == "streaming" {
			g.streamingEdges = append(g.streamingEdges, conn)
		} else {
			g.valueEdges = append(g.valueEdges, conn)
		}
	}

	if cyc := detectCycle(nodes, g.valueEdges); len(cyc) > 0 {
		return nil, newf(ErrCycle, "", "", "cycle among value edges: %s", strings.Join(cyc, ","))
	}

	return g, nil
}

// StreamTargets implements Router: given a source (nodeID, port),
// returns every destination Instance fed by streaming fan-out.
func (g *Graph) StreamTargets(nodeID, port string) []*Instance {
	src := Endpoint{NodeID: nodeID, Port: port}
	conns := g.bySource[src]
	targets := make([]*Instance, 0, len(conns))
	for _, c := range conns {
		if c.Kind != "streaming" {
			continue
		}
		dstNode := g.nodes[c.Dst.NodeID]
		if dstNode == nil {
			continue
		}
		if p, ok := dstNode.Inputs()[c.Dst.Port]; ok {
			targets = append(targets, p)
		}
	}
	return targets
}

// ValueTargets returns every destination Instance fed by a value-kind
// source port, used by the scheduler to propagate a sequential/hybrid
// node's value outputs after it runs.
func (g *Graph) ValueTargets(nodeID, port string) []*Instance {
	src := Endpoint{NodeID: nodeID, Port: port}
	conns := g.bySource[src]
	targets := make([]*Instance, 0, len(conns))
	for _, c := range conns {
		if c.Kind != "value" {
			continue
		}
		dstNode := g.nodes[c.Dst.NodeID]
		if dstNode == nil {
			continue
		}
		if p, ok := dstNode.Inputs()[c.Dst.Port]; ok {
			targets = append(targets, p)
		}
	}
	return targets
}

// Sources returns the list of source endpoints feeding dst, answering
// "who feeds this port?" in O(1) amortized (map lookup + linear scan
// of its small fan-in list).
func (g *Graph) Sources(dst Endpoint) []Endpoint {
	conns := g.byDest[dst]
	out := make([]Endpoint, len(conns))
	for i, c := range conns {
		out[i] = c.Src
	}
	return out
}

// ValueEdges returns the classification list of value-kind edges.
func (g *Graph) ValueEdges() []Connection { return append([]Connection(nil), g.valueEdges...) }

// StreamingEdges returns the classification list of streaming-kind
// edges.
func (g *Graph) StreamingEdges() []Connection {
	return append([]Connection(nil), g.streamingEdges...)
}

// Edges returns every validated connection, in declaration order.
func (g *Graph) Edges() []Connection { return append([]Connection(nil), g.edges...) }

// detectCycle runs a DFS cycle check restricted to the value-edge
// subgraph; on success returns nil, on failure returns the
// participating node ids in a deterministic (sorted) order for the
// error message.
func detectCycle(nodes map[string]Node, valueEdges []Connection) []string {
	adj := make(map[string][]string)
	for _, e := range valueEdges {
		adj[e.Src.NodeID] = append(adj[e.Src.NodeID], e.Dst.NodeID)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var cyclic []string
	var dfs func(n string) bool
	dfs = func(n string) bool {
		color[n] = gray
		for _, m := range adj[n] {
			switch color[m] {
			case gray:
				cyclic = append(cyclic, n, m)
				return true
			case white:
				if dfs(m) {
					cyclic = append(cyclic, n)
					return true
				}
			}
		}
		color[n] = black
		return false
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if dfs(id) {
				break
			}
		}
	}
	if len(cyclic) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var uniq []string
	for _, n := range cyclic {
		if !seen[n] {
			seen[n] = true
			uniq = append(uniq, n)
		}
	}
	sort.Strings(uniq)
	return uniq
}
