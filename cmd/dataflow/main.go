// Command dataflow loads a workflow description, prints its graph, or
// runs it to completion.
//
// Usage:
//
//	dataflow run  <workflow.yaml> [-g key=value ...]
//	dataflow viz  <workflow.yaml>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nodegraph/dataflow/engine"
	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/log"
	_ "github.com/nodegraph/dataflow/nodes"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	nodeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	streamStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	cmd, path := os.Args[1], os.Args[2]

	doc, err := os.ReadFile(path)
	if err != nil {
		fail("reading %s: %v", path, err)
	}
	e := engine.New()
	e.SetLogger(log.NewDefaultLogger(log.LogLevelInfo))
	if err := e.Load(doc); err != nil {
		fail("load: %v", err)
	}

	switch cmd {
	case "viz":
		fmt.Println(renderGraph(e))
	case "run":
		globals := parseGlobals(os.Args[3:])
		ctx, err := e.Start(context.Background(), globals)
		if ctx != nil {
			printOutputs(ctx)
		}
		if err != nil {
			fail("run: %v", err)
		}
		fmt.Println(okStyle.Render("workflow finished"))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dataflow {run|viz} <workflow.yaml> [-g key=value ...]")
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf(format, args...)))
	os.Exit(1)
}

func parseGlobals(args []string) map[string]any {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var pairs multiFlag
	fs.Var(&pairs, "g", "global variable as key=value (repeatable)")
	_ = fs.Parse(args)

	globals := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			fail("malformed -g %q, want key=value", p)
		}
		globals[k] = v
	}
	return globals
}

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

// renderGraph prints the workflow as a styled tree: each node with
// its ports, then the classified edge lists.
func renderGraph(e *engine.Engine) string {
	spec := e.Spec()
	g := e.Graph()

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("workflow: "+spec.Name) + "\n")

	for _, ns := range spec.Nodes {
		n, _ := e.Node(ns.ID)
		sb.WriteString(nodeStyle.Render(fmt.Sprintf("● %s (%s, %s)", n.ID(), n.TypeName(), n.Mode())) + "\n")
		for _, line := range portLines(n.Inputs(), "in") {
			sb.WriteString("    " + line + "\n")
		}
		for _, line := range portLines(n.Outputs(), "out") {
			sb.WriteString("    " + line + "\n")
		}
	}

	sb.WriteString(titleStyle.Render("edges") + "\n")
	for _, c := range g.StreamingEdges() {
		sb.WriteString("  " + streamStyle.Render(fmt.Sprintf("%s ~~> %s", c.Src, c.Dst)) + "\n")
	}
	for _, c := range g.ValueEdges() {
		sb.WriteString("  " + valueStyle.Render(fmt.Sprintf("%s --> %s", c.Src, c.Dst)) + "\n")
	}
	return sb.String()
}

func portLines(ports map[string]*flow.Instance, dir string) []string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		p := ports[name]
		style := valueStyle
		if p.Schema.Kind == "streaming" {
			style = streamStyle
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s %s: %s", dir, name, p.Schema)))
	}
	return lines
}

func printOutputs(ctx *engine.Context) {
	outputs := ctx.Outputs()
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%s = %v\n", nodeStyle.Render(id), outputs[id])
	}
}
