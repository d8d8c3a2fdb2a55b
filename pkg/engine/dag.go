package engine

import (
	"fmt"
	"sort"
	"strings"
)

// TypeNode is one resource type in the dependency graph.
type TypeNode struct {
	// TypeName is the resource type.
	TypeName string `json:"type_name"`

	// Level is the topological level (0 = no predecessors in the set).
	Level int `json:"level"`

	// Predecessors are the in-set types that must be deleted first.
	Predecessors []string `json:"predecessors,omitempty"`

	// Dependents are the in-set types waiting on this one.
	Dependents []string `json:"dependents,omitempty"`
}

// TypeEdge is a directed dependency edge: From must be deleted before To.
type TypeEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TypeGraph is the dependency graph over the resource types present in one
// discovery set. Edges exist only between types that were both discovered;
// predecessors of types absent from the set impose no ordering.
type TypeGraph struct {
	// Nodes maps type name to its node.
	Nodes map[string]*TypeNode `json:"nodes"`

	// Edges lists all dependency edges.
	Edges []TypeEdge `json:"edges"`

	// Levels are the topological levels in execution order; types within a
	// level are sorted for reproducible runs.
	Levels [][]string `json:"levels"`

	// Roots are the types with no in-set predecessors.
	Roots []string `json:"roots"`
}

// GraphBuilder constructs TypeGraphs from a discovered type set and the
// registry's declared predecessors.
type GraphBuilder struct {
	types     map[string]bool
	adjacency map[string][]string
	inDegree  map[string]int
}

// NewGraphBuilder creates a graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{}
}

// BuildGraph builds the dependency graph for the given discovered types.
// Every type must have a descriptor in the registry; the planner filters
// unregistered types out before calling. A cycle reachable from the set is
// a configuration error.
func (b *GraphBuilder) BuildGraph(typeNames []string, registry *TypeRegistry) (*TypeGraph, error) {
	if registry == nil {
		return nil, NewConfigurationError("graph builder requires a registry", nil)
	}

	if err := b.initialize(typeNames, registry); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	levels, err := b.computeLevels()
	if err != nil {
		return nil, err
	}

	return b.buildGraph(levels), nil
}

// initialize validates the type set and builds adjacency structures.
func (b *GraphBuilder) initialize(typeNames []string, registry *TypeRegistry) error {
	b.types = make(map[string]bool, len(typeNames))
	b.adjacency = make(map[string][]string)
	b.inDegree = make(map[string]int)

	for _, name := range typeNames {
		if name == "" {
			return NewConfigurationError("graph contains an empty type name", nil)
		}
		if b.types[name] {
			return NewConfigurationError(
				fmt.Sprintf("duplicate type in graph: %s", name), nil)
		}
		if _, ok := registry.Lookup(name); !ok {
			return NewConfigurationError(
				fmt.Sprintf("type %s has no registered descriptor", name), nil)
		}
		b.types[name] = true
		b.inDegree[name] = 0
	}

	// Edge predecessor -> type, restricted to types present in the set.
	for _, name := range typeNames {
		desc, _ := registry.Lookup(name)
		for _, pred := range desc.Predecessors {
			if !b.types[pred] {
				continue
			}
			b.adjacency[pred] = append(b.adjacency[pred], name)
			b.inDegree[name]++
		}
	}

	// Sort adjacency lists so traversal order is deterministic.
	for from := range b.adjacency {
		sort.Strings(b.adjacency[from])
	}

	return nil
}

// detectCycles runs a DFS over the graph and fails on the first cycle found.
func (b *GraphBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	names := make([]string, 0, len(b.types))
	for name := range b.types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if cycle := b.detectCycleDFS(name, visited, recStack, nil); cycle != nil {
				return NewConfigurationError(
					fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")), nil)
			}
		}
	}
	return nil
}

// detectCycleDFS returns the cycle path when one is reachable from name.
func (b *GraphBuilder) detectCycleDFS(name string, visited, recStack map[string]bool, path []string) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, next := range b.adjacency[name] {
		if !visited[next] {
			if cycle := b.detectCycleDFS(next, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[next] {
			// Close the loop for the error message.
			start := 0
			for i, p := range path {
				if p == next {
					start = i
					break
				}
			}
			return append(append([]string{}, path[start:]...), next)
		}
	}

	recStack[name] = false
	return nil
}

// computeLevels assigns topological levels using Kahn's algorithm. Types in
// the same level have no ordering constraint between them.
func (b *GraphBuilder) computeLevels() ([][]string, error) {
	inDegree := make(map[string]int, len(b.inDegree))
	for name, deg := range b.inDegree {
		inDegree[name] = deg
	}

	var current []string
	for name, deg := range inDegree {
		if deg == 0 {
			current = append(current, name)
		}
	}
	sort.Strings(current)

	var levels [][]string
	processed := 0

	for len(current) > 0 {
		levels = append(levels, current)
		processed += len(current)

		var next []string
		for _, name := range current {
			for _, dependent := range b.adjacency[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		current = next
	}

	// detectCycles runs first, so this is a safety net.
	if processed != len(b.types) {
		return nil, NewConfigurationError(
			fmt.Sprintf("topological sort incomplete: processed %d of %d types", processed, len(b.types)), nil)
	}

	return levels, nil
}

// buildGraph assembles the TypeGraph from the computed levels.
func (b *GraphBuilder) buildGraph(levels [][]string) *TypeGraph {
	graph := &TypeGraph{
		Nodes:  make(map[string]*TypeNode, len(b.types)),
		Levels: levels,
	}

	levelOf := make(map[string]int)
	for i, level := range levels {
		for _, name := range level {
			levelOf[name] = i
		}
	}

	for name := range b.types {
		graph.Nodes[name] = &TypeNode{
			TypeName: name,
			Level:    levelOf[name],
		}
	}

	froms := make([]string, 0, len(b.adjacency))
	for from := range b.adjacency {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	for _, from := range froms {
		for _, to := range b.adjacency[from] {
			graph.Edges = append(graph.Edges, TypeEdge{From: from, To: to})
			graph.Nodes[from].Dependents = append(graph.Nodes[from].Dependents, to)
			graph.Nodes[to].Predecessors = append(graph.Nodes[to].Predecessors, from)
		}
	}

	if len(levels) > 0 {
		graph.Roots = append([]string{}, levels[0]...)
	}

	return graph
}

// ToDOT renders the graph in Graphviz DOT format for inspection.
func (g *TypeGraph) ToDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph deletion_order {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box];\n\n")

	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := g.Nodes[name]
		sb.WriteString(fmt.Sprintf("  %q [label=\"%s\\nlevel %d\"];\n", name, name, node.Level))
	}
	sb.WriteString("\n")

	for _, edge := range g.Edges {
		sb.WriteString(fmt.Sprintf("  %q -> %q;\n", edge.From, edge.To))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// TypeCount returns the number of types in the graph.
func (g *TypeGraph) TypeCount() int {
	return len(g.Nodes)
}
