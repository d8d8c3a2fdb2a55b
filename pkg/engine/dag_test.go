package engine

import (
	"strings"
	"testing"
)

func TestGraphBuilder_BuildGraph_Empty(t *testing.T) {
	registry := testRegistry(t)
	graph, err := NewGraphBuilder().BuildGraph(nil, registry)

	if err != nil {
		t.Fatalf("Expected no error for empty type set, got: %v", err)
	}
	if graph.TypeCount() != 0 {
		t.Errorf("Expected 0 nodes, got %d", graph.TypeCount())
	}
	if len(graph.Levels) != 0 {
		t.Errorf("Expected 0 levels, got %d", len(graph.Levels))
	}
}

func TestGraphBuilder_BuildGraph_SingleType(t *testing.T) {
	registry := testRegistry(t, testDescriptor("Instance"))
	graph, err := NewGraphBuilder().BuildGraph([]string{"Instance"}, registry)

	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	if len(graph.Levels) != 1 {
		t.Fatalf("Expected 1 level, got %d", len(graph.Levels))
	}
	if len(graph.Levels[0]) != 1 || graph.Levels[0][0] != "Instance" {
		t.Errorf("Expected level 0 to be [Instance], got %v", graph.Levels[0])
	}
	if len(graph.Edges) != 0 {
		t.Errorf("Expected no edges, got %d", len(graph.Edges))
	}
}

func TestGraphBuilder_BuildGraph_LinearDependencies(t *testing.T) {
	registry := testRegistry(t,
		testDescriptor("Instance"),
		testDescriptor("Subnet", "Instance"),
		testDescriptor("Vcn", "Subnet"),
	)

	graph, err := NewGraphBuilder().BuildGraph([]string{"Vcn", "Instance", "Subnet"}, registry)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	want := [][]string{{"Instance"}, {"Subnet"}, {"Vcn"}}
	if len(graph.Levels) != len(want) {
		t.Fatalf("Expected %d levels, got %d: %v", len(want), len(graph.Levels), graph.Levels)
	}
	for i, level := range want {
		if len(graph.Levels[i]) != len(level) {
			t.Fatalf("Level %d: expected %v, got %v", i, level, graph.Levels[i])
		}
		for j, name := range level {
			if graph.Levels[i][j] != name {
				t.Errorf("Level %d position %d: expected %s, got %s", i, j, name, graph.Levels[i][j])
			}
		}
	}

	if graph.Nodes["Vcn"].Level != 2 {
		t.Errorf("Expected Vcn at level 2, got %d", graph.Nodes["Vcn"].Level)
	}
}

func TestGraphBuilder_BuildGraph_SharedPredecessor(t *testing.T) {
	registry := testRegistry(t,
		testDescriptor("Instance"),
		testDescriptor("Subnet", "Instance"),
		testDescriptor("RouteTable", "Instance"),
		testDescriptor("Vcn", "Subnet", "RouteTable"),
	)

	graph, err := NewGraphBuilder().BuildGraph(
		[]string{"Vcn", "RouteTable", "Subnet", "Instance"}, registry)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	if len(graph.Levels) != 3 {
		t.Fatalf("Expected 3 levels, got %d: %v", len(graph.Levels), graph.Levels)
	}

	// Same-level types come out sorted so runs are reproducible.
	middle := graph.Levels[1]
	if len(middle) != 2 || middle[0] != "RouteTable" || middle[1] != "Subnet" {
		t.Errorf("Expected level 1 to be [RouteTable Subnet], got %v", middle)
	}

	if len(graph.Edges) != 4 {
		t.Errorf("Expected 4 edges, got %d", len(graph.Edges))
	}
}

func TestGraphBuilder_BuildGraph_AbsentPredecessorIgnored(t *testing.T) {
	registry := testRegistry(t,
		testDescriptor("Instance"),
		testDescriptor("Subnet", "Instance"),
	)

	// Instance was not discovered this run, so Subnet has nothing to wait on.
	graph, err := NewGraphBuilder().BuildGraph([]string{"Subnet"}, registry)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	if len(graph.Levels) != 1 {
		t.Fatalf("Expected 1 level, got %d", len(graph.Levels))
	}
	if len(graph.Edges) != 0 {
		t.Errorf("Expected no edges, got %d", len(graph.Edges))
	}
	if graph.Nodes["Subnet"].Level != 0 {
		t.Errorf("Expected Subnet at level 0, got %d", graph.Nodes["Subnet"].Level)
	}
}

func TestGraphBuilder_BuildGraph_CycleDetected(t *testing.T) {
	registry := testRegistry(t,
		testDescriptor("Application", "Function"),
		testDescriptor("Function", "Application"),
	)

	_, err := NewGraphBuilder().BuildGraph([]string{"Application", "Function"}, registry)
	if err == nil {
		t.Fatal("Expected an error for a dependency cycle")
	}
	if !IsConfiguration(err) {
		t.Errorf("Expected a configuration error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "dependency cycle detected") {
		t.Errorf("Expected cycle message, got: %v", err)
	}
	if !strings.Contains(err.Error(), "->") {
		t.Errorf("Expected the cycle path in the message, got: %v", err)
	}
}

func TestGraphBuilder_BuildGraph_SelfContainedCycleAmongMany(t *testing.T) {
	registry := testRegistry(t,
		testDescriptor("Bucket"),
		testDescriptor("Application", "Function"),
		testDescriptor("Function", "Application"),
	)

	_, err := NewGraphBuilder().BuildGraph(
		[]string{"Bucket", "Application", "Function"}, registry)
	if err == nil {
		t.Fatal("Expected an error when any discovered types form a cycle")
	}
	if !IsConfiguration(err) {
		t.Errorf("Expected a configuration error, got: %v", err)
	}
}

func TestGraphBuilder_BuildGraph_UnregisteredType(t *testing.T) {
	registry := testRegistry(t, testDescriptor("Instance"))

	_, err := NewGraphBuilder().BuildGraph([]string{"Instance", "Mystery"}, registry)
	if err == nil {
		t.Fatal("Expected an error for an unregistered type")
	}
	if !IsConfiguration(err) {
		t.Errorf("Expected a configuration error, got: %v", err)
	}
}

func TestGraphBuilder_BuildGraph_DuplicateType(t *testing.T) {
	registry := testRegistry(t, testDescriptor("Instance"))

	_, err := NewGraphBuilder().BuildGraph([]string{"Instance", "Instance"}, registry)
	if err == nil {
		t.Fatal("Expected an error for duplicate types")
	}
}

func TestGraphBuilder_BuildGraph_Deterministic(t *testing.T) {
	registry := testRegistry(t,
		testDescriptor("Volume"),
		testDescriptor("Instance"),
		testDescriptor("Bucket"),
		testDescriptor("LoadBalancer"),
	)
	types := []string{"Volume", "Instance", "Bucket", "LoadBalancer"}

	first, err := NewGraphBuilder().BuildGraph(types, registry)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	second, err := NewGraphBuilder().BuildGraph(types, registry)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	if len(first.Levels) != 1 || len(second.Levels) != 1 {
		t.Fatalf("Expected a single level from independent types")
	}
	for i := range first.Levels[0] {
		if first.Levels[0][i] != second.Levels[0][i] {
			t.Errorf("Level order differs between builds: %v vs %v",
				first.Levels[0], second.Levels[0])
		}
	}

	want := []string{"Bucket", "Instance", "LoadBalancer", "Volume"}
	for i, name := range want {
		if first.Levels[0][i] != name {
			t.Errorf("Expected sorted level %v, got %v", want, first.Levels[0])
			break
		}
	}
}

func TestTypeGraph_ToDOT(t *testing.T) {
	registry := testRegistry(t,
		testDescriptor("Instance"),
		testDescriptor("Subnet", "Instance"),
	)

	graph, err := NewGraphBuilder().BuildGraph([]string{"Instance", "Subnet"}, registry)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	dot := graph.ToDOT()
	if !strings.Contains(dot, "digraph deletion_order") {
		t.Errorf("Expected DOT header, got: %s", dot)
	}
	if !strings.Contains(dot, `"Instance" -> "Subnet"`) {
		t.Errorf("Expected the dependency edge in DOT output, got: %s", dot)
	}
}
