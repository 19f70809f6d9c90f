package transmission

import (
	"errors"
	"fmt"
)

// edge is a line leaving a node.
type edge struct {
	to   int
	line int
}

// graph is an adjacency list over node indices.
type graph struct {
	adjacencyList map[int][]edge
}

func newGraph() graph {
	return graph{adjacencyList: make(map[int][]edge)}
}

func (g *graph) addNode(n int) error {
	if _, exists := g.adjacencyList[n]; exists {
		return fmt.Errorf("node %d already exists in graph", n)
	}
	g.adjacencyList[n] = make([]edge, 0)
	return nil
}

func (g *graph) addDirectedEdge(n1, n2, line int) error {
	edges1, exists := g.adjacencyList[n1]
	if !exists {
		return fmt.Errorf("start node %d does not exist in graph", n1)
	}
	if _, exists := g.adjacencyList[n2]; !exists {
		return fmt.Errorf("end node %d does not exist in graph", n2)
	}
	g.adjacencyList[n1] = append(edges1, edge{to: n2, line: line})
	return nil
}

func (g *graph) addEdge(n1, n2, line int) error {
	if n1 == n2 {
		return errors.New("line connects a node to itself")
	}
	if err := g.addDirectedEdge(n1, n2, line); err != nil {
		return err
	}
	return g.addDirectedEdge(n2, n1, line)
}

func (g graph) edges(n int) []edge {
	if edges, exists := g.adjacencyList[n]; exists {
		return edges
	}
	return make([]edge, 0)
}
