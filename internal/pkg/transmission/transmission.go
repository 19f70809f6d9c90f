/*
transmission.go Inter-node flow solvers. A solver turns the nodal imbalances of a decoded
solution into a flow matrix [T, L], one column per line in topology order.
*/

package transmission

import (
	"fmt"

	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"github.com/ohowland/firm_ce/internal/pkg/solution"
	"gonum.org/v1/gonum/mat"
)

// Solver computes line flows in MW for a decoded solution.
type Solver interface {
	Flows(*solution.Solution) (*mat.Dense, error)
}

// Zero reports no flow on any line. Single-node scenarios use it.
type Zero struct{}

// Flows returns a zero [T, L] matrix, or nil when the scenario has no lines.
func (Zero) Flows(sol *solution.Solution) (*mat.Dense, error) {
	s := sol.Scenario()
	if s.Lines() == 0 {
		return nil, nil
	}
	return mat.NewDense(s.Intervals(), s.Lines(), nil), nil
}

// Radial routes every node's surplus up a tree of lines towards a root node. The flow on a
// line is the total surplus of the subtree below it, positive towards the root. Whatever
// reaches the root is absorbed there.
type Radial struct {
	scenario *scenario.Scenario
	root     int
	order    []int // breadth first from root
	parent   []int
	upLine   []int // line joining a node to its parent
}

// NewRadial checks that the scenario topology is a spanning tree and fixes its traversal order.
func NewRadial(s *scenario.Scenario, root int) (*Radial, error) {
	nodes := s.Nodes()
	if root < 0 || root >= nodes {
		return nil, fmt.Errorf("root node %d outside [0,%d): %w", root, nodes, scenario.ErrShape)
	}
	lines := s.Topology()
	if len(lines) != nodes-1 {
		return nil, fmt.Errorf("%d lines cannot span %d nodes as a tree: %w", len(lines), nodes, scenario.ErrShape)
	}

	g := newGraph()
	for n := 0; n < nodes; n++ {
		if err := g.addNode(n); err != nil {
			return nil, err
		}
	}
	for i, l := range lines {
		if err := g.addEdge(l.From, l.To, i); err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", i, err, scenario.ErrShape)
		}
	}

	r := &Radial{
		scenario: s,
		root:     root,
		parent:   make([]int, nodes),
		upLine:   make([]int, nodes),
	}
	visited := make([]bool, nodes)
	visited[root] = true
	r.parent[root] = -1
	r.upLine[root] = -1
	queue := []int{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		r.order = append(r.order, n)
		for _, e := range g.edges(n) {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			r.parent[e.to] = n
			r.upLine[e.to] = e.line
			queue = append(queue, e.to)
		}
	}
	if len(r.order) != nodes {
		return nil, fmt.Errorf("topology reaches %d of %d nodes from root %d: %w",
			len(r.order), nodes, root, scenario.ErrShape)
	}
	return r, nil
}

// Flows implements Solver.
func (r *Radial) Flows(sol *solution.Solution) (*mat.Dense, error) {
	s := sol.Scenario()
	if s != r.scenario {
		return nil, fmt.Errorf("solution was decoded against a different scenario: %w", scenario.ErrShape)
	}
	if s.Lines() == 0 {
		return nil, nil
	}

	flows := mat.NewDense(s.Intervals(), s.Lines(), nil)
	surplus := make([]float64, s.Nodes())
	for t := 0; t < s.Intervals(); t++ {
		Surplus(sol, t, surplus)
		for i := len(r.order) - 1; i > 0; i-- {
			n := r.order[i]
			flows.Set(t, r.upLine[n], surplus[n])
			surplus[r.parent[n]] += surplus[n]
		}
	}
	return flows, nil
}

// Surplus writes the MW surplus (PV + wind + baseload - load) of every node at interval t
// into out, which must have one entry per node.
func Surplus(sol *solution.Solution, t int, out []float64) {
	s := sol.Scenario()
	for n := range out {
		out[n] = s.GBaseload().At(t, n) - s.MLoad().At(t, n)
	}
	if g := sol.GPV(); g != nil {
		for z := 0; z < s.PVZones(); z++ {
			out[s.PVNode(z)] += g.At(t, z)
		}
	}
	if g := sol.GWind(); g != nil {
		for z := 0; z < s.WindZones(); z++ {
			out[s.WindNode(z)] += g.At(t, z)
		}
	}
}
