package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

// Graph is a dependency graph over string node ids. An edge from a to b
// means a must run before b.
type Graph struct {
	nodes []string
	index map[string]bool

	// adjacency maps a node to the nodes that depend on it.
	adjacency map[string][]string

	// inDegree tracks the number of incoming edges for each node.
	inDegree map[string]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index:     make(map[string]bool),
		adjacency: make(map[string][]string),
		inDegree:  make(map[string]int),
	}
}

// AddNode adds a node; adding it twice is a no-op.
func (g *Graph) AddNode(id string) {
	if g.index[id] {
		return
	}
	g.index[id] = true
	g.nodes = append(g.nodes, id)
	g.inDegree[id] = 0
}

// AddEdge records that before must run before after. Both nodes must exist.
func (g *Graph) AddEdge(before, after string) {
	for _, existing := range g.adjacency[before] {
		if existing == after {
			return
		}
	}
	g.adjacency[before] = append(g.adjacency[before], after)
	g.inDegree[after]++
}

// DetectCycle returns an InvalidArgument error naming the first cycle found.
// Nodes are visited in lexical order so the reported path is stable.
func (g *Graph) DetectCycle() error {
	ids := append([]string{}, g.nodes...)
	sort.Strings(ids)

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(id string, path []string) []string
	visit = func(id string, path []string) []string {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		next := append([]string{}, g.adjacency[id]...)
		sort.Strings(next)
		for _, dep := range next {
			if !visited[dep] {
				if cycle := visit(dep, path); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				for i, p := range path {
					if p == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
			}
		}

		onStack[id] = false
		return nil
	}

	for _, id := range ids {
		if visited[id] {
			continue
		}
		if cycle := visit(id, nil); cycle != nil {
			return errors.NewInvalidArgument(
				fmt.Sprintf("circular dependency detected: %s", formatCycle(cycle)), nil)
		}
	}
	return nil
}

// Levels groups nodes with Kahn's algorithm: every node of a level depends
// only on nodes of earlier levels. Within a level nodes are ordered by less.
func (g *Graph) Levels(less func(a, b string) bool) ([][]string, error) {
	inDegree := make(map[string]int, len(g.inDegree))
	for id, degree := range g.inDegree {
		inDegree[id] = degree
	}

	current := make([]string, 0)
	for _, id := range g.nodes {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	var levels [][]string
	processed := 0
	for len(current) > 0 {
		sort.SliceStable(current, func(i, j int) bool { return less(current[i], current[j]) })
		levels = append(levels, current)
		processed += len(current)

		next := make([]string, 0)
		for _, id := range current {
			for _, dependent := range g.adjacency[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if processed != len(g.nodes) {
		if err := g.DetectCycle(); err != nil {
			return nil, err
		}
		return nil, errors.NewInternal("failed to order all operations", nil)
	}
	return levels, nil
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
