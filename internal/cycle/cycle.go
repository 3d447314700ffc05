// Package cycle keeps the group inclusion graph acyclic.
//
// Check runs before an inclusion edge is committed and rejects it when the
// proposed child can already reach the proposed parent. FindCycles audits a
// whole graph, for example after a bulk import, and reports every cycle it
// meets. Both track visited groups and never revisit one, so they terminate
// even on graphs that already contain cycles.
package cycle

import (
	"sort"

	"nodeclass/internal/domain"
)

// EdgeSource yields the direct sub-groups of a group
type EdgeSource interface {
	Children(groupID int64) []int64
}

// Adjacency is an in-memory edge list keyed by parent group
type Adjacency map[int64][]int64

// FromEdges builds an adjacency list from inclusion rows. Children are
// kept in ascending order so traversals are deterministic.
func FromEdges(edges []domain.Inclusion) Adjacency {
	adj := make(Adjacency)
	for _, e := range edges {
		adj[e.ParentID] = append(adj[e.ParentID], e.ChildID)
	}
	for _, children := range adj {
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	}
	return adj
}

// Children implements EdgeSource
func (a Adjacency) Children(groupID int64) []int64 {
	return a[groupID]
}

// With returns a copy of the adjacency list with one extra edge
func (a Adjacency) With(parent, child int64) Adjacency {
	out := make(Adjacency, len(a)+1)
	for k, v := range a {
		out[k] = append([]int64(nil), v...)
	}
	out[parent] = append(out[parent], child)
	return out
}

// Check rejects the edge parent -> child if it would close a cycle. A self
// edge is always rejected.
func Check(src EdgeSource, parent, child int64) error {
	if parent == child {
		return &domain.CycleError{Parent: parent, Child: child, Path: []int64{parent}}
	}
	if path, ok := PathBetween(src, child, parent); ok {
		return &domain.CycleError{Parent: parent, Child: child, Path: path}
	}
	return nil
}

// PathBetween reports whether to is reachable from from over existing edges
// and returns the first path found, both ends included.
func PathBetween(src EdgeSource, from, to int64) ([]int64, bool) {
	if from == to {
		return []int64{from}, true
	}

	visited := map[int64]bool{from: true}
	cameFrom := make(map[int64]int64)
	stack := []int64{from}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := src.Children(current)
		// Push in reverse so the smallest id is explored first
		for i := len(children) - 1; i >= 0; i-- {
			next := children[i]
			if visited[next] {
				continue
			}
			visited[next] = true
			cameFrom[next] = current
			if next == to {
				return walkBack(cameFrom, from, to), true
			}
			stack = append(stack, next)
		}
	}
	return nil, false
}

func walkBack(cameFrom map[int64]int64, from, to int64) []int64 {
	path := []int64{to}
	for at := to; at != from; {
		at = cameFrom[at]
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindCycles walks the graph from every root and returns each cycle met,
// as a path that starts and ends on the same group.
func FindCycles(src EdgeSource, roots []int64) [][]int64 {
	const (
		white = iota
		gray
		black
	)

	ordered := append([]int64(nil), roots...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	color := make(map[int64]int)
	path := make([]int64, 0)
	cycles := make([][]int64, 0)

	var visit func(id int64)
	visit = func(id int64) {
		color[id] = gray
		path = append(path, id)

		for _, next := range src.Children(id) {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				start := 0
				for i, n := range path {
					if n == next {
						start = i
						break
					}
				}
				found := append(append([]int64(nil), path[start:]...), next)
				cycles = append(cycles, found)
			}
		}

		path = path[:len(path)-1]
		color[id] = black
	}

	for _, root := range ordered {
		if color[root] == white {
			visit(root)
		}
	}
	return cycles
}
