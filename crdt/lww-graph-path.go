package crdt

// frame is one vertex on the search stack together
// with the position of its next unexplored neighbor.
type frame[V any] struct {
	vertex V
	next   int
}

// FindPath searches the adjacency index depth-first for a
// path from v1 to v2 and returns the first one it finds,
// both endpoints included. This is not necessarily the
// shortest path. The result is empty if either vertex is
// absent or has no neighbors, or if no path exists.
func (g *Graph[V, T]) FindPath(v1 V, v2 V) ([]V, error) {

	if invalid(v1) || invalid(v2) {
		return nil, ErrInvalidKey
	}

	g.lock.RLock()
	defer g.lock.RUnlock()

	path := make([]V, 0)

	if !g.vertexExists(v1) || !g.vertexExists(v2) {
		return path, nil
	}

	if (len(g.adjacency[v1]) == 0) || (len(g.adjacency[v2]) == 0) {
		return path, nil
	}

	if v1 == v2 {
		return append(path, v1), nil
	}

	visited := map[V]struct{}{v1: {}}
	stack := []frame[V]{{vertex: v1}}

	for len(stack) > 0 {

		top := &stack[len(stack)-1]
		row := g.adjacency[top.vertex]

		// All neighbors explored, backtrack.
		if top.next >= len(row) {
			stack = stack[:len(stack)-1]
			continue
		}

		u := row[top.next]
		top.next++

		if u == v2 {

			for _, f := range stack {
				path = append(path, f.vertex)
			}

			return append(path, v2), nil
		}

		if _, seen := visited[u]; seen {
			continue
		}
		visited[u] = struct{}{}

		stack = append(stack, frame[V]{vertex: u})
	}

	return path, nil
}
