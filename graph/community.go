package graph

// Components returns the connected components of the subgraph induced by the
// nodes accepted by keep (every node when keep is nil). Components are found
// by BFS, seeded in id order, so both the component order and the member
// order are deterministic.
func (g *Graph) Components(keep func(*Node) bool) [][]int {
	visited := make([]bool, len(g.nodes))
	var components [][]int

	for _, start := range g.nodes {
		if visited[start.ID] || (keep != nil && !keep(start)) {
			continue
		}

		var comp []int
		queue := []int{start.ID}
		visited[start.ID] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			comp = append(comp, id)
			for _, e := range g.nodes[id].edges {
				if visited[e.To] || (keep != nil && !keep(g.nodes[e.To])) {
					continue
				}
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
		components = append(components, comp)
	}

	return components
}

// Largest returns the size of the largest component.
func Largest(components [][]int) int {
	largest := 0
	for _, c := range components {
		largest = max(largest, len(c))
	}
	return largest
}
