package wave

// tarjanSCC computes strongly connected components of the graph
// node -> edges[node]. Returns a map from node to its component index,
// and the list of components (each listing its nodes in stack-pop order).
// Components are emitted in reverse topological order of discovery,
// which is irrelevant here since the caller assigns levels independently.
func tarjanSCC(nodes []string, edges map[string][]string) (map[string]int, [][]string) {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string

	compOf := make(map[string]int)
	var components [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			compIdx := len(components)
			for _, n := range comp {
				compOf[n] = compIdx
			}
			components = append(components, comp)
		}
	}

	for _, v := range nodes {
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}

	return compOf, components
}
