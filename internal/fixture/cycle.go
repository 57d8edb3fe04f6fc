package fixture

import "sort"

// dependencyGraph maps fixture key → keys of the fixtures it requires.
type dependencyGraph map[string][]string

// findCycles returns one path per cycle in the graph.
//
// The algorithm:
//  1. Find strongly connected components with Tarjan's algorithm
//  2. Keep each SCC with more than one node, or a single node with a self-loop
//  3. Reconstruct a closed path through the SCC for reporting
//
// Nodes are visited in sorted order so reports are stable across runs.
func findCycles(graph dependencyGraph) [][]string {
	var cycles [][]string
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, cyclePath(scc, graph))
		}
	}
	return cycles
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cyclePath builds a closed path through an SCC, starting at its smallest
// member: ["a", "b", "a"]. A self-loop yields ["a", "a"].
func cyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	start := scc[0]
	for _, node := range scc {
		members[node] = true
		if node < start {
			start = node
		}
	}

	if len(scc) == 1 {
		return []string{start, start}
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return path
}
