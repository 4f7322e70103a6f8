package analysis

import "math"

// FindPath returns the strongest reasoning chain between two nodes as a node
// id sequence, both endpoints included. Edge cost is 1 minus strength, so
// the result prefers few, strong connections. A node paired with itself
// yields a single-element path; unknown endpoints or disconnected pairs
// yield an empty slice. Ties resolve toward lexicographically smaller ids,
// keeping results stable across runs.
func (a *Analyzer) FindPath(start, end string) []string {
	if a.g.NodeByID(start) == nil || a.g.NodeByID(end) == nil {
		return []string{}
	}
	if start == end {
		return []string{start}
	}

	ids := a.g.NodeIDs()
	dist := make(map[string]float64, len(ids))
	prev := make(map[string]string, len(ids))
	visited := make(map[string]bool, len(ids))
	for _, id := range ids {
		dist[id] = math.Inf(1)
	}
	dist[start] = 0

	for {
		cur := ""
		best := math.Inf(1)
		for _, id := range ids {
			if !visited[id] && dist[id] < best {
				best, cur = dist[id], id
			}
		}
		if cur == "" || cur == end {
			break
		}
		visited[cur] = true

		for _, nb := range a.adj[cur] {
			if visited[nb.id] {
				continue
			}
			alt := dist[cur] + edgeCost(nb.edge)
			if alt < dist[nb.id] {
				dist[nb.id] = alt
				prev[nb.id] = cur
			}
		}
	}

	if math.IsInf(dist[end], 1) {
		return []string{}
	}

	var path []string
	for cur := end; cur != ""; cur = prev[cur] {
		path = append([]string{cur}, path...)
		if cur == start {
			break
		}
	}
	return path
}
