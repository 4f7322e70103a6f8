package analysis

import "math"

// Centrality holds per-node structural importance measures. Degree is the
// raw incident-edge count; Betweenness is normalized into [0, 1] against the
// (n-1)(n-2)/2 pairs a node could possibly broker.
type Centrality struct {
	Degree      map[string]int
	Betweenness map[string]float64
}

func (a *Analyzer) Centrality() Centrality {
	ids := a.g.NodeIDs()
	degree := make(map[string]int, len(ids))
	for _, id := range ids {
		degree[id] = len(a.adj[id])
	}
	return Centrality{
		Degree:      degree,
		Betweenness: a.betweenness(ids),
	}
}

// betweenness runs Brandes' accumulation over strength-weighted shortest
// paths from every source. Near-equal path costs within epsilon count as
// parallel shortest paths.
func (a *Analyzer) betweenness(ids []string) map[string]float64 {
	const eps = 1e-9

	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		scores[id] = 0
	}
	n := len(ids)
	if n < 3 {
		return scores
	}

	for _, source := range ids {
		dist := make(map[string]float64, n)
		sigma := make(map[string]float64, n)
		preds := make(map[string][]string, n)
		visited := make(map[string]bool, n)
		for _, id := range ids {
			dist[id] = math.Inf(1)
		}
		dist[source] = 0
		sigma[source] = 1

		order := make([]string, 0, n)
		for {
			cur := ""
			best := math.Inf(1)
			for _, id := range ids {
				if !visited[id] && dist[id] < best {
					best, cur = dist[id], id
				}
			}
			if cur == "" {
				break
			}
			visited[cur] = true
			order = append(order, cur)

			for _, nb := range a.adj[cur] {
				if visited[nb.id] {
					continue
				}
				alt := dist[cur] + edgeCost(nb.edge)
				switch {
				case alt < dist[nb.id]-eps:
					dist[nb.id] = alt
					sigma[nb.id] = sigma[cur]
					preds[nb.id] = []string{cur}
				case math.Abs(alt-dist[nb.id]) <= eps:
					sigma[nb.id] += sigma[cur]
					preds[nb.id] = append(preds[nb.id], cur)
				}
			}
		}

		delta := make(map[string]float64, len(order))
		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, v := range preds[w] {
				if sigma[w] > 0 {
					delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
				}
			}
			if w != source {
				scores[w] += delta[w]
			}
		}
	}

	// Every unordered pair was counted from both endpoints.
	norm := float64(n-1) * float64(n-2)
	for id := range scores {
		scores[id] /= norm
	}
	return scores
}
