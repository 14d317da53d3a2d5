// Package analyzer computes the graph-theoretic metrics driving the risk
// score: PageRank centrality, wealth concentration (Gini), community
// detection, and the suspicious-cluster test built on top of it.
package analyzer

import (
	"log"
	"math"
	"sort"

	"github.com/rawblock/forensic-engine/internal/forensics/graph"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

const (
	pageRankDamping    = 0.85
	pageRankMaxIter    = 50
	pageRankTolerance  = 1e-6
	communityMaxIter   = 5
	louvainNodeLimit   = 400
	louvainEdgeLimit   = 2000

	clusterDensityThreshold = 0.5
	clusterClosedMaxSize    = 10
	clusterHighRiskDensity  = 0.7
)

// Result bundles everything the risk scorer needs out of the graph.
type Result struct {
	PageRank            map[string]float64
	Gini                float64
	Communities         map[int][]string
	CommunityAlgorithm  string
	SuspiciousClusters  []model.SuspiciousCluster
	TopHolders          []model.TopHolderView
}

// Analyze runs the full graph analysis pipeline over g, returning PageRank
// scores, the Gini coefficient of observed balances, detected communities,
// and the suspicious clusters derived from them.
func Analyze(g *graph.Graph, maxHolders int) Result {
	pr := PageRank(g)
	gini := Gini(balancesOf(g))

	communities, algo := DetectCommunities(g)
	clusters := IdentifySuspiciousClusters(g, communities)

	return Result{
		PageRank:           pr,
		Gini:               gini,
		Communities:        communities,
		CommunityAlgorithm: algo,
		SuspiciousClusters: clusters,
		TopHolders:         topHolderViews(g, pr, maxHolders),
	}
}

// PageRank computes the standard damped PageRank over g's directed,
// weighted edges, iterating until convergence or pageRankMaxIter.
func PageRank(g *graph.Graph) map[string]float64 {
	n := len(g.Nodes)
	scores := make(map[string]float64, n)
	if n == 0 {
		return scores
	}

	initial := 1.0 / float64(n)
	for addr := range g.Nodes {
		scores[addr] = initial
	}

	outWeight := make(map[string]float64, n)
	for addr := range g.Nodes {
		var total float64
		for _, to := range g.Successors(addr) {
			if e, ok := g.Edge(addr, to); ok {
				total += e.Weight
			}
		}
		outWeight[addr] = total
	}

	danglingMass := func(cur map[string]float64) float64 {
		var mass float64
		for addr, w := range outWeight {
			if w == 0 {
				mass += cur[addr]
			}
		}
		return mass
	}

	for iter := 0; iter < pageRankMaxIter; iter++ {
		next := make(map[string]float64, n)
		base := (1 - pageRankDamping) / float64(n)
		dangling := pageRankDamping * danglingMass(scores) / float64(n)

		for addr := range g.Nodes {
			next[addr] = base + dangling
		}

		for addr := range g.Nodes {
			w := outWeight[addr]
			if w == 0 {
				continue
			}
			share := scores[addr] / w
			for _, to := range g.Successors(addr) {
				e, ok := g.Edge(addr, to)
				if !ok {
					continue
				}
				next[to] += pageRankDamping * share * e.Weight
			}
		}

		if converged(scores, next) {
			scores = next
			break
		}
		scores = next
	}

	return scores
}

func converged(prev, next map[string]float64) bool {
	var delta float64
	for addr, v := range next {
		delta += math.Abs(v - prev[addr])
	}
	return delta < pageRankTolerance
}

func balancesOf(g *graph.Graph) []float64 {
	out := make([]float64, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n.Balance)
	}
	return out
}

// Gini computes the Gini coefficient of the given balances:
// G = (2 * sum(i * b_i)) / (n * S) - (n + 1) / n, over balances sorted
// ascending (1-indexed i). Returns 0 for fewer than 2 non-zero balances.
func Gini(balances []float64) float64 {
	nonZero := make([]float64, 0, len(balances))
	for _, b := range balances {
		if b > 0 {
			nonZero = append(nonZero, b)
		}
	}
	if len(nonZero) < 2 {
		return 0
	}

	sort.Float64s(nonZero)
	n := float64(len(nonZero))

	var sum, weighted float64
	for i, b := range nonZero {
		sum += b
		weighted += float64(i+1) * b
	}
	if sum == 0 {
		return 0
	}

	return (2*weighted)/(n*sum) - (n+1)/n
}

// DetectCommunities partitions g's nodes into communities, choosing
// Louvain for small/sparse graphs and Leiden-style refinement otherwise,
// matching the analyzer's "auto" mode. On any internal failure it
// degrades every node to its own singleton community, since a
// conservative (non-crashing) cluster-based risk read is preferable to
// rejecting the whole request.
func DetectCommunities(g *graph.Graph) (map[int][]string, string) {
	algo := "louvain"
	if g.NodeCount() >= louvainNodeLimit || g.EdgeCount() >= louvainEdgeLimit {
		algo = "leiden"
	}

	communities, err := greedyModularity(g, communityMaxIter, algo == "leiden")
	if err != nil {
		log.Printf("[Analyzer] community detection failed (%v), degrading to singleton communities — cluster-based risk score will read as near-zero", err)
		return singletonCommunities(g), "singleton"
	}
	return communities, algo
}

// greedyModularity performs iterative greedy label merging toward
// modularity improvement, capped at maxIter passes. refine additionally
// gives every node without neighbors a fresh label of its own after each
// pass; nodes already merged into a community are not split back out, so
// this is Louvain-style label merging rather than a full Leiden
// refinement step.
func greedyModularity(g *graph.Graph, maxIter int, refine bool) (map[int][]string, error) {
	if g.NodeCount() == 0 {
		return map[int][]string{}, nil
	}

	label := make(map[string]int)
	i := 0
	addrs := sortedAddrs(g)
	for _, a := range addrs {
		label[a] = i
		i++
	}

	totalWeight := totalEdgeWeight(g)
	if totalWeight == 0 {
		return singletonCommunities(g), nil
	}

	for pass := 0; pass < maxIter; pass++ {
		changed := false
		for _, addr := range addrs {
			best := label[addr]
			bestGain := 0.0
			current := label[addr]

			neighborCommunities := neighborLabels(g, addr, label)
			for _, candidate := range neighborCommunities {
				if candidate == current {
					continue
				}
				gain := modularityGain(g, addr, candidate, label, totalWeight)
				if gain > bestGain {
					bestGain = gain
					best = candidate
				}
			}

			if best != current {
				label[addr] = best
				changed = true
			}
		}

		if refine {
			// A second pass gives each node with no neighbors its own
			// fresh label; merged nodes keep their community.
			for _, addr := range addrs {
				if len(neighborLabels(g, addr, label)) == 0 {
					label[addr] = uniqueLabel(label)
				}
			}
		}

		if !changed {
			break
		}
	}

	communities := make(map[int][]string)
	for addr, l := range label {
		communities[l] = append(communities[l], addr)
	}
	for l := range communities {
		sort.Strings(communities[l])
	}
	return communities, nil
}

func sortedAddrs(g *graph.Graph) []string {
	out := make([]string, 0, len(g.Nodes))
	for a := range g.Nodes {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func totalEdgeWeight(g *graph.Graph) float64 {
	var total float64
	for _, e := range g.AllEdges() {
		total += e.Weight
	}
	return total
}

func neighborLabels(g *graph.Graph, addr string, label map[string]int) []int {
	seen := make(map[int]struct{})
	for _, to := range g.Successors(addr) {
		seen[label[to]] = struct{}{}
	}
	for _, from := range g.Predecessors(addr) {
		seen[label[from]] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// modularityGain estimates the gain from moving addr into candidate
// community, approximated by the fraction of addr's incident edge weight
// that would become internal to the candidate community.
func modularityGain(g *graph.Graph, addr string, candidate int, label map[string]int, totalWeight float64) float64 {
	var internal, incident float64
	for _, to := range g.Successors(addr) {
		if e, ok := g.Edge(addr, to); ok {
			incident += e.Weight
			if label[to] == candidate {
				internal += e.Weight
			}
		}
	}
	for _, from := range g.Predecessors(addr) {
		if e, ok := g.Edge(from, addr); ok {
			incident += e.Weight
			if label[from] == candidate {
				internal += e.Weight
			}
		}
	}
	if incident == 0 || totalWeight == 0 {
		return 0
	}
	return internal / incident
}

func singletonCommunities(g *graph.Graph) map[int][]string {
	out := make(map[int][]string, len(g.Nodes))
	i := 0
	for _, addr := range sortedAddrs(g) {
		out[i] = []string{addr}
		i++
	}
	return out
}

func uniqueLabel(label map[string]int) int {
	max := -1
	for _, l := range label {
		if l > max {
			max = l
		}
	}
	return max + 1
}

// IdentifySuspiciousClusters flags a community as suspicious iff its
// internal density exceeds clusterDensityThreshold, or it is small and
// closed off from the rest of the graph (size <= clusterClosedMaxSize
// and its external connection count is below its size). External
// connections are counted over both predecessors and successors of
// every member, so a bidirectional link to the same outside wallet is
// counted twice — this mirrors the original analyzer's
// external-connection accounting rather than deduplicating by neighbor
// address.
func IdentifySuspiciousClusters(g *graph.Graph, communities map[int][]string) []model.SuspiciousCluster {
	var out []model.SuspiciousCluster

	for id, members := range communities {
		size := len(members)
		if size < 2 {
			continue
		}

		memberSet := make(map[string]struct{}, size)
		for _, m := range members {
			memberSet[m] = struct{}{}
		}

		var internalEdges, externalConnections int
		for _, m := range members {
			for _, to := range g.Successors(m) {
				if _, ok := memberSet[to]; ok {
					internalEdges++
				}
			}
			for _, to := range g.Successors(m) {
				if _, ok := memberSet[to]; !ok {
					externalConnections++
				}
			}
			for _, from := range g.Predecessors(m) {
				if _, ok := memberSet[from]; !ok {
					externalConnections++
				}
			}
		}

		possibleEdges := size * (size - 1)
		var density float64
		if possibleEdges > 0 {
			density = float64(internalEdges) / float64(possibleEdges)
		}

		isClosed := size <= clusterClosedMaxSize && externalConnections < size
		if density <= clusterDensityThreshold && !isClosed {
			continue
		}

		riskLevel := "medium"
		if density > clusterHighRiskDensity {
			riskLevel = "high"
		}

		out = append(out, model.SuspiciousCluster{
			ClusterID:           id,
			Wallets:             members,
			Size:                size,
			Density:             density,
			ExternalConnections: externalConnections,
			RiskLevel:           riskLevel,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out
}

func topHolderViews(g *graph.Graph, pr map[string]float64, max int) []model.TopHolderView {
	views := make([]model.TopHolderView, 0, len(g.Nodes))
	for addr, n := range g.Nodes {
		degree := len(g.Successors(addr)) + len(g.Predecessors(addr))
		views = append(views, model.TopHolderView{
			Address:  addr,
			Balance:  n.Balance,
			PageRank: pr[addr],
			Degree:   degree,
		})
	}

	sort.Slice(views, func(i, j int) bool { return views[i].PageRank > views[j].PageRank })
	if max > 0 && len(views) > max {
		views = views[:max]
	}
	return views
}
