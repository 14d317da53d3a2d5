package analyzer

import (
	"math"
	"strconv"
	"testing"

	"github.com/rawblock/forensic-engine/internal/forensics/graph"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPageRankSumsToApproximatelyOne(t *testing.T) {
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 10},
			{From: "b", To: "c", Value: 10},
			{From: "c", To: "a", Value: 10},
		},
	}
	g := graph.Build(data)
	pr := PageRank(g)

	var sum float64
	for _, v := range pr {
		sum += v
	}
	if !approxEqual(sum, 1.0, 1e-3) {
		t.Fatalf("pagerank scores sum to %v, want ~1.0", sum)
	}
}

func TestPageRankEmptyGraph(t *testing.T) {
	g := graph.Build(model.TokenData{})
	pr := PageRank(g)
	if len(pr) != 0 {
		t.Fatalf("expected empty pagerank map for empty graph")
	}
}

func TestGiniZeroForEqualBalances(t *testing.T) {
	g := Gini([]float64{10, 10, 10, 10})
	if !approxEqual(g, 0, 1e-9) {
		t.Fatalf("got gini %v, want ~0 for equal balances", g)
	}
}

func TestGiniHighForConcentratedBalances(t *testing.T) {
	g := Gini([]float64{1, 1, 1, 1, 1000})
	if g < 0.5 {
		t.Fatalf("got gini %v, want high concentration (>0.5)", g)
	}
}

func TestGiniFewerThanTwoNonZeroBalancesIsZero(t *testing.T) {
	if got := Gini([]float64{5}); got != 0 {
		t.Fatalf("got %v, want 0 for a single balance", got)
	}
	if got := Gini([]float64{}); got != 0 {
		t.Fatalf("got %v, want 0 for no balances", got)
	}
}

func TestDetectCommunitiesNoneOnEmptyGraph(t *testing.T) {
	g := graph.Build(model.TokenData{})
	communities, algo := DetectCommunities(g)
	if len(communities) != 0 {
		t.Fatalf("expected no communities for empty graph, got %d", len(communities))
	}
	if algo != "louvain" {
		t.Fatalf("got algorithm %q for small empty graph", algo)
	}
}

func TestDetectCommunitiesChoosesLeidenForLargeGraphs(t *testing.T) {
	var transfers []model.Transfer
	// Force the node count above the Louvain threshold.
	for i := 0; i < louvainNodeLimit+1; i++ {
		transfers = append(transfers, model.Transfer{From: "n", To: addrFor(i), Value: 1})
	}
	g := graph.Build(model.TokenData{Transactions: transfers})
	_, algo := DetectCommunities(g)
	if algo != "leiden" {
		t.Fatalf("got algorithm %q, want leiden for large graph", algo)
	}
}

func addrFor(i int) string {
	return "addr" + strconv.Itoa(i)
}

func TestIdentifySuspiciousClustersFlagsClosedTriangle(t *testing.T) {
	// Density is exactly 0.5 (not > 0.5), but with no outside edges the
	// community is closed (0 external connections < size 3), so it's
	// flagged via the closed-cluster branch.
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 1},
			{From: "b", To: "c", Value: 1},
			{From: "c", To: "a", Value: 1},
		},
	}
	g := graph.Build(data)
	communities := map[int][]string{0: {"a", "b", "c"}}
	clusters := IdentifySuspiciousClusters(g, communities)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 closed triangle", len(clusters))
	}
	if clusters[0].Size != 3 {
		t.Fatalf("got cluster size %d, want 3", clusters[0].Size)
	}
}

func TestIdentifySuspiciousClustersSkipsSingletonCommunities(t *testing.T) {
	data := model.TokenData{
		Transactions: []model.Transfer{{From: "a", To: "b", Value: 1}},
	}
	g := graph.Build(data)
	communities := map[int][]string{0: {"a"}}
	clusters := IdentifySuspiciousClusters(g, communities)
	if len(clusters) != 0 {
		t.Fatalf("expected no clusters below minimum size 2, got %d", len(clusters))
	}
}

func TestIdentifySuspiciousClustersFlagsSmallClosedPair(t *testing.T) {
	// A 2-member community linked by a single edge has density 0.5 (not
	// > 0.5), but is small (size <= 10) and closed off from the rest of
	// the graph (0 external connections < size 2), so it is suspicious
	// via the closed-cluster branch rather than the density branch.
	data := model.TokenData{
		Transactions: []model.Transfer{{From: "a", To: "b", Value: 1}},
	}
	g := graph.Build(data)
	communities := map[int][]string{0: {"a", "b"}}
	clusters := IdentifySuspiciousClusters(g, communities)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 closed pair", len(clusters))
	}
	if clusters[0].RiskLevel != "medium" {
		t.Fatalf("got risk level %q, want medium (density 0.5 is not > 0.7)", clusters[0].RiskLevel)
	}
}

func TestIdentifySuspiciousClustersFlagsSmallChainDespiteLowDensity(t *testing.T) {
	// A 3-wallet chain a->b->c has density ~0.33 (2 internal edges out of
	// 6 possible), under the 0.5 density threshold, but qualifies
	// via the closed-cluster branch: size 3 <= 10 and external
	// connections (0) < size (3).
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 1},
			{From: "b", To: "c", Value: 1},
		},
	}
	g := graph.Build(data)
	communities := map[int][]string{0: {"a", "b", "c"}}
	clusters := IdentifySuspiciousClusters(g, communities)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 closed chain despite density < 0.5", len(clusters))
	}
}

func TestIdentifySuspiciousClustersRejectsBoundaryDensityOpenCommunity(t *testing.T) {
	// A triangle a->b->c->a has density exactly 0.5 (3 internal edges
	// out of 6 possible) — not > 0.5 — and is well-connected to the
	// outside graph (external connections 6 >= size 3), so it fails
	// both the density branch and the closed-cluster branch and must
	// NOT be flagged.
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 1},
			{From: "b", To: "c", Value: 1},
			{From: "c", To: "a", Value: 1},
			{From: "a", To: "out1", Value: 1},
			{From: "out1", To: "a", Value: 1},
			{From: "b", To: "out2", Value: 1},
			{From: "out2", To: "b", Value: 1},
			{From: "c", To: "out3", Value: 1},
			{From: "out3", To: "c", Value: 1},
		},
	}
	g := graph.Build(data)
	communities := map[int][]string{0: {"a", "b", "c"}}
	clusters := IdentifySuspiciousClusters(g, communities)
	if len(clusters) != 0 {
		t.Fatalf("got %d clusters, want 0 (density == 0.5 is not > 0.5, and not closed)", len(clusters))
	}
}

func TestIdentifySuspiciousClustersHighRiskRequiresDensityAboveSeven(t *testing.T) {
	// A 4-wallet fully-connected cluster (every ordered pair linked) has
	// density 1.0, well above 0.7, so it must be "high" regardless of
	// its size — there is no size gate on the high-risk threshold.
	members := []string{"a", "b", "c", "d"}
	var transfers []model.Transfer
	for _, from := range members {
		for _, to := range members {
			if from != to {
				transfers = append(transfers, model.Transfer{From: from, To: to, Value: 1})
			}
		}
	}
	data := model.TokenData{Transactions: transfers}
	g := graph.Build(data)
	communities := map[int][]string{0: members}
	clusters := IdentifySuspiciousClusters(g, communities)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 fully-connected cluster", len(clusters))
	}
	if clusters[0].RiskLevel != "high" {
		t.Fatalf("got risk level %q, want high (density 1.0 > 0.7)", clusters[0].RiskLevel)
	}
}

func TestIdentifySuspiciousClustersCountsExternalConnectionsBothDirections(t *testing.T) {
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 1},
			{From: "b", To: "c", Value: 1},
			{From: "c", To: "a", Value: 1},
			{From: "a", To: "outside", Value: 1},
			{From: "outside", To: "a", Value: 1},
		},
	}
	g := graph.Build(data)
	communities := map[int][]string{0: {"a", "b", "c"}}
	clusters := IdentifySuspiciousClusters(g, communities)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	// "outside" contributes one successor edge and one predecessor edge
	// from a's perspective, both counted (double-counting is intentional).
	if clusters[0].ExternalConnections != 2 {
		t.Fatalf("got external connections %d, want 2 (double-counted)", clusters[0].ExternalConnections)
	}
}

func TestTopHolderViewsSortedByPageRankDescending(t *testing.T) {
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 100},
			{From: "c", To: "b", Value: 100},
		},
	}
	g := graph.Build(data)
	pr := PageRank(g)
	views := topHolderViews(g, pr, 10)
	for i := 1; i < len(views); i++ {
		if views[i-1].PageRank < views[i].PageRank {
			t.Fatalf("top holder views not sorted descending by pagerank: %+v", views)
		}
	}
}

func TestDetectCommunitiesIsStableAcrossRepeatedRuns(t *testing.T) {
	g := graph.Build(model.TokenData{
		Transactions: []model.Transfer{
			{From: "0xa", To: "0xb", Value: 10},
			{From: "0xb", To: "0xa", Value: 5},
			{From: "0xc", To: "0xd", Value: 10},
			{From: "0xd", To: "0xc", Value: 5},
		},
	})

	first, _ := DetectCommunities(g)
	second, _ := DetectCommunities(g)

	addrs := sortedAddrs(g)
	ari := AdjustedRandIndex(communityLabels(first, addrs), communityLabels(second, addrs))
	if ari < 0.99 {
		t.Fatalf("got ARI %v between repeated runs on an unchanged graph, want ~1.0 (stable)", ari)
	}
	vi := VariationOfInformation(communityLabels(first, addrs), communityLabels(second, addrs))
	if vi > 0.01 {
		t.Fatalf("got VI %v between repeated runs on an unchanged graph, want ~0 (stable)", vi)
	}
}

func TestTopHolderViewsTruncatesToMax(t *testing.T) {
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 1},
			{From: "b", To: "c", Value: 1},
			{From: "c", To: "d", Value: 1},
		},
	}
	g := graph.Build(data)
	pr := PageRank(g)
	views := topHolderViews(g, pr, 2)
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
}
