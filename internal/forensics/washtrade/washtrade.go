// Package washtrade flags wallet pairs exhibiting wash-trading patterns
// over the aggregated transfer graph, grounded on the original wash
// trade detector's three independent criteria.
package washtrade

import (
	"fmt"
	"sort"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/graph"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

const (
	minCount               = 5
	minBidirectionalCount  = 3
	minBurstCount          = 3
	highRiskCount          = 10
)

// Detect scans every directed edge in g and flags each one matching any
// of the three wash-trade criteria: a high repeated-transfer count, a
// bidirectional pair both sides of which transfer repeatedly, or a
// burst of transfers within the configured burst window. A qualifying
// bidirectional pair produces one record per direction — each directed
// edge is evaluated independently, matching the original detector's
// per-edge iteration, so an A->B and B->A pair that both qualify are
// both reported (and both marked in graph_data downstream) rather than
// collapsed into a single undirected record. Edges whose counterparty
// is a known DEX/CEX protocol address are skipped entirely.
func Detect(g *graph.Graph, cfg *config.Config) []model.WashTradePair {
	var out []model.WashTradePair

	for _, e := range g.AllEdges() {
		if isWhitelisted(cfg, e.From) || isWhitelisted(cfg, e.To) {
			continue
		}

		reverse, hasReverse := g.Edge(e.To, e.From)

		isBidirectional := hasReverse && e.Count >= minBidirectionalCount && reverse.Count >= minBidirectionalCount
		windowSeconds := e.MaxTS - e.MinTS
		isBurst := e.Count >= minBurstCount && windowSeconds > 0 && windowSeconds <= cfg.WashTradeBurstWindowSecs
		isHighCount := e.Count >= minCount

		if !isHighCount && !isBidirectional && !isBurst {
			continue
		}

		reasons := reasonsFor(e, isHighCount, isBidirectional, isBurst, reverse)
		riskLevel := "medium"
		if e.Count >= highRiskCount || (e.Count >= minCount && isBurst) {
			riskLevel = "high"
		}

		pair := model.WashTradePair{
			From:             e.From,
			To:               e.To,
			TransactionCount: e.Count,
			TotalVolume:      e.Weight,
			AvgValue:         e.Weight / float64(e.Count),
			WindowSeconds:    windowSeconds,
			IsBidirectional:  isBidirectional,
			SuspicionReasons: reasons,
			RiskLevel:        riskLevel,
		}
		if hasReverse {
			pair.ReverseCount = reverse.Count
			pair.ReverseTotalVolume = reverse.Weight
		}

		out = append(out, pair)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func isWhitelisted(cfg *config.Config, addr string) bool {
	_, ok := cfg.ProtocolWhitelist[addr]
	return ok
}

func reasonsFor(e *model.Edge, isHighCount, isBidirectional, isBurst bool, reverse *model.Edge) []string {
	var reasons []string
	if isHighCount {
		reasons = append(reasons, fmt.Sprintf("%d transfers between the same pair of wallets", e.Count))
	}
	if isBidirectional {
		reasons = append(reasons, fmt.Sprintf("bidirectional transfers (%d forward, %d reverse)", e.Count, reverse.Count))
	}
	if isBurst {
		window := e.MaxTS - e.MinTS
		if window < 3600 {
			reasons = append(reasons, fmt.Sprintf("%d transfers within %d minutes", e.Count, window/60))
		} else {
			reasons = append(reasons, fmt.Sprintf("%d transfers within %.1f hours", e.Count, float64(window)/3600))
		}
	}
	return reasons
}
