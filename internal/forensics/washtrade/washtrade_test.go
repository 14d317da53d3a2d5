package washtrade

import (
	"testing"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/graph"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

func buildGraphFromTransfers(transfers []model.Transfer) *graph.Graph {
	return graph.Build(model.TokenData{Transactions: transfers})
}

func TestDetectFlagsHighRepeatedCount(t *testing.T) {
	var transfers []model.Transfer
	for i := 0; i < 6; i++ {
		transfers = append(transfers, model.Transfer{From: "a", To: "b", Value: 1, Timestamp: int64(i * 100000)})
	}
	g := buildGraphFromTransfers(transfers)
	cfg := config.Load()

	pairs := Detect(g, cfg)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	if pairs[0].TransactionCount != 6 {
		t.Fatalf("got count %d, want 6", pairs[0].TransactionCount)
	}
}

func TestDetectFlagsBidirectionalPair(t *testing.T) {
	// Both directions qualify independently (count 3 >= minBidirectionalCount
	// both ways), so Detect reports one record per direction rather than
	// collapsing the pair into a single undirected record.
	var transfers []model.Transfer
	for i := 0; i < 3; i++ {
		transfers = append(transfers, model.Transfer{From: "a", To: "b", Value: 1, Timestamp: int64(i * 500000)})
		transfers = append(transfers, model.Transfer{From: "b", To: "a", Value: 1, Timestamp: int64(i*500000 + 1)})
	}
	g := buildGraphFromTransfers(transfers)
	cfg := config.Load()

	pairs := Detect(g, cfg)
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2 (one per direction)", len(pairs))
	}
	for _, p := range pairs {
		if !p.IsBidirectional {
			t.Fatalf("expected both directions to be flagged bidirectional, got %+v", p)
		}
	}
	if pairs[0].From != "a" || pairs[0].To != "b" || pairs[1].From != "b" || pairs[1].To != "a" {
		t.Fatalf("got pairs %+v, want one a->b and one b->a (sorted by From then To)", pairs)
	}
}

func TestDetectFlagsBurst(t *testing.T) {
	var transfers []model.Transfer
	for i := 0; i < 3; i++ {
		transfers = append(transfers, model.Transfer{From: "a", To: "b", Value: 1, Timestamp: int64(i * 1000)})
	}
	g := buildGraphFromTransfers(transfers)
	cfg := config.Load()

	pairs := Detect(g, cfg)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1 burst-flagged pair", len(pairs))
	}
}

func TestDetectSkipsWhitelistedProtocols(t *testing.T) {
	cfg := config.Load()
	var whitelisted string
	for addr := range cfg.ProtocolWhitelist {
		whitelisted = addr
		break
	}

	var transfers []model.Transfer
	for i := 0; i < 6; i++ {
		transfers = append(transfers, model.Transfer{From: "a", To: whitelisted, Value: 1, Timestamp: int64(i * 100000)})
	}
	g := buildGraphFromTransfers(transfers)

	pairs := Detect(g, cfg)
	if len(pairs) != 0 {
		t.Fatalf("expected whitelisted counterparty to suppress detection, got %d pairs", len(pairs))
	}
}

func TestDetectIgnoresLowActivityPairs(t *testing.T) {
	transfers := []model.Transfer{
		{From: "a", To: "b", Value: 1, Timestamp: 1},
		{From: "a", To: "b", Value: 1, Timestamp: 200000},
	}
	g := buildGraphFromTransfers(transfers)
	cfg := config.Load()

	pairs := Detect(g, cfg)
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs flagged for low-activity edge, got %d", len(pairs))
	}
}

func TestDetectHighRiskLevelForVeryHighCount(t *testing.T) {
	var transfers []model.Transfer
	for i := 0; i < 11; i++ {
		transfers = append(transfers, model.Transfer{From: "a", To: "b", Value: 1, Timestamp: int64(i * 100000)})
	}
	g := buildGraphFromTransfers(transfers)
	cfg := config.Load()

	pairs := Detect(g, cfg)
	if len(pairs) != 1 || pairs[0].RiskLevel != "high" {
		t.Fatalf("expected single high-risk pair, got %+v", pairs)
	}
}
