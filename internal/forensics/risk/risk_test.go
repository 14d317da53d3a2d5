package risk

import (
	"testing"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

func TestComputeWeightsComponentsCorrectly(t *testing.T) {
	cfg := config.Load()
	data := model.TokenData{}

	s := Compute(cfg, 0.5, nil, nil, nil, data)
	want := cfg.RiskWeights.Gini * 0.5
	if s.RiskScore < want-1e-9 || s.RiskScore > want+1e-9 {
		t.Fatalf("got risk score %v, want %v (gini-only)", s.RiskScore, want)
	}
}

func TestComputeCapsAtOne(t *testing.T) {
	cfg := config.Load()
	mixerType := "Tornado Cash"
	flags := []model.MixerFlag{{Address: "a", IsMixer: true, MixerType: &mixerType}}
	clusters := []model.SuspiciousCluster{{Size: 100, RiskLevel: "high"}}
	pairs := []model.WashTradePair{{TransactionCount: 20, TotalVolume: 1000000, WindowSeconds: 10}}
	data := model.TokenData{AllWallets: []string{"a", "b"}}

	s := Compute(cfg, 1.0, flags, pairs, clusters, data)
	if s.RiskScore > 1.0 {
		t.Fatalf("got risk score %v, want capped at 1.0", s.RiskScore)
	}
}

func TestMixerScoreProportional(t *testing.T) {
	mixerType := "Tornado Cash"
	flags := []model.MixerFlag{
		{Address: "a", IsMixer: true, MixerType: &mixerType},
		{Address: "b", IsMixer: false},
	}
	if got := mixerScoreOf(flags); got != 0.5 {
		t.Fatalf("got mixer score %v, want 0.5", got)
	}
}

func TestWashTradeScoreUsesConfiguredNormalizerWhenNoTotalVolume(t *testing.T) {
	cfg := config.Load()
	pairs := []model.WashTradePair{{TransactionCount: 5, TotalVolume: 50000, WindowSeconds: 100}}
	data := model.TokenData{} // no transactions -> fallback normalizer

	score, context := washTradeScoreOf(cfg, pairs, data)
	if score <= 0 {
		t.Fatalf("expected non-zero wash trade score, got %v", score)
	}
	if context == "" {
		t.Fatalf("expected non-empty reasoning context")
	}
}

func TestWashTradeScoreDiversityScalesDownForLargeWalletCounts(t *testing.T) {
	cfg := config.Load()
	pairs := []model.WashTradePair{{TransactionCount: 5, TotalVolume: 50000, WindowSeconds: 100}}

	smallData := model.TokenData{AllWallets: make([]string, 10)}
	largeData := model.TokenData{AllWallets: make([]string, 6000)}

	smallScore, _ := washTradeScoreOf(cfg, pairs, smallData)
	largeScore, _ := washTradeScoreOf(cfg, pairs, largeData)

	if largeScore >= smallScore {
		t.Fatalf("expected large wallet count to scale score down: small=%v large=%v", smallScore, largeScore)
	}
}

func TestClusterScoreNormalizesAt20Wallets(t *testing.T) {
	clusters := []model.SuspiciousCluster{{Size: 20}}
	if got := clusterScoreOf(clusters); got != 1.0 {
		t.Fatalf("got %v, want 1.0 at exactly 20 suspicious wallets", got)
	}
	clusters = []model.SuspiciousCluster{{Size: 10}}
	if got := clusterScoreOf(clusters); got != 0.5 {
		t.Fatalf("got %v, want 0.5 at 10 suspicious wallets", got)
	}
}

func TestComputeConfidenceHigh(t *testing.T) {
	var txs []model.Transfer
	for i := 0; i < 1000; i++ {
		txs = append(txs, model.Transfer{Timestamp: int64(i * 3600)})
	}
	txs = append(txs, model.Transfer{Timestamp: 31 * 86400})
	data := model.TokenData{Transactions: txs}

	confidence, quality := computeConfidence(data)
	if confidence != "high" {
		t.Fatalf("got confidence %q, want high", confidence)
	}
	if !quality.SufficientData {
		t.Fatalf("expected sufficient data to be true")
	}
}

func TestComputeConfidenceLowWithSparseData(t *testing.T) {
	data := model.TokenData{Transactions: []model.Transfer{{Timestamp: 1}, {Timestamp: 2}}}
	confidence, quality := computeConfidence(data)
	if confidence != "low" {
		t.Fatalf("got confidence %q, want low", confidence)
	}
	if quality.SufficientData {
		t.Fatalf("expected insufficient data for sparse set")
	}
}
