// Package risk fuses the gini, mixer, wash-trade and cluster signals into
// a single [0,1] score, grounded on the original risk scorer's weighted
// combination and confidence classification.
package risk

import (
	"fmt"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

// Score is the weighted risk score plus the reasoning trail and
// confidence classification that accompany it.
type Score struct {
	RiskScore   float64
	Components  model.RiskComponents
	Reasoning   []string
	Confidence  string
	DataQuality model.DataQuality
}

// Compute fuses gini, mixer flags, wash-trade pairs and suspicious
// clusters into the final weighted risk score.
func Compute(cfg *config.Config, gini float64, mixerFlags []model.MixerFlag, washTrade []model.WashTradePair, clusters []model.SuspiciousCluster, data model.TokenData) Score {
	var reasoning []string

	giniScore := gini
	if giniScore > 1.0 {
		giniScore = 1.0
	}
	reasoning = append(reasoning, fmt.Sprintf("wealth concentration (gini): %.3f", gini))
	if gini > 0.9 {
		reasoning = append(reasoning, "dangerously centralized (gini > 0.9)")
	}

	mixerScore := mixerScoreOf(mixerFlags)
	if mixerScore > 0 {
		count := 0
		for _, f := range mixerFlags {
			if f.IsMixer {
				count++
			}
		}
		reasoning = append(reasoning, fmt.Sprintf("mixer connections: %d addresses linked", count))
	}

	washScore, washContext := washTradeScoreOf(cfg, washTrade, data)
	if washScore > 0 {
		reasoning = append(reasoning, washContext)
	}

	clusterScore := clusterScoreOf(clusters)
	if clusterScore > 0 {
		total := 0
		for _, c := range clusters {
			total += c.Size
		}
		reasoning = append(reasoning, fmt.Sprintf("suspicious clusters: %d wallets involved", total))
	}

	riskScore := cfg.RiskWeights.Gini*giniScore +
		cfg.RiskWeights.Mixer*mixerScore +
		cfg.RiskWeights.WashTrade*washScore +
		cfg.RiskWeights.Cluster*clusterScore
	if riskScore > 1.0 {
		riskScore = 1.0
	}

	confidence, quality := computeConfidence(data)

	return Score{
		RiskScore: riskScore,
		Components: model.RiskComponents{
			Gini:      giniScore,
			Mixer:     mixerScore,
			WashTrade: washScore,
			Cluster:   clusterScore,
		},
		Reasoning:   reasoning,
		Confidence:  confidence,
		DataQuality: quality,
	}
}

func mixerScoreOf(flags []model.MixerFlag) float64 {
	if len(flags) == 0 {
		return 0
	}
	count := 0
	for _, f := range flags {
		if f.IsMixer {
			count++
		}
	}
	score := float64(count) / float64(len(flags))
	if score > 1.0 {
		return 1.0
	}
	return score
}

func washTradeScoreOf(cfg *config.Config, pairs []model.WashTradePair, data model.TokenData) (float64, string) {
	if len(pairs) == 0 {
		return 0, ""
	}

	pairCount := len(pairs)
	var suspiciousVolume float64
	highBurstPairs := 0
	for _, p := range pairs {
		suspiciousVolume += p.TotalVolume
		// Window > 0 and count >= 5 only, no upper bound against the
		// configured burst window here — matches risk_scorer.py exactly.
		if p.WindowSeconds > 0 && p.TransactionCount >= 5 {
			highBurstPairs++
		}
	}

	var totalVolume float64
	for _, tx := range data.Transactions {
		totalVolume += tx.Value
	}
	walletCount := len(data.AllWallets)

	normalizer := totalVolume
	if normalizer <= 0 {
		normalizer = cfg.WashTradeVolumeNormalizer
		if normalizer < 1 {
			normalizer = 1
		}
	}
	volumeComponent := suspiciousVolume / normalizer
	if volumeComponent > 1.0 {
		volumeComponent = 1.0
	}

	denomPairs := float64(walletCount) / 50.0
	if denomPairs < 10.0 {
		denomPairs = 10.0
	}
	countComponent := float64(pairCount) / denomPairs
	if countComponent > 1.0 {
		countComponent = 1.0
	}

	burstBonus := float64(highBurstPairs) / 10.0
	if burstBonus > 0.3 {
		burstBonus = 0.3
	}

	rawScore := 0.3*countComponent + 0.7*volumeComponent + burstBonus
	if rawScore > 1.0 {
		rawScore = 1.0
	}

	diversityScale := 1.0
	switch {
	case walletCount >= 5000:
		diversityScale = 0.5
	case walletCount >= 2000:
		diversityScale = 0.7
	case walletCount >= 1000:
		diversityScale = 0.85
	}

	score := rawScore * diversityScale
	if score > 1.0 {
		score = 1.0
	}

	context := fmt.Sprintf("wash trading: %d suspicious pairs, suspicious volume ~%d", pairCount, int64(suspiciousVolume))
	if totalVolume > 0 {
		context += fmt.Sprintf(" of %d total", int64(totalVolume))
	}
	if highBurstPairs > 0 {
		context += fmt.Sprintf(", %d burst pairs", highBurstPairs)
	}
	if walletCount > 0 {
		context += fmt.Sprintf(", diversity-scaled (wallets=%d)", walletCount)
	}

	return score, context
}

func clusterScoreOf(clusters []model.SuspiciousCluster) float64 {
	if len(clusters) == 0 {
		return 0
	}
	total := 0
	for _, c := range clusters {
		total += c.Size
	}
	score := float64(total) / 20.0
	if score > 1.0 {
		return 1.0
	}
	return score
}

func computeConfidence(data model.TokenData) (string, model.DataQuality) {
	txs := data.Transactions
	wallets := data.AllWallets

	var minTS, maxTS int64
	haveTimestamps := false
	for _, tx := range txs {
		if tx.Timestamp == 0 {
			continue
		}
		if !haveTimestamps {
			minTS, maxTS = tx.Timestamp, tx.Timestamp
			haveTimestamps = true
			continue
		}
		if tx.Timestamp < minTS {
			minTS = tx.Timestamp
		}
		if tx.Timestamp > maxTS {
			maxTS = tx.Timestamp
		}
	}

	var timeSpanDays float64
	if haveTimestamps {
		timeSpanDays = float64(maxTS-minTS) / 86400.0
		if timeSpanDays < 0 {
			timeSpanDays = 0
		}
	}

	sufficientData := len(txs) >= 100 && timeSpanDays >= 7

	var confidence string
	switch {
	case len(txs) >= 1000 && timeSpanDays >= 30:
		confidence = "high"
	case len(txs) >= 100 && timeSpanDays >= 7:
		confidence = "medium"
	default:
		confidence = "low"
	}

	quality := model.DataQuality{
		TransactionCount: len(txs),
		TimeSpanDays:     roundTo1(timeSpanDays),
		WalletCount:      len(wallets),
		SufficientData:   sufficientData,
	}

	return confidence, quality
}

func roundTo1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
