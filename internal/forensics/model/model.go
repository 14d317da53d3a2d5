// Package model holds the shared data types that flow through the
// forensic analysis pipeline: transfers, wallet nodes, aggregated edges,
// communities and the final analysis result.
package model

// Transfer is a single observed ERC20 transfer, normalized across providers.
// Addresses are always lowercase hex. Hash is the cross-provider dedup key.
type Transfer struct {
	Hash      string  `json:"hash"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Value     float64 `json:"value"` // human-scaled: raw integer units / 10^decimals
	Timestamp int64   `json:"timestamp"`
	Block     uint64  `json:"block"`
}

// TokenMetadata describes the ERC20 contract under analysis.
type TokenMetadata struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"totalSupply,omitempty"`
}

// Holder summarizes one wallet's approximate on-chain activity derived
// purely from observed transfers within the fetch window.
type Holder struct {
	Address          string  `json:"address"`
	Balance          float64 `json:"balance"` // max(0, received - sent)
	TransactionCount int     `json:"transactionCount"`
}

// TokenData is everything the Fetcher produces for a single token address:
// the provider's transfers, the derived holder set, and metadata.
type TokenData struct {
	TokenAddress           string          `json:"tokenAddress"`
	Chain                  string          `json:"chain"`
	Metadata               TokenMetadata   `json:"metadata"`
	TopHolders             []Holder        `json:"topHolders"`
	Transactions           []Transfer      `json:"transactions"`
	AllWallets             []string        `json:"allWallets"`
	TotalTransactionsFetch int             `json:"totalTransactionsFetched"`
	ProviderUsed           string          `json:"providerUsed"`
}

// WalletNode is a graph node: an address that appeared as a transfer
// endpoint, with attributes mutated only during graph construction
// and analysis.
type WalletNode struct {
	Address          string  `json:"address"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
	IsTopHolder      bool    `json:"isTopHolder"`
	PageRank         float64 `json:"pagerank"`
	IsMixer          bool    `json:"isMixer"`
}

// Edge is the aggregated directed flow from one wallet to another.
// For any ordered pair (from, to) there is at most one Edge.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"` // summed value across all aggregated transfers
	Count  int     `json:"count"`
	TxHash string  `json:"txHash"` // representative: first seen
	MinTS  int64   `json:"minTs"`
	MaxTS  int64   `json:"maxTs"`
}

// SuspiciousCluster is a community meeting the density/closure criteria in
// the Analyzer's suspicious-cluster test.
type SuspiciousCluster struct {
	ClusterID            int      `json:"clusterId"`
	Wallets              []string `json:"wallets"`
	Size                 int      `json:"size"`
	Density              float64  `json:"density"`
	ExternalConnections  int      `json:"externalConnections"`
	RiskLevel            string   `json:"riskLevel"` // "high" | "medium"
}

// WashTradePair is one directed edge flagged by the wash-trade detector.
type WashTradePair struct {
	From                string   `json:"from"`
	To                  string   `json:"to"`
	TransactionCount    int      `json:"transactionCount"`
	TotalVolume         float64  `json:"totalVolume"`
	AvgValue            float64  `json:"avgValue"`
	WindowSeconds        int64    `json:"windowSeconds"`
	IsBidirectional     bool     `json:"isBidirectional"`
	ReverseCount        int      `json:"reverseCount"`
	ReverseTotalVolume  float64  `json:"reverseTotalVolume"`
	SuspicionReasons    []string `json:"suspicionReasons"`
	RiskLevel           string   `json:"riskLevel"` // "high" | "medium"
}

// MixerFlag reports whether a holder address matches a known mixer.
type MixerFlag struct {
	Address   string  `json:"address"`
	IsMixer   bool    `json:"isMixer"`
	MixerType *string `json:"mixerType,omitempty"`
}

// TopHolderView is a holder enriched with graph metrics, as returned in
// the response's top_holders list.
type TopHolderView struct {
	Address  string  `json:"address"`
	Balance  float64 `json:"balance"`
	PageRank float64 `json:"pagerank"`
	Degree   int     `json:"degree"`
}

// DataQuality reports the basis for the Confidence classification.
type DataQuality struct {
	TransactionCount int     `json:"transactionCount"`
	TimeSpanDays     float64 `json:"timeSpanDays"`
	WalletCount      int     `json:"walletCount"`
	SufficientData   bool    `json:"sufficientData"`
}

// RiskComponents is the un-weighted [0,1] contribution of each risk factor.
type RiskComponents struct {
	Gini       float64 `json:"gini"`
	Mixer      float64 `json:"mixer"`
	WashTrade  float64 `json:"washTrade"`
	Cluster    float64 `json:"cluster"`
}

// Metrics is the analyzer/risk-scorer's combined metrics bag.
type Metrics struct {
	PageRank            map[string]float64 `json:"pagerank"`
	Gini                float64            `json:"gini"`
	Communities         map[int][]string   `json:"communities"`
	CommunityAlgorithm  string             `json:"communityAlgorithm"`
	ProviderUsed        string             `json:"providerUsed"`
	RiskComponents      RiskComponents     `json:"riskComponents"`
	Reasoning           []string           `json:"reasoning"`
	Confidence          string             `json:"confidence"`
	DataQuality         DataQuality        `json:"dataQuality"`
}

// GraphNodeView and GraphLinkView shape the force-directed graph payload
// consumed by downstream visualizers.
type GraphNodeView struct {
	ID       string  `json:"id"`
	Group    int     `json:"group"`
	PageRank float64 `json:"pagerank"`
	IsMixer  bool    `json:"isMixer"`
	Balance  float64 `json:"balance"`
}

type GraphLinkView struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Value       float64 `json:"value"`
	Count       int     `json:"count"`
	IsWashTrade bool    `json:"isWashTrade"`
}

type GraphData struct {
	Nodes []GraphNodeView `json:"nodes"`
	Links []GraphLinkView `json:"links"`
}

// AnalysisResult is the immutable aggregate returned to the caller.
type AnalysisResult struct {
	TokenAddress        string              `json:"tokenAddress"`
	AnalysisTimeSeconds float64             `json:"analysisTimeSeconds"`
	RiskScore           float64             `json:"riskScore"`
	TopHolders          []TopHolderView     `json:"topHolders"`
	SuspiciousClusters  []SuspiciousCluster `json:"suspiciousClusters"`
	MixerFlags          []MixerFlag         `json:"mixerFlags"`
	WashTradePairs      []WashTradePair     `json:"washTradePairs"`
	GraphData           GraphData           `json:"graphData"`
	Metrics             Metrics             `json:"metrics"`
}
