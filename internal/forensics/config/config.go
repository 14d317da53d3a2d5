// Package config loads process-wide defaults from the environment, once,
// at startup. Per-request overrides are never applied here — see
// engine.RequestOptions for that (design note 9(a)).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RiskWeights are the fusion weights applied to each risk component.
type RiskWeights struct {
	Gini      float64
	Mixer     float64
	WashTrade float64
	Cluster   float64
}

// Config is the process-wide configuration, read once at startup from
// the environment and treated as immutable thereafter.
type Config struct {
	AlchemyAPIKey        string
	BitqueryAccessToken  string
	EtherscanAPIKey      string

	MaxHolders                int
	MaxTransactionsToFetch    int
	TimeoutSeconds            int
	MaxConcurrentRequests     int
	RequestsPerSecond         int
	RequestTimeoutSeconds     int
	CacheTTLSeconds           int
	MaxCacheItems             int
	WashTradeBurstWindowSecs  int64
	WashTradeVolumeNormalizer float64

	RiskWeights RiskWeights

	KnownMixers       map[string]struct{}
	ProtocolWhitelist map[string]struct{}

	EtherscanAPIURL string
	AlchemyBaseURL  string
	BitqueryEndpoint string
	BitqueryStreamEndpoint string
}

// Load reads configuration from the environment, applying the same
// defaults as the original analysis backend.
func Load() *Config {
	c := &Config{
		AlchemyAPIKey:       os.Getenv("ALCHEMY_API_KEY"),
		BitqueryAccessToken: os.Getenv("BITQUERY_ACCESS_TOKEN"),
		EtherscanAPIKey:     os.Getenv("ETHERSCAN_API_KEY"),

		MaxHolders:               envInt("MAX_HOLDERS", 50),
		MaxTransactionsToFetch:    envInt("MAX_TRANSACTIONS_TO_FETCH", envInt("MAX_TRANSACTIONS", 10000)),
		TimeoutSeconds:            envInt("TIMEOUT_SECONDS", 25),
		MaxConcurrentRequests:     envInt("MAX_CONCURRENT_REQUESTS", 8),
		RequestsPerSecond:         envInt("REQUESTS_PER_SECOND", 4),
		RequestTimeoutSeconds:     envInt("REQUEST_TIMEOUT_SECONDS", 10),
		CacheTTLSeconds:           envInt("CACHE_TTL_SECONDS", 300),
		MaxCacheItems:             envInt("MAX_CACHE_ITEMS", 100),
		WashTradeBurstWindowSecs:  int64(envInt("WASH_TRADE_BURST_WINDOW_SECONDS", 2*60*60)),
		WashTradeVolumeNormalizer: envFloat("WASH_TRADE_VOLUME_NORMALIZER", 100000.0),

		RiskWeights: RiskWeights{
			Gini:      0.30,
			Mixer:     0.25,
			WashTrade: 0.25,
			Cluster:   0.20,
		},

		EtherscanAPIURL:        "https://api.etherscan.io/v2/api",
		AlchemyBaseURL:         "https://eth-mainnet.g.alchemy.com/v2",
		BitqueryEndpoint:       "https://graphql.bitquery.io",
		BitqueryStreamEndpoint: "https://streaming.bitquery.io/graphql",
	}

	c.KnownMixers = map[string]struct{}{
		"0x12d66f87a04a9e220743712ce6d9bb1b5616b8fc": {}, // Tornado Cash 0.1 ETH
		"0x47ce0c6ed5b0ce3d3a51fdb1c52dc66a7c3c2936": {}, // Tornado Cash 1 ETH
		"0x910cbd523d972eb0a6f4cae4618ad62622b39dbf": {}, // Tornado Cash 10 ETH
		"0xa160cdab225685da1d56aa342ad8841c3b53f291": {}, // Tornado Cash 100 ETH
	}

	c.ProtocolWhitelist = map[string]struct{}{
		"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": {}, // Uniswap V2 Router
		"0xe592427a0aece92de3edee1f18e0157c05861564": {}, // Uniswap V3 Router
		"0xef1c6e67703c7bd7107f31af8ee2b014445c8c73": {}, // Uniswap Universal Router
		"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": {}, // SushiSwap Router
		"0x1111111254fb6c44bac0bed2854e76f90643097d": {}, // 1inch Router v5
		"0xdef171fe48cf0115b1d80b88dc8eab59176fee57": {}, // ParaSwap Augustus
		"0x000000000022d473030f116ddee9f6b43ac78ba3": {}, // Uniswap Permit2
		"0xba12222222228d8ba445958a75a0704d566bf2c8": {}, // Balancer V2 Vault
		"0x28c6c06298d514db089934071355e0e4dc0bff89": {}, // Binance 14
		"0x21a31ee1afc51d94c2efccaa2092ab7cbf6fd64": {},  // Binance 8
		"0x3f5ce5fbfe3e9af3971dd833d26ba9b5c936f0be": {}, // Binance hot wallet
		"0x503828976d22510aad0201ac7ec88293211d23da": {}, // Coinbase hot wallet
	}

	return c
}

// Validate enforces that at least one provider credential is configured.
func (c *Config) Validate() *ValidationError {
	if c.AlchemyAPIKey == "" && c.BitqueryAccessToken == "" && c.EtherscanAPIKey == "" {
		return &ValidationError{Message: "at least one API key must be configured (ALCHEMY_API_KEY, BITQUERY_ACCESS_TOKEN, or ETHERSCAN_API_KEY)"}
	}
	return nil
}

type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// WashTradeBurstWindow as a time.Duration for convenience at call sites.
func (c *Config) WashTradeBurstWindow() time.Duration {
	return time.Duration(c.WashTradeBurstWindowSecs) * time.Second
}

// ChainID maps a chain name to its numeric chain id. Unknown maps to 1
// (Ethereum mainnet), matching the Etherscan V2 default.
func ChainID(chain string) int {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return 1
	case "bsc", "binance-smart-chain":
		return 56
	case "polygon", "matic":
		return 137
	case "base":
		return 8453
	case "arbitrum":
		return 42161
	case "optimism":
		return 10
	default:
		return 1
	}
}

// BitqueryNetworks returns the (v2 token, v1 name) pair BitQuery expects
// for the given chain.
func BitqueryNetworks(chain string) (v2 string, v1 string) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return "eth", "ethereum"
	case "bsc", "binance-smart-chain":
		return "bsc", "bsc"
	case "polygon", "matic":
		return "polygon", "polygon"
	case "arbitrum":
		return "arbitrum", "arbitrum"
	case "optimism":
		return "optimism", "optimism"
	case "base":
		return "base", "base"
	default:
		return "eth", "ethereum"
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
