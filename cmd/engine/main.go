package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rawblock/forensic-engine/cmd/engine/httpapi"
	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/engine"
	"github.com/rawblock/forensic-engine/internal/forensics/fetcher"
	"github.com/rawblock/forensic-engine/internal/forensics/providers"
	"github.com/rawblock/forensic-engine/internal/forensics/providers/alchemy"
	"github.com/rawblock/forensic-engine/internal/forensics/providers/bitquery"
	"github.com/rawblock/forensic-engine/internal/forensics/providers/explorer"
)

func main() {
	log.Println("Starting RawBlock Forensic Engine (Microservice: erc20-wash-trade-analytics)...")
	log.Println("Initializing provider chain and risk scoring pipeline...")

	cfg := config.Load()
	if verr := cfg.Validate(); verr != nil {
		log.Fatalf("FATAL: %v. Copy .env.example to .env and fill in your values: cp .env.example .env", verr)
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second}

	ordered := buildProviderChain(cfg, httpClient)
	log.Printf("Provider chain: %v", providerNames(ordered))

	f := fetcher.New(cfg, ordered)
	eng := engine.New(cfg, f)

	// Progress events are optional: if the websocket hub never gets a
	// subscriber, Notify is still safe to call (see ProgressHub.Notify).
	progressHub := httpapi.NewProgressHub()

	r := httpapi.NewRouter(cfg, eng, progressHub)

	port := getEnvOrDefault("PORT", "5339")
	log.Printf("Engine running on :%s (API Node: erc20-wash-trade-analytics)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildProviderChain assembles the provider priority order from whichever
// credentials are configured. Alchemy is preferred when available (richest
// pagination + metadata in one call), then BitQuery, then the block-explorer
// fallback, which works from ETHERSCAN_API_KEY alone and degrades slowest
// under rate limiting.
func buildProviderChain(cfg *config.Config, hc *http.Client) []providers.Provider {
	var chain []providers.Provider

	if cfg.AlchemyAPIKey != "" {
		chain = append(chain, alchemy.New(cfg.AlchemyBaseURL, cfg.AlchemyAPIKey, hc))
	} else {
		log.Println("ALCHEMY_API_KEY not set — alchemy provider disabled")
	}

	if cfg.BitqueryAccessToken != "" {
		chain = append(chain, bitquery.New(cfg.BitqueryStreamEndpoint, cfg.BitqueryEndpoint, cfg.BitqueryAccessToken, hc))
	} else {
		log.Println("BITQUERY_ACCESS_TOKEN not set — bitquery provider disabled")
	}

	if cfg.EtherscanAPIKey != "" {
		chain = append(chain, explorer.New(cfg.EtherscanAPIURL, cfg.EtherscanAPIKey, hc))
	} else {
		log.Println("ETHERSCAN_API_KEY not set — explorer provider disabled")
	}

	return chain
}

func providerNames(ordered []providers.Provider) []string {
	names := make([]string, len(ordered))
	for i, p := range ordered {
		names[i] = p.Name()
	}
	return names
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
