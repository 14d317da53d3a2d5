// Package providers defines the polymorphic data-source contract shared by
// the alchemy, bitquery and explorer sub-packages, each wrapping a
// different upstream indexing API behind the same interface.
package providers

import (
	"context"

	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

// Provider fetches raw ERC20 Transfer events and token metadata for a
// single token address on a single chain. Implementations must be safe
// for concurrent use.
type Provider interface {
	// Name identifies the provider for metrics and reasoning strings,
	// e.g. "alchemy", "bitquery", "explorer".
	Name() string

	// FetchTransfers returns up to maxCount transfers for tokenAddress.
	// Ordering is per provider: alchemy and bitquery request transfers
	// oldest first from the start of the chain, so when more than maxCount
	// exist the newest are not included; explorer reads the most recent
	// block windows oldest window first, and its tokentx fallback returns
	// newest first. Implementations do not sort or deduplicate their
	// output. An empty, nil-error result means "no transfers found",
	// distinct from a provider error.
	FetchTransfers(ctx context.Context, chain, tokenAddress string, maxCount int) ([]model.Transfer, error)

	// FetchMetadata returns the token's symbol/name/decimals and, best
	// effort, total supply. Decimals defaults to 18 when undiscoverable.
	FetchMetadata(ctx context.Context, chain, tokenAddress string) (model.TokenMetadata, error)
}
