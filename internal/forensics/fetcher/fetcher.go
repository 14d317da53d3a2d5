// Package fetcher orchestrates the provider priority/fallback chain,
// derives the wallet set and top holders from the fetched transfers, and
// tracks which provider ultimately served the request.
package fetcher

import (
	"context"
	"sort"
	"strings"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/errs"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
	"github.com/rawblock/forensic-engine/internal/forensics/providers"
)

// Fetcher pulls transfers and metadata for a token, falling through an
// ordered provider list until one succeeds.
type Fetcher struct {
	providers []providers.Provider
	cfg       *config.Config
}

// New builds a Fetcher with providers in priority order: the first
// provider in the list is tried first for both transfers and metadata.
func New(cfg *config.Config, ordered []providers.Provider) *Fetcher {
	return &Fetcher{providers: ordered, cfg: cfg}
}

// Options overrides the process-wide defaults for a single Fetch call.
type Options struct {
	PreferredProvider string // provider Name() to try first, "" = configured order
	MaxTransactions   int    // 0 = use Config.MaxTransactionsToFetch
}

// Fetch resolves token data using process-wide defaults; equivalent to
// FetchWithOptions(ctx, chain, tokenAddress, Options{}).
func (f *Fetcher) Fetch(ctx context.Context, chain, tokenAddress string) (model.TokenData, error) {
	return f.FetchWithOptions(ctx, chain, tokenAddress, Options{})
}

// FetchWithOptions resolves token data by walking the provider chain:
// transfers are fetched from the first provider that returns a
// non-empty result and deduplicated by transaction hash (if none does,
// the last provider error seen is returned, or a no-transfers error when
// every provider returned empty), then metadata is fetched the same way, skipping any
// result whose symbol is "UNKNOWN". opts.PreferredProvider, if set,
// moves that provider to the front of the chain for this call only.
func (f *Fetcher) FetchWithOptions(ctx context.Context, chain, tokenAddress string, opts Options) (model.TokenData, error) {
	if len(f.providers) == 0 {
		return model.TokenData{}, errs.Configf("fetcher.Fetch", "no providers configured")
	}

	ordered := f.orderedProviders(opts.PreferredProvider)
	maxCount := opts.MaxTransactions
	if maxCount <= 0 {
		maxCount = f.cfg.MaxTransactionsToFetch
	}

	transfers, providerUsed, err := f.fetchTransfers(ctx, ordered, chain, tokenAddress, maxCount)
	if err != nil {
		return model.TokenData{}, err
	}

	metadata := f.fetchMetadata(ctx, ordered, chain, tokenAddress)

	wallets, holders := deriveWallets(transfers)

	return model.TokenData{
		TokenAddress:           strings.ToLower(tokenAddress),
		Chain:                  chain,
		Metadata:               metadata,
		TopHolders:             topHolders(holders, f.cfg.MaxHolders),
		Transactions:           transfers,
		AllWallets:             wallets,
		TotalTransactionsFetch: len(transfers),
		ProviderUsed:           providerUsed,
	}, nil
}

// orderedProviders returns the provider chain for this call, moving
// preferred to the front when it names a configured provider.
func (f *Fetcher) orderedProviders(preferred string) []providers.Provider {
	if preferred == "" {
		return f.providers
	}
	ordered := make([]providers.Provider, 0, len(f.providers))
	for _, p := range f.providers {
		if strings.EqualFold(p.Name(), preferred) {
			ordered = append([]providers.Provider{p}, ordered...)
		} else {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (f *Fetcher) fetchTransfers(ctx context.Context, ordered []providers.Provider, chain, tokenAddress string, maxCount int) ([]model.Transfer, string, error) {
	var lastErr error
	for _, p := range ordered {
		transfers, err := p.FetchTransfers(ctx, chain, tokenAddress, maxCount)
		if err != nil {
			if errs.IsKind(err, errs.Deadline) {
				return nil, "", err
			}
			lastErr = err
			continue
		}
		if len(transfers) == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(transfers))
		unique := make([]model.Transfer, 0, len(transfers))
		for _, tr := range transfers {
			if tr.Hash != "" {
				if _, dup := seen[tr.Hash]; dup {
					continue
				}
				seen[tr.Hash] = struct{}{}
			}
			unique = append(unique, tr)
		}
		return unique, p.Name(), nil
	}
	if lastErr != nil {
		return nil, "", lastErr
	}
	return nil, "", errs.Permanent("fetcher.fetchTransfers", errNoTransfersFromAnyProvider)
}

func (f *Fetcher) fetchMetadata(ctx context.Context, ordered []providers.Provider, chain, tokenAddress string) model.TokenMetadata {
	for _, p := range ordered {
		meta, err := p.FetchMetadata(ctx, chain, tokenAddress)
		if err != nil {
			continue
		}
		if meta.Symbol == "" || strings.EqualFold(meta.Symbol, "UNKNOWN") {
			continue
		}
		return meta
	}
	return model.TokenMetadata{Address: strings.ToLower(tokenAddress), Decimals: 18}
}

// deriveWallets computes each address's approximate balance as
// max(0, received - sent) over the fetch window, and returns the full
// wallet set alongside a Holder slice for ranking.
func deriveWallets(transfers []model.Transfer) ([]string, []model.Holder) {
	type tally struct {
		received, sent float64
		count          int
	}
	byAddress := make(map[string]*tally)

	touch := func(addr string) *tally {
		t, ok := byAddress[addr]
		if !ok {
			t = &tally{}
			byAddress[addr] = t
		}
		return t
	}

	for _, tr := range transfers {
		from := touch(tr.From)
		from.sent += tr.Value
		from.count++

		to := touch(tr.To)
		to.received += tr.Value
		to.count++
	}

	wallets := make([]string, 0, len(byAddress))
	holders := make([]model.Holder, 0, len(byAddress))
	for addr, t := range byAddress {
		wallets = append(wallets, addr)
		balance := t.received - t.sent
		if balance < 0 {
			balance = 0
		}
		holders = append(holders, model.Holder{
			Address:          addr,
			Balance:          balance,
			TransactionCount: t.count,
		})
	}

	sort.Strings(wallets)
	return wallets, holders
}

func topHolders(holders []model.Holder, max int) []model.Holder {
	sorted := make([]model.Holder, len(holders))
	copy(sorted, holders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Balance > sorted[j].Balance
	})
	if max > 0 && len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

var errNoTransfersFromAnyProvider = errNoTransfers{}

type errNoTransfers struct{}

func (errNoTransfers) Error() string { return "no transfers found from any configured provider" }
