// Package engine wires the fetcher, graph builder, analyzer, wash-trade
// detector, mixer flagger and risk scorer into the single request/response
// pipeline exposed to callers.
package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/rawblock/forensic-engine/internal/forensics/analyzer"
	"github.com/rawblock/forensic-engine/internal/forensics/cache"
	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/errs"
	"github.com/rawblock/forensic-engine/internal/forensics/fetcher"
	"github.com/rawblock/forensic-engine/internal/forensics/graph"
	"github.com/rawblock/forensic-engine/internal/forensics/mixer"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
	"github.com/rawblock/forensic-engine/internal/forensics/risk"
	"github.com/rawblock/forensic-engine/internal/forensics/washtrade"
)

// RequestOptions carries per-request overrides of the process-wide
// Config, so a single request can e.g. move one provider to the front of
// the chain or set its own deadline without mutating global state for
// every other in-flight request. A preferred provider is only tried
// first: the remaining providers are still tried after it, and naming a
// provider that is not configured is not an error.
type RequestOptions struct {
	PreferredProvider string // "alchemy" | "bitquery" | "explorer" | "" (auto)
	MaxTransactions   int    // 0 = use Config default
	TimeoutSeconds    int    // 0 = no request deadline
}

// ProgressFunc, if non-nil, is invoked as the pipeline advances through
// its phases: fetching, building_graph, analyzing, scoring, done.
type ProgressFunc func(phase string)

// Engine is the analysis pipeline bound to a fixed provider chain and
// configuration.
type Engine struct {
	cfg     *config.Config
	fetcher *fetcher.Fetcher
	cache   *cache.Cache
}

// New builds an Engine from the given config and fully-assembled fetcher.
func New(cfg *config.Config, f *fetcher.Fetcher) *Engine {
	return &Engine{
		cfg:     cfg,
		fetcher: f,
		cache:   cache.New(cfg.MaxCacheItems, time.Duration(cfg.CacheTTLSeconds)*time.Second),
	}
}

// Analyze runs the full pipeline for a single token address on chain,
// respecting the request's deadline when Options.TimeoutSeconds is set;
// Config.TimeoutSeconds is only the soft budget whose overrun is logged.
// Only Configuration and Deadline errors reject the whole request; every
// other failure degrades gracefully rather than failing the analysis (a
// fetch that yields no transfers is analyzed as an empty transfer set).
func (e *Engine) Analyze(ctx context.Context, chain, tokenAddress string, opts RequestOptions, progress ProgressFunc) (model.AnalysisResult, error) {
	start := time.Now()
	report := func(phase string) {
		if progress != nil {
			progress(phase)
		}
	}

	if opts.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	tokenAddress = strings.ToLower(tokenAddress)

	report("fetching")
	fetchOpts := fetcher.Options{
		PreferredProvider: opts.PreferredProvider,
		MaxTransactions:   opts.MaxTransactions,
	}
	data, err := e.fetchWithCache(ctx, chain, tokenAddress, fetchOpts)
	if err != nil {
		if errs.IsKind(err, errs.Deadline) || errs.IsKind(err, errs.Configuration) {
			return model.AnalysisResult{}, err
		}
		if ctx.Err() != nil {
			return model.AnalysisResult{}, errs.DeadlineExceeded("engine.Analyze", ctx.Err())
		}
		log.Printf("[Engine] no transfers for %s (%v), analyzing an empty transfer set", tokenAddress, err)
		data = model.TokenData{TokenAddress: tokenAddress, Chain: chain}
	}

	report("building_graph")
	g := graph.Build(data)

	report("analyzing")
	analysis := analyzer.Analyze(g, e.cfg.MaxHolders)
	washTradePairs := washtrade.Detect(g, e.cfg)
	mixerFlags := mixer.FlagAll(e.cfg, data.AllWallets)

	report("scoring")
	score := risk.Compute(e.cfg, analysis.Gini, mixerFlags, washTradePairs, analysis.SuspiciousClusters, data)

	elapsed := time.Since(start)
	if elapsed > time.Duration(e.cfg.TimeoutSeconds)*time.Second {
		log.Printf("[Engine] analysis for %s took %.1fs, exceeding the %ds soft budget — result still returned", tokenAddress, elapsed.Seconds(), e.cfg.TimeoutSeconds)
	}

	result := model.AnalysisResult{
		TokenAddress:        tokenAddress,
		AnalysisTimeSeconds: elapsed.Seconds(),
		RiskScore:           score.RiskScore,
		TopHolders:          analysis.TopHolders,
		SuspiciousClusters:  analysis.SuspiciousClusters,
		MixerFlags:          mixerFlags,
		WashTradePairs:      washTradePairs,
		GraphData:           formatGraphData(g, analysis, washTradePairs, mixerFlags, data.ProviderUsed),
		Metrics: model.Metrics{
			PageRank:           analysis.PageRank,
			Gini:               analysis.Gini,
			Communities:        analysis.Communities,
			CommunityAlgorithm: analysis.CommunityAlgorithm,
			ProviderUsed:       data.ProviderUsed,
			RiskComponents:     score.Components,
			Reasoning:          score.Reasoning,
			Confidence:         score.Confidence,
			DataQuality:        score.DataQuality,
		},
	}

	report("done")
	return result, nil
}

// fetchWithCache serves from cache only for the default-options case:
// a request pinning a preferred provider or a non-default transaction
// cap wants exactly that result, not whatever a prior default-options
// call happened to cache under the same address.
func (e *Engine) fetchWithCache(ctx context.Context, chain, tokenAddress string, opts fetcher.Options) (model.TokenData, error) {
	useCache := opts.PreferredProvider == "" && opts.MaxTransactions <= 0
	key := cache.Key(chain, tokenAddress)
	if useCache {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}

	data, err := e.fetcher.FetchWithOptions(ctx, chain, tokenAddress, opts)
	if err != nil {
		return model.TokenData{}, err
	}
	if useCache {
		e.cache.Set(key, data)
	}
	return data, nil
}

// formatGraphData shapes the graph into the force-directed-graph view
// consumed by downstream visualizers, grounded on the original
// format_for_react_force_graph: nodes carry their community id as
// "group", links carry whether they were flagged as wash trading.
func formatGraphData(g *graph.Graph, analysis analyzer.Result, washTradePairs []model.WashTradePair, mixerFlags []model.MixerFlag, providerUsed string) model.GraphData {
	communityOf := make(map[string]int, len(g.Nodes))
	for id, members := range analysis.Communities {
		for _, addr := range members {
			communityOf[addr] = id
		}
	}

	isMixer := make(map[string]bool, len(mixerFlags))
	for _, f := range mixerFlags {
		if f.IsMixer {
			isMixer[f.Address] = true
		}
	}

	isWashTrade := make(map[string]bool, len(washTradePairs))
	for _, p := range washTradePairs {
		isWashTrade[p.From+"|"+p.To] = true
	}

	nodes := make([]model.GraphNodeView, 0, len(g.Nodes))
	for addr, n := range g.Nodes {
		nodes = append(nodes, model.GraphNodeView{
			ID:       addr,
			Group:    communityOf[addr],
			PageRank: analysis.PageRank[addr],
			IsMixer:  isMixer[addr],
			Balance:  n.Balance,
		})
	}

	links := make([]model.GraphLinkView, 0)
	for _, e := range g.AllEdges() {
		links = append(links, model.GraphLinkView{
			Source:      e.From,
			Target:      e.To,
			Value:       e.Weight,
			Count:       e.Count,
			IsWashTrade: isWashTrade[e.From+"|"+e.To],
		})
	}

	return model.GraphData{Nodes: nodes, Links: links}
}
