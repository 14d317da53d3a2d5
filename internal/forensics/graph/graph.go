// Package graph builds the directed wallet transfer graph from fetched
// token data: one node per wallet, one aggregated edge per ordered
// (from, to) pair, grounded on the original graph builder's
// node-then-edge-upsert construction.
package graph

import (
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

// Graph is the directed multigraph-collapsed-to-simple-graph
// representation analyzed downstream: at most one Edge per ordered pair.
type Graph struct {
	Nodes map[string]*model.WalletNode
	Edges map[string]map[string]*model.Edge // Edges[from][to]
}

// Build constructs a Graph from the fetcher's TokenData: nodes come from
// every wallet seen plus the top-holder balances, edges are aggregated
// from the transfer list in order.
func Build(data model.TokenData) *Graph {
	g := &Graph{
		Nodes: make(map[string]*model.WalletNode),
		Edges: make(map[string]map[string]*model.Edge),
	}

	for _, addr := range data.AllWallets {
		g.ensureNode(addr)
	}

	holderBalance := make(map[string]model.Holder, len(data.TopHolders))
	for _, h := range data.TopHolders {
		holderBalance[h.Address] = h
	}
	for addr, h := range holderBalance {
		n := g.ensureNode(addr)
		n.Balance = h.Balance
		n.TransactionCount = h.TransactionCount
		n.IsTopHolder = true
	}

	for _, tr := range data.Transactions {
		g.ensureNode(tr.From)
		g.ensureNode(tr.To)
		g.upsertEdge(tr)
	}

	return g
}

func (g *Graph) ensureNode(addr string) *model.WalletNode {
	if n, ok := g.Nodes[addr]; ok {
		return n
	}
	n := &model.WalletNode{Address: addr}
	g.Nodes[addr] = n
	return n
}

// upsertEdge aggregates a transfer into the (from, to) edge: weight and
// count accumulate, min/max timestamps widen to bound the observed
// window, and the representative tx hash is whichever transfer arrived
// first.
func (g *Graph) upsertEdge(tr model.Transfer) {
	if g.Edges[tr.From] == nil {
		g.Edges[tr.From] = make(map[string]*model.Edge)
	}
	e, ok := g.Edges[tr.From][tr.To]
	if !ok {
		g.Edges[tr.From][tr.To] = &model.Edge{
			From:   tr.From,
			To:     tr.To,
			Weight: tr.Value,
			Count:  1,
			TxHash: tr.Hash,
			MinTS:  tr.Timestamp,
			MaxTS:  tr.Timestamp,
		}
		return
	}
	e.Weight += tr.Value
	e.Count++
	if tr.Timestamp < e.MinTS {
		e.MinTS = tr.Timestamp
	}
	if tr.Timestamp > e.MaxTS {
		e.MaxTS = tr.Timestamp
	}
}

// Edge returns the aggregated edge from a to b, if any.
func (g *Graph) Edge(a, b string) (*model.Edge, bool) {
	m, ok := g.Edges[a]
	if !ok {
		return nil, false
	}
	e, ok := m[b]
	return e, ok
}

// AllEdges flattens the adjacency map into a single slice, in no
// particular order.
func (g *Graph) AllEdges() []*model.Edge {
	out := make([]*model.Edge, 0)
	for _, m := range g.Edges {
		for _, e := range m {
			out = append(out, e)
		}
	}
	return out
}

// Successors returns the set of addresses a has an outgoing edge to.
func (g *Graph) Successors(addr string) []string {
	m, ok := g.Edges[addr]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m))
	for to := range m {
		out = append(out, to)
	}
	return out
}

// Predecessors returns the set of addresses with an outgoing edge to addr.
func (g *Graph) Predecessors(addr string) []string {
	var out []string
	for from, m := range g.Edges {
		if _, ok := m[addr]; ok {
			out = append(out, from)
		}
	}
	return out
}

// NodeCount and EdgeCount report graph size for algorithm-selection
// thresholds (e.g. Louvain vs. Leiden).
func (g *Graph) NodeCount() int { return len(g.Nodes) }

func (g *Graph) EdgeCount() int {
	n := 0
	for _, m := range g.Edges {
		n += len(m)
	}
	return n
}
