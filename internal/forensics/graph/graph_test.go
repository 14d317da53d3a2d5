package graph

import (
	"testing"

	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

func TestBuildAggregatesRepeatedEdges(t *testing.T) {
	data := model.TokenData{
		AllWallets: []string{"a", "b"},
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 10, Timestamp: 100, Hash: "0x1"},
			{From: "a", To: "b", Value: 5, Timestamp: 200, Hash: "0x2"},
			{From: "a", To: "b", Value: 2, Timestamp: 50, Hash: "0x3"},
		},
	}

	g := Build(data)
	e, ok := g.Edge("a", "b")
	if !ok {
		t.Fatalf("expected edge a->b to exist")
	}
	if e.Weight != 17 {
		t.Fatalf("got weight %v, want 17", e.Weight)
	}
	if e.Count != 3 {
		t.Fatalf("got count %d, want 3", e.Count)
	}
	if e.TxHash != "0x1" {
		t.Fatalf("got representative tx %q, want first-seen 0x1", e.TxHash)
	}
	if e.MinTS != 50 || e.MaxTS != 200 {
		t.Fatalf("got window [%d,%d], want [50,200]", e.MinTS, e.MaxTS)
	}
}

func TestBuildEdgeAggregationOrderIndependent(t *testing.T) {
	build := func(order []model.Transfer) *model.Edge {
		data := model.TokenData{Transactions: order}
		g := Build(data)
		e, _ := g.Edge("a", "b")
		return e
	}

	t1 := model.Transfer{From: "a", To: "b", Value: 10, Timestamp: 100}
	t2 := model.Transfer{From: "a", To: "b", Value: 5, Timestamp: 200}

	e1 := build([]model.Transfer{t1, t2})
	e2 := build([]model.Transfer{t2, t1})

	if e1.Weight != e2.Weight || e1.Count != e2.Count {
		t.Fatalf("edge aggregation should not depend on transfer order")
	}
	if e1.MinTS != e2.MinTS || e1.MaxTS != e2.MaxTS {
		t.Fatalf("min/max timestamps should not depend on transfer order")
	}
}

func TestDirectedEdgesAreDistinctFromReverse(t *testing.T) {
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 10, Timestamp: 1},
			{From: "b", To: "a", Value: 3, Timestamp: 2},
		},
	}
	g := Build(data)

	fwd, ok := g.Edge("a", "b")
	if !ok || fwd.Weight != 10 {
		t.Fatalf("expected forward edge a->b with weight 10")
	}
	rev, ok := g.Edge("b", "a")
	if !ok || rev.Weight != 3 {
		t.Fatalf("expected reverse edge b->a with weight 3")
	}
}

func TestPredecessorsAndSuccessors(t *testing.T) {
	data := model.TokenData{
		Transactions: []model.Transfer{
			{From: "a", To: "b", Value: 1},
			{From: "c", To: "b", Value: 1},
			{From: "b", To: "d", Value: 1},
		},
	}
	g := Build(data)

	preds := g.Predecessors("b")
	if len(preds) != 2 {
		t.Fatalf("got %d predecessors of b, want 2", len(preds))
	}
	succ := g.Successors("b")
	if len(succ) != 1 || succ[0] != "d" {
		t.Fatalf("got successors %v, want [d]", succ)
	}
}

func TestTopHolderFlagsCarryIntoNodes(t *testing.T) {
	data := model.TokenData{
		AllWallets: []string{"a"},
		TopHolders: []model.Holder{{Address: "a", Balance: 42, TransactionCount: 7}},
	}
	g := Build(data)
	n := g.Nodes["a"]
	if !n.IsTopHolder || n.Balance != 42 || n.TransactionCount != 7 {
		t.Fatalf("expected top-holder attributes to carry into node, got %+v", n)
	}
}
