package cache

import (
	"testing"
	"time"

	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

func dataWith(n int) model.TokenData {
	txs := make([]model.Transfer, n)
	for i := range txs {
		txs[i] = model.Transfer{Hash: "h"}
	}
	return model.TokenData{Transactions: txs}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(10, time.Minute)
	key := Key("ethereum", "0xABC")
	c.Set(key, dataWith(3))

	got, ok := c.Get(Key("ethereum", "0xabc"))
	if !ok {
		t.Fatalf("expected hit for lowercased key")
	}
	if len(got.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(got.Transactions))
	}
}

func TestZeroTransactionsTreatedAsMiss(t *testing.T) {
	c := New(10, time.Minute)
	key := Key("ethereum", "0xabc")
	c.Set(key, dataWith(0))

	if _, ok := c.Get(key); ok {
		t.Fatalf("expected miss for zero-transaction cached entry")
	}
}

func TestExpiry(t *testing.T) {
	c := New(10, -time.Second)
	key := Key("ethereum", "0xabc")
	c.Set(key, dataWith(1))

	if _, ok := c.Get(key); ok {
		t.Fatalf("expected miss for already-expired entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted on Get")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, time.Minute)
	c.Set("a", dataWith(1))
	c.Set("b", dataWith(1))
	c.Get("a") // a is now most-recently-used
	c.Set("c", dataWith(1))

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}
