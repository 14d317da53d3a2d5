package alchemy

import "testing"

func TestParseAssetValue(t *testing.T) {
	v, err := parseAssetValue("0x14d1120d7b160000", "0x12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1.5 {
		t.Fatalf("got %v, want 1.5", v)
	}
}

func TestParseAssetValueDefaultsTo18Decimals(t *testing.T) {
	v, err := parseAssetValue("0xde0b6b3a7640000", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1.0 {
		t.Fatalf("got %v, want 1.0", v)
	}
}

func TestParseHexUint(t *testing.T) {
	if got := parseHexUint("0x1a"); got != 26 {
		t.Fatalf("got %d, want 26", got)
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	if got := parseTimestamp("not-a-timestamp"); got != 0 {
		t.Fatalf("got %d, want 0 for unparseable timestamp", got)
	}
}

func TestNameAndConstructor(t *testing.T) {
	p := New("https://example.invalid/v2", "", nil)
	if p.Name() != "alchemy" {
		t.Fatalf("got %q, want alchemy", p.Name())
	}
}
