package bitquery

import "testing"

func TestParseRFC3339Invalid(t *testing.T) {
	if got := parseRFC3339("garbage"); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestNameAndConstructor(t *testing.T) {
	p := New("https://v2.invalid", "https://v1.invalid", "", nil)
	if p.Name() != "bitquery" {
		t.Fatalf("got %q, want bitquery", p.Name())
	}
}
