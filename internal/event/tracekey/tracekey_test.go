package tracekey

import (
	"net/http"
	"testing"
)

func TestBeginProducesCanonicalIDs(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := Begin()
		if _, ok := Normalize(id); !ok {
			t.Fatalf("generated id %q is not canonical", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"short",
		"0123456789abcdef0123456789abcdeg",  // non-hex char
		"0123456789abcdef0123456789abcde",   // 31 chars
		"0123456789abcdef0123456789abcdef0", // 33 chars
	}
	for _, raw := range cases {
		if id, ok := Normalize(raw); ok {
			t.Fatalf("expected %q rejected, got %q", raw, id)
		}
	}
}

func TestNormalizeLowercasesAndTrims(t *testing.T) {
	id, ok := Normalize("  0123456789ABCDEF0123456789ABCDEF ")
	if !ok {
		t.Fatalf("expected canonicalization to succeed")
	}
	if id != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("unexpected canonical form %q", id)
	}
}

func TestInjectExtractRoundTrip(t *testing.T) {
	id := Begin()
	header := http.Header{}
	Inject(id, header)

	got, ok := Extract(header)
	if !ok {
		t.Fatalf("expected id present after inject")
	}
	if got != id {
		t.Fatalf("expected %q, got %q", id, got)
	}
}

func TestInjectSkipsMalformed(t *testing.T) {
	header := http.Header{}
	Inject("not-a-trace-id", header)
	if header.Get(Header) != "" {
		t.Fatalf("malformed id must not be propagated")
	}
}

func TestExtractMissingHeader(t *testing.T) {
	if _, ok := Extract(http.Header{}); ok {
		t.Fatalf("expected absent trace id")
	}
	if _, ok := Extract(nil); ok {
		t.Fatalf("expected absent trace id on nil header")
	}
}
