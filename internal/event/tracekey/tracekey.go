// Package tracekey assigns and propagates the wide-event trace identifier.
// One reserved header carries the id across a network hop; the caller's id
// always wins so frontend-initiated traces dictate the identifier backend
// events adopt. This is the product's correlation key, not the service's own
// OpenTelemetry context (see internal/observability/tracing).
package tracekey

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Header is the single reserved transport key for the trace id.
const Header = "X-Lumen-Trace-Id"

// idLength is the canonical form: 128 bits as lowercase hex.
const idLength = 32

// Begin generates a fresh trace id. No central coordination is required.
func Begin() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Normalize canonicalizes a caller-supplied trace id. Malformed values
// (wrong length or charset) report false and are treated as absent, never
// as an error.
func Normalize(raw string) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if len(id) != idLength {
		return "", false
	}
	if _, err := hex.DecodeString(id); err != nil {
		return "", false
	}
	return id, true
}

// Extract reads the trace id from inbound headers. Absence means "no
// upstream trace", not an error.
func Extract(header http.Header) (string, bool) {
	if header == nil {
		return "", false
	}
	return Normalize(header.Get(Header))
}

// Inject attaches the trace id to outbound headers so a downstream service
// can Extract it.
func Inject(traceID string, header http.Header) {
	if header == nil {
		return
	}
	if id, ok := Normalize(traceID); ok {
		header.Set(Header, id)
	}
}
