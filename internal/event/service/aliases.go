package service

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Alias lists are fixed and ordered; the first non-null match wins.
// Extraction is best-effort and never fails ingestion.
var (
	statusCodeAliases = []string{"status_code", "statusCode", "http_status", "httpStatus", "response_code"}
	outcomeAliases    = []string{"outcome", "status", "result"}
	durationAliases   = []string{"duration_ms", "durationMs", "elapsed_ms", "elapsedMs", "latency_ms"}
)

func extractStatusCode(props map[string]any) *int64 {
	for _, alias := range statusCodeAliases {
		value, ok := props[alias]
		if !ok || value == nil {
			continue
		}
		if code, ok := toInt64(value); ok {
			return &code
		}
	}
	return nil
}

func extractOutcome(props map[string]any) *string {
	for _, alias := range outcomeAliases {
		value, ok := props[alias]
		if !ok || value == nil {
			continue
		}
		raw, ok := value.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "success", "ok":
			outcome := outcomeSuccess
			return &outcome
		case "error", "failure", "failed":
			outcome := outcomeError
			return &outcome
		}
	}
	return nil
}

// extractElapsedMs returns -1 when no duration was reported, which never
// satisfies the slow-request rule.
func extractElapsedMs(props map[string]any) int64 {
	for _, alias := range durationAliases {
		value, ok := props[alias]
		if !ok || value == nil {
			continue
		}
		if elapsed, ok := toInt64(value); ok && elapsed >= 0 {
			return elapsed
		}
	}
	return -1
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		return int64(typed), true
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
