package logger

import (
	"net/http"
	"strings"
)

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
}

// MaskAuthorization masks bearer tokens, preserving the scheme.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return "Bearer " + maskLast4(parts[1])
	}
	return maskLast4(value)
}

// MaskAPIKey masks API keys, preserving only the last 4 characters.
func MaskAPIKey(value string) string {
	return maskLast4(strings.TrimSpace(value))
}

// MaskHeaders returns a copy of headers with credentials masked.
func MaskHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		if strings.EqualFold(strings.TrimSpace(key), "Authorization") {
			masked[key] = MaskAuthorization(joined)
			continue
		}
		masked[key] = joined
	}
	return masked
}

// MaskProperties deep-copies caller-supplied event properties, masking values
// whose keys look credential-shaped. Used before logging raw ingest payloads.
func MaskProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for key, value := range props {
		switch typed := value.(type) {
		case map[string]any:
			out[key] = MaskProperties(typed)
		case string:
			if isSensitiveKey(key) {
				out[key] = maskLast4(typed)
			} else {
				out[key] = typed
			}
		default:
			if isSensitiveKey(key) {
				out[key] = "****"
			} else {
				out[key] = value
			}
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

func maskLast4(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****" + value
	}
	return "****" + value[len(value)-4:]
}
