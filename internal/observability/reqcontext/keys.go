// Package reqcontext carries per-request identity through context values.
package reqcontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "lumen_request_id"
	projectIDKey contextKey = "lumen_project_id"
	apiKeyIDKey  contextKey = "lumen_api_key_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithProjectID(ctx context.Context, projectID int64) context.Context {
	if ctx == nil || projectID == 0 {
		return ctx
	}
	return context.WithValue(ctx, projectIDKey, projectID)
}

// ProjectIDFromContext returns the authenticated project, if any. The second
// return is false for unauthenticated requests.
func ProjectIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	value, ok := ctx.Value(projectIDKey).(int64)
	return value, ok && value != 0
}

func WithAPIKeyID(ctx context.Context, keyID int64) context.Context {
	if ctx == nil || keyID == 0 {
		return ctx
	}
	return context.WithValue(ctx, apiKeyIDKey, keyID)
}

func APIKeyIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	value, ok := ctx.Value(apiKeyIDKey).(int64)
	return value, ok && value != 0
}
