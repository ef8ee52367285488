package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/lumenlabs/lumen/internal/event/domain"
	"github.com/lumenlabs/lumen/internal/event/tracekey"
)

type ingestRequest struct {
	Event      string         `json:"event"`
	Timestamp  string         `json:"timestamp"`
	Properties map[string]any `json:"properties"`
}

// IngestEvent accepts one wide event. Sampled-out submissions are still a
// success from the caller's perspective.
func (s *Server) IngestEvent(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ingest := eventdomain.IngestRequest{
		EventType:  strings.TrimSpace(req.Event),
		Properties: req.Properties,
	}

	// A malformed timestamp degrades to "absent"; ingestion time applies.
	if raw := strings.TrimSpace(req.Timestamp); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			ingest.Timestamp = &ts
		}
	}

	if traceID, ok := tracekey.Extract(c.Request.Header); ok {
		ingest.TraceID = traceID
	}

	if key := strings.TrimSpace(c.GetHeader("Idempotency-Key")); key != "" {
		ingest.IdempotencyKey = &key
	}

	result, err := s.eventSvc.Ingest(c.Request.Context(), ingest)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{
		"success":   true,
		"persisted": result.Persisted,
	}
	if result.Persisted {
		resp["event_id"] = result.EventID.String()
	}
	c.JSON(http.StatusOK, resp)
}
