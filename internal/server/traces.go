package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetTrace returns the trace group: every stored event sharing the trace id
// within the authenticated project. A colliding id in another project is
// invisible here.
func (s *Server) GetTrace(c *gin.Context) {
	traceID := strings.TrimSpace(c.Param("trace_id"))

	events, err := s.eventSvc.ListByTrace(c.Request.Context(), traceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	documents := make([]map[string]any, 0, len(events))
	for i := range events {
		documents = append(documents, events[i].Document())
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"trace_id": traceID,
			"events":   documents,
		},
	})
}
