package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunBackfill replays the event log into the usage counters. It is an
// operator endpoint, hidden in production, and refuses to run against a
// populated counter table.
func (s *Server) RunBackfill(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}

	applied, skipped, err := s.usageSvc.Backfill(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"applied": applied,
			"skipped": skipped,
		},
	})
}
