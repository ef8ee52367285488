package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lumenlabs/lumen/internal/observability/reqcontext"
	usagedomain "github.com/lumenlabs/lumen/internal/usage/domain"
)

// GetUsage reports the authenticated project's usage over a period. With no
// explicit range it covers the current billing period.
func (s *Server) GetUsage(c *gin.Context) {
	ctx := c.Request.Context()

	projectID, ok := reqcontext.ProjectIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	project := snowflake.ID(projectID)

	entitlement, err := s.tierSvc.Resolve(ctx, project)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	start, end := entitlement.PeriodStart, entitlement.PeriodEnd
	if raw := c.Query("start"); raw != "" {
		parsed, perr := time.Parse(usagedomain.DayFormat, raw)
		if perr != nil {
			AbortWithError(c, newValidationError("start", "invalid_period", "start must be YYYY-MM-DD"))
			return
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, perr := time.Parse(usagedomain.DayFormat, raw)
		if perr != nil {
			AbortWithError(c, newValidationError("end", "invalid_period", "end must be YYYY-MM-DD"))
			return
		}
		end = parsed
	}
	if !end.After(start) {
		AbortWithError(c, newValidationError("end", "invalid_period", "end must be after start"))
		return
	}

	days, err := s.usageSvc.DailyUsage(ctx, project, start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var total uint64
	buckets := make([]gin.H, 0, len(days))
	for _, d := range days {
		total += d.Count
		buckets = append(buckets, gin.H{"day": d.Day, "count": d.Count})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"project_id": project.String(),
			"start":      usagedomain.DayOf(start),
			"end":        usagedomain.DayOf(end),
			"total":      total,
			"days":       buckets,
		},
	})
}

// GetQuota reports standing against the tier limit without mutating anything.
func (s *Server) GetQuota(c *gin.Context) {
	ctx := c.Request.Context()

	projectID, ok := reqcontext.ProjectIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	result, err := s.quotaSvc.Check(ctx, snowflake.ID(projectID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
