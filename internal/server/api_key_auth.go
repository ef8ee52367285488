package server

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lumenlabs/lumen/internal/apikey"
	eventdomain "github.com/lumenlabs/lumen/internal/event/domain"
	"github.com/lumenlabs/lumen/internal/observability/logger"
	"github.com/lumenlabs/lumen/internal/observability/reqcontext"
	"go.uber.org/zap"
)

// APIKeyRequired authenticates requests using a project API key only.
// Project identity is derived solely from the api_keys table; a valid key
// without a project binding is rejected with a distinct code.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		hash := apikey.HashAPIKey(parts[1])
		now := time.Now().UTC()

		var record struct {
			ID        snowflake.ID  `gorm:"column:id"`
			ProjectID *snowflake.ID `gorm:"column:project_id"`
			KeyHash   string        `gorm:"column:key_hash"`
		}

		if err := s.db.WithContext(c.Request.Context()).Raw(
			`SELECT id, project_id, key_hash
			 FROM api_keys
			 WHERE key_hash = ?
			   AND is_active = true
			   AND (expires_at IS NULL OR expires_at > ?)
			 LIMIT 1`,
			hash,
			now,
		).Scan(&record).Error; err != nil {
			AbortWithError(c, err)
			return
		}

		if record.ID == 0 || subtle.ConstantTimeCompare([]byte(record.KeyHash), []byte(hash)) != 1 {
			s.log.Debug("rejected api key", zap.String("api_key", logger.MaskAPIKey(parts[1])))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if record.ProjectID == nil || *record.ProjectID == 0 {
			AbortWithError(c, eventdomain.ErrProjectMismatch)
			return
		}

		ctx := c.Request.Context()
		ctx = reqcontext.WithProjectID(ctx, int64(*record.ProjectID))
		ctx = reqcontext.WithAPIKeyID(ctx, int64(record.ID))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
