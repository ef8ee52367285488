// Package apikey models project-scoped ingestion credentials.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bwmarrin/snowflake"
)

const keyPrefix = "lmn_"

// APIKey binds a hashed bearer token to a project. A key with a zero
// ProjectID is valid but unbound; ingestion rejects it with a distinct code
// so callers can tell "fix your key" from "finish onboarding".
type APIKey struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	ProjectID *snowflake.ID `gorm:"index" json:"project_id"`
	KeyHash   string        `gorm:"type:text;not null;uniqueIndex" json:"-"`
	IsActive  bool          `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt *time.Time    `gorm:"" json:"expires_at"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// HashAPIKey returns the hex SHA-256 digest stored and looked up in place of
// the raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate returns a fresh raw key. Only the hash is ever persisted.
func Generate() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}
