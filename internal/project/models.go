// Package project holds the tenant model. Every wide event, counter, and
// credential belongs to exactly one project.
package project

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Project is the owning tenant for ingested events.
type Project struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }
