// Package seed bootstraps a default project and ingestion key for local
// development. Production deployments provision projects out of band.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/apikey"
	"github.com/lumenlabs/lumen/internal/project"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultProjectName = "Default"

// EnsureDefaultProject creates the default project and, on first creation,
// one active API key. The raw key is printed to the log exactly once; only
// its hash survives.
func EnsureDefaultProject(db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var proj project.Project
		err := tx.WithContext(ctx).Where("name = ?", defaultProjectName).First(&proj).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		proj = project.Project{
			ID:        node.Generate(),
			Name:      defaultProjectName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&proj).Error; err != nil {
			return err
		}

		raw, err := apikey.Generate()
		if err != nil {
			return err
		}

		projectID := proj.ID
		key := apikey.APIKey{
			ID:        node.Generate(),
			ProjectID: &projectID,
			KeyHash:   apikey.HashAPIKey(raw),
			IsActive:  true,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&key).Error; err != nil {
			return err
		}

		// The raw key appears here and nowhere else.
		log.Named("seed").Info("default project created",
			zap.String("project_id", proj.ID.String()),
			zap.String("api_key", raw),
		)
		return nil
	})
}
