package quota

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/migration"
	"github.com/lumenlabs/lumen/internal/tier"
	usagerepository "github.com/lumenlabs/lumen/internal/usage/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type staticTiers struct {
	entitlement tier.Entitlement
}

func (s staticTiers) Resolve(context.Context, snowflake.ID) (tier.Entitlement, error) {
	return s.entitlement, nil
}

func setupQuotaTest(t *testing.T, limit uint64) (*enforcer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	e := &enforcer{
		db:        db,
		log:       zap.NewNop(),
		usagerepo: usagerepository.Provide(),
		tiers: staticTiers{entitlement: tier.Entitlement{
			Tier:        tier.TierFree,
			Limits:      tier.Limits{EventsPerMonth: limit},
			PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	return e, db
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	e, db := setupQuotaTest(t, 10)
	ctx := context.Background()

	repo := usagerepository.Provide()
	if err := repo.Increment(ctx, db, 7, "2026-03-15", 9); err != nil {
		t.Fatalf("increment: %v", err)
	}

	result, err := e.Check(ctx, 7)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected allowed at 9/10, got %+v", result)
	}
	if result.Used != 9 || result.Limit != 10 {
		t.Fatalf("unexpected usage report: %+v", result)
	}
}

func TestCheckDeniesAtLimit(t *testing.T) {
	e, db := setupQuotaTest(t, 10)
	ctx := context.Background()

	repo := usagerepository.Provide()
	if err := repo.Increment(ctx, db, 7, "2026-03-15", 10); err != nil {
		t.Fatalf("increment: %v", err)
	}

	result, err := e.Check(ctx, 7)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Allowed {
		t.Fatalf("used == limit must deny, got %+v", result)
	}
}

func TestCheckIgnoresOtherPeriods(t *testing.T) {
	e, db := setupQuotaTest(t, 10)
	ctx := context.Background()

	repo := usagerepository.Provide()
	// Usage from the previous period must not count against this one.
	if err := repo.Increment(ctx, db, 7, "2026-02-27", 10); err != nil {
		t.Fatalf("increment: %v", err)
	}

	result, err := e.Check(ctx, 7)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Allowed || result.Used != 0 {
		t.Fatalf("expected fresh period, got %+v", result)
	}
}
