package database

import (
	"fmt"
	"strings"

	"loyalty-engine/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=loyalty port=5432 sslmode=disable"

// Connect opens the database named by dsn. A "sqlite://" prefix (or a "file:"
// DSN) opens SQLite, which is only meant for local runs; anything else is
// handed to the Postgres driver.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}

	cfg := &gorm.Config{}
	if !debug {
		cfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "sqlite" {
		// One writer at a time; SQLite has no row locks to serialize on.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate brings the schema up to date. Postgres is migrated with AutoMigrate;
// SQLite gets the hand-written schema because the model tags use
// Postgres-only defaults such as gen_random_uuid().
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		return CreateSQLiteSchema(db)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	if err := db.AutoMigrate(
		&models.LoyaltyProgram{},
		&models.Tier{},
		&models.Reward{},
		&models.CustomerLoyalty{},
		&models.Transaction{},
		&models.RewardRedemption{},
		&models.RecomputeJob{},
	); err != nil {
		return err
	}

	return ensureConstraints(db)
}

// ensureConstraints adds the checks AutoMigrate cannot express. Safe to run
// repeatedly.
func ensureConstraints(db *gorm.DB) error {
	checks := []struct {
		table, name, expr string
	}{
		{"customer_loyalties", "chk_customer_loyalties_points", "points >= 0"},
		{"customer_loyalties", "chk_customer_loyalties_redeemable", "redeemable_points >= 0"},
		{"tiers", "chk_tiers_points_to_unlock", "points_to_unlock >= 0"},
	}
	for _, c := range checks {
		stmt := fmt.Sprintf(`
			DO $$
			BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
					ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
				END IF;
			END $$;`, c.name, c.table, c.name, c.expr)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
		}
	}
	return nil
}
