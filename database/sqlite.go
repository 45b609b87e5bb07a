package database

import "gorm.io/gorm"

// sqliteSchema mirrors the Postgres schema with SQLite-compatible DDL.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS "loyalty_programs" (
		"id" TEXT PRIMARY KEY,
		"business_id" INTEGER NOT NULL UNIQUE,
		"points_rate" NUMERIC NOT NULL DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`,

	`CREATE TABLE IF NOT EXISTS "tiers" (
		"id" TEXT PRIMARY KEY,
		"program_id" TEXT NOT NULL,
		"name" TEXT NOT NULL,
		"points_to_unlock" INTEGER NOT NULL CHECK ("points_to_unlock" >= 0),
		"created_at" DATETIME,
		"updated_at" DATETIME,
		CONSTRAINT fk_tiers_program FOREIGN KEY ("program_id") REFERENCES "loyalty_programs"("id")
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tier_program_name ON "tiers"("program_id", "name")`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tier_program_threshold ON "tiers"("program_id", "points_to_unlock")`,

	`CREATE TABLE IF NOT EXISTS "rewards" (
		"id" TEXT PRIMARY KEY,
		"tier_id" TEXT NOT NULL,
		"type" TEXT NOT NULL,
		"percentage" INTEGER DEFAULT 0,
		"name" TEXT,
		"text" TEXT,
		"usage_limit_per_month" REAL DEFAULT 0,
		"one_time" INTEGER DEFAULT 0,
		"position" INTEGER DEFAULT 0,
		"created_at" DATETIME,
		CONSTRAINT fk_rewards_tier FOREIGN KEY ("tier_id") REFERENCES "tiers"("id")
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rewards_tier_id ON "rewards"("tier_id")`,

	`CREATE TABLE IF NOT EXISTS "customer_loyalties" (
		"id" TEXT PRIMARY KEY,
		"customer_id" INTEGER NOT NULL,
		"business_id" INTEGER NOT NULL,
		"points" INTEGER NOT NULL DEFAULT 0 CHECK ("points" >= 0),
		"redeemable_points" NUMERIC NOT NULL DEFAULT 0 CHECK ("redeemable_points" >= 0),
		"current_tier_name" TEXT,
		"version" INTEGER NOT NULL DEFAULT 0,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customer_business ON "customer_loyalties"("customer_id", "business_id")`,
	`CREATE INDEX IF NOT EXISTS idx_customer_loyalties_business_id ON "customer_loyalties"("business_id")`,

	`CREATE TABLE IF NOT EXISTS "transactions" (
		"id" TEXT PRIMARY KEY,
		"customer_id" INTEGER NOT NULL,
		"business_id" INTEGER NOT NULL,
		"bill_amount" NUMERIC NOT NULL,
		"redeemable_points_used" NUMERIC NOT NULL DEFAULT 0,
		"total_discount" NUMERIC NOT NULL DEFAULT 0,
		"final_amount" NUMERIC NOT NULL,
		"cashback_earned" NUMERIC NOT NULL DEFAULT 0,
		"points_awarded" INTEGER NOT NULL,
		"created_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_customer_business ON "transactions"("customer_id", "business_id")`,

	`CREATE TABLE IF NOT EXISTS "reward_redemptions" (
		"id" TEXT PRIMARY KEY,
		"transaction_id" TEXT NOT NULL,
		"customer_id" INTEGER NOT NULL,
		"business_id" INTEGER NOT NULL,
		"reward_id" TEXT NOT NULL,
		"reward_type" TEXT NOT NULL,
		"reward_value" NUMERIC NOT NULL DEFAULT 0,
		"created_at" DATETIME,
		CONSTRAINT fk_reward_redemptions_transaction FOREIGN KEY ("transaction_id") REFERENCES "transactions"("id")
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reward_redemptions_transaction_id ON "reward_redemptions"("transaction_id")`,
	`CREATE INDEX IF NOT EXISTS idx_redemptions_usage ON "reward_redemptions"("customer_id", "business_id", "reward_id")`,

	`CREATE TABLE IF NOT EXISTS "recompute_jobs" (
		"id" TEXT PRIMARY KEY,
		"business_id" INTEGER NOT NULL,
		"status" TEXT NOT NULL DEFAULT 'pending',
		"reason" TEXT,
		"cursor" INTEGER NOT NULL DEFAULT 0,
		"processed" INTEGER NOT NULL DEFAULT 0,
		"changed" INTEGER NOT NULL DEFAULT 0,
		"failed" INTEGER NOT NULL DEFAULT 0,
		"failed_customer_ids" TEXT,
		"started_at" DATETIME,
		"completed_at" DATETIME,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recompute_jobs_business_id ON "recompute_jobs"("business_id")`,
	`CREATE INDEX IF NOT EXISTS idx_recompute_jobs_status ON "recompute_jobs"("status")`,
}

// sqliteTables lists tables children first, the order rows must be deleted in.
var sqliteTables = []string{
	"reward_redemptions",
	"transactions",
	"customer_loyalties",
	"recompute_jobs",
	"rewards",
	"tiers",
	"loyalty_programs",
}

// CreateSQLiteSchema creates every table on a SQLite database.
func CreateSQLiteSchema(db *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// TruncateSQLite deletes all rows, leaving the schema in place.
func TruncateSQLite(db *gorm.DB) error {
	for _, table := range sqliteTables {
		if err := db.Exec(`DELETE FROM "` + table + `"`).Error; err != nil {
			return err
		}
	}
	return nil
}
