// Package database owns the gorm connection, schema migration and the
// raw-SQL pieces gorm cannot express: partial unique indexes scoped to
// non-deleted rows and the full-text column of the search index.
package database

import (
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"udb/internal/domain"
)

// Open connects to Postgres and migrates the schema.
func Open(dbURI string) (*gorm.DB, error) {
	silent := logger.New(
		log.Default(),
		logger.Config{
			LogLevel: logger.Silent,
		},
	)

	db, err := gorm.Open(postgres.Open(dbURI), &gorm.Config{
		Logger: silent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate builds the schema and its partial indexes.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Vrf{},
		&domain.Subnet{},
		&domain.SubnetRange{},
		&domain.DnsZone{},
		&domain.DnsRecord{},
		&domain.DhcpRecord{},
		&domain.Ip{},
		&domain.Mac{},
		&domain.Message{},
		&domain.Follower{},
		&domain.Rule{},
		&domain.RuleViolation{},
		&domain.SearchEntry{},
		&domain.RateLimit{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := createPartialIndexes(db); err != nil {
		return err
	}
	if err := createSearchVector(db); err != nil {
		return err
	}

	log.Info("Database migration completed.")
	return nil
}

// Unique keys are scoped to non-deleted rows so a soft-deleted entity
// frees its name. Races between two inserts of the same key resolve to
// one unique violation inside the database.
var partialIndexes = []struct {
	name string
	sql  string
}{
	{"idx_users_username_live", `CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_live ON users (lower(username)) WHERE status <> 0`},
	{"idx_users_email_live", `CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_live ON users (lower(email)) WHERE status <> 0 AND email <> ''`},
	{"idx_vrfs_name_live", `CREATE UNIQUE INDEX IF NOT EXISTS idx_vrfs_name_live ON vrfs (lower(name)) WHERE status <> 0`},
	{"idx_dnszones_name_live", `CREATE UNIQUE INDEX IF NOT EXISTS idx_dnszones_name_live ON dnszones (lower(name)) WHERE status <> 0`},
	{"idx_dnsrecords_live", `CREATE UNIQUE INDEX IF NOT EXISTS idx_dnsrecords_live ON dnsrecords (type, lower(name), value) WHERE status <> 0`},
	{"idx_dhcprecords_live", `CREATE UNIQUE INDEX IF NOT EXISTS idx_dhcprecords_live ON dhcprecords (ip, mac) WHERE status <> 0`},
	{"idx_rules_name_live", `CREATE UNIQUE INDEX IF NOT EXISTS idx_rules_name_live ON rules (lower(name)) WHERE status <> 0`},
}

func createPartialIndexes(db *gorm.DB) error {
	for _, idx := range partialIndexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// The search vector is generated from the token bag maintained by the
// flush pipeline. Message bodies get an expression index for the audit
// search join.
func createSearchVector(db *gorm.DB) error {
	stmts := []string{
		`ALTER TABLE search_index ADD COLUMN IF NOT EXISTS search_vector tsvector
			GENERATED ALWAYS AS (to_tsvector('simple', tokens)) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_search_vector ON search_index USING GIN (search_vector)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_search ON messages
			USING GIN (to_tsvector('simple', body || ' ' || coalesce(changes, '')))`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create search index: %w", err)
		}
	}
	return nil
}

// UniqueViolationField maps a unique index name reported by Postgres to
// the form field it guards.
func UniqueViolationField(constraint string) string {
	switch constraint {
	case "idx_users_username_live":
		return "username"
	case "idx_users_email_live":
		return "email"
	case "idx_vrfs_name_live", "idx_dnszones_name_live", "idx_rules_name_live":
		return "name"
	case "idx_dnsrecords_live":
		return "value"
	case "idx_dhcprecords_live":
		return "ip"
	}
	return ""
}
