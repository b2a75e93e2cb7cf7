// Package psqltest opens throwaway sqlite databases with the production schema.
package psqltest

import (
	"context"
	"testing"

	"nebula/nebula/sources/psql"
	"nebula/nebula/sources/psql/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase returns a migrated in-memory database closed with the test.
// A single connection keeps every query on the same in-memory schema.
func NewDatabase(t testing.TB) *psql.Database {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db, err := psql.Open(context.Background(), gdb)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// SeedUser inserts a user and fails the test on error.
func SeedUser(t testing.TB, db *psql.Database, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com"}
	if err := db.DB.Create(u).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}
