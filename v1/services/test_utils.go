package services

import (
	"testing"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupSQLiteTestDB creates an in-memory SQLite database for testing
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to SQLite test database: %v", err)
	}

	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	CleanupTestData(t, db)

	return db
}

// CleanupTestData removes all test data from the database.
// Exported for use in handler tests.
func CleanupTestData(t *testing.T, db *gorm.DB) {
	// Delete in reverse order of dependencies
	tables := []string{
		"memberships",
		"club_rosters",
		"student_memberships",
		"invite_tokens",
		"clubs",
		"students",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Logf("Warning: failed to cleanup %s: %v", table, err)
		}
	}
}

// RequireTestStore sets up a test database and returns a record store over it
func RequireTestStore(t *testing.T) *store.RecordStore {
	db := SetupSQLiteTestDB(t)
	if db == nil {
		t.Fatal("Test database setup failed - cannot proceed with test")
	}
	return store.New(db)
}

// officerCaller is a convenience fixture for officer-gated operations
func officerCaller(email string) *models.AuthenticatedUser {
	return &models.AuthenticatedUser{Email: email, Role: models.SessionRoleOfficer}
}

// memberCaller is a convenience fixture for non-officer callers
func memberCaller(email string) *models.AuthenticatedUser {
	return &models.AuthenticatedUser{Email: email, Role: models.SessionRoleMember}
}
