package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/localstore"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsSeedsAccountCollection(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&localstore.Entry{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored localstore.Entry
	if err := database.Where("item_key = ?", accountCollectionKey).Take(&stored).Error; err != nil {
		testContext.Fatalf("expected account collection entry: %v", err)
	}
	if stored.Value != "[]" {
		testContext.Fatalf("expected empty account collection, got %q", stored.Value)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedAccountCollection).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsKeepsExistingAccounts(testContext *testing.T) {
	database, err := gorm.Open(sqlite.Open(filepath.Join(testContext.TempDir(), "existing.db")), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&localstore.Entry{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	existing := `[{"id":"1","name":"Ada","email":"ada@example.com","password":"secret1","createdAt":"2026-01-01T00:00:00.000Z"}]`
	if err := database.Create(&localstore.Entry{Key: accountCollectionKey, Value: existing}).Error; err != nil {
		testContext.Fatalf("failed to insert accounts: %v", err)
	}

	if err := applyMigrations(database, nil); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored localstore.Entry
	if err := database.Where("item_key = ?", accountCollectionKey).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload accounts: %v", err)
	}
	if stored.Value != existing {
		testContext.Fatalf("expected existing accounts to survive, got %q", stored.Value)
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", zap.NewNop()); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
}
