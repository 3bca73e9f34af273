package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/localstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	migrationSeedAccountCollection = "2026-10-01_seed_account_collection"

	accountCollectionKey = "khojiUsers"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedAccountCollection, apply: seedAccountCollection},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// seedAccountCollection stores an empty account list unless one already exists.
func seedAccountCollection(db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&localstore.Entry{
		Key:       accountCollectionKey,
		Value:     "[]",
		UpdatedAt: time.Now().UTC(),
	}).Error
}
