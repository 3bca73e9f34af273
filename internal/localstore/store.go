// Package localstore provides a string key/value store with the semantics of
// browser local storage, backed either by SQLite or by process memory.
package localstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrEmptyKey indicates a blank storage key.
	ErrEmptyKey        = errors.New("localstore: key required")
	errMissingDatabase = errors.New("localstore: database connection required")
)

// Store mirrors the getItem/setItem/removeItem contract of browser local storage.
type Store interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Entry is a single persisted key/value pair.
type Entry struct {
	Key       string    `gorm:"column:item_key;primaryKey;size:190;not null"`
	Value     string    `gorm:"column:item_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing local storage entries.
func (Entry) TableName() string {
	return "local_storage"
}

// SQLiteStore persists entries through gorm.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLiteStore wraps an opened database. The schema must already be migrated.
func NewSQLiteStore(db *gorm.DB, clock func() time.Time) (*SQLiteStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if clock == nil {
		clock = time.Now
	}
	return &SQLiteStore{db: db, now: clock}, nil
}

func (s *SQLiteStore) GetItem(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	var entry Entry
	err := s.db.Where("item_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *SQLiteStore) SetItem(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	entry := Entry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"item_value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("localstore: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) RemoveItem(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.db.Where("item_key = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("localstore: remove %s: %w", key, err)
	}
	return nil
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) GetItem(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *MemoryStore) SetItem(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryStore) RemoveItem(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
