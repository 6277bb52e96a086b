package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlpAus/trailhead-backend/internal/store/sqlstore"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV is a string key/value table on the local database.
type KV struct {
	db *gorm.DB
}

func NewKV(db *gorm.DB) *KV {
	return &KV{db: db}
}

// Migrate creates the local_entries table.
func (kv *KV) Migrate(ctx context.Context) error {
	if err := kv.db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("cannot migrate local table: %w", err)
	}
	return nil
}

// Load returns the value for key. ok is false when the key was never written.
func (kv *KV) Load(ctx context.Context, key string) (value []byte, ok bool, err error) {
	var entry Entry
	err = kv.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sqlstore.Classify(err)
	}
	return []byte(entry.Value), true, nil
}

// Save creates or replaces the value for key.
func (kv *KV) Save(ctx context.Context, key string, value []byte) error {
	entry := Entry{Key: key, Value: string(value)}
	err := kv.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	return sqlstore.Classify(err)
}

// Delete removes key. Deleting a missing key is not an error.
func (kv *KV) Delete(ctx context.Context, key string) error {
	err := kv.db.WithContext(ctx).Unscoped().Where("key = ?", key).Delete(&Entry{}).Error
	return sqlstore.Classify(err)
}
