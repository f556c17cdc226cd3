package repositories

import (
	"context"
	"errors"
	"time"

	"relay-server/db"
	"relay-server/entities"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type keyValueGormRepository struct {
	db  db.Database
	now func() time.Time
}

func NewKeyValueGormRepository(database db.Database) KeyValueRepository {
	return &keyValueGormRepository{db: database, now: time.Now}
}

func (r *keyValueGormRepository) Name() string {
	return r.db.GetDB().Dialector.Name()
}

func (r *keyValueGormRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry entities.KVEntry
	err := r.db.GetDB().WithContext(ctx).Where("kv_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Expired(r.now()) {
		// lazy expiry; a failed delete is retried on the next read
		_ = r.db.GetDB().WithContext(ctx).Where("kv_key = ?", key).Delete(&entities.KVEntry{}).Error
		return nil, false, nil
	}
	return []byte(entry.Value), true, nil
}

func (r *keyValueGormRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now().UTC()
	entry := entities.KVEntry{Key: key, Value: entities.Document(value), UpdatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		entry.ExpiresAt = &exp
	}
	return r.db.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

func (r *keyValueGormRepository) Delete(ctx context.Context, key string) error {
	return r.db.GetDB().WithContext(ctx).Where("kv_key = ?", key).Delete(&entities.KVEntry{}).Error
}

func (r *keyValueGormRepository) Take(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := r.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry entities.KVEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("kv_key = ?", key).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("kv_key = ?", key).Delete(&entities.KVEntry{}).Error; err != nil {
			return err
		}
		if !entry.Expired(r.now()) {
			value, found = []byte(entry.Value), true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (r *keyValueGormRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := r.db.GetDB().WithContext(ctx).Model(&entities.KVEntry{}).
		Where("kv_key LIKE ?", prefix+"%").
		Where("expires_at IS NULL OR expires_at > ?", r.now().UTC()).
		Order("kv_key ASC").
		Pluck("kv_key", &keys).Error
	return keys, err
}
