package entities

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Document is a JSON value column. The stats document outgrows MySQL TEXT
// (64 KiB), so MySQL gets LONGTEXT while other dialects use TEXT.
type Document string

func (Document) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "mysql" {
		return "longtext"
	}
	return "text"
}

// KVEntry is one row of the key-value table backing the mailbox.
type KVEntry struct {
	Key       string     `gorm:"column:kv_key;primaryKey;type:varchar(191)" json:"key"`
	Value     Document   `json:"value"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// Expired reports whether the entry is past its expiry at now.
func (e *KVEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}
