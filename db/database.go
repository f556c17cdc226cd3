package db

import (
	"context"

	"gorm.io/gorm"
)

type Database interface {
	GetDB() *gorm.DB
}

type GormDatabase struct {
	DB *gorm.DB
}

func (g *GormDatabase) GetDB() *gorm.DB { return g.DB }

// Ping checks that the database still answers.
func Ping(ctx context.Context, d Database) error {
	sqlDB, err := d.GetDB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func Close(d Database) error {
	sqlDB, err := d.GetDB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
