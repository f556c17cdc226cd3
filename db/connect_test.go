package db

import (
	"strings"
	"testing"

	"relay-server/entities"

	"gorm.io/gorm"
)

func TestNoDriverMeansNoDatabase(t *testing.T) {
	d, err := Connect(Options{})
	if err != nil || d != nil {
		t.Fatalf("expected nil database without a driver, got %v, %v", d, err)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn, err := postgresDSN(Options{URL: "postgres://u:p@db.example.com/relay"})
	if err != nil || !strings.HasSuffix(dsn, "?sslmode=require") {
		t.Fatalf("hosted URL should require TLS, got %q %v", dsn, err)
	}

	dsn, _ = postgresDSN(Options{URL: "postgres://u:p@db/relay?sslmode=disable"})
	if strings.Count(dsn, "sslmode") != 1 {
		t.Fatalf("explicit sslmode must be kept, got %q", dsn)
	}

	dsn, err = postgresDSN(Options{Host: "localhost", Port: "5432", User: "u", Password: "p", Name: "relay"})
	if err != nil || !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("local host should disable TLS, got %q %v", dsn, err)
	}

	if _, err := postgresDSN(Options{Host: "db"}); err == nil {
		t.Fatalf("incomplete settings should fail")
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := dialectorFor(Options{Driver: "oracle"}); err == nil {
		t.Fatalf("expected an error for an unknown driver")
	}
	if _, err := dialectorFor(Options{Driver: "mysql"}); err == nil {
		t.Fatalf("mysql without a DSN should fail")
	}
	if d, err := dialectorFor(Options{Driver: "mysql", DSN: "u:p@tcp(db:3306)/relay?parseTime=true"}); err != nil || d.Name() != "mysql" {
		t.Fatalf("unexpected mysql dialector %v %v", d, err)
	}
}

func TestValueColumnFitsStatsDocument(t *testing.T) {
	var doc entities.Document

	my, _ := dialectorFor(Options{Driver: "mysql", DSN: "u:p@tcp(db:3306)/relay?parseTime=true"})
	if got := doc.GormDBDataType(&gorm.DB{Config: &gorm.Config{Dialector: my}}, nil); got != "longtext" {
		t.Fatalf("mysql TEXT caps at 64 KiB, value column got %q", got)
	}

	pg, _ := dialectorFor(Options{Driver: "postgres", URL: "postgres://u:p@db/relay"})
	if got := doc.GormDBDataType(&gorm.DB{Config: &gorm.Config{Dialector: pg}}, nil); got != "text" {
		t.Fatalf("postgres value column got %q", got)
	}
}
