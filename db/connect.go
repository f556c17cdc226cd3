package db

import (
	"fmt"
	"strings"

	"relay-server/entities"
	"relay-server/logs"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options selects and addresses the database. An empty Driver means no
// database: the caller runs on the in-memory repository.
type Options struct {
	Driver   string // "" | postgres | mysql
	URL      string // postgres connection string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	DSN      string // mysql DSN
	Debug    bool
}

func Connect(opts Options) (Database, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}
	if dialector == nil {
		return nil, nil
	}

	logLevel := logger.Warn
	if opts.Debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      logger.Default.LogMode(logLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)

	logs.Logger.Infof("database connection established (%s)", opts.Driver)

	if err := db.AutoMigrate(&entities.KVEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logs.Logger.Info("database migrations completed")

	return &GormDatabase{DB: db}, nil
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case "":
		return nil, nil
	case "postgres":
		dsn, err := postgresDSN(opts)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	case "mysql":
		if opts.DSN == "" {
			return nil, fmt.Errorf("missing required database configuration: DB_DSN for mysql")
		}
		// user:pass@tcp(127.0.0.1:3306)/relay?parseTime=true&charset=utf8mb4
		return mysql.Open(opts.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
}

func postgresDSN(opts Options) (string, error) {
	if opts.URL != "" {
		dsn := opts.URL
		// hosted databases require TLS unless the URL says otherwise
		if !strings.Contains(dsn, "sslmode=") {
			if strings.Contains(dsn, "?") {
				dsn += "&sslmode=require"
			} else {
				dsn += "?sslmode=require"
			}
		}
		return dsn, nil
	}

	if opts.Host == "" || opts.Port == "" || opts.User == "" || opts.Password == "" || opts.Name == "" {
		return "", fmt.Errorf("missing required database configuration: DB_URL or (DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME)")
	}
	sslMode := "require"
	if opts.Host == "localhost" || opts.Host == "127.0.0.1" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		opts.Host, opts.User, opts.Password, opts.Name, opts.Port, sslMode), nil
}
