package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"relay-server/cache"
	"relay-server/confs"
	"relay-server/db"
	"relay-server/logs"
	"relay-server/metrics"
	"relay-server/repositories"
	"relay-server/server"
	"relay-server/services"
	"relay-server/usecases"

	"github.com/gin-gonic/gin"
)

func main() {
	// load config
	cfg, err := confs.LoadConfig()
	if err != nil {
		logs.Logger.Fatalf("Error loading config: %v", err)
	}

	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	metrics.Init()
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.APIKey == confs.DefaultAPIKey {
		logs.Logger.Warn("API_KEY is the default placeholder; set a real secret before exposing the server")
	}

	// connect to the database, or run on the in-memory repository
	database, err := db.Connect(db.Options{
		Driver:   cfg.Database.Driver,
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		DSN:      cfg.Database.DSN,
		Debug:    cfg.Logging.Level == "debug",
	})
	if err != nil {
		logs.Logger.Fatalf("Failed to connect to DB: %v", err)
	}

	var repo repositories.KeyValueRepository
	var ready func(ctx context.Context) error
	if database != nil {
		repo = repositories.NewKeyValueGormRepository(database)
		ready = func(ctx context.Context) error { return db.Ping(ctx, database) }
		defer db.Close(database)
	} else {
		logs.Logger.Warn("no DB_DRIVER configured, state is kept in process memory only")
		repo = repositories.NewMemoryKeyValueRepository()
	}

	fallback := cache.NewFallbackCache()
	store := services.NewStore(repo, fallback, cfg.StoreTimeout)

	statsUC := usecases.NewStatsUseCase(store, fallback, cfg.Location())
	sink := services.NewStatsSink(statsUC, cfg.StatsBuffer)
	sink.Start()
	defer sink.Close()

	commandsUC := usecases.NewCommandsUseCase(store, sink)
	reconciler := usecases.NewReconciler(store, cache.NewScheduleLedger(cfg.LedgerTTL), cfg.LedgerTTL)
	statusUC := usecases.NewStatusUseCase(store, reconciler, sink, cfg.ConnectionTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// run server
	srv := server.NewServer(cfg.Port, server.Deps{
		APIKey:   cfg.APIKey,
		Commands: commandsUC,
		Status:   statusUC,
		Stats:    statsUC,
		Ready:    ready,
	})
	if err := srv.Start(ctx); err != nil {
		logs.Logger.Errorf("server stopped: %v", err)
		return
	}
	logs.Logger.Info("server stopped")
}
