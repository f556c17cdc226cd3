package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	httpHandler "relay-server/handlers/http"
	"relay-server/logs"
	"relay-server/usecases"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the use cases the HTTP surface is built on.
type Deps struct {
	APIKey   string
	Commands *usecases.CommandsUseCase
	Status   *usecases.StatusUseCase
	Stats    *usecases.StatsUseCase
	// Ready reports storage health for /health; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	app  *gin.Engine
	addr string
	http *http.Server
}

func NewServer(port string, deps Deps) *Server {
	return &Server{
		app:  NewRouter(deps),
		addr: net.JoinHostPort("0.0.0.0", port),
	}
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(deps Deps) *gin.Engine {
	app := gin.New()
	app.HandleMethodNotAllowed = true
	app.Use(httpHandler.Recovery(), httpHandler.RequestID(), httpHandler.RequestLogger())

	// Setup CORS middleware
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", httpHandler.APIKeyHeader}
	config.ExposeHeaders = []string{httpHandler.RequestIDHeader}
	config.OptionsResponseStatusCode = http.StatusOK
	app.Use(cors.New(config))

	// OPTIONS is never routed; without an Origin header cors lets it through
	// to these fallbacks, which answer it with an empty 200.
	app.NoMethod(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			return
		}
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	app.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	// Setup healthcheck route
	app.GET("/health", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	app.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cmdHandler := httpHandler.NewCommandHandler(deps.Commands)
	statusHandler := httpHandler.NewStatusHandler(deps.Status)
	debugHandler := httpHandler.NewDebugHandler(deps.Status, deps.Commands)
	statsHandler := httpHandler.NewStatsHandler(deps.Stats)

	api := app.Group("/api", httpHandler.RequireAPIKey(deps.APIKey))
	{
		api.POST("/command", cmdHandler.Submit) // panel queues a command
		api.GET("/command", cmdHandler.Claim)   // device claims and clears it

		api.POST("/status", statusHandler.Report) // device heartbeat
		api.GET("/status", statusHandler.Get)

		api.GET("/debug", debugHandler.Errors)
		api.POST("/debug", debugHandler.Upload)
		api.DELETE("/debug", debugHandler.Clear)

		api.GET("/stats", statsHandler.Query)
		api.POST("/stats", statsHandler.Record)
		api.DELETE("/stats", statsHandler.Clear)
		api.GET("/stats/debug", statsHandler.Dump)
	}

	return app
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      s.app,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logs.Logger.Infof("HTTP listening on %s", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
