// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/storesight/catalog-backend/internal/config"
	"github.com/storesight/catalog-backend/internal/router"
	"github.com/storesight/catalog-backend/internal/schema"
	"github.com/storesight/catalog-backend/internal/store"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// Connect to DynamoDB
	st, err := store.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize store")
	}

	// Provision tables on startup in local/dev setups
	if cfg.Schema.ProvisionOnStart {
		if err := schema.NewMigrator(st.Client(), cfg).Provision(); err != nil {
			logrus.WithError(err).Fatal("Failed to provision schema")
		}
	}

	// Set Gin mode
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(st, cfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Environment,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}
