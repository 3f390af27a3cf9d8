// Command healthcheck is the container probe: it calls the local /health
// endpoint and then checks the database directly. Exit status 0 means healthy.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"student-records/internal/config"
	"student-records/internal/db"
	"student-records/internal/logger"
	"student-records/internal/studentclient"

	"github.com/joho/godotenv"
)

const probeTimeout = 5 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New("local").Error("health check failed: config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	ctx := context.Background()

	client := studentclient.New("http://localhost:"+cfg.Server.Port,
		studentclient.WithHTTPClient(&http.Client{Timeout: probeTimeout}))

	httpCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := client.Health(httpCtx); err != nil {
		log.Error("health check failed: HTTP endpoint not responding", "error", err)
		os.Exit(1)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Error("health check failed: database", "error", err)
		os.Exit(1)
	}
	defer db.Close(database)

	timeout := time.Duration(cfg.Database.HealthTimeoutMillis) * time.Millisecond
	if _, err := db.Check(ctx, database, timeout); err != nil {
		db.Close(database)
		log.Error("health check failed: database not accessible", "error", err)
		os.Exit(1)
	}

	log.Info("health check passed: HTTP and database are healthy")
}
