// Command luminad runs the gallery processing daemon: the job queue workers,
// the storage manager, and the HTTP API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"lumina/internal/config"
	"lumina/internal/daemon"
	"lumina/internal/db"
	"lumina/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	database, err := db.Open(cfg)
	if err != nil {
		logger.Error("open database", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, database, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = database.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("luminad shutting down")
}
