package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ospfatlas/internal/atlas/broadcast"
	"ospfatlas/internal/atlas/domain"
	"ospfatlas/internal/atlas/executor"
	"ospfatlas/internal/atlas/impact"
	"ospfatlas/internal/atlas/server"
	"ospfatlas/internal/atlas/service"
	"ospfatlas/internal/atlas/session"
	"ospfatlas/internal/atlas/store"
	"ospfatlas/internal/atlas/topology"
	"ospfatlas/pkg/config"
	"ospfatlas/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, loadedFrom, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.Warn("unknown log level, using INFO", "level", cfg.Logging.Level)
	}
	log := logger.NewWithConfig(logger.Config{Level: level, Output: os.Stdout})
	if loadedFrom != "" {
		log.Info("configuration loaded", "path", loadedFrom)
	} else {
		log.Info("running on default configuration")
	}

	var devices []*domain.Device
	if cfg.Storage.InventoryFile != "" {
		devices, err = store.LoadInventoryFile(cfg.Storage.InventoryFile)
		if err != nil {
			log.Fatal("failed to load inventory", "path", cfg.Storage.InventoryFile, "error", err)
		}
		log.Info("inventory loaded", "path", cfg.Storage.InventoryFile, "devices", len(devices))
	} else {
		log.Warn("no inventory file configured, starting with an empty inventory")
	}

	inventory := store.NewMemoryInventory(devices, log)
	jobs := store.NewMemoryJobStore(log)
	outputs, err := store.NewFileOutputStore(cfg.Storage.OutputDir, log)
	if err != nil {
		log.Fatal("failed to open output store", "dir", cfg.Storage.OutputDir, "error", err)
	}
	topologies := store.NewTopologyStore(log)

	sessions := session.NewManager(cfg, session.StaticCredentials{}, log)
	broadcaster := broadcast.New(jobs, log)
	exec := executor.New(cfg, sessions, inventory, jobs, outputs, broadcaster, log)
	builder := topology.NewBuilder(outputs, inventory, log)
	analyzer := impact.NewAnalyzer(log)

	svc := service.New(exec, jobs, inventory, broadcaster, builder, topologies, analyzer, log)
	api := server.New(svc, cfg, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Fatal("api server failed", "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := api.Stop(ctx); err != nil {
		log.Warn("api server did not drain cleanly", "error", err)
	}
	if err := exec.Shutdown(ctx); err != nil {
		log.Warn("executor did not drain cleanly", "error", err)
	}
	if err := broadcaster.Close(); err != nil {
		log.Warn("broadcaster close failed", "error", err)
	}
	log.Info("shutdown complete")
}
