package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"reportal/internal/config"
	"reportal/internal/currency"
	"reportal/internal/log"
	"reportal/internal/services"
	"reportal/internal/storage"

	"github.com/joho/godotenv"
)

// Recomputes the normalized amount of every stored record against the
// current rate table. Run it after editing the rates file so historical
// reports and exports pick up the new rates.
func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: "renormalize"})
	log.SetDefault(logger)

	ratesPath := flag.String("rates", "", "path to a JSON rates file to merge before renormalizing")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	rates := currency.NewTable(nil)
	path := *ratesPath
	if path == "" {
		path = cfg.RatesPath
	}
	if path != "" {
		if err := rates.Reload(path); err != nil {
			logger.Error("Failed to load rates file", "path", path, "error", err)
			os.Exit(1)
		}
		logger.Info("Rates loaded", "path", path)
	}

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath, storage.DuplicatePolicy(cfg.DuplicatePolicy))
	if err != nil {
		logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	records := services.NewRecordService(store, rates, nil)
	updated, err := records.Renormalize(ctx)
	if err != nil {
		logger.Error("Renormalization failed", "error", err, "updated_so_far", updated)
		os.Exit(1)
	}

	logger.Info("Renormalization finished", "updated", updated)
}
