package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reportal/internal/aggregate"
	"reportal/internal/amqp"
	"reportal/internal/config"
	"reportal/internal/currency"
	"reportal/internal/export"
	"reportal/internal/export/gsheet"
	apphttp "reportal/internal/http"
	"reportal/internal/log"
	"reportal/internal/services"
	"reportal/internal/storage"
	"reportal/internal/zones"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: "reportal"})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	rates := currency.NewTable(nil)
	if cfg.RatesPath != "" {
		if err := rates.Reload(cfg.RatesPath); err != nil {
			logger.Error("Failed to load rates file", "path", cfg.RatesPath, "error", err)
			os.Exit(1)
		}
	}

	zmap, err := zones.Load(cfg.ZonesPath)
	if err != nil {
		logger.Error("Failed to load zone directory", "path", cfg.ZonesPath, "error", err)
		os.Exit(1)
	}

	policy := storage.DuplicatePolicy(cfg.DuplicatePolicy)
	var store storage.Store
	switch cfg.DataBackend {
	case "sqlite":
		store, err = storage.NewSQLiteStore(cfg.SQLiteDBPath, policy)
		if err != nil {
			logger.Error("Failed to open SQLite store", "path", cfg.SQLiteDBPath, "error", err)
			os.Exit(1)
		}
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath, "policy", policy)
	default:
		store = storage.NewMemoryStore(policy)
		logger.Info("Initialized memory backend", "policy", policy)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The portal works without a broker, record events are just
			// not announced.
			logger.Warn("AMQP unavailable, continuing without event publishing", "error", err)
			amqpClient = nil
		} else {
			logger.Info("Connected to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	var publisher export.Publisher
	if cfg.GoogleSpreadsheetID != "" {
		cli, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets publisher", "error", err)
			os.Exit(1)
		}
		publisher = cli
		logger.Info("Google Sheets publishing enabled")
	}

	records := services.NewRecordService(store, rates, amqpClient)
	engine := aggregate.NewEngine(store, rates, zmap)

	srv := apphttp.NewServer(":"+cfg.Port, records, engine, rates, zmap, publisher)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := records.Close(); err != nil {
			logger.Error("Service close error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting reportal server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
