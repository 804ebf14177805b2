package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"reportal/internal/amqp"
	"reportal/internal/config"
	"reportal/internal/log"

	"github.com/joho/godotenv"
)

// Consumes record change events and logs each one. Zones submit through
// the portal; this gives operators a live stream of record activity
// without querying the database. Nothing is stored.
func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: "worker"})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	logger.Info("Consuming record events", "queue", cfg.AMQPQueue)
	err = amqpClient.ConsumeRecordEvents(ctx, func(msg *amqp.RecordEventMessage) error {
		logger.Info("Record event",
			"id", msg.ID,
			"kind", msg.Kind,
			"action", msg.Action,
			"zone", msg.Zone,
			"at", msg.Timestamp)
		return nil
	})
	if err != nil && err != context.Canceled {
		logger.Error("Consumption stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped")
}
