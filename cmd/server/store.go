package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/scoregate/pkg/config"
	"github.com/rhuss/scoregate/pkg/storage/memory"
	"github.com/rhuss/scoregate/pkg/storage/postgres"
	"github.com/rhuss/scoregate/pkg/transport"
)

// buildStore returns the conversion history store, or nil when history is
// disabled.
func buildStore(ctx context.Context, cfg config.StorageConfig) (transport.RecordStore, error) {
	switch cfg.Type {
	case "memory", "":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "migrate_on_start", cfg.Postgres.MigrateOnStart)
		return store, nil
	case "none":
		slog.Info("storage disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
