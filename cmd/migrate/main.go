// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/storage"
)

const postgresMigrationsPath = "migrations/postgres"

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := run(cfg, *dbType, *action); err != nil {
		log.Fatalf("Migration failed (%s %s): %v", *dbType, *action, err)
	}
}

func run(cfg *config.Config, dbType, action string) error {
	switch dbType {
	case "postgres":
		return migratePostgres(cfg, action)
	case "clickhouse":
		return migrateClickHouse(cfg, action)
	default:
		return fmt.Errorf("unknown database type: %s", dbType)
	}
}

func migratePostgres(cfg *config.Config, action string) error {
	pg := cfg.Database.Postgres
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pg.User, pg.Password, pg.Host, pg.Port, pg.Database,
	)

	switch action {
	case "up":
		if err := storage.RunMigrations(databaseURL, postgresMigrationsPath); err != nil {
			return err
		}
		log.Println("Postgres schema is up to date")
		return nil

	case "down":
		if err := storage.RollbackMigrations(databaseURL, postgresMigrationsPath); err != nil {
			return err
		}
		log.Println("Rolled back one Postgres migration")
		return nil

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, postgresMigrationsPath)
		if err != nil {
			return err
		}
		log.Printf("Postgres migration version: %d (dirty: %v)", version, dirty)
		return nil

	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

// ClickHouse holds a single append-only table; its schema is created in code
// rather than through versioned SQL files.
func migrateClickHouse(cfg *config.Config, action string) error {
	if action != "up" {
		return fmt.Errorf("clickhouse schema only supports the 'up' action")
	}

	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := storage.EnsureClickHouseSchema(ctx, db); err != nil {
		return err
	}
	log.Println("ClickHouse schema is up to date")
	return nil
}
