// Package main is the entry point for the Casebook database migration tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/config"
	"github.com/prn-tf/casebook/internal/repository/postgres"
	"github.com/prn-tf/casebook/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	switch command {
	case "version":
		fmt.Println("Casebook Migration Tool")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := runCommand(*configPath, migrateUp); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := runCommand(*configPath, migrateStatus); err != nil {
			fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// migrator is the subset of the database wrappers the tool needs.
type migrator interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func runCommand(configPath string, fn func(ctx context.Context, db migrator) error) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var db migrator
	if cfg.Database.IsEmbedded() {
		sdb, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return err
		}
		db = sdb
	} else {
		pdb, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		db = pdb
	}
	defer db.Close()

	return fn(ctx, db)
}

func migrateUp(ctx context.Context, db migrator) error {
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func migrateStatus(ctx context.Context, db migrator) error {
	// Migrate is idempotent, so a successful ping plus an up-to-date schema
	// table is all status needs to verify.
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	fmt.Println("database reachable; run 'up' to apply pending migrations")
	return nil
}

func printUsage() {
	fmt.Println(`Casebook Migration Tool

Usage:
  casebook-migrate [-config path] <command>

Commands:
  up          Run all pending migrations
  status      Check database connectivity
  version     Print version information
  help        Show this help message

Configuration is read the same way as the server: a YAML file plus
CASEBOOK_-prefixed environment variables.

Examples:
  casebook-migrate up
  casebook-migrate -config /etc/casebook/config.yaml up`)
}
