package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peakform/peakform/internal/config"
	"github.com/peakform/peakform/internal/seed"
	"github.com/peakform/peakform/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	dir := flag.String("path", "", "directory of program definition files (.json, .yaml)")
	serverURL := flag.String("server", "", "remote PeakForm server URL (seeds over HTTP instead of the local database)")
	apiKey := flag.String("api-key", os.Getenv("PEAKFORM_AUTH_API_KEY"), "API key for the remote server")
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	dryRun := flag.Bool("dry-run", false, "parse and validate but don't write")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("peakform-seed", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: peakform-seed -path <programs dir> [-server URL -api-key KEY] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Open state database
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	state, err := seed.OpenStateDB(filepath.Join(homeDir, ".peakform-seed"))
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	ctx := context.Background()

	// Pick the catalog destination: remote ingest endpoint or local database.
	var catalog seed.Catalog
	if *serverURL != "" {
		if *apiKey == "" && !*dryRun {
			fmt.Fprintf(os.Stderr, "Error: -api-key is required with -server (or use -dry-run)\n")
			os.Exit(1)
		}
		catalog = seed.NewClient(*serverURL, *apiKey)
		log.Info("seeding remote server", "url", *serverURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		catalog = db
		log.Info("seeding local database")
	}

	if *dryRun {
		log.Info("DRY RUN mode — files will be parsed and validated but not written")
	}

	seeder := seed.New(catalog, state, *dir, *dryRun, log)
	stats, err := seeder.Run(ctx)
	if err != nil {
		log.Error("seeding failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("seeding complete")
}

func printStats(stats *seed.Stats) {
	fmt.Println()
	fmt.Println("=== Seed Summary ===")
	fmt.Printf("  Files total:   %d\n", stats.FilesTotal)
	fmt.Printf("  Files seeded:  %d\n", stats.FilesSeeded)
	fmt.Printf("  Files skipped: %d (unchanged)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored: %d\n", stats.FilesErrored)
	fmt.Println()
}
