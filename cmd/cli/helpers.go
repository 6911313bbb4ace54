package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/clivendon/RAD/internal/config"
	"github.com/clivendon/RAD/internal/db"
)

// mustLoadConfig loads the effective configuration or exits.
func mustLoadConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// mustConnect opens the run-history store or exits.
func mustConnect(ctx context.Context, cfg *config.Config) *db.DB {
	database, err := db.Connect(ctx, db.Config{Path: cfg.Database.Path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database %s: %v\n", cfg.Database.Path, err)
		os.Exit(1)
	}
	return database
}

// applyTargetFlags overlays command-line flag values onto the configuration.
// Empty flags leave the configured values alone.
func applyTargetFlags(cfg *config.Config, target, watchFile, outputDir string) {
	if target != "" {
		cfg.Target = target
	}
	if watchFile != "" {
		cfg.Watch.File = watchFile
	}
	if outputDir != "" {
		cfg.Ferox.OutputDir = outputDir
	}
}
