// Package main imports NPC definition YAML files into PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/npcintent/internal/config"
	"github.com/cory-johannsen/npcintent/internal/game/npc"
	"github.com/cory-johannsen/npcintent/internal/observability"
	"github.com/cory-johannsen/npcintent/internal/storage/postgres"
)

// errValidation is returned by checkDefinitions in strict mode.
var errValidation = errors.New("definitions failed validation")

// definitionStore is the subset of postgres.DefinitionRepository used here.
type definitionStore interface {
	Upsert(ctx context.Context, def *npc.Definition) error
}

// checkDefinitions validates every definition and returns how many are invalid.
// Invalid definitions are still imported unless strict is set.
func checkDefinitions(catalog *npc.Catalog, logger *zap.Logger, strict bool) (int, error) {
	invalid := 0
	for _, def := range catalog.All() {
		if !def.Validate(logger) {
			invalid++
		}
	}
	if invalid == 0 {
		return 0, nil
	}
	logger.Warn("definitions failed validation",
		zap.Int("invalid", invalid),
		zap.Int("total", catalog.Len()),
	)
	if strict {
		return invalid, fmt.Errorf("%d of %d %w", invalid, catalog.Len(), errValidation)
	}
	return invalid, nil
}

// importDefinitions upserts every definition that has an ID. The ID is the
// primary key, so definitions without one are skipped with a warning.
func importDefinitions(ctx context.Context, catalog *npc.Catalog, store definitionStore, logger *zap.Logger) (imported, skipped int, err error) {
	for _, def := range catalog.All() {
		if def.ID == "" {
			logger.Warn("skipping definition without id", zap.String("display_name", def.DisplayName))
			skipped++
			continue
		}
		if err := store.Upsert(ctx, def); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sourceDir := flag.String("source", "", "directory of definition YAML files (default: content.definitions_dir)")
	dryRun := flag.Bool("dry-run", false, "validate definitions without writing to the database")
	strict := flag.Bool("strict", false, "exit non-zero when any definition fails validation")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dir := *sourceDir
	if dir == "" {
		dir = cfg.Content.DefinitionsDir
	}

	start := time.Now()
	defs, err := npc.LoadDefinitions(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	catalog, err := npc.NewCatalog(defs, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	invalid, err := checkDefinitions(catalog, logger, *strict)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		fmt.Printf("validated %d definitions (%d invalid) in %s\n", catalog.Len(), invalid, time.Since(start).Round(time.Millisecond))
		return
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.RequireSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	imported, skipped, err := importDefinitions(ctx, catalog, postgres.NewDefinitionRepository(pool.DB()), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d definitions (%d skipped, %d invalid) in %s\n",
		imported, skipped, invalid, time.Since(start).Round(time.Millisecond))
}
