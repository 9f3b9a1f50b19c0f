package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/sessionscope/internal/config"
	"github.com/nextlevelbuilder/sessionscope/internal/search"
)

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the configured project paths, without starting the full service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			indexPath := filepath.Join(cfg.Database.StateDir, "search.db")
			store, err := search.Open(ctx, indexPath)
			if err != nil {
				return fmt.Errorf("open search index: %w", err)
			}
			defer store.Close()

			result, err := store.Refresh(ctx, search.RefreshOptions{
				Paths:              cfg.Index.Paths,
				IncludeSubagents:   cfg.Index.IncludeSubagents,
				MaxSessionsPerProj: cfg.Index.MaxSessionsPerProj,
			})
			if err != nil {
				return fmt.Errorf("refresh index: %w", err)
			}

			fmt.Printf("scanned %d, updated %d, skipped %d\n", result.Scanned, result.Updated, result.Skipped)
			return nil
		},
	}
}
