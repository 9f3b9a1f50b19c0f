package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/sessionscope/internal/config"
)

func migrateConfigCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "migrate-config",
		Short: "Load the config file, migrating a legacy JSON5 document if needed, and write it back out in the current YAML shape",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			target := outPath
			if target == "" {
				target = path
			}
			if err := config.Save(target, cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("migrated config written to %s (%d sessions)\n", target, len(cfg.Sessions))
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "write the migrated config here instead of overwriting the input file")
	return cmd
}
