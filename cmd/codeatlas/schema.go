package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the discovered graph schema as YAML",
	Long: `Introspects the connected graph and prints its node labels with
sampled property shapes, relationship types, indexes, constraints and
vector indexes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogger(cfg)
		ctx := cmd.Context()

		client, err := connectGraph(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close(context.Background())

		discovered, err := schema.NewIntrospector(client, cfg.Vector, logger).Introspect(ctx)
		if err != nil {
			return err
		}
		return printYAML(cmd, discovered)
	},
}
