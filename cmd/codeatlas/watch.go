package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/internal/ingest"
)

var watchCmd = &cobra.Command{
	Use:   "watch <root>",
	Short: "Watch a source tree and re-ingest on changes",
	Long: `Runs one full ingestion of <root>, then watches the tree with a
debounced filesystem watcher and re-runs the pipeline after each change
burst. Runs are idempotent, so repeated triggers are safe.`,
	Args: cobra.ExactArgs(1),
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

		root, projectID, err := resolveRoot(args[0])
		if err != nil {
			return err
		}

		pipeline, err := buildPipeline(ctx, cfg, client, projectID, logger)
		if err != nil {
			return err
		}

		run := func(ctx context.Context) error {
			summary, err := pipeline.Run(ctx, root)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			return nil
		}

		if err := run(ctx); err != nil {
			return err
		}

		watcher := ingest.NewWatcher(root, cfg.Ingest.WatchDebounce, run, logger)
		if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
