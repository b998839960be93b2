package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/embedding"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/ingest"
	"github.com/codeatlas-ai/codeatlas/internal/parser/golang"
	"github.com/codeatlas-ai/codeatlas/internal/tracking"
	"github.com/codeatlas-ai/codeatlas/internal/vector"
)

var ingestProject string

var ingestCmd = &cobra.Command{
	Use:   "ingest <root>",
	Short: "Ingest a source tree into the code graph",
	Long: `Parses the source tree at <root> and writes it to the graph
incrementally: only entities whose content changed since the last run
are written, deleted entities are removed, and every change is recorded
in the change history.`,
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

		summary, err := pipeline.Run(ctx, root)
		if err != nil {
			return err
		}
		printSummary(cmd, summary)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestProject, "project", "", "project identifier (default: root directory name)")
	watchCmd.Flags().StringVar(&ingestProject, "project", "", "project identifier (default: root directory name)")
}

func resolveRoot(arg string) (root, projectID string, err error) {
	root, err = filepath.Abs(arg)
	if err != nil {
		return "", "", err
	}
	projectID = ingestProject
	if projectID == "" {
		projectID = filepath.Base(root)
	}
	return root, projectID, nil
}

// buildPipeline wires the parser, embedding provider and tracker into a
// pipeline, ensuring configured vector indexes exist first.
func buildPipeline(ctx context.Context, cfg *config.Config, client graph.Client, projectID string, logger *slog.Logger) (*ingest.Pipeline, error) {
	if err := vector.EnsureIndexes(ctx, client, cfg.Vector, logger); err != nil {
		return nil, err
	}

	var provider embedding.Provider
	if cfg.Ingest.EmbedOnIngest {
		p, err := embedding.NewProvider(cfg.Embedding)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	parser := golang.NewParser(cfg.Ingest.Include, cfg.Ingest.Exclude, logger)
	tracker := tracking.NewGraphTracker(client, logger)

	return ingest.NewPipeline(client, parser, provider, tracker,
		cfg.Ingest, cfg.Vector.Indexes, projectID, logger), nil
}

func printSummary(cmd *cobra.Command, summary *ingest.Summary) {
	cmd.Printf("project:        %s\n", summary.ProjectID)
	cmd.Printf("scanned:        %d\n", summary.Scanned)
	cmd.Printf("created:        %d\n", summary.Created)
	cmd.Printf("updated:        %d\n", summary.Updated)
	cmd.Printf("deleted:        %d\n", summary.Deleted)
	cmd.Printf("unchanged:      %d\n", summary.Unchanged)
	cmd.Printf("nodes written:  %d\n", summary.NodesWritten)
	cmd.Printf("rels merged:    %d\n", summary.RelationshipsMerged)
	cmd.Printf("duration:       %s\n", summary.Duration.Round(time.Millisecond))

	if len(summary.EntityFailures) > 0 {
		cmd.Printf("failures:       %d\n", len(summary.EntityFailures))
		for _, f := range summary.EntityFailures {
			cmd.Printf("  - %s [%s]: %v\n", f.EntityID, f.Stage, f.Err)
		}
	}
}
