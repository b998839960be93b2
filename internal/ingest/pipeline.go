package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/embedding"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/tracking"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Stage identifies where a pipeline run currently is, or where it
// stopped.
type Stage string

const (
	StageScanning       Stage = "scanning"
	StageDiffing        Stage = "diffing"
	StageWriting        Stage = "writing"
	StageChangeTracking Stage = "change_tracking"
	StageComplete       Stage = "complete"
	StageFailed         Stage = "failed"
)

// SourceParser turns a source tree into graph entities and relationships.
type SourceParser interface {
	Parse(ctx context.Context, root string) (ParseResult, error)
}

// EntityFailure attributes a non-fatal failure to a single entity.
type EntityFailure struct {
	EntityID string
	Stage    Stage
	Err      error
}

// Summary reports the outcome of one pipeline run.
type Summary struct {
	Stage     Stage
	ProjectID string

	Scanned   int
	Created   int
	Updated   int
	Deleted   int
	Unchanged int

	NodesWritten        int
	RelationshipsMerged int

	// EntityFailures holds per-entity embedding and change-record
	// failures. They do not fail the run.
	EntityFailures []EntityFailure

	Duration time.Duration
}

// Pipeline ingests a source tree into the graph incrementally: only
// entities whose content changed since the last run are written.
type Pipeline struct {
	client    graph.Client
	parser    SourceParser
	provider  embedding.Provider
	tracker   tracking.Tracker
	cfg       config.IngestConfig
	indexes   []config.VectorIndexConfig
	projectID string
	logger    *slog.Logger
}

// NewPipeline assembles a pipeline. provider may be nil (or embedding
// disabled in cfg) to skip embedding generation; tracker may be nil to
// skip change history.
func NewPipeline(
	client graph.Client,
	parser SourceParser,
	provider embedding.Provider,
	tracker tracking.Tracker,
	cfg config.IngestConfig,
	indexes []config.VectorIndexConfig,
	projectID string,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		client:    client,
		parser:    parser,
		provider:  provider,
		tracker:   tracker,
		cfg:       cfg,
		indexes:   indexes,
		projectID: projectID,
		logger:    logger,
	}
}

// Run executes one full ingestion pass. Runs are idempotent: an
// unchanged source tree produces zero writes and zero change records.
func (p *Pipeline) Run(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Stage: StageScanning, ProjectID: p.projectID}

	parsed, err := p.parser.Parse(ctx, root)
	if err != nil {
		summary.Stage = StageFailed
		summary.Duration = time.Since(start)
		return summary, types.WrapError(ErrCodeScanFailed, "source scan failed", err)
	}
	summary.Scanned = len(parsed.Entities)

	summary.Stage = StageDiffing
	snapshot, err := loadSnapshot(ctx, p.client, p.projectID)
	if err != nil {
		summary.Stage = StageFailed
		summary.Duration = time.Since(start)
		return summary, err
	}
	diff := diffEntities(parsed.Entities, snapshot)

	summary.Created = len(diff.Created)
	summary.Updated = len(diff.Updated)
	summary.Deleted = len(diff.Deleted)
	summary.Unchanged = diff.Unchanged

	p.logger.Info("ingestion diff computed",
		"project", p.projectID,
		"created", summary.Created,
		"updated", summary.Updated,
		"deleted", summary.Deleted,
		"unchanged", summary.Unchanged)

	if !diff.HasChanges() {
		summary.Stage = StageComplete
		summary.Duration = time.Since(start)
		return summary, nil
	}

	summary.Stage = StageWriting
	changed := append(append([]Entity(nil), diff.Created...), diff.Updated...)

	var embeddings map[string][]embeddedVector
	if p.cfg.EmbedOnIngest && p.provider != nil {
		var embedFailures []EntityFailure
		embeddings, embedFailures = embedDiff(ctx, p.provider, p.indexes, changed, p.logger)
		summary.EntityFailures = append(summary.EntityFailures, embedFailures...)
	}

	w := newWriter(p.client, p.cfg.BatchSize, p.projectID)

	nodes, err := w.writeNodes(ctx, changed, embeddings)
	summary.NodesWritten = nodes
	if err != nil {
		summary.Stage = StageFailed
		summary.Duration = time.Since(start)
		return summary, err
	}

	rels, err := w.writeRelationships(ctx, parsed.Relationships)
	summary.RelationshipsMerged = rels
	if err != nil {
		summary.Stage = StageFailed
		summary.Duration = time.Since(start)
		return summary, err
	}

	if _, err := w.deleteNodes(ctx, diff.Deleted); err != nil {
		summary.Stage = StageFailed
		summary.Duration = time.Since(start)
		return summary, err
	}

	summary.Stage = StageChangeTracking
	if p.tracker != nil {
		failures := p.tracker.RecordBatch(ctx, changeRecords(diff), tracking.DefaultConcurrency)
		for _, f := range failures {
			summary.EntityFailures = append(summary.EntityFailures, EntityFailure{
				EntityID: f.Record.EntityID,
				Stage:    StageChangeTracking,
				Err:      f.Err,
			})
		}
	}

	summary.Stage = StageComplete
	summary.Duration = time.Since(start)

	p.logger.Info("ingestion complete",
		"project", p.projectID,
		"nodes_written", summary.NodesWritten,
		"relationships_merged", summary.RelationshipsMerged,
		"entity_failures", len(summary.EntityFailures),
		"duration", summary.Duration)

	return summary, nil
}

// changeRecords builds one change record per created, updated and
// deleted entity.
func changeRecords(diff Diff) []tracking.ChangeRecord {
	now := time.Now().UTC()
	records := make([]tracking.ChangeRecord, 0, len(diff.Created)+len(diff.Updated)+len(diff.Deleted))

	for _, e := range diff.Created {
		records = append(records, tracking.ChangeRecord{
			EntityID:   e.UUID(),
			Kind:       tracking.ChangeCreated,
			NewHash:    e.ContentHash(),
			RecordedAt: now,
		})
	}
	for _, e := range diff.Updated {
		uuid := e.UUID()
		records = append(records, tracking.ChangeRecord{
			EntityID:   uuid,
			Kind:       tracking.ChangeUpdated,
			PrevHash:   diff.prevHashes[uuid],
			NewHash:    e.ContentHash(),
			RecordedAt: now,
		})
	}
	for _, d := range diff.Deleted {
		records = append(records, tracking.ChangeRecord{
			EntityID:   d.UUID,
			Kind:       tracking.ChangeDeleted,
			PrevHash:   d.PrevHash,
			RecordedAt: now,
		})
	}
	return records
}
