package search

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/notare-app/notare/internal/chunker"
	"github.com/notare-app/notare/internal/provider"
	"github.com/notare-app/notare/internal/store"
	"github.com/notare-app/notare/internal/telemetry"
)

// Indexer orchestrates chunking and embedding for source content and manages
// the per-project search configuration. Persistence happens through the
// content store; the processing step itself only produces records.
type Indexer struct {
	store    ContentStore
	provider provider.EmbeddingProvider
	defaults IndexDefaults
	logger   *log.Logger
	metrics  *telemetry.Metrics
}

// IndexDefaults fills in configuration fields a caller leaves at zero when a
// project is initialized.
type IndexDefaults struct {
	EmbeddingModel      string
	EmbeddingDimensions int
	ChunkSize           int
	ChunkOverlap        int
}

// NewIndexer builds a content indexer.
func NewIndexer(st ContentStore, p provider.EmbeddingProvider, defaults IndexDefaults, logger *log.Logger) *Indexer {
	if defaults.EmbeddingModel == "" {
		defaults.EmbeddingModel = "text-embedding-3-small"
	}
	if defaults.EmbeddingDimensions <= 0 {
		defaults.EmbeddingDimensions = store.DefaultEmbeddingDimensions
	}
	if defaults.ChunkSize <= 0 {
		defaults.ChunkSize = 1000
	}
	if defaults.ChunkOverlap < 0 {
		defaults.ChunkOverlap = 0
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	}
	return &Indexer{store: st, provider: p, defaults: defaults, logger: logger}
}

// SetMetrics attaches instrumentation. Nil leaves the indexer uninstrumented.
func (i *Indexer) SetMetrics(m *telemetry.Metrics) {
	i.metrics = m
}

// InitializeSearchConfig creates the per-project configuration and returns
// its id. The store's unique constraint on project_id rejects a second call
// for the same project; that conflict is surfaced unchanged.
func (i *Indexer) InitializeSearchConfig(ctx context.Context, projectID string, opts ConfigOptions) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("project_id required")
	}
	rec := store.SearchConfigRecord{
		ProjectID:           projectID,
		EmbeddingModel:      opts.EmbeddingModel,
		EmbeddingDimensions: opts.EmbeddingDimensions,
		ChunkSize:           opts.ChunkSize,
		ChunkOverlap:        opts.ChunkOverlap,
		RerankModel:         opts.RerankModel,
		Filters:             opts.Filters,
	}
	if rec.EmbeddingModel == "" {
		rec.EmbeddingModel = i.defaults.EmbeddingModel
	}
	if rec.EmbeddingDimensions <= 0 {
		rec.EmbeddingDimensions = i.defaults.EmbeddingDimensions
	}
	if rec.ChunkSize <= 0 {
		rec.ChunkSize = i.defaults.ChunkSize
	}
	if rec.ChunkOverlap == 0 {
		rec.ChunkOverlap = i.defaults.ChunkOverlap
	}
	if err := (chunker.Options{ChunkSize: rec.ChunkSize, ChunkOverlap: rec.ChunkOverlap}).Validate(); err != nil {
		return "", fmt.Errorf("initialize search config: %w", err)
	}
	return i.store.InsertSearchConfig(ctx, rec)
}

// GetSearchConfig returns the project configuration, nil when uninitialized.
func (i *Indexer) GetSearchConfig(ctx context.Context, projectID string) (*store.SearchConfigRecord, error) {
	return i.store.GetSearchConfig(ctx, projectID)
}

// ProcessContentForSearch chunks content, embeds every chunk in index order
// and embeds the whole document once. Nothing is persisted; the returned
// records are the caller's to store atomically. Embedding failures propagate
// as-is.
func (i *Indexer) ProcessContentForSearch(ctx context.Context, sourceType, sourceID, projectID, content string, opts chunker.Options, embeddingModel string) (*ProcessedContent, error) {
	if !store.ValidSourceType(sourceType) {
		return nil, fmt.Errorf("invalid source type %q", sourceType)
	}
	if sourceID == "" || projectID == "" {
		return nil, fmt.Errorf("source_id and project_id required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content must not be empty")
	}

	texts, err := chunker.ChunkText(content, opts)
	if err != nil {
		return nil, fmt.Errorf("chunk content: %w", err)
	}

	chunks := make([]store.ContentChunkRecord, 0, len(texts))
	for idx, text := range texts {
		vec, err := i.provider.GenerateEmbedding(ctx, text, embeddingModel)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", idx, err)
		}
		chunks = append(chunks, store.ContentChunkRecord{
			SourceType:     sourceType,
			SourceID:       sourceID,
			ProjectID:      projectID,
			ChunkIndex:     idx,
			Content:        text,
			Vector:         vec,
			EmbeddingModel: embeddingModel,
		})
	}

	// The whole document gets its own embedding, not an aggregate of the
	// chunk vectors.
	recordVec, err := i.provider.GenerateEmbedding(ctx, content, embeddingModel)
	if err != nil {
		return nil, fmt.Errorf("embed record: %w", err)
	}

	return &ProcessedContent{
		Chunks: chunks,
		RecordEmbedding: store.RecordEmbeddingRecord{
			RecordID:       sourceID,
			ProjectID:      projectID,
			Vector:         recordVec,
			EmbeddingModel: embeddingModel,
		},
	}, nil
}

// ProcessContent runs the full indexing pipeline for a source document using
// the project's configuration and persists the results. A project without a
// configuration fails fast; nothing is silently defaulted.
func (i *Indexer) ProcessContent(ctx context.Context, sourceType, sourceID, projectID, content string) error {
	cfg, err := i.store.GetSearchConfig(ctx, projectID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("search configuration not found for project %s", projectID)
	}

	processed, err := i.ProcessContentForSearch(ctx, sourceType, sourceID, projectID, content,
		chunker.Options{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}, cfg.EmbeddingModel)
	if err != nil {
		return err
	}

	if err := i.store.InsertContentChunks(ctx, processed.Chunks); err != nil {
		return err
	}
	if err := i.store.UpsertRecordEmbedding(ctx, processed.RecordEmbedding); err != nil {
		return err
	}
	if i.metrics != nil {
		i.metrics.IndexedChunks.Add(float64(len(processed.Chunks)))
	}
	i.logger.Printf("indexed %s/%s: %d chunks", sourceType, sourceID, len(processed.Chunks))
	return nil
}

// UpdateContent re-indexes a source document after its content changed:
// delete everything, then reprocess from scratch. There is no partial-update
// path, which keeps the chunk set consistent with the latest content at the
// cost of redoing all embedding calls.
func (i *Indexer) UpdateContent(ctx context.Context, sourceType, sourceID, projectID, content string) error {
	if err := i.store.DeleteContentChunks(ctx, sourceType, sourceID); err != nil {
		return err
	}
	if err := i.store.DeleteRecordEmbedding(ctx, sourceID); err != nil {
		return err
	}
	return i.ProcessContent(ctx, sourceType, sourceID, projectID, content)
}

// DeleteContent removes every chunk and the record embedding for a source.
func (i *Indexer) DeleteContent(ctx context.Context, sourceType, sourceID string) error {
	if err := i.store.DeleteContentChunks(ctx, sourceType, sourceID); err != nil {
		return err
	}
	return i.store.DeleteRecordEmbedding(ctx, sourceID)
}

// DeleteRecordEmbedding removes only the whole-document vector for a record.
func (i *Indexer) DeleteRecordEmbedding(ctx context.Context, recordID string) error {
	return i.store.DeleteRecordEmbedding(ctx, recordID)
}
