package search

import (
	"context"
	"fmt"
	"log"

	"github.com/notare-app/notare/internal/provider"
	"github.com/notare-app/notare/internal/store"
)

// Default lexical/vector blend for hybrid search. Conversational queries
// lean vector-heavy.
const (
	DefaultTextWeight   = 0.3
	DefaultVectorWeight = 0.7
)

// Engine executes vector and hybrid searches over indexed chunks. The
// nearest-neighbor and blend computations live in the store; the engine's job
// is embedding the query, passing filters through and mapping ranked rows
// into results. Store failures surface to the caller so it can decide on a
// fallback.
type Engine struct {
	store    ChunkSearcher
	provider provider.EmbeddingProvider
	logger   *log.Logger
}

// NewEngine builds a search engine.
func NewEngine(st ChunkSearcher, p provider.EmbeddingProvider, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &Engine{store: st, provider: p, logger: logger}
}

// embedQuery resolves the project's configured model and embeds the query
// text. An unconfigured project fails here, before any store search runs.
func (e *Engine) embedQuery(ctx context.Context, query, projectID string) ([]float32, error) {
	cfg, err := e.store.GetSearchConfig(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("search configuration not found for project %s", projectID)
	}
	vec, err := e.provider.GenerateEmbedding(ctx, query, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

// SearchContent runs chunk-level vector similarity search and returns ranked
// results in store order.
func (e *Engine) SearchContent(ctx context.Context, query, projectID string, sourceTypes []string, opts Options) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	opts = opts.normalize()
	vec, err := e.embedQuery(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.SearchContentChunks(ctx, projectID, vec, sourceTypes, opts.MatchThreshold, opts.MatchCount)
	if err != nil {
		return nil, err
	}
	return mapResults(hits, opts.IncludeMetadata), nil
}

// HybridSearch blends lexical and vector relevance store-side. Zero weights
// fall back to the 0.3/0.7 defaults.
func (e *Engine) HybridSearch(ctx context.Context, query, projectID string, sourceTypes []string, opts Options, textWeight, vectorWeight float64) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	opts = opts.normalize()
	if textWeight <= 0 {
		textWeight = DefaultTextWeight
	}
	if vectorWeight <= 0 {
		vectorWeight = DefaultVectorWeight
	}
	vec, err := e.embedQuery(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.HybridSearchContentChunks(ctx, projectID, query, vec, sourceTypes, opts.MatchThreshold, opts.MatchCount, textWeight, vectorWeight)
	if err != nil {
		return nil, err
	}
	return mapResults(hits, opts.IncludeMetadata), nil
}

// SearchSimilarRecords searches whole-document embeddings, optionally
// excluding the record the query was derived from.
func (e *Engine) SearchSimilarRecords(ctx context.Context, query, projectID string, opts Options, excludeRecordID string) ([]SimilarRecord, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	opts = opts.normalize()
	vec, err := e.embedQuery(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.SearchRecordEmbeddings(ctx, projectID, vec, opts.MatchThreshold, opts.MatchCount, excludeRecordID)
	if err != nil {
		return nil, err
	}
	records := make([]SimilarRecord, 0, len(hits))
	for _, hit := range hits {
		records = append(records, SimilarRecord{
			RecordID:   hit.RecordID,
			ProjectID:  hit.ProjectID,
			Similarity: clampSimilarity(hit.Similarity),
		})
	}
	return records, nil
}

func mapResults(hits []store.ChunkSearchResult, includeMetadata bool) []Result {
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		res := Result{
			ID:         hit.ID,
			SourceType: hit.SourceType,
			SourceID:   hit.SourceID,
			Content:    hit.Content,
			ChunkIndex: hit.ChunkIndex,
			Similarity: clampSimilarity(hit.Similarity),
		}
		if includeMetadata {
			res.Metadata = hit.Metadata
		}
		results = append(results, res)
	}
	return results
}

func clampSimilarity(val float64) float64 {
	if val < 0 {
		return 0
	}
	if val > 1 {
		return 1
	}
	return val
}
