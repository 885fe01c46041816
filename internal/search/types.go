package search

import (
	"context"

	"github.com/notare-app/notare/internal/store"
)

// Options tunes a single search call.
type Options struct {
	MatchThreshold  float64
	MatchCount      int
	IncludeMetadata bool
}

// DefaultOptions returns the standard search knobs.
func DefaultOptions() Options {
	return Options{MatchThreshold: 0.7, MatchCount: 10, IncludeMetadata: true}
}

func (o Options) normalize() Options {
	if o.MatchThreshold <= 0 {
		o.MatchThreshold = 0.7
	}
	if o.MatchCount <= 0 {
		o.MatchCount = 10
	}
	return o
}

// Result is a query-time projection of one ranked chunk hit. Never persisted.
type Result struct {
	ID         string                 `json:"id"`
	SourceType string                 `json:"source_type"`
	SourceID   string                 `json:"source_id"`
	Content    string                 `json:"content"`
	ChunkIndex int                    `json:"chunk_index"`
	Similarity float64                `json:"similarity"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SimilarRecord is a whole-document similarity hit.
type SimilarRecord struct {
	RecordID   string  `json:"record_id"`
	ProjectID  string  `json:"project_id"`
	Similarity float64 `json:"similarity"`
}

// ConversationMessage is one prior turn of the dialogue driving a
// conversation-aware search.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationQuery describes a conversation-aware search request.
type ConversationQuery struct {
	TopicDescription    string                `json:"topic_description"`
	ProjectID           string                `json:"project_id"`
	ConversationHistory []ConversationMessage `json:"conversation_history,omitempty"`
	SourceTypes         []string              `json:"source_types,omitempty"`
	Options             *Options              `json:"options,omitempty"`
}

// ConversationResult extends Result with conversation-aware enrichment.
type ConversationResult struct {
	Result
	RelevanceScore     float64  `json:"relevance_score"`
	ContextSnippets    []string `json:"context_snippets"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

// ConfigOptions carries caller overrides for project initialization; zero
// values fall back to deployment defaults.
type ConfigOptions struct {
	EmbeddingModel      string
	EmbeddingDimensions int
	ChunkSize           int
	ChunkOverlap        int
	RerankModel         *string
	Filters             map[string]interface{}
}

// ProcessedContent is the output of chunking + embedding one source document,
// returned for the caller to persist.
type ProcessedContent struct {
	Chunks          []store.ContentChunkRecord
	RecordEmbedding store.RecordEmbeddingRecord
}

// ContentStore is the slice of the store the indexer needs.
type ContentStore interface {
	InsertSearchConfig(ctx context.Context, rec store.SearchConfigRecord) (string, error)
	GetSearchConfig(ctx context.Context, projectID string) (*store.SearchConfigRecord, error)
	InsertContentChunks(ctx context.Context, chunks []store.ContentChunkRecord) error
	DeleteContentChunks(ctx context.Context, sourceType, sourceID string) error
	UpsertRecordEmbedding(ctx context.Context, rec store.RecordEmbeddingRecord) error
	DeleteRecordEmbedding(ctx context.Context, recordID string) error
}

// ChunkSearcher is the slice of the store the engine needs.
type ChunkSearcher interface {
	GetSearchConfig(ctx context.Context, projectID string) (*store.SearchConfigRecord, error)
	SearchContentChunks(ctx context.Context, projectID string, vector []float32, sourceTypes []string, threshold float64, count int) ([]store.ChunkSearchResult, error)
	HybridSearchContentChunks(ctx context.Context, projectID, query string, vector []float32, sourceTypes []string, threshold float64, count int, textWeight, vectorWeight float64) ([]store.ChunkSearchResult, error)
	SearchRecordEmbeddings(ctx context.Context, projectID string, vector []float32, threshold float64, count int, excludeRecordID string) ([]store.RecordSearchResult, error)
}
