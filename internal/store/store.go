package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store wraps the pgvector-enabled Postgres database that holds search
// configuration, content chunks and whole-record embeddings.
type Store struct {
	DB *sql.DB
}

// DefaultEmbeddingDimensions indicates the expected length of vectors stored in pgvector columns.
const DefaultEmbeddingDimensions = 1536

// Source types accepted for indexed content.
const (
	SourceTypeRecord  = "record"
	SourceTypeFile    = "file"
	SourceTypeWebsite = "website"
)

// ValidSourceType reports whether st names a known content source.
func ValidSourceType(st string) bool {
	switch st {
	case SourceTypeRecord, SourceTypeFile, SourceTypeWebsite:
		return true
	}
	return false
}

// SearchConfigRecord is the per-project singleton that parameterizes chunking
// and search. Filters is an opaque structured filter spec owned by callers.
type SearchConfigRecord struct {
	ID                  string
	ProjectID           string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChunkSize           int
	ChunkOverlap        int
	RerankModel         *string
	Filters             map[string]interface{}
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ContentChunkRecord is one embedded segment of a source document.
type ContentChunkRecord struct {
	ID             string
	SourceType     string
	SourceID       string
	ProjectID      string
	ChunkIndex     int
	Content        string
	Vector         []float32
	EmbeddingModel string
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}

// RecordEmbeddingRecord is the single whole-document vector for a source,
// used for "find similar documents" queries distinct from chunk search.
type RecordEmbeddingRecord struct {
	ID             string
	RecordID       string
	ProjectID      string
	Vector         []float32
	EmbeddingModel string
	CreatedAt      time.Time
}

// ChunkSearchResult is a ranked hit from chunk-level vector or hybrid search.
type ChunkSearchResult struct {
	ID         string
	SourceType string
	SourceID   string
	Content    string
	ChunkIndex int
	Similarity float64
	Metadata   map[string]interface{}
}

// RecordSearchResult is a ranked hit from whole-record similarity search.
type RecordSearchResult struct {
	RecordID   string
	ProjectID  string
	Similarity float64
	CreatedAt  time.Time
}

// New constructs the Store from POSTGRES_* environment variables.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// Search configuration operations

// InsertSearchConfig creates the per-project search configuration and returns
// its id. The project_id unique constraint rejects a second initialization;
// that conflict is surfaced to the caller unchanged.
func (s *Store) InsertSearchConfig(ctx context.Context, rec SearchConfigRecord) (string, error) {
	if rec.ProjectID == "" {
		return "", fmt.Errorf("project_id required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	filters := rec.Filters
	if filters == nil {
		filters = map[string]interface{}{}
	}
	filterBytes, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("marshal filters: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO search_configs (id, project_id, embedding_model, embedding_dimensions, chunk_size, chunk_overlap, rerank_model, filters, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
`, rec.ID, rec.ProjectID, rec.EmbeddingModel, rec.EmbeddingDimensions, rec.ChunkSize, rec.ChunkOverlap, rec.RerankModel, filterBytes)
	if err != nil {
		return "", fmt.Errorf("insert search config: %w", err)
	}
	return rec.ID, nil
}

// GetSearchConfig returns the configuration for a project, or nil when the
// project was never initialized. Callers treat nil as "not yet configured".
func (s *Store) GetSearchConfig(ctx context.Context, projectID string) (*SearchConfigRecord, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project_id required")
	}
	row := s.DB.QueryRowContext(ctx, `
SELECT id, project_id, embedding_model, embedding_dimensions, chunk_size, chunk_overlap, rerank_model, filters, created_at, updated_at
FROM search_configs
WHERE project_id = $1
`, projectID)
	var (
		rec         SearchConfigRecord
		rerank      sql.NullString
		filterBytes []byte
	)
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.EmbeddingModel, &rec.EmbeddingDimensions, &rec.ChunkSize, &rec.ChunkOverlap, &rerank, &filterBytes, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get search config: %w", err)
	}
	if rerank.Valid {
		rec.RerankModel = &rerank.String
	}
	if len(filterBytes) > 0 {
		_ = json.Unmarshal(filterBytes, &rec.Filters)
	}
	return &rec, nil
}

// Content chunk operations

// InsertContentChunks bulk-inserts the chunk rows produced for one source
// document inside a single transaction.
func (s *Store) InsertContentChunks(ctx context.Context, chunks []ContentChunkRecord) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert content chunks: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("insert content chunks: commit: %w", cerr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO content_chunks (id, source_type, source_id, project_id, chunk_index, content, embedding, embedding_model, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::vector,$8,$9,NOW())
`)
	if err != nil {
		return fmt.Errorf("insert content chunks: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if !ValidSourceType(chunk.SourceType) {
			err = fmt.Errorf("insert content chunks: invalid source type %q", chunk.SourceType)
			return err
		}
		if chunk.SourceID == "" || chunk.ProjectID == "" {
			err = fmt.Errorf("insert content chunks: source_id and project_id required")
			return err
		}
		if len(chunk.Vector) == 0 {
			err = fmt.Errorf("insert content chunks: embedding vector required for chunk %d", chunk.ChunkIndex)
			return err
		}
		var vectorLiteral string
		vectorLiteral, err = encodeVectorLiteral(chunk.Vector)
		if err != nil {
			return err
		}
		meta := chunk.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		var metaBytes []byte
		metaBytes, err = json.Marshal(meta)
		if err != nil {
			err = fmt.Errorf("marshal chunk metadata: %w", err)
			return err
		}
		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err = stmt.ExecContext(ctx, id, chunk.SourceType, chunk.SourceID, chunk.ProjectID, chunk.ChunkIndex, chunk.Content, vectorLiteral, chunk.EmbeddingModel, metaBytes); err != nil {
			err = fmt.Errorf("insert content chunks: %w", err)
			return err
		}
	}
	return nil
}

// DeleteContentChunks removes every chunk for one (source_type, source_id).
func (s *Store) DeleteContentChunks(ctx context.Context, sourceType, sourceID string) error {
	if !ValidSourceType(sourceType) {
		return fmt.Errorf("delete content chunks: invalid source type %q", sourceType)
	}
	if sourceID == "" {
		return fmt.Errorf("delete content chunks: source_id required")
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM content_chunks WHERE source_type=$1 AND source_id=$2`, sourceType, sourceID); err != nil {
		return fmt.Errorf("delete content chunks: %w", err)
	}
	return nil
}

// Record embedding operations

// UpsertRecordEmbedding stores or replaces the whole-document vector for a record.
func (s *Store) UpsertRecordEmbedding(ctx context.Context, rec RecordEmbeddingRecord) error {
	if rec.RecordID == "" {
		return fmt.Errorf("record_id required")
	}
	if rec.ProjectID == "" {
		return fmt.Errorf("project_id required")
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("embedding vector required")
	}
	vectorLiteral, err := encodeVectorLiteral(rec.Vector)
	if err != nil {
		return err
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO record_embeddings (id, record_id, project_id, embedding, embedding_model, created_at)
VALUES ($1,$2,$3,$4::vector,$5,NOW())
ON CONFLICT (record_id, embedding_model) DO UPDATE SET
  project_id = EXCLUDED.project_id,
  embedding = EXCLUDED.embedding,
  created_at = NOW();
`, id, rec.RecordID, rec.ProjectID, vectorLiteral, rec.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("upsert record embedding: %w", err)
	}
	return nil
}

// DeleteRecordEmbedding removes the whole-document vectors for a record.
func (s *Store) DeleteRecordEmbedding(ctx context.Context, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("delete record embedding: record_id required")
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM record_embeddings WHERE record_id=$1`, recordID); err != nil {
		return fmt.Errorf("delete record embedding: %w", err)
	}
	return nil
}

// Search operations. The nearest-neighbor work happens inside Postgres
// functions; these methods serialize the query vector, pass filters through
// and map the ranked rows back out.

// SearchContentChunks runs chunk-level vector similarity search scoped to a
// project. sourceTypes narrows the search when non-empty.
func (s *Store) SearchContentChunks(ctx context.Context, projectID string, vector []float32, sourceTypes []string, threshold float64, count int) ([]ChunkSearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project_id required")
	}
	if count <= 0 {
		count = 10
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, source_type, source_id, content, chunk_index, similarity, metadata
FROM match_content_chunks($1::vector, $2, $3, $4, $5)
`, vecLiteral, projectID, sourceTypeFilter(sourceTypes), threshold, count)
	if err != nil {
		return nil, fmt.Errorf("search content chunks: %w", err)
	}
	defer rows.Close()
	return scanChunkResults(rows)
}

// HybridSearchContentChunks blends lexical and vector relevance store-side
// using the supplied weights.
func (s *Store) HybridSearchContentChunks(ctx context.Context, projectID, query string, vector []float32, sourceTypes []string, threshold float64, count int, textWeight, vectorWeight float64) ([]ChunkSearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project_id required")
	}
	if count <= 0 {
		count = 10
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, source_type, source_id, content, chunk_index, similarity, metadata
FROM hybrid_search_content_chunks($1, $2::vector, $3, $4, $5, $6, $7, $8)
`, query, vecLiteral, projectID, sourceTypeFilter(sourceTypes), threshold, count, textWeight, vectorWeight)
	if err != nil {
		return nil, fmt.Errorf("hybrid search content chunks: %w", err)
	}
	defer rows.Close()
	return scanChunkResults(rows)
}

// SearchRecordEmbeddings runs whole-document similarity search, optionally
// omitting the record being compared against itself.
func (s *Store) SearchRecordEmbeddings(ctx context.Context, projectID string, vector []float32, threshold float64, count int, excludeRecordID string) ([]RecordSearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project_id required")
	}
	if count <= 0 {
		count = 10
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT record_id, project_id, similarity, created_at
FROM match_record_embeddings($1::vector, $2, $3, $4, $5)
`, vecLiteral, projectID, threshold, count, nullableString(excludeRecordID))
	if err != nil {
		return nil, fmt.Errorf("search record embeddings: %w", err)
	}
	defer rows.Close()
	var results []RecordSearchResult
	for rows.Next() {
		var res RecordSearchResult
		if err := rows.Scan(&res.RecordID, &res.ProjectID, &res.Similarity, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("search record embeddings: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search record embeddings: %w", err)
	}
	return results, nil
}

// WebsiteSource identifies one indexed website, known by its URL.
type WebsiteSource struct {
	SourceID  string
	ProjectID string
}

// ListWebsiteSources returns the distinct website sources currently indexed,
// for periodic re-scraping.
func (s *Store) ListWebsiteSources(ctx context.Context) ([]WebsiteSource, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT DISTINCT source_id, project_id FROM content_chunks WHERE source_type = $1
`, SourceTypeWebsite)
	if err != nil {
		return nil, fmt.Errorf("list website sources: %w", err)
	}
	defer rows.Close()
	var sources []WebsiteSource
	for rows.Next() {
		var ws WebsiteSource
		if err := rows.Scan(&ws.SourceID, &ws.ProjectID); err != nil {
			return nil, fmt.Errorf("list website sources: %w", err)
		}
		sources = append(sources, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list website sources: %w", err)
	}
	return sources, nil
}

func scanChunkResults(rows *sql.Rows) ([]ChunkSearchResult, error) {
	var results []ChunkSearchResult
	for rows.Next() {
		var (
			res       ChunkSearchResult
			metaBytes []byte
		)
		if err := rows.Scan(&res.ID, &res.SourceType, &res.SourceID, &res.Content, &res.ChunkIndex, &res.Similarity, &metaBytes); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		if len(metaBytes) > 0 {
			_ = json.Unmarshal(metaBytes, &res.Metadata)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan chunk results: %w", err)
	}
	return results, nil
}

func sourceTypeFilter(sourceTypes []string) interface{} {
	if len(sourceTypes) == 0 {
		return nil
	}
	return pq.Array(sourceTypes)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeVectorLiteral renders a vector in the bracketed comma-separated form
// pgvector expects: "[v1,v2,...,vn]", no spaces.
func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

func decodeVectorLiteral(lit string) ([]float32, error) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return nil, fmt.Errorf("empty vector literal")
	}
	lit = strings.TrimPrefix(lit, "[")
	lit = strings.TrimSuffix(lit, "]")
	parts := strings.Split(lit, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector value %q: %w", value, err)
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}
