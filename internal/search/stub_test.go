package search

import (
	"context"

	"github.com/notare-app/notare/internal/store"
)

// stubEmbedder returns deterministic vectors and records every call.
type stubEmbedder struct {
	texts  []string
	models []string
	err    error
}

func (s *stubEmbedder) GenerateEmbedding(_ context.Context, text string, model string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.texts = append(s.texts, text)
	s.models = append(s.models, model)
	return []float32{float32(len(text)), 0.5}, nil
}

// stubContentStore captures writes and plays back canned search results.
type stubContentStore struct {
	config    *store.SearchConfigRecord
	configErr error

	insertedConfigs []store.SearchConfigRecord
	insertedChunks  [][]store.ContentChunkRecord
	upserted        []store.RecordEmbeddingRecord
	deletedChunks   [][2]string
	deletedRecords  []string
	ops             []string

	chunkResults  []store.ChunkSearchResult
	recordResults []store.RecordSearchResult
	searchErr     error

	lastVector       []float32
	lastSourceTypes  []string
	lastThreshold    float64
	lastCount        int
	lastQuery        string
	lastTextWeight   float64
	lastVectorWeight float64
	lastExclude      string
}

func (s *stubContentStore) InsertSearchConfig(_ context.Context, rec store.SearchConfigRecord) (string, error) {
	s.insertedConfigs = append(s.insertedConfigs, rec)
	s.ops = append(s.ops, "insert_config")
	return "cfg-1", nil
}

func (s *stubContentStore) GetSearchConfig(_ context.Context, _ string) (*store.SearchConfigRecord, error) {
	if s.configErr != nil {
		return nil, s.configErr
	}
	return s.config, nil
}

func (s *stubContentStore) InsertContentChunks(_ context.Context, chunks []store.ContentChunkRecord) error {
	s.insertedChunks = append(s.insertedChunks, chunks)
	s.ops = append(s.ops, "insert_chunks")
	return nil
}

func (s *stubContentStore) DeleteContentChunks(_ context.Context, sourceType, sourceID string) error {
	s.deletedChunks = append(s.deletedChunks, [2]string{sourceType, sourceID})
	s.ops = append(s.ops, "delete_chunks")
	return nil
}

func (s *stubContentStore) UpsertRecordEmbedding(_ context.Context, rec store.RecordEmbeddingRecord) error {
	s.upserted = append(s.upserted, rec)
	s.ops = append(s.ops, "upsert_record")
	return nil
}

func (s *stubContentStore) DeleteRecordEmbedding(_ context.Context, recordID string) error {
	s.deletedRecords = append(s.deletedRecords, recordID)
	s.ops = append(s.ops, "delete_record")
	return nil
}

func (s *stubContentStore) SearchContentChunks(_ context.Context, _ string, vector []float32, sourceTypes []string, threshold float64, count int) ([]store.ChunkSearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	s.lastVector = vector
	s.lastSourceTypes = sourceTypes
	s.lastThreshold = threshold
	s.lastCount = count
	return s.chunkResults, nil
}

func (s *stubContentStore) HybridSearchContentChunks(_ context.Context, _ string, query string, vector []float32, sourceTypes []string, threshold float64, count int, textWeight, vectorWeight float64) ([]store.ChunkSearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	s.lastQuery = query
	s.lastVector = vector
	s.lastSourceTypes = sourceTypes
	s.lastThreshold = threshold
	s.lastCount = count
	s.lastTextWeight = textWeight
	s.lastVectorWeight = vectorWeight
	return s.chunkResults, nil
}

func (s *stubContentStore) SearchRecordEmbeddings(_ context.Context, _ string, vector []float32, threshold float64, count int, excludeRecordID string) ([]store.RecordSearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	s.lastVector = vector
	s.lastThreshold = threshold
	s.lastCount = count
	s.lastExclude = excludeRecordID
	return s.recordResults, nil
}

func testConfig() *store.SearchConfigRecord {
	return &store.SearchConfigRecord{
		ID:                  "cfg-1",
		ProjectID:           "proj-1",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		ChunkSize:           1000,
		ChunkOverlap:        100,
	}
}
