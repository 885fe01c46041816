package store

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSearchContentChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	rows := sqlmock.NewRows([]string{"id", "source_type", "source_id", "content", "chunk_index", "similarity", "metadata"}).
		AddRow("c1", "record", "rec-1", "incremental backups", 0, 0.91, []byte(`{"title":"ops"}`)).
		AddRow("c2", "file", "file-2", "encryption at rest", 3, 0.84, nil)

	query := regexp.QuoteMeta(`
SELECT id, source_type, source_id, content, chunk_index, similarity, metadata
FROM match_content_chunks($1::vector, $2, $3, $4, $5)
`)
	mock.ExpectQuery(query).
		WithArgs("[0.1,0.2]", "proj-1", nil, 0.7, 10).
		WillReturnRows(rows)

	results, err := st.SearchContentChunks(context.Background(), "proj-1", []float32{0.1, 0.2}, nil, 0.7, 10)
	if err != nil {
		t.Fatalf("SearchContentChunks: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Similarity != 0.91 || results[0].SourceID != "rec-1" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[0].Metadata["title"] != "ops" {
		t.Fatalf("metadata not decoded: %+v", results[0].Metadata)
	}
	if results[1].Metadata != nil {
		t.Fatalf("expected nil metadata, got %+v", results[1].Metadata)
	}
}

func TestSearchContentChunksSourceTypeFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("FROM match_content_chunks").
		WithArgs("[1]", "proj-1", sqlmock.AnyArg(), 0.5, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source_type", "source_id", "content", "chunk_index", "similarity", "metadata"}))

	results, err := st.SearchContentChunks(context.Background(), "proj-1", []float32{1}, []string{"record", "website"}, 0.5, 5)
	if err != nil {
		t.Fatalf("SearchContentChunks: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSearchContentChunksErrorSurfaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("FROM match_content_chunks").
		WillReturnError(fmt.Errorf("pq: function match_content_chunks does not exist"))

	if _, err := st.SearchContentChunks(context.Background(), "proj-1", []float32{1}, nil, 0.7, 10); err == nil {
		t.Fatal("expected store error to surface")
	}
}

func TestHybridSearchContentChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	rows := sqlmock.NewRows([]string{"id", "source_type", "source_id", "content", "chunk_index", "similarity", "metadata"}).
		AddRow("c1", "record", "rec-1", "alpha", 0, 0.8, nil)

	query := regexp.QuoteMeta(`
SELECT id, source_type, source_id, content, chunk_index, similarity, metadata
FROM hybrid_search_content_chunks($1, $2::vector, $3, $4, $5, $6, $7, $8)
`)
	mock.ExpectQuery(query).
		WithArgs("alpha beta", "[0.1]", "proj-1", nil, 0.7, 10, 0.3, 0.7).
		WillReturnRows(rows)

	results, err := st.HybridSearchContentChunks(context.Background(), "proj-1", "alpha beta", []float32{0.1}, nil, 0.7, 10, 0.3, 0.7)
	if err != nil {
		t.Fatalf("HybridSearchContentChunks: %v", err)
	}
	if len(results) != 1 || results[0].ID != "c1" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearchRecordEmbeddings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()
	rows := sqlmock.NewRows([]string{"record_id", "project_id", "similarity", "created_at"}).
		AddRow("rec-2", "proj-1", 0.88, now)

	query := regexp.QuoteMeta(`
SELECT record_id, project_id, similarity, created_at
FROM match_record_embeddings($1::vector, $2, $3, $4, $5)
`)
	mock.ExpectQuery(query).
		WithArgs("[0.1]", "proj-1", 0.7, 5, "rec-1").
		WillReturnRows(rows)

	results, err := st.SearchRecordEmbeddings(context.Background(), "proj-1", []float32{0.1}, 0.7, 5, "rec-1")
	if err != nil {
		t.Fatalf("SearchRecordEmbeddings: %v", err)
	}
	if len(results) != 1 || results[0].RecordID != "rec-2" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
