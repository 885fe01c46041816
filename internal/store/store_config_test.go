package store

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestInsertSearchConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	rec := SearchConfigRecord{
		ProjectID:           "proj-1",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		ChunkSize:           1000,
		ChunkOverlap:        200,
	}

	query := regexp.QuoteMeta(`
INSERT INTO search_configs (id, project_id, embedding_model, embedding_dimensions, chunk_size, chunk_overlap, rerank_model, filters, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
`)
	mock.ExpectExec(query).
		WithArgs(sqlmock.AnyArg(), "proj-1", "text-embedding-3-small", 1536, 1000, 200, nil, []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := st.InsertSearchConfig(context.Background(), rec)
	if err != nil {
		t.Fatalf("InsertSearchConfig: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated config id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertSearchConfigConflictSurfaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec("INSERT INTO search_configs").
		WillReturnError(fmt.Errorf(`pq: duplicate key value violates unique constraint "search_configs_project_id_key"`))

	if _, err := st.InsertSearchConfig(context.Background(), SearchConfigRecord{ProjectID: "proj-1"}); err == nil {
		t.Fatal("expected unique violation to surface")
	}
}

func TestGetSearchConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "project_id", "embedding_model", "embedding_dimensions", "chunk_size", "chunk_overlap", "rerank_model", "filters", "created_at", "updated_at"}).
		AddRow("cfg-1", "proj-1", "text-embedding-3-small", 1536, 1000, 200, nil, []byte(`{"sources":["record"]}`), now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT id, project_id, embedding_model, embedding_dimensions, chunk_size, chunk_overlap, rerank_model, filters, created_at, updated_at
FROM search_configs
WHERE project_id = $1
`)).WithArgs("proj-1").WillReturnRows(rows)

	cfg, err := st.GetSearchConfig(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("GetSearchConfig: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("unexpected chunking options: %+v", cfg)
	}
	if cfg.RerankModel != nil {
		t.Fatalf("expected nil rerank model, got %v", *cfg.RerankModel)
	}
	if cfg.Filters["sources"] == nil {
		t.Fatalf("expected filters round-tripped, got %+v", cfg.Filters)
	}
}

func TestGetSearchConfigMissingReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("SELECT id, project_id").
		WithArgs("proj-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cfg, err := st.GetSearchConfig(context.Background(), "proj-unknown")
	if err != nil {
		t.Fatalf("GetSearchConfig: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for uninitialized project, got %+v", cfg)
	}
}
