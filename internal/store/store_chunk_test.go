package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestInsertContentChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	chunks := []ContentChunkRecord{
		{
			SourceType:     SourceTypeRecord,
			SourceID:       "rec-1",
			ProjectID:      "proj-1",
			ChunkIndex:     0,
			Content:        "first chunk",
			Vector:         []float32{0.1, 0.2},
			EmbeddingModel: "text-embedding-3-small",
		},
		{
			SourceType:     SourceTypeRecord,
			SourceID:       "rec-1",
			ProjectID:      "proj-1",
			ChunkIndex:     1,
			Content:        "second chunk",
			Vector:         []float32{0.3, 0.4},
			EmbeddingModel: "text-embedding-3-small",
		},
	}

	mock.ExpectBegin()
	insert := regexp.QuoteMeta(`
INSERT INTO content_chunks (id, source_type, source_id, project_id, chunk_index, content, embedding, embedding_model, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::vector,$8,$9,NOW())
`)
	prep := mock.ExpectPrepare(insert)
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "record", "rec-1", "proj-1", 0, "first chunk", "[0.1,0.2]", "text-embedding-3-small", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "record", "rec-1", "proj-1", 1, "second chunk", "[0.3,0.4]", "text-embedding-3-small", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.InsertContentChunks(context.Background(), chunks); err != nil {
		t.Fatalf("InsertContentChunks: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertContentChunksSurfacesCommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	chunks := []ContentChunkRecord{{
		SourceType:     SourceTypeRecord,
		SourceID:       "rec-1",
		ProjectID:      "proj-1",
		ChunkIndex:     0,
		Content:        "only chunk",
		Vector:         []float32{0.1},
		EmbeddingModel: "text-embedding-3-small",
	}}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO content_chunks")
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "record", "rec-1", "proj-1", 0, "only chunk", "[0.1]", "text-embedding-3-small", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

	err = st.InsertContentChunks(context.Background(), chunks)
	if err == nil {
		t.Fatal("expected commit failure to surface")
	}
	if !strings.Contains(err.Error(), "commit failed") {
		t.Fatalf("expected commit error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertContentChunksRejectsBadSourceType(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO content_chunks")
	mock.ExpectRollback()

	chunks := []ContentChunkRecord{{SourceType: "email", SourceID: "x", ProjectID: "p", Vector: []float32{1}}}
	if err := st.InsertContentChunks(context.Background(), chunks); err == nil {
		t.Fatal("expected invalid source type error")
	}
}

func TestDeleteContentChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM content_chunks WHERE source_type=$1 AND source_id=$2`)).
		WithArgs("file", "file-9").
		WillReturnResult(sqlmock.NewResult(0, 4))

	if err := st.DeleteContentChunks(context.Background(), SourceTypeFile, "file-9"); err != nil {
		t.Fatalf("DeleteContentChunks: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertRecordEmbedding(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	rec := RecordEmbeddingRecord{
		RecordID:       "rec-1",
		ProjectID:      "proj-1",
		Vector:         []float32{0.5, 0.25},
		EmbeddingModel: "text-embedding-3-small",
	}

	query := regexp.QuoteMeta(`
INSERT INTO record_embeddings (id, record_id, project_id, embedding, embedding_model, created_at)
VALUES ($1,$2,$3,$4::vector,$5,NOW())
ON CONFLICT (record_id, embedding_model) DO UPDATE SET
  project_id = EXCLUDED.project_id,
  embedding = EXCLUDED.embedding,
  created_at = NOW();
`)
	mock.ExpectExec(query).
		WithArgs(sqlmock.AnyArg(), "rec-1", "proj-1", "[0.5,0.25]", "text-embedding-3-small").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.UpsertRecordEmbedding(context.Background(), rec); err != nil {
		t.Fatalf("UpsertRecordEmbedding: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteRecordEmbedding(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM record_embeddings WHERE record_id=$1`)).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.DeleteRecordEmbedding(context.Background(), "rec-1"); err != nil {
		t.Fatalf("DeleteRecordEmbedding: %v", err)
	}
}
