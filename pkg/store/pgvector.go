package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/scholar/internal/models"
)

type PgVectorConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// PgVectorIndex stores chunk vectors in Postgres with the pgvector extension.
// Every row carries an owner_id; queries always filter on it, so one table
// serves all namespaces.
type PgVectorIndex struct {
	config PgVectorConfig
	pool   *pgxpool.Pool
}

func NewPgVectorWithConfig(config PgVectorConfig) (*PgVectorIndex, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	idx := &PgVectorIndex{config: config, pool: pool}
	if err := idx.initialize(); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *PgVectorIndex) initialize() error {
	ctx := context.Background()

	if _, err := idx.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT,
			title TEXT,
			authors TEXT,
			embedding vector(%d)
		)`, idx.config.TableName, idx.config.VectorDim)
	if _, err := idx.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createVectorIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		idx.config.TableName, idx.config.TableName)
	if _, err := idx.pool.Exec(ctx, createVectorIndex); err != nil {
		return fmt.Errorf("failed to create vector index: %v", err)
	}

	createOwnerIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_owner_doc_idx
		ON %s (owner_id, document_id)`,
		idx.config.TableName, idx.config.TableName)
	if _, err := idx.pool.Exec(ctx, createOwnerIndex); err != nil {
		return fmt.Errorf("failed to create owner index: %v", err)
	}

	return nil
}

func (idx *PgVectorIndex) Dimension() int { return idx.config.VectorDim }

// Upsert writes entries in batches, each batch in its own transaction.
// Returns the number of entries applied before any failure.
func (idx *PgVectorIndex) Upsert(ctx context.Context, entries []models.IndexEntry) (int, error) {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, document_id, chunk_index, content, title, authors, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			embedding = EXCLUDED.embedding`,
		idx.config.TableName)

	applied := 0
	for start := 0; start < len(entries); start += idx.config.BatchSize {
		end := start + idx.config.BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		if err := idx.upsertBatch(ctx, stmt, entries[start:end]); err != nil {
			return applied, &IndexError{Op: "upsert", Err: err}
		}
		applied += end - start
	}

	return applied, nil
}

func (idx *PgVectorIndex) upsertBatch(ctx context.Context, stmt string, batch []models.IndexEntry) error {
	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	for _, entry := range batch {
		if len(entry.Vector) != idx.config.VectorDim {
			return fmt.Errorf("entry %s has %d-dimensional vector, table expects %d",
				entry.ID, len(entry.Vector), idx.config.VectorDim)
		}
		_, err := tx.Exec(ctx, stmt,
			entry.ID,
			entry.OwnerID,
			entry.DocumentID,
			entry.ChunkIndex,
			sanitizeUTF8(entry.Text),
			sanitizeUTF8(entry.Title),
			sanitizeUTF8(entry.Authors),
			pgvector.NewVector(entry.Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %v", entry.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Query returns the k nearest chunks within a namespace, scored by cosine
// similarity. A non-nil documentIDs narrows the search to those papers.
func (idx *PgVectorIndex) Query(ctx context.Context, vector []float32, k int, namespace string, documentIDs []string) ([]models.RetrievalResult, error) {
	embedding := pgvector.NewVector(vector)

	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_index, content, title, authors,
			1 - (embedding <=> $1) AS score
		FROM %s
		WHERE owner_id = $2`, idx.config.TableName)

	args := []interface{}{embedding, namespace}
	if documentIDs != nil {
		query += " AND document_id = ANY($3)"
		args = append(args, documentIDs)
	}
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT %d", k)

	rows, err := idx.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &IndexError{Op: "query", Err: err}
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		var r models.RetrievalResult
		var score float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Text, &r.Title, &r.Authors, &score); err != nil {
			return nil, &IndexError{Op: "query", Err: fmt.Errorf("failed to scan row: %v", err)}
		}
		r.Score = float32(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &IndexError{Op: "query", Err: err}
	}

	return results, nil
}

// Delete removes every chunk of a document from a namespace.
func (idx *PgVectorIndex) Delete(ctx context.Context, documentID, namespace string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE owner_id = $1 AND document_id = $2", idx.config.TableName)
	if _, err := idx.pool.Exec(ctx, stmt, namespace, documentID); err != nil {
		return &IndexError{Op: "delete", Err: err}
	}
	return nil
}

func (idx *PgVectorIndex) Close() {
	if idx.pool != nil {
		idx.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
