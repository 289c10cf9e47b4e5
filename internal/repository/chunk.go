package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/docindex/internal/domain"
)

const chunkColumns = `id, document_id, chunk_index, chunk_count, mode, title, category, description, content,
	embedding_status, token_count, chunking_version, updated_at`

// ChunkRepository is the pgvector-backed search index. Every chunk is one row
// keyed by its derived chunk id.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// UpsertChunk creates or replaces the row for c.ID. A chunk without an
// embedding is stored with a NULL vector.
func (r *ChunkRepository) UpsertChunk(ctx context.Context, c domain.IndexedChunk) error {
	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO document_chunks
			(id, document_id, chunk_index, chunk_count, mode, title, category, description, content,
			 embedding, embedding_status, token_count, chunking_version, updated_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			chunk_index = EXCLUDED.chunk_index,
			chunk_count = EXCLUDED.chunk_count,
			mode = EXCLUDED.mode,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			embedding_status = EXCLUDED.embedding_status,
			token_count = EXCLUDED.token_count,
			chunking_version = EXCLUDED.chunking_version,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.DocumentID, c.ChunkIndex, c.ChunkCount, c.Mode,
		nullableString(c.Title), nullableString(c.Category), nullableString(c.Description), c.Content,
		embedding, c.EmbeddingStatus, c.TokenCount, c.ChunkingVersion, updatedAt,
	)
	return err
}

// DeleteChunk removes the row for id. Deleting a missing id is not an error.
func (r *ChunkRepository) DeleteChunk(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE id = $1`, id)
	return err
}

// ListByDocument returns a document's chunks in index order, without vectors.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.IndexedChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks
		 WHERE document_id = $1
		 ORDER BY chunk_index ASC, id ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.IndexedChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchSimilar ranks embedded chunks by cosine similarity to embedding.
func (r *ChunkRepository) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.ChunkSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

// SearchText ranks chunks by full-text match on their content.
func (r *ChunkRepository) SearchText(ctx context.Context, query string, limit int) ([]domain.ChunkSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`,
		        ts_rank(to_tsvector('simple', content), plainto_tsquery('simple', $1))::float8 AS score
		 FROM document_chunks
		 WHERE to_tsvector('simple', content) @@ plainto_tsquery('simple', $1)
		 ORDER BY score DESC, id ASC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

func scanSearchResults(rows pgx.Rows) ([]domain.ChunkSearchResult, error) {
	var results []domain.ChunkSearchResult
	for rows.Next() {
		var res domain.ChunkSearchResult
		var title, category, description *string
		c := &res.Chunk
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.ChunkIndex, &c.ChunkCount, &c.Mode, &title, &category, &description,
			&c.Content, &c.EmbeddingStatus, &c.TokenCount, &c.ChunkingVersion, &c.UpdatedAt, &res.Score,
		); err != nil {
			return nil, err
		}
		c.Title = derefString(title)
		c.Category = derefString(category)
		c.Description = derefString(description)
		results = append(results, res)
	}
	return results, rows.Err()
}

func scanChunk(row pgx.Row) (domain.IndexedChunk, error) {
	var c domain.IndexedChunk
	var title, category, description *string
	err := row.Scan(
		&c.ID, &c.DocumentID, &c.ChunkIndex, &c.ChunkCount, &c.Mode, &title, &category, &description,
		&c.Content, &c.EmbeddingStatus, &c.TokenCount, &c.ChunkingVersion, &c.UpdatedAt,
	)
	if err != nil {
		return domain.IndexedChunk{}, err
	}
	c.Title = derefString(title)
	c.Category = derefString(category)
	c.Description = derefString(description)
	return c, nil
}
