package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/pagination"
	"github.com/cloo-solutions/docindex/internal/service"
)

const documentColumns = `id, title, category, description, content_type, source_key, body, status, error, chunking, created_at, updated_at`

// DocumentRepository handles persistence of documents and their chunking metadata.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.Title, nullableString(d.Category), nullableString(d.Description), nullableString(d.ContentType),
		nullableString(d.SourceKey), nullableString(d.Body), d.Status, nullableString(d.Error), d.Chunking,
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepository) ListWithCursor(ctx context.Context, filter service.DocumentFilter, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var cursorTime, cursorID any
	if cursor != nil {
		cursorTime, cursorID = cursor.Timestamp, cursor.LastID
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE ($1::text IS NULL OR status = $1)
		   AND ($2::text IS NULL OR category = $2)
		   AND ($3::timestamptz IS NULL OR (created_at, id) < ($3, $4::text))
		 ORDER BY created_at DESC, id DESC
		 LIMIT $5`,
		nullableString(string(filter.Status)), nullableString(filter.Category), cursorTime, cursorID, limit+1,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Update replaces the document's descriptive fields and content.
func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET title = $1, category = $2, description = $3, content_type = $4, source_key = $5, body = $6,
		     status = $7, error = $8, updated_at = $9
		 WHERE id = $10`,
		d.Title, nullableString(d.Category), nullableString(d.Description), nullableString(d.ContentType),
		nullableString(d.SourceKey), nullableString(d.Body), d.Status, nullableString(d.Error), d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error = $2 WHERE id = $3`,
		status, nullableString(errMsg), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkIndexed stores the chunking metadata of a successful run.
func (r *DocumentRepository) MarkIndexed(ctx context.Context, id string, meta *domain.ChunkingMetadata) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error = NULL, chunking = $2 WHERE id = $3`,
		domain.DocumentStatusIndexed, meta, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListStaleIDs returns indexed documents whose chunking metadata is missing or
// was produced with a different version, size or overlap.
func (r *DocumentRepository) ListStaleIDs(ctx context.Context, version, maxChars, overlapSegments int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM documents
		 WHERE status = $1
		   AND (chunking IS NULL
		        OR (chunking->>'version')::int IS DISTINCT FROM $2
		        OR (chunking->>'max_chars')::int IS DISTINCT FROM $3
		        OR (chunking->>'overlap_segments')::int IS DISTINCT FROM $4)
		 ORDER BY created_at ASC`,
		domain.DocumentStatusIndexed, version, maxChars, overlapSegments,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var category, description, contentType, sourceKey, body, errMsg *string
	err := row.Scan(
		&d.ID, &d.Title, &category, &description, &contentType, &sourceKey, &body,
		&d.Status, &errMsg, &d.Chunking, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Category = derefString(category)
	d.Description = derefString(description)
	d.ContentType = derefString(contentType)
	d.SourceKey = derefString(sourceKey)
	d.Body = derefString(body)
	d.Error = derefString(errMsg)
	return &d, nil
}
