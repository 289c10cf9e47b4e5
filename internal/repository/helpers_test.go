//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/testutil"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func newTestDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, title string) *domain.Document {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	d := domain.NewDocument(uuid.NewString(), title, "avisos", "descripción", now)
	d.Body = "Hola.\n\nMundo."
	d.ContentType = "text/plain"
	require.NoError(t, repo.Create(ctx, d))
	return d
}
