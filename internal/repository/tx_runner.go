package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docindex/internal/service"
)

// TxRunner runs document and job writes in one pgx transaction, so a
// document is never stored without the index job that processes it.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise, including
// when fn panics. Errors from fn are returned unwrapped so domain errors
// keep their identity.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		fnErr = fn(&txRepos{tx: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Documents() service.DocumentRepositoryInterface {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r *txRepos) IndexJobs() service.IndexJobRepositoryInterface {
	return NewIndexJobRepositoryWithTx(r.tx)
}
