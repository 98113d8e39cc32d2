package memory

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// noopTx satisfies pgx.Tx for stores that keep everything in process
// memory. Only Commit and Rollback are ever called on it; the embedded
// interface covers the rest of the surface.
type noopTx struct {
	pgx.Tx
}

func (noopTx) Commit(ctx context.Context) error   { return nil }
func (noopTx) Rollback(ctx context.Context) error { return nil }

func NewTx() pgx.Tx { return noopTx{} }
