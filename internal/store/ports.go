// Package store defines the persistence port the ledger reads snapshots from
// and writes mutations through.
package store

import (
	"context"

	"gerenciador/internal/core"
)

// Ports for the transaction store.
type (
	// Reader loads transactions.
	Reader interface {
		// FetchByGroup returns a group's transactions, newest first (ties by
		// descending ID). An unknown group yields an empty slice.
		FetchByGroup(ctx context.Context, groupKey string) ([]core.Transaction, error)
		// GetByID returns core.ErrNotFound when id does not exist.
		GetByID(ctx context.Context, id int64) (core.Transaction, error)
	}

	// Writer applies mutations. Inserted transactions come back with ID and
	// CreatedAt set.
	Writer interface {
		InsertOne(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// InsertMany is all or nothing.
		InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
		// DeleteByID reports whether a row was removed.
		DeleteByID(ctx context.Context, id int64) (bool, error)
		// SetPaid reports whether a row was updated.
		SetPaid(ctx context.Context, id int64, paid bool) (bool, error)
	}

	// Store is the full transaction store.
	Store interface {
		Reader
		Writer
	}

	// HealthChecker is implemented by stores that can report readiness.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)
