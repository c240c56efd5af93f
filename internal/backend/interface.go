// Package backend builds the transaction store (and its optional change
// event client) selected by DATA_BACKEND.
package backend

import (
	"context"
	"fmt"

	"gerenciador/internal/amqp"
	"gerenciador/internal/store"
)

// BackendType names a store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (t BackendType) String() string {
	return string(t)
}

func (t BackendType) IsValid() bool {
	return t == SQLiteBackend || t == MemoryBackend
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is what a Factory hands back. Events is nil when change
// events are disabled.
type BackendResult struct {
	Store   store.Store
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	if err := r.Cleanup(); err != nil {
		return fmt.Errorf("close %T: %w", r.Store, err)
	}
	return nil
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend seed directory
	DataDirectory string
}
