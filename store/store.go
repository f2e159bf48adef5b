// Package store defines the composite Store interface for all Tether persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them plus the lifecycle operations every driver shares.
package store

import (
	"context"

	"github.com/xraph/tether/pending"
)

// Store is the aggregate persistence interface.
type Store interface {
	pending.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
