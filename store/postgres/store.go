// Package postgres provides a Store implementation backed by PostgreSQL via
// the Grove ORM, for service-side deployments where many clients share one
// durable pending queue.
package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tether/id"
	"github.com/xraph/tether/pending"
	tetherstore "github.com/xraph/tether/store"
)

// compile-time interface check
var _ tetherstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tether/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tether/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRequest persists a pending request.
func (s *Store) SaveRequest(ctx context.Context, req *pending.Request) error {
	m := toRequestModel(req)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

// ListRequests returns all pending requests, oldest first.
func (s *Store) ListRequests(ctx context.Context) ([]*pending.Request, error) {
	var models []requestModel
	if err := s.pg.NewSelect(&models).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*pending.Request, len(models))
	for i := range models {
		r, err := fromRequestModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// DeleteRequest removes a pending request by ID. Idempotent.
func (s *Store) DeleteRequest(ctx context.Context, reqID id.ID) error {
	_, err := s.pg.NewDelete((*requestModel)(nil)).
		Where("id = ?", reqID.String()).
		Exec(ctx)
	return err
}

// ClearRequests removes all pending requests.
func (s *Store) ClearRequests(ctx context.Context) error {
	_, err := s.pg.NewDelete((*requestModel)(nil)).
		Where("1 = 1").
		Exec(ctx)
	return err
}

// CountRequests returns the number of pending requests.
func (s *Store) CountRequests(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*requestModel)(nil)).
		Count(ctx)
	return count, err
}
