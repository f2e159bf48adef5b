// Package mongo provides a Store implementation backed by MongoDB via the
// Grove ORM.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tether/id"
	"github.com/xraph/tether/pending"
	tetherstore "github.com/xraph/tether/store"
)

// colPending is the pending-requests collection name.
const colPending = "tether_pending_requests"

// Compile-time interface check.
var _ tetherstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the pending-requests indexes.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "req_key", Value: 1}}},
	}

	if _, err := s.mdb.Collection(colPending).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("tether/mongo: migrate %s indexes: %w", colPending, err)
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("tether/mongo: save request: %w", err)
	}
	return nil
}

// ListRequests returns all pending requests, oldest first.
func (s *Store) ListRequests(ctx context.Context) ([]*pending.Request, error) {
	var models []requestModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("tether/mongo: list requests: %w", err)
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
	if _, err := s.mdb.NewDelete((*requestModel)(nil)).
		Filter(bson.M{"_id": reqID.String()}).
		Exec(ctx); err != nil {
		return fmt.Errorf("tether/mongo: delete request: %w", err)
	}
	return nil
}

// ClearRequests removes all pending requests.
func (s *Store) ClearRequests(ctx context.Context) error {
	if _, err := s.mdb.NewDelete((*requestModel)(nil)).
		Filter(bson.M{}).
		Exec(ctx); err != nil {
		return fmt.Errorf("tether/mongo: clear requests: %w", err)
	}
	return nil
}

// CountRequests returns the number of pending requests.
func (s *Store) CountRequests(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*requestModel)(nil)).
		Filter(bson.M{}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("tether/mongo: count requests: %w", err)
	}
	return count, nil
}
