// Package redis provides a Store implementation backed by Redis via Grove KV.
// Requests are stored as JSON entities, with a sorted-set recency index so
// replay walks them oldest first.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	"github.com/xraph/tether/id"
	"github.com/xraph/tether/internal/entity"
	"github.com/xraph/tether/pending"
	tetherstore "github.com/xraph/tether/store"
)

// compile-time interface check
var _ tetherstore.Store = (*Store)(nil)

// Store implements store.Store using Redis via Grove KV.
type Store struct {
	kv  *kv.Store
	rdb goredis.UniversalClient
}

// New creates a new Redis store backed by Grove KV.
func New(store *kv.Store) *Store {
	return &Store{
		kv:  store,
		rdb: redisdriver.UnwrapClient(store),
	}
}

// Migrate is a no-op for Redis (no schema migrations needed).
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Close closes the KV store.
func (s *Store) Close() error {
	return s.kv.Close()
}

// scoreFromTime converts a time.Time to a sorted set score (unix seconds as float64).
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isNotFound checks if an error is a KV not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound) || errors.Is(err, goredis.Nil)
}

// requestModel is the JSON representation stored in Redis.
type requestModel struct {
	ID        string              `json:"id"`
	ReqKey    string              `json:"req_key,omitempty"`
	Method    string              `json:"method"`
	URL       string              `json:"url"`
	Headers   map[string][]string `json:"headers,omitempty"`
	Body      []byte              `json:"body,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func toRequestModel(r *pending.Request) *requestModel {
	return &requestModel{
		ID:        r.ID.String(),
		ReqKey:    r.Key,
		Method:    r.Method,
		URL:       r.URL,
		Headers:   r.Header,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromRequestModel(m *requestModel) (*pending.Request, error) {
	reqID, err := id.ParseRequestID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse request ID %q: %w", m.ID, err)
	}

	var header http.Header
	if m.Headers != nil {
		header = http.Header(m.Headers)
	}

	return &pending.Request{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:     reqID,
		Key:    m.ReqKey,
		Method: m.Method,
		URL:    m.URL,
		Header: header,
		Body:   m.Body,
	}, nil
}

// setEntity encodes and stores a JSON entity under a KV key.
func (s *Store) setEntity(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("tether/redis: marshal entity: %w", err)
	}
	return s.kv.SetRaw(ctx, key, raw)
}

// getEntity retrieves and decodes a JSON entity from a KV key.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	raw, err := s.kv.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// SaveRequest persists a pending request.
func (s *Store) SaveRequest(ctx context.Context, req *pending.Request) error {
	m := toRequestModel(req)
	key := entityKey(prefixRequest, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("tether/redis: save request: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, zRequestAll, goredis.Z{
		Score:  scoreFromTime(m.CreatedAt),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("tether/redis: save request index: %w", err)
	}
	return nil
}

// ListRequests returns all pending requests, oldest first.
func (s *Store) ListRequests(ctx context.Context) ([]*pending.Request, error) {
	ids, err := s.rdb.ZRange(ctx, zRequestAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("tether/redis: list request index: %w", err)
	}

	result := make([]*pending.Request, 0, len(ids))
	for _, reqID := range ids {
		var m requestModel
		err := s.getEntity(ctx, entityKey(prefixRequest, reqID), &m)
		if err != nil {
			if isNotFound(err) {
				// Index can lag a delete; skip the stale member.
				continue
			}
			return nil, fmt.Errorf("tether/redis: get request %s: %w", reqID, err)
		}
		r, err := fromRequestModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

// DeleteRequest removes a pending request by ID. Idempotent.
func (s *Store) DeleteRequest(ctx context.Context, reqID id.ID) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixRequest, reqID.String()))
	pipe.ZRem(ctx, zRequestAll, reqID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tether/redis: delete request: %w", err)
	}
	return nil
}

// ClearRequests removes all pending requests.
func (s *Store) ClearRequests(ctx context.Context) error {
	ids, err := s.rdb.ZRange(ctx, zRequestAll, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("tether/redis: clear request index: %w", err)
	}

	pipe := s.rdb.Pipeline()
	for _, reqID := range ids {
		pipe.Del(ctx, entityKey(prefixRequest, reqID))
	}
	pipe.Del(ctx, zRequestAll)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tether/redis: clear requests: %w", err)
	}
	return nil
}

// CountRequests returns the number of pending requests.
func (s *Store) CountRequests(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zRequestAll).Result()
	if err != nil {
		return 0, fmt.Errorf("tether/redis: count requests: %w", err)
	}
	return count, nil
}
