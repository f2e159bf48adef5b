package sqlite

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tether/id"
	"github.com/xraph/tether/internal/entity"
	"github.com/xraph/tether/pending"
)

type requestModel struct {
	grove.BaseModel `grove:"table:tether_pending_requests"`

	ID        string    `grove:"id,pk"`
	ReqKey    string    `grove:"req_key"`
	Method    string    `grove:"method"`
	URL       string    `grove:"url"`
	Headers   string    `grove:"headers"` // JSON object
	Body      []byte    `grove:"body"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toRequestModel(r *pending.Request) *requestModel {
	headers, _ := json.Marshal(r.Header) //nolint:errcheck // best-effort

	return &requestModel{
		ID:        r.ID.String(),
		ReqKey:    r.Key,
		Method:    r.Method,
		URL:       r.URL,
		Headers:   string(headers),
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
	if m.Headers != "" {
		_ = json.Unmarshal([]byte(m.Headers), &header) //nolint:errcheck // best-effort
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
