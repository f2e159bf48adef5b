package mongo

import (
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

	ID        string              `grove:"id,pk"      bson:"_id"`
	ReqKey    string              `grove:"req_key"    bson:"req_key"`
	Method    string              `grove:"method"     bson:"method"`
	URL       string              `grove:"url"        bson:"url"`
	Headers   map[string][]string `grove:"headers"    bson:"headers,omitempty"`
	Body      []byte              `grove:"body"       bson:"body,omitempty"`
	CreatedAt time.Time           `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time           `grove:"updated_at" bson:"updated_at"`
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
