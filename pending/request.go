package pending

import (
	"net/http"

	"github.com/xraph/tether/id"
	"github.com/xraph/tether/internal/entity"
)

// Request is one mutating HTTP call that could not be completed because
// connectivity dropped. It survives a process restart and is deleted only
// after a matching request succeeds on retry, or via an explicit clear.
type Request struct {
	entity.Entity

	// ID is the unique TypeID for this pending request.
	ID id.ID `json:"id"`

	// Key is the retry-queue key the request was enqueued under
	// ("METHOD url"). Deletion on retry success matches by Key, so two
	// different pending calls to the same endpoint cannot shadow each
	// other's records.
	Key string `json:"key"`

	// Method is the HTTP verb. Only mutating verbs are persisted.
	Method string `json:"method"`

	// URL is the absolute target.
	URL string `json:"url"`

	// Header holds the headers captured at call time, including the auth
	// token if one was present. Headers are replayed as captured, never
	// refreshed.
	Header http.Header `json:"header"`

	// Body is the opaque serialized payload. The store never parses it.
	Body []byte `json:"body"`
}

// Mutating reports whether the given HTTP method changes server state.
// GET and HEAD calls are never persisted; retrying them durably buys
// nothing and replaying them can only waste bandwidth.
func Mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Matches reports whether this record corresponds to the given retry.
// Records written by current versions carry the queue key; records from
// older snapshots may not, and fall back to url+method equality.
func (r *Request) Matches(key, method, url string) bool {
	if r.Key != "" {
		return r.Key == key
	}
	return r.Method == method && r.URL == url
}
