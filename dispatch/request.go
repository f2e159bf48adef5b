package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/xraph/tether/pending"
)

// Request is one HTTP call handed to the dispatcher. The body is held as a
// byte slice rather than a reader so that every retry attempt replays it
// byte for byte. Headers are captured at call time, auth token included,
// and are never refreshed on replay.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest builds a dispatch request.
func NewRequest(method, url string, body []byte) *Request {
	return &Request{
		Method: method,
		URL:    url,
		Header: make(http.Header),
		Body:   body,
	}
}

// Key returns the retry-queue key for this request. The key carries no
// timestamp, so duplicate in-flight retries of the same endpoint always
// coalesce.
func (r *Request) Key() string {
	return r.Method + " " + r.URL
}

// httpRequest materializes one attempt as a *http.Request.
func (r *Request) httpRequest(ctx context.Context) (*http.Request, error) {
	var body *bytes.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("dispatch: build request %s %s: %w", r.Method, r.URL, err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// pendingRecord serializes this request for the durable store.
func (r *Request) pendingRecord(key string) *pending.Request {
	return &pending.Request{
		Key:    key,
		Method: r.Method,
		URL:    r.URL,
		Header: r.Header.Clone(),
		Body:   r.Body,
	}
}

// fromPending reconstructs a dispatch request from a stored record.
func fromPending(p *pending.Request) *Request {
	header := p.Header
	if header == nil {
		header = make(http.Header)
	}
	return &Request{
		Method: p.Method,
		URL:    p.URL,
		Header: header,
		Body:   p.Body,
	}
}
