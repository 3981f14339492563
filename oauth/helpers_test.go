package oauth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{values: map[string][]byte{}}
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *memStore) Consume(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if ok {
		delete(s.values, key)
	}
	return value, ok, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

type recordedRequest struct {
	Method      string
	URL         string
	ContentType string
	AuthHeader  string
	Body        string
}

type fakeDoer struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses []*http.Response
	err       error
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	d.requests = append(d.requests, recordedRequest{
		Method:      req.Method,
		URL:         req.URL.String(),
		ContentType: req.Header.Get("Content-Type"),
		AuthHeader:  req.Header.Get("Authorization"),
		Body:        body,
	})

	if d.err != nil {
		return nil, d.err
	}
	if len(d.responses) == 0 {
		return jsonResponse(http.StatusOK, `{"access_token":"tok"}`), nil
	}
	response := d.responses[0]
	d.responses = d.responses[1:]
	return response, nil
}

func (d *fakeDoer) lastRequest() recordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.requests) == 0 {
		return recordedRequest{}
	}
	return d.requests[len(d.requests)-1]
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testConfig(store *memStore, doer *fakeDoer) Config {
	return Config{
		Provider:     "notion",
		AuthURL:      "https://example.com/authorize",
		TokenURL:     "https://example.com/token",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "http://localhost:8000/integrations/notion/callback",
		Scopes:       []string{"read"},
		StateTTL:     time.Minute,
		Store:        store,
		HTTPClient:   doer,
	}
}
