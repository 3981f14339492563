package devkit

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

// HTTPScript is one canned reply. Scripts play in request order; the last
// one repeats once the list runs out.
type HTTPScript struct {
	StatusCode  int
	ContentType string
	Body        string
	Err         error
}

type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// FakeHTTPClient is a scripted HTTPDoer for adapter tests. It records every
// request it sees.
type FakeHTTPClient struct {
	mu       sync.Mutex
	scripts  []HTTPScript
	requests []RecordedRequest
}

func NewFakeHTTPClient(scripts ...HTTPScript) *FakeHTTPClient {
	return &FakeHTTPClient{scripts: append([]HTTPScript(nil), scripts...)}
}

func (c *FakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("devkit: fake http client is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}
	c.requests = append(c.requests, RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	index := len(c.requests) - 1
	script := HTTPScript{StatusCode: http.StatusOK, Body: "{}"}
	if index < len(c.scripts) {
		script = c.scripts[index]
	} else if len(c.scripts) > 0 {
		script = c.scripts[len(c.scripts)-1]
	}

	if script.Err != nil {
		return nil, script.Err
	}

	contentType := script.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	status := script.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       io.NopCloser(strings.NewReader(script.Body)),
	}, nil
}

func (c *FakeHTTPClient) Requests() []RecordedRequest {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RecordedRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

var _ core.HTTPDoer = (*FakeHTTPClient)(nil)
