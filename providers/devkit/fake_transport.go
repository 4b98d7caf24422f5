package devkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/transport"
)

// TransportScript is a canned response. Non-2xx statuses are returned with a
// classified error the same way transport.RESTAdapter does.
type TransportScript struct {
	StatusCode int
	Body       string
	Err        error
}

// FakeTransportAdapter answers requests by method and URL path. Concurrent
// listing calls make ordering unreliable, so scripts are keyed by route.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	routes   map[string]TransportScript
	requests []transport.Request
}

func NewFakeTransportAdapter() *FakeTransportAdapter {
	return &FakeTransportAdapter{routes: map[string]TransportScript{}}
}

// Route registers a response for method and path. A blank method matches any.
func (a *FakeTransportAdapter) Route(method string, path string, script TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes[routeKey(method, path)] = script
	return a
}

func (a *FakeTransportAdapter) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	if a == nil {
		return transport.Response{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return transport.Response{}, err
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	a.mu.Lock()
	a.requests = append(a.requests, cloneRequest(req))
	script, ok := a.routes[routeKey(method, parsed.Path)]
	if !ok {
		script, ok = a.routes[routeKey("", parsed.Path)]
	}
	a.mu.Unlock()

	if !ok {
		script = TransportScript{StatusCode: http.StatusNotFound, Body: `{"message":"no route"}`}
	}
	if script.Err != nil {
		return transport.Response{}, script.Err
	}
	return replay(ctx, req, script)
}

// Requests returns the recorded requests in arrival order.
func (a *FakeTransportAdapter) Requests() []transport.Request {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]transport.Request, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneRequest(item))
	}
	return out
}

// RequestsTo filters recorded requests by URL path.
func (a *FakeTransportAdapter) RequestsTo(path string) []transport.Request {
	out := []transport.Request{}
	for _, req := range a.Requests() {
		parsed, err := url.Parse(req.URL)
		if err == nil && parsed.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func routeKey(method string, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

func cloneRequest(in transport.Request) transport.Request {
	out := in
	out.Headers = map[string]string{}
	out.Query = map[string]string{}
	out.Body = append([]byte(nil), in.Body...)
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	return out
}

// replay runs script through a real RESTAdapter so status classification and
// body limits match production.
func replay(ctx context.Context, req transport.Request, script TransportScript) (transport.Response, error) {
	return transport.NewRESTAdapter(scriptDoer{script: script}).Do(ctx, req)
}

type scriptDoer struct {
	script TransportScript
}

func (d scriptDoer) Do(req *http.Request) (*http.Response, error) {
	status := d.script.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(d.script.Body)),
		Request:    req,
	}, nil
}

var _ transport.Adapter = (*FakeTransportAdapter)(nil)
