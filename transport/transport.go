// Package transport executes the outbound REST calls that provider adapters
// make against third-party listing APIs.
package transport

import (
	"context"
	"net/http"
	"time"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is one outbound call. Query values are merged into URL.
type Request struct {
	Method               string
	URL                  string
	Query                map[string]string
	Headers              map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

// Adapter is implemented by RESTAdapter and by test doubles.
type Adapter interface {
	Do(ctx context.Context, req Request) (Response, error)
}
