package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-integrations/core"
)

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorUpstreamUnavailable {
		t.Fatalf("expected %q text code, got %q", core.ErrorUpstreamUnavailable, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), Request{})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ErrorInternal {
		t.Fatalf("unexpected envelope: %q/%q", rich.Category, rich.TextCode)
	}
}

func TestRESTAdapter_SendsHeadersAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t1" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected default accept header")
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("expected limit query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"1"}]}`))
	}))
	defer server.Close()

	var out struct {
		Results []map[string]any `json:"results"`
	}
	err := DoJSON(context.Background(), NewRESTAdapter(server.Client()), Request{
		URL:     server.URL + "/crm/v3/objects/contacts",
		Query:   map[string]string{"limit": "10"},
		Headers: map[string]string{"Authorization": "Bearer t1"},
	}, &out)
	if err != nil {
		t.Fatalf("do json: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0]["id"] != "1" {
		t.Fatalf("unexpected decoded body: %#v", out)
	}
}

func TestRESTAdapter_ClassifiesStatuses(t *testing.T) {
	cases := map[int]struct {
		textCode string
		auth     bool
	}{
		http.StatusUnauthorized:        {textCode: core.ErrorUnauthorized, auth: true},
		http.StatusForbidden:           {textCode: core.ErrorUnauthorized, auth: true},
		http.StatusTooManyRequests:     {textCode: core.ErrorUpstreamUnavailable},
		http.StatusInternalServerError: {textCode: core.ErrorUpstreamUnavailable},
	}
	for status, want := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"internal detail"}`))
		}))

		response, err := NewRESTAdapter(server.Client()).Do(context.Background(), Request{URL: server.URL})
		server.Close()

		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("status %d: expected go-errors envelope, got %v", status, err)
		}
		if rich.TextCode != want.textCode {
			t.Fatalf("status %d: expected %s, got %s", status, want.textCode, rich.TextCode)
		}
		if StatusCode(err) != status || IsAuthRejection(err) != want.auth {
			t.Fatalf("status %d: unexpected classification helpers", status)
		}
		if response.StatusCode != status {
			t.Fatalf("status %d: expected response to be returned alongside the error", status)
		}
	}
}

func TestDoJSON_InvalidBodyIsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := DoJSON(context.Background(), NewRESTAdapter(server.Client()), Request{URL: server.URL}, &out)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external decode error, got %v", err)
	}
}
