package airtable

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/devkit"
)

func TestProvider_PKCERoundTrip(t *testing.T) {
	var verifier, authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		verifier = r.PostForm.Get("code_verifier")
		authorization = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"refresh_expires_in":5184000}`))
	}))
	defer server.Close()

	provider, err := New(Config{
		ClientID:     "at-client",
		ClientSecret: "at-secret",
		RedirectURI:  "http://localhost:3000",
		TokenURL:     server.URL,
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("new airtable provider: %v", err)
	}
	state := "airtable-u1.0123456789abcdef"
	req, err := provider.BuildAuthorizeRequest(core.AuthorizeInput{UserID: "u1", State: state})
	if err != nil {
		t.Fatalf("build authorize request: %v", err)
	}
	if req.ClientParams.Get("scope") != "data.records:read data.records:write schema.bases:read" {
		t.Fatalf("unexpected scope %q", req.ClientParams.Get("scope"))
	}
	if req.ClientParams.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256 challenge")
	}

	if _, err := provider.ExchangeCode(context.Background(), core.ExchangeInput{Code: "c1", State: state}); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if oauth2.S256ChallengeFromVerifier(verifier) != req.ClientParams.Get("code_challenge") {
		t.Fatalf("verifier does not match the challenge")
	}
	if authorization != "Basic "+base64.StdEncoding.EncodeToString([]byte("at-client:at-secret")) {
		t.Fatalf("unexpected authorization %q", authorization)
	}
}

func TestProvider_ListItemsBasesThenTables(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter().
		Route(http.MethodGet, "/v0/meta/bases", devkit.TransportScript{Body: `{"bases":[
			{"id":"app1","name":"CRM","permissionLevel":"create"},
			{"id":"app2","name":"Ops","permissionLevel":"read"}
		]}`}).
		Route(http.MethodGet, "/v0/meta/bases/app1/tables", devkit.TransportScript{Body: `{"tables":[
			{"id":"tbl1","name":"Leads","primaryFieldId":"fld1","fields":[{"id":"fld1"},{"id":"fld2"}]}
		]}`}).
		Route(http.MethodGet, "/v0/meta/bases/app2/tables", devkit.TransportScript{StatusCode: http.StatusForbidden, Body: `{}`})

	provider, err := New(Config{ClientID: "at-client", ClientSecret: "at-secret", Transport: adapter})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	result, err := provider.ListItems(context.Background(), "tok")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	ids := []string{}
	for _, item := range result.Items {
		ids = append(ids, item.ID)
	}
	if len(ids) != 3 || ids[0] != "app1" || ids[1] != "tbl1" || ids[2] != "app2" {
		t.Fatalf("unexpected items %v", ids)
	}
	if len(result.Failures) != 1 || result.Failures[0].Name != "tables:app2" {
		t.Fatalf("expected app2 table failure, got %#v", result.Failures)
	}

	table := provider.Normalize(result.Items[1])
	if table.URL != "https://airtable.com/app1/tbl1" || table.Metadata["base_id"] != "app1" || table.Metadata["field_count"] != "2" {
		t.Fatalf("unexpected table item %#v", table)
	}
}

func TestProvider_ListItemsBasesRejected(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter().
		Route(http.MethodGet, "/v0/meta/bases", devkit.TransportScript{StatusCode: http.StatusUnauthorized, Body: `{}`})
	provider, err := New(Config{ClientID: "at-client", ClientSecret: "at-secret", Transport: adapter})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.ListItems(context.Background(), "tok"); !core.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestProvider_ListItemsBasesUnavailable(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter().
		Route(http.MethodGet, "/v0/meta/bases", devkit.TransportScript{StatusCode: http.StatusServiceUnavailable, Body: `{}`})
	provider, err := New(Config{ClientID: "at-client", ClientSecret: "at-secret", Transport: adapter})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.ListItems(context.Background(), "tok"); !core.IsTransientUpstream(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNew_RequiresSecretForPKCE(t *testing.T) {
	if _, err := New(Config{ClientID: "at-client"}); err == nil {
		t.Fatalf("expected missing client secret to fail")
	}
}
