package hubspot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/devkit"
)

const contactsBody = `{"results":[
  {"id":"101","properties":{"firstname":"Ada","lastname":"Lovelace","email":"ada@example.com","phone":"555","company":"Analytical","createdate":"2024-01-01T00:00:00Z","lastmodifieddate":"2024-02-01T00:00:00Z"}},
  {"id":"102","properties":{}}
]}`

const dealsBody = `{"results":[
  {"id":"201","properties":{"dealname":"Big Deal","amount":"5000","dealstage":"closedwon","closedate":"2024-03-01","pipeline":"default","hs_lastmodifieddate":"2024-03-02T00:00:00Z","hs_created_by_user_id":"77"}}
]}`

func newTestProvider(t *testing.T, adapter *devkit.FakeTransportAdapter) *Provider {
	t.Helper()
	provider, err := New(Config{
		ClientID:     "hs-client",
		ClientSecret: "hs-secret",
		RedirectURI:  "http://localhost:3000",
		Transport:    adapter,
	})
	if err != nil {
		t.Fatalf("new hubspot provider: %v", err)
	}
	return provider
}

func TestProvider_AuthorizeURLCarriesScopes(t *testing.T) {
	provider := newTestProvider(t, devkit.NewFakeTransportAdapter())
	req, err := provider.BuildAuthorizeRequest(core.AuthorizeInput{UserID: "u1", State: "hubspot-u1.abc"})
	if err != nil {
		t.Fatalf("build authorize request: %v", err)
	}
	if req.EndpointURL != AuthURL {
		t.Fatalf("unexpected endpoint %q", req.EndpointURL)
	}
	if got := req.ClientParams.Get("scope"); got != "contacts content crm.objects.contacts.read crm.objects.deals.read" {
		t.Fatalf("unexpected scope %q", got)
	}
	if req.ClientParams.Get("client_id") != "hs-client" || req.ClientParams.Get("redirect_uri") != "http://localhost:3000" {
		t.Fatalf("unexpected params %v", req.ClientParams)
	}
}

func TestProvider_ExchangeSendsSecretInForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("client_secret") != "hs-secret" || r.Header.Get("Authorization") != "" {
			t.Errorf("expected client secret in form body only")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":1800}`))
	}))
	defer server.Close()

	provider, err := New(Config{
		ClientID:     "hs-client",
		ClientSecret: "hs-secret",
		TokenURL:     server.URL,
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	record, err := provider.ExchangeCode(context.Background(), core.ExchangeInput{Code: "c"})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if record.AccessToken != "at" || record.RefreshToken != "rt" {
		t.Fatalf("unexpected record %#v", record)
	}
}

func TestProvider_ListItemsContactsBeforeDeals(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter().
		Route(http.MethodGet, "/crm/v3/objects/contacts", devkit.TransportScript{Body: contactsBody}).
		Route(http.MethodGet, "/crm/v3/objects/deals", devkit.TransportScript{Body: dealsBody})
	provider := newTestProvider(t, adapter)

	result, err := provider.ListItems(context.Background(), "tok")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(result.Failures) != 0 || len(result.Items) != 3 {
		t.Fatalf("unexpected result %#v", result)
	}
	if result.Items[0].ID != "101" || result.Items[1].ID != "102" || result.Items[2].ID != "201" {
		t.Fatalf("unexpected order %#v", result.Items)
	}
	for _, path := range []string{"/crm/v3/objects/contacts", "/crm/v3/objects/deals"} {
		reqs := adapter.RequestsTo(path)
		if len(reqs) != 1 {
			t.Fatalf("expected one request to %s, got %d", path, len(reqs))
		}
		if reqs[0].Query["limit"] != "10" || reqs[0].Headers["Authorization"] != "Bearer tok" {
			t.Fatalf("unexpected request %#v", reqs[0])
		}
	}
}

func TestProvider_ListItemsPartialFailure(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter().
		Route(http.MethodGet, "/crm/v3/objects/contacts", devkit.TransportScript{StatusCode: http.StatusInternalServerError, Body: `{}`}).
		Route(http.MethodGet, "/crm/v3/objects/deals", devkit.TransportScript{Body: dealsBody})
	provider := newTestProvider(t, adapter)

	result, err := provider.ListItems(context.Background(), "tok")
	if err != nil {
		t.Fatalf("expected partial result, got %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Kind != KindDeal {
		t.Fatalf("expected deals to survive, got %#v", result.Items)
	}
	if len(result.Failures) != 1 || result.Failures[0].Name != "contacts" {
		t.Fatalf("unexpected failures %#v", result.Failures)
	}
}

func TestProvider_ListItemsRejectedToken(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter().
		Route(http.MethodGet, "/crm/v3/objects/contacts", devkit.TransportScript{StatusCode: http.StatusUnauthorized, Body: `{}`}).
		Route(http.MethodGet, "/crm/v3/objects/deals", devkit.TransportScript{StatusCode: http.StatusUnauthorized, Body: `{}`})
	provider := newTestProvider(t, adapter)

	if _, err := provider.ListItems(context.Background(), "tok"); !core.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
