package integrations

import (
	"testing"

	"github.com/goliatone/go-integrations/providers/airtable"
	"github.com/goliatone/go-integrations/providers/hubspot"
	"github.com/goliatone/go-integrations/providers/notion"
)

func TestBuiltInProviderFactories(t *testing.T) {
	cases := []struct {
		name string
		id   string
		fn   func() (string, error)
	}{
		{
			name: "hubspot",
			id:   hubspot.ProviderID,
			fn: func() (string, error) {
				provider, err := HubSpotProvider(hubspot.Config{ClientID: "client", ClientSecret: "secret"})
				if err != nil {
					return "", err
				}
				return provider.ID(), nil
			},
		},
		{
			name: "notion",
			id:   notion.ProviderID,
			fn: func() (string, error) {
				provider, err := NotionProvider(notion.Config{ClientID: "client", ClientSecret: "secret"})
				if err != nil {
					return "", err
				}
				return provider.ID(), nil
			},
		},
		{
			name: "airtable",
			id:   airtable.ProviderID,
			fn: func() (string, error) {
				provider, err := AirtableProvider(airtable.Config{ClientID: "client", ClientSecret: "secret"})
				if err != nil {
					return "", err
				}
				return provider.ID(), nil
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := tc.fn()
			if err != nil {
				t.Fatalf("build provider: %v", err)
			}
			if id != tc.id {
				t.Fatalf("expected provider id %q, got %q", tc.id, id)
			}
		})
	}
}

func TestBuildProvidersSkipsUnconfiguredClients(t *testing.T) {
	providers, err := BuildProviders(ProvidersConfig{
		HubSpot:  ClientCredentials{ClientID: "hs", ClientSecret: "hs-secret", RedirectURI: "http://localhost:3000"},
		Airtable: ClientCredentials{ClientID: "at", ClientSecret: "at-secret", RedirectURI: "http://localhost:3000"},
	})
	if err != nil {
		t.Fatalf("build providers: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected two providers, got %d", len(providers))
	}
	if providers[0].ID() != hubspot.ProviderID || providers[1].ID() != airtable.ProviderID {
		t.Fatalf("unexpected provider order: %q, %q", providers[0].ID(), providers[1].ID())
	}
}

func TestBuildProvidersSurfacesAdapterErrors(t *testing.T) {
	_, err := BuildProviders(ProvidersConfig{
		Airtable: ClientCredentials{ClientID: "at"},
	})
	if err == nil {
		t.Fatalf("expected airtable without secret to fail")
	}
}

func TestBuildProvidersEmpty(t *testing.T) {
	providers, err := BuildProviders(ProvidersConfig{})
	if err != nil || len(providers) != 0 {
		t.Fatalf("expected no providers, got %d err=%v", len(providers), err)
	}
}
