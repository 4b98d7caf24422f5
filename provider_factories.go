package integrations

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/airtable"
	"github.com/goliatone/go-integrations/providers/hubspot"
	"github.com/goliatone/go-integrations/providers/notion"
)

func HubSpotProvider(cfg hubspot.Config) (core.Provider, error) {
	return hubspot.New(cfg)
}

func NotionProvider(cfg notion.Config) (core.Provider, error) {
	return notion.New(cfg)
}

func AirtableProvider(cfg airtable.Config) (core.Provider, error) {
	return airtable.New(cfg)
}

// ClientCredentials is the OAuth client registration for one provider.
type ClientCredentials struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri" mapstructure:"redirect_uri"`
}

func (c ClientCredentials) configured() bool {
	return strings.TrimSpace(c.ClientID) != ""
}

// ProvidersConfig holds the client registrations of the bundled adapters.
type ProvidersConfig struct {
	HubSpot  ClientCredentials `koanf:"hubspot" mapstructure:"hubspot"`
	Notion   ClientCredentials `koanf:"notion" mapstructure:"notion"`
	Airtable ClientCredentials `koanf:"airtable" mapstructure:"airtable"`
}

// BuildProviders constructs every adapter whose client id is set, in
// hubspot, notion, airtable order.
func BuildProviders(cfg ProvidersConfig) ([]core.Provider, error) {
	var out []core.Provider
	if cfg.HubSpot.configured() {
		hc := hubspot.DefaultConfig()
		hc.ClientID, hc.ClientSecret, hc.RedirectURI = cfg.HubSpot.ClientID, cfg.HubSpot.ClientSecret, cfg.HubSpot.RedirectURI
		provider, err := HubSpotProvider(hc)
		if err != nil {
			return nil, fmt.Errorf("integrations: hubspot: %w", err)
		}
		out = append(out, provider)
	}
	if cfg.Notion.configured() {
		nc := notion.DefaultConfig()
		nc.ClientID, nc.ClientSecret, nc.RedirectURI = cfg.Notion.ClientID, cfg.Notion.ClientSecret, cfg.Notion.RedirectURI
		provider, err := NotionProvider(nc)
		if err != nil {
			return nil, fmt.Errorf("integrations: notion: %w", err)
		}
		out = append(out, provider)
	}
	if cfg.Airtable.configured() {
		ac := airtable.DefaultConfig()
		ac.ClientID, ac.ClientSecret, ac.RedirectURI = cfg.Airtable.ClientID, cfg.Airtable.ClientSecret, cfg.Airtable.RedirectURI
		provider, err := AirtableProvider(ac)
		if err != nil {
			return nil, fmt.Errorf("integrations: airtable: %w", err)
		}
		out = append(out, provider)
	}
	return out, nil
}
