package airtable

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/normalize"
	"github.com/goliatone/go-integrations/providers"
	"github.com/goliatone/go-integrations/transport"
)

const (
	ProviderID = "airtable"
	AuthURL    = "https://airtable.com/oauth2/v1/authorize"
	TokenURL   = "https://airtable.com/oauth2/v1/token"
	APIBaseURL = "https://api.airtable.com"

	KindBase  = "base"
	KindTable = "table"

	fieldBaseID   = "base_id"
	fieldBaseName = "base_name"

	defaultTableConcurrency = 4
)

type Config struct {
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	AuthURL          string
	TokenURL         string
	APIBaseURL       string
	Scopes           []string
	TableConcurrency int
	HTTPClient       transport.HTTPDoer
	Transport        transport.Adapter
	Now              func() time.Time
}

func DefaultConfig() Config {
	return Config{
		AuthURL:          AuthURL,
		TokenURL:         TokenURL,
		APIBaseURL:       APIBaseURL,
		Scopes:           []string{"data.records:read", "data.records:write", "schema.bases:read"},
		TableConcurrency: defaultTableConcurrency,
	}
}

// Provider lists bases and their tables. Authorization uses PKCE with a
// verifier derived from the state.
type Provider struct {
	*providers.OAuth2Client
	apiBaseURL       string
	tableConcurrency int
	table            normalize.Table
}

func New(cfg Config) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	if cfg.TableConcurrency <= 0 {
		cfg.TableConcurrency = defaults.TableConcurrency
	}
	client, err := providers.NewOAuth2Client(providers.OAuth2Config{
		ID:           ProviderID,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		ClientAuth:   providers.ClientAuthBasic,
		PKCE:         true,
		HTTPClient:   cfg.HTTPClient,
		Transport:    cfg.Transport,
		Now:          cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{
		OAuth2Client:     client,
		apiBaseURL:       strings.TrimRight(cfg.APIBaseURL, "/"),
		tableConcurrency: cfg.TableConcurrency,
		table:            newTable(),
	}, nil
}

type basesPage struct {
	Bases []map[string]any `json:"bases"`
}

type tablesPage struct {
	Tables []map[string]any `json:"tables"`
}

// ListItems returns every base followed by its tables. A base whose tables
// cannot be read is still listed and its failure is reported.
func (p *Provider) ListItems(ctx context.Context, accessToken string) (core.ListResult, error) {
	var bases basesPage
	if err := providers.GetJSON(ctx, p.Transport(), p.apiBaseURL+"/v0/meta/bases", accessToken, nil, &bases); err != nil {
		return core.ListResult{}, providers.ListingFailure(ProviderID, []core.SubCallFailure{{Name: "bases", Err: err}})
	}

	baseItems := make([]core.RawItem, 0, len(bases.Bases))
	calls := make([]providers.SubCall, 0, len(bases.Bases))
	for _, base := range bases.Bases {
		fields := normalize.Fields(base)
		baseID := fields.String("id")
		baseItems = append(baseItems, core.RawItem{Kind: KindBase, ID: baseID, Fields: base})
		calls = append(calls, p.tablesCall(baseID, fields.String("name"), accessToken))
	}
	tables := providers.RunSubCalls(ctx, ProviderID, p.tableConcurrency, calls...)

	byBase := make(map[string][]core.RawItem, len(baseItems))
	for _, item := range tables.Items {
		baseID := normalize.Fields(item.Fields).String(fieldBaseID)
		byBase[baseID] = append(byBase[baseID], item)
	}
	result := core.ListResult{Failures: tables.Failures}
	for _, base := range baseItems {
		result.Items = append(result.Items, base)
		result.Items = append(result.Items, byBase[base.ID]...)
	}
	return result, nil
}

func (p *Provider) Normalize(raw core.RawItem) core.IntegrationItem {
	return p.table.Normalize(raw)
}

func (p *Provider) tablesCall(baseID string, baseName string, accessToken string) providers.SubCall {
	return providers.SubCall{
		Name: "tables:" + baseID,
		Run: func(ctx context.Context) ([]core.RawItem, error) {
			var page tablesPage
			endpoint := p.apiBaseURL + "/v0/meta/bases/" + url.PathEscape(baseID) + "/tables"
			if err := providers.GetJSON(ctx, p.Transport(), endpoint, accessToken, nil, &page); err != nil {
				return nil, err
			}
			items := make([]core.RawItem, 0, len(page.Tables))
			for _, table := range page.Tables {
				fields := make(map[string]any, len(table)+2)
				for key, value := range table {
					fields[key] = value
				}
				fields[fieldBaseID] = baseID
				fields[fieldBaseName] = baseName
				items = append(items, core.RawItem{
					Kind:   KindTable,
					ID:     normalize.Fields(table).String("id"),
					Fields: fields,
				})
			}
			return items, nil
		},
	}
}

var _ core.Provider = (*Provider)(nil)
