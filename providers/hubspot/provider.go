package hubspot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/normalize"
	"github.com/goliatone/go-integrations/providers"
	"github.com/goliatone/go-integrations/transport"
)

const (
	ProviderID = "hubspot"
	AuthURL    = "https://app.hubspot.com/oauth/authorize"
	TokenURL   = "https://api.hubapi.com/oauth/v1/token"
	APIBaseURL = "https://api.hubapi.com"

	KindContact = "contact"
	KindDeal    = "deal"

	defaultPageSize = 10
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Scopes       []string
	PageSize     int
	HTTPClient   transport.HTTPDoer
	Transport    transport.Adapter
	Now          func() time.Time
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		Scopes:     []string{"contacts", "content", "crm.objects.contacts.read", "crm.objects.deals.read"},
		PageSize:   defaultPageSize,
	}
}

// Provider lists CRM contacts and deals.
type Provider struct {
	*providers.OAuth2Client
	apiBaseURL string
	pageSize   int
	table      normalize.Table
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
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	client, err := providers.NewOAuth2Client(providers.OAuth2Config{
		ID:           ProviderID,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		ClientAuth:   providers.ClientAuthInBody,
		HTTPClient:   cfg.HTTPClient,
		Transport:    cfg.Transport,
		Now:          cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{
		OAuth2Client: client,
		apiBaseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		pageSize:     cfg.PageSize,
		table:        newTable(),
	}, nil
}

// ListItems fetches contacts and deals concurrently; contacts come first.
func (p *Provider) ListItems(ctx context.Context, accessToken string) (core.ListResult, error) {
	return providers.CollectListing(ctx, ProviderID, 2,
		p.objectsCall("contacts", KindContact, accessToken),
		p.objectsCall("deals", KindDeal, accessToken),
	)
}

func (p *Provider) Normalize(raw core.RawItem) core.IntegrationItem {
	return p.table.Normalize(raw)
}

type objectsPage struct {
	Results []map[string]any `json:"results"`
}

func (p *Provider) objectsCall(objectType string, kind string, accessToken string) providers.SubCall {
	return providers.SubCall{
		Name: objectType,
		Run: func(ctx context.Context) ([]core.RawItem, error) {
			var page objectsPage
			err := providers.GetJSON(ctx, p.Transport(),
				p.apiBaseURL+"/crm/v3/objects/"+objectType,
				accessToken,
				map[string]string{"limit": strconv.Itoa(p.pageSize)},
				&page,
			)
			if err != nil {
				return nil, err
			}
			items := make([]core.RawItem, 0, len(page.Results))
			for _, result := range page.Results {
				items = append(items, core.RawItem{
					Kind:   kind,
					ID:     normalize.Fields(result).String("id"),
					Fields: result,
				})
			}
			return items, nil
		},
	}
}

var _ core.Provider = (*Provider)(nil)
