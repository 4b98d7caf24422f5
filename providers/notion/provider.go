package notion

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/normalize"
	"github.com/goliatone/go-integrations/providers"
	"github.com/goliatone/go-integrations/transport"
)

const (
	ProviderID    = "notion"
	AuthURL       = "https://api.notion.com/v1/oauth/authorize"
	TokenURL      = "https://api.notion.com/v1/oauth/token"
	APIBaseURL    = "https://api.notion.com"
	APIVersion    = "2022-06-28"
	versionHeader = "Notion-Version"

	KindPage     = "page"
	KindDatabase = "database"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	APIVersion   string
	HTTPClient   transport.HTTPDoer
	Transport    transport.Adapter
	Now          func() time.Time
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		APIVersion: APIVersion,
	}
}

// Provider searches the workspace for pages and databases. Notion access
// tokens do not expire and carry no refresh token.
type Provider struct {
	*providers.OAuth2Client
	apiBaseURL string
	apiVersion string
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
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaults.APIVersion
	}
	client, err := providers.NewOAuth2Client(providers.OAuth2Config{
		ID:            ProviderID,
		AuthURL:       cfg.AuthURL,
		TokenURL:      cfg.TokenURL,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURI:   cfg.RedirectURI,
		AuthParams:    map[string]string{"owner": "user"},
		ClientAuth:    providers.ClientAuthBasic,
		TokenEncoding: providers.TokenEncodingJSON,
		HTTPClient:    cfg.HTTPClient,
		Transport:     cfg.Transport,
		Now:           cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{
		OAuth2Client: client,
		apiBaseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		apiVersion:   cfg.APIVersion,
		table:        newTable(),
	}, nil
}

// Refresh always fails as an invalid credential; a stored Notion record never
// has a refresh token, so reaching this means the record is not usable.
func (p *Provider) Refresh(context.Context, string) (core.CredentialRecord, error) {
	return core.CredentialRecord{}, core.NewUpstreamAuthError(core.UpstreamFailure{
		Provider: ProviderID,
		Message:  "Notion does not support token refresh",
	})
}

func (p *Provider) ListItems(ctx context.Context, accessToken string) (core.ListResult, error) {
	return providers.CollectListing(ctx, ProviderID, 2,
		p.searchCall("pages", KindPage, accessToken),
		p.searchCall("databases", KindDatabase, accessToken),
	)
}

func (p *Provider) Normalize(raw core.RawItem) core.IntegrationItem {
	return p.table.Normalize(raw)
}

type searchRequest struct {
	Filter searchFilter `json:"filter"`
}

type searchFilter struct {
	Value    string `json:"value"`
	Property string `json:"property"`
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
}

func (p *Provider) searchCall(name string, object string, accessToken string) providers.SubCall {
	return providers.SubCall{
		Name: name,
		Run: func(ctx context.Context) ([]core.RawItem, error) {
			body, err := transport.JSONBody(searchRequest{Filter: searchFilter{Value: object, Property: "object"}})
			if err != nil {
				return nil, err
			}
			var response searchResponse
			err = transport.DoJSON(ctx, p.Transport(), transport.Request{
				Method: http.MethodPost,
				URL:    p.apiBaseURL + "/v1/search",
				Headers: providers.BearerHeaders(accessToken, map[string]string{
					versionHeader:  p.apiVersion,
					"Content-Type": "application/json",
				}),
				Body: body,
			}, &response)
			if err != nil {
				return nil, err
			}
			items := make([]core.RawItem, 0, len(response.Results))
			for _, result := range response.Results {
				fields := normalize.Fields(result)
				kind := fields.StringOr(object, "object")
				items = append(items, core.RawItem{Kind: kind, ID: fields.String("id"), Fields: result})
			}
			return items, nil
		},
	}
}

var _ core.Provider = (*Provider)(nil)
