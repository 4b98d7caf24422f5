package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/transport"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

// ClientAuthStyle selects how client credentials reach the token endpoint.
type ClientAuthStyle int

const (
	// ClientAuthInBody sends client_id and client_secret as form fields.
	ClientAuthInBody ClientAuthStyle = iota
	// ClientAuthBasic sends them as an HTTP Basic authorization header.
	ClientAuthBasic
)

// TokenEncoding selects the token request body encoding.
type TokenEncoding int

const (
	TokenEncodingForm TokenEncoding = iota
	TokenEncodingJSON
)

type OAuth2Config struct {
	ID           string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// AuthParams are appended to the authorization URL, e.g. owner=user.
	AuthParams          map[string]string
	ClientAuth          ClientAuthStyle
	TokenEncoding       TokenEncoding
	PKCE                bool
	TokenRequestTimeout time.Duration
	HTTPClient          transport.HTTPDoer
	Transport           transport.Adapter
	Now                 func() time.Time
}

// OAuth2Client implements the authorization half of core.Provider. Adapters
// embed it and add listing and normalization.
type OAuth2Client struct {
	cfg       OAuth2Config
	oauth     oauth2.Config
	transport transport.Adapter
}

func NewOAuth2Client(cfg OAuth2Config) (*OAuth2Client, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", cfg.ID)
	}
	if cfg.PKCE && cfg.ClientSecret == "" {
		return nil, fmt.Errorf("providers: client secret is required for pkce provider %q", cfg.ID)
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	adapter := cfg.Transport
	if adapter == nil {
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: cfg.TokenRequestTimeout}
		}
		adapter = transport.NewRESTAdapter(client)
	}

	return &OAuth2Client{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       append([]string(nil), cfg.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		transport: adapter,
	}, nil
}

func (c *OAuth2Client) ID() string {
	if c == nil {
		return ""
	}
	return c.cfg.ID
}

// Transport exposes the adapter so listing calls share the token client.
func (c *OAuth2Client) Transport() transport.Adapter {
	if c == nil {
		return nil
	}
	return c.transport
}

func (c *OAuth2Client) Now() time.Time {
	return c.cfg.Now().UTC()
}

func (c *OAuth2Client) BuildAuthorizeRequest(in core.AuthorizeInput) (core.AuthorizationRequest, error) {
	if c == nil {
		return core.AuthorizationRequest{}, fmt.Errorf("providers: oauth2 client is nil")
	}
	state := strings.TrimSpace(in.State)
	if state == "" {
		return core.AuthorizationRequest{}, fmt.Errorf("providers: state is required")
	}
	options := make([]oauth2.AuthCodeOption, 0, len(c.cfg.AuthParams)+1)
	for key, value := range c.cfg.AuthParams {
		options = append(options, oauth2.SetAuthURLParam(key, value))
	}
	if c.cfg.PKCE {
		options = append(options, oauth2.S256ChallengeOption(c.codeVerifier(state)))
	}

	parsed, err := url.Parse(c.oauth.AuthCodeURL(state, options...))
	if err != nil {
		return core.AuthorizationRequest{}, fmt.Errorf("providers: build auth url: %w", err)
	}
	params := parsed.Query()
	parsed.RawQuery = ""
	return core.AuthorizationRequest{
		EndpointURL:  parsed.String(),
		ClientParams: params,
		Scopes:       append([]string(nil), c.cfg.Scopes...),
	}, nil
}

func (c *OAuth2Client) ExchangeCode(ctx context.Context, in core.ExchangeInput) (core.CredentialRecord, error) {
	if c == nil {
		return core.CredentialRecord{}, fmt.Errorf("providers: oauth2 client is nil")
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return core.CredentialRecord{}, core.NewBadRequestError("authorization code is required")
	}
	params := map[string]string{
		"grant_type": "authorization_code",
		"code":       code,
	}
	if c.cfg.RedirectURI != "" {
		params["redirect_uri"] = c.cfg.RedirectURI
	}
	if c.cfg.PKCE {
		params["code_verifier"] = c.codeVerifier(in.State)
	}
	return c.requestToken(ctx, params, "Error exchanging code for token")
}

func (c *OAuth2Client) Refresh(ctx context.Context, refreshToken string) (core.CredentialRecord, error) {
	if c == nil {
		return core.CredentialRecord{}, fmt.Errorf("providers: oauth2 client is nil")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.CredentialRecord{}, core.NewUpstreamAuthError(core.UpstreamFailure{
			Provider: c.cfg.ID,
			Message:  "refresh token is required",
		})
	}
	return c.requestToken(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}, "Error refreshing token")
}

// codeVerifier derives the PKCE verifier from the state so the callback can
// recompute it without extra storage.
func (c *OAuth2Client) codeVerifier(state string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.ClientSecret))
	_, _ = mac.Write([]byte(strings.TrimSpace(state)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *OAuth2Client) requestToken(ctx context.Context, params map[string]string, message string) (core.CredentialRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	headers := map[string]string{"Accept": "application/json"}
	switch c.cfg.ClientAuth {
	case ClientAuthBasic:
		headers["Authorization"] = "Basic " + basicCredentials(c.cfg.ClientID, c.cfg.ClientSecret)
	default:
		params["client_id"] = c.cfg.ClientID
		if c.cfg.ClientSecret != "" {
			params["client_secret"] = c.cfg.ClientSecret
		}
	}

	var body []byte
	switch c.cfg.TokenEncoding {
	case TokenEncodingJSON:
		encoded, err := transport.JSONBody(params)
		if err != nil {
			return core.CredentialRecord{}, err
		}
		body = encoded
		headers["Content-Type"] = "application/json"
	default:
		form := url.Values{}
		for key, value := range params {
			form.Set(key, value)
		}
		body = []byte(form.Encode())
		headers["Content-Type"] = "application/x-www-form-urlencoded"
	}

	response, err := c.transport.Do(ctx, transport.Request{
		Method:               http.MethodPost,
		URL:                  c.cfg.TokenURL,
		Headers:              headers,
		Body:                 body,
		Timeout:              c.cfg.TokenRequestTimeout,
		MaxResponseBodyBytes: maxTokenResponseBodyBytes,
	})
	if err != nil && response.StatusCode == 0 {
		return core.CredentialRecord{}, core.NewUpstreamAuthError(core.UpstreamFailure{
			Provider:  c.cfg.ID,
			Message:   message,
			Transient: true,
			Cause:     err,
		})
	}

	payload, decodeErr := decodeTokenPayload(response.Body)
	failure := classifyTokenResponse(response.StatusCode, payload, decodeErr)
	if failure != nil {
		failure.Provider = c.cfg.ID
		failure.Message = message
		return core.CredentialRecord{}, core.NewUpstreamAuthError(*failure)
	}
	record, err := core.NewCredentialRecord(payload, c.Now())
	if err != nil {
		return core.CredentialRecord{}, core.NewUpstreamAuthError(core.UpstreamFailure{
			Provider:  c.cfg.ID,
			Message:   message,
			Status:    response.StatusCode,
			Transient: true,
			Cause:     err,
		})
	}
	return record, nil
}

func basicCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}

var errTokenBodyEmpty = errors.New("providers: token response body is empty")
