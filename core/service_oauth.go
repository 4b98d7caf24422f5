package core

import (
	"context"
	"strings"
)

// Authorize mints a single-use state token and returns the provider
// authorization URL bound to it.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (resp AuthorizeResponse, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"provider":        normalizeProviderID(req.Provider),
		"user_id":         strings.TrimSpace(req.UserID),
		"organization_id": strings.TrimSpace(req.OrganizationID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "authorize", err, fields)
	}()

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return AuthorizeResponse{}, err
	}
	return s.authorize(ctx, provider, req.UserID, req.OrganizationID)
}

// AuthURLs issues one authorization URL per registered provider.
func (s *Service) AuthURLs(ctx context.Context, req AuthURLsRequest) (out map[string]AuthorizeResponse, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"user_id":         strings.TrimSpace(req.UserID),
		"organization_id": strings.TrimSpace(req.OrganizationID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "auth_urls", err, fields)
	}()

	out = map[string]AuthorizeResponse{}
	for _, provider := range s.registry.List() {
		resp, authErr := s.authorize(ctx, provider, req.UserID, req.OrganizationID)
		if authErr != nil {
			return nil, authErr
		}
		out[normalizeProviderID(provider.ID())] = resp
	}
	fields["item_count"] = len(out)
	return out, nil
}

func (s *Service) authorize(ctx context.Context, provider Provider, userID, organizationID string) (AuthorizeResponse, error) {
	key := NewCredentialKey(provider.ID(), userID, organizationID)
	if err := key.Validate(); err != nil {
		return AuthorizeResponse{}, s.badRequest(err.Error())
	}
	nonce, err := s.nonceFn()
	if err != nil {
		return AuthorizeResponse{}, s.mapError(err)
	}
	token := NewStateToken(key, nonce)

	request, err := provider.BuildAuthorizeRequest(AuthorizeInput{
		UserID:         key.UserID,
		OrganizationID: key.OrganizationID,
		State:          token.RawValue,
	})
	if err != nil {
		return AuthorizeResponse{}, s.mapError(err)
	}
	if err := s.store.Put(ctx, token.StoreKey(), []byte(token.BoundUserID), s.config.StateTTL); err != nil {
		return AuthorizeResponse{}, s.mapError(err)
	}
	return AuthorizeResponse{AuthURL: request.URL(), State: token.RawValue}, nil
}

// Callback consumes the state token, exchanges the code, and stores the
// resulting credential. The state is gone afterwards whatever the outcome.
func (s *Service) Callback(ctx context.Context, req CallbackRequest) (resp CallbackResponse, err error) {
	startedAt := s.now()
	fields := map[string]any{"provider": normalizeProviderID(req.Provider)}
	defer func() {
		s.observeOperation(ctx, startedAt, "callback", err, fields)
	}()

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return CallbackResponse{}, err
	}
	code := strings.TrimSpace(req.Code)
	state := strings.TrimSpace(req.State)
	if code == "" || state == "" {
		return CallbackResponse{}, s.badRequest("Missing code or state parameter")
	}
	if !strings.HasPrefix(state, normalizeProviderID(provider.ID())+stateIdentitySep) {
		return CallbackResponse{}, s.badRequest("Invalid state parameter")
	}

	boundUserID, found, err := s.takeState(ctx, StateStoreKey(state))
	if err != nil {
		return CallbackResponse{}, s.mapError(err)
	}
	if !found {
		return CallbackResponse{}, s.badRequest("Invalid state parameter")
	}
	key, err := ParseStateToken(provider.ID(), state, boundUserID)
	if err != nil {
		return CallbackResponse{}, s.badRequest("Invalid state parameter")
	}
	fields["user_id"] = key.UserID
	fields["organization_id"] = key.OrganizationID
	fields["credential_key"] = key.StoreKey()

	upstreamCtx, cancel := s.upstreamContext(ctx)
	defer cancel()
	record, err := provider.ExchangeCode(upstreamCtx, ExchangeInput{Code: code, State: state})
	if err != nil {
		return CallbackResponse{}, s.upstreamError(provider.ID(), "Error exchanging code for token", err)
	}
	record = s.completeRecord(record)

	if err := s.putCredential(context.WithoutCancel(ctx), key, record); err != nil {
		return CallbackResponse{}, s.mapError(err)
	}
	return CallbackResponse{Success: true, Credentials: record.Credentials()}, nil
}

func (s *Service) takeState(ctx context.Context, storeKey string) (string, bool, error) {
	var (
		raw   []byte
		found bool
		err   error
	)
	if taker, ok := s.store.(KeyTaker); ok {
		raw, found, err = taker.Take(ctx, storeKey)
	} else {
		raw, found, err = s.store.Get(ctx, storeKey)
		if err == nil && found {
			err = s.store.Delete(ctx, storeKey)
		}
	}
	if err != nil || !found {
		return "", false, err
	}
	userID := strings.TrimSpace(string(raw))
	return userID, userID != "", nil
}

func (s *Service) completeRecord(record CredentialRecord) CredentialRecord {
	record = record.WithDefaultExpiry(s.config.DefaultCredentialTTL)
	if record.ObtainedAt.IsZero() {
		record.ObtainedAt = s.now()
	}
	return record
}
