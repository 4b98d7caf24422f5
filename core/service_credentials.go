package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// GetCredentials reads the stored credential and refreshes it according to the
// configured refresh policy. The read, refresh, and write run under a per-key
// lock; the record is re-read once the lock is held.
func (s *Service) GetCredentials(ctx context.Context, req CredentialsRequest) (resp CredentialsResponse, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"provider":        normalizeProviderID(req.Provider),
		"user_id":         strings.TrimSpace(req.UserID),
		"organization_id": strings.TrimSpace(req.OrganizationID),
		"refresh_policy":  string(s.config.Refresh.Policy),
	}
	defer func() {
		fields["authenticated"] = resp.Authenticated
		s.observeOperation(ctx, startedAt, "get_credentials", err, fields)
	}()

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return CredentialsResponse{}, err
	}
	key := NewCredentialKey(provider.ID(), req.UserID, req.OrganizationID)
	if err := key.Validate(); err != nil {
		return CredentialsResponse{}, s.badRequest(err.Error())
	}
	fields["credential_key"] = key.StoreKey()

	record, found, err := s.loadCredential(ctx, key)
	if err != nil {
		return CredentialsResponse{}, s.mapError(err)
	}
	if !found {
		return CredentialsResponse{Authenticated: false}, nil
	}
	if !s.shouldRefresh(record) {
		fields["refresh_outcome"] = "skipped"
		return CredentialsResponse{Authenticated: true, Credentials: record.Credentials()}, nil
	}
	return s.refreshLocked(ctx, provider, key, fields)
}

// HasCredentials reports whether a usable credential exists after the lazy
// refresh of GetCredentials.
func (s *Service) HasCredentials(ctx context.Context, req CredentialsRequest) (bool, error) {
	resp, err := s.GetCredentials(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Authenticated, nil
}

func (s *Service) refreshLocked(
	ctx context.Context,
	provider Provider,
	key CredentialKey,
	fields map[string]any,
) (CredentialsResponse, error) {
	lockKey := "lock:" + key.StoreKey()
	handle, err := acquireWithin(ctx, s.locker, lockKey, s.config.Refresh.LockTTL, s.config.Refresh.LockWait, s.lockBackoff)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return CredentialsResponse{}, s.errorFactory(
				fmt.Sprintf("credential refresh already in progress for %s", key.StoreKey()),
				goerrors.CategoryConflict,
			).WithCode(http.StatusConflict).WithTextCode(ErrorRefreshLocked)
		}
		return CredentialsResponse{}, s.mapError(err)
	}
	defer func() {
		_ = handle.Unlock(context.WithoutCancel(ctx))
	}()

	// Re-read past any cache so a refresh committed by another holder is seen.
	record, found, err := s.loadFreshCredential(ctx, key)
	if err != nil {
		return CredentialsResponse{}, s.mapError(err)
	}
	if !found {
		return CredentialsResponse{Authenticated: false}, nil
	}
	if !s.shouldRefresh(record) {
		fields["refresh_outcome"] = "skipped"
		return CredentialsResponse{Authenticated: true, Credentials: record.Credentials()}, nil
	}

	upstreamCtx, cancel := s.upstreamContext(ctx)
	defer cancel()
	refreshed, err := provider.Refresh(upstreamCtx, record.RefreshToken)
	if err != nil {
		mapped := s.upstreamError(provider.ID(), "Error refreshing token", err)
		if IsTransientUpstream(mapped) {
			fields["refresh_outcome"] = "transient_failure"
			return CredentialsResponse{}, mapped
		}
		fields["refresh_outcome"] = "revoked"
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key.StoreKey()); delErr != nil {
			return CredentialsResponse{}, s.mapError(delErr)
		}
		return CredentialsResponse{Authenticated: false}, nil
	}

	refreshed = s.completeRecord(refreshed).WithFallbackRefreshToken(record.RefreshToken)
	if err := s.putCredential(context.WithoutCancel(ctx), key, refreshed); err != nil {
		return CredentialsResponse{}, s.mapError(err)
	}
	fields["refresh_outcome"] = "refreshed"
	return CredentialsResponse{Authenticated: true, Credentials: refreshed.Credentials()}, nil
}

func (s *Service) shouldRefresh(record CredentialRecord) bool {
	if !record.HasRefreshToken() {
		return false
	}
	switch s.config.Refresh.Policy {
	case RefreshPolicyNearExpiry:
		refreshAt := record.ExpiresAt().Add(-s.config.Refresh.LeadWindow)
		return !s.now().Before(refreshAt)
	default:
		return true
	}
}

func (s *Service) loadCredential(ctx context.Context, key CredentialKey) (CredentialRecord, bool, error) {
	return s.decodeCredential(ctx, key, s.store.Get)
}

func (s *Service) loadFreshCredential(ctx context.Context, key CredentialKey) (CredentialRecord, bool, error) {
	read := s.store.Get
	if fresh, ok := s.store.(FreshReader); ok {
		read = fresh.GetFresh
	}
	return s.decodeCredential(ctx, key, read)
}

func (s *Service) decodeCredential(
	ctx context.Context,
	key CredentialKey,
	read func(context.Context, string) ([]byte, bool, error),
) (CredentialRecord, bool, error) {
	raw, found, err := read(ctx, key.StoreKey())
	if err != nil || !found {
		return CredentialRecord{}, false, err
	}
	record, err := s.credentialCodec.Decode(raw)
	if err != nil {
		s.logWarn(ctx, "discarding undecodable credential", map[string]any{
			"provider":       key.Provider,
			"credential_key": key.StoreKey(),
			"error":          err.Error(),
		})
		return CredentialRecord{}, false, s.store.Delete(ctx, key.StoreKey())
	}
	return record, true, nil
}

func (s *Service) putCredential(ctx context.Context, key CredentialKey, record CredentialRecord) error {
	encoded, err := s.credentialCodec.Encode(record)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, key.StoreKey(), encoded, record.TTL())
}
