package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Provider is the capability surface every integration adapter implements.
type Provider interface {
	ID() string
	BuildAuthorizeRequest(in AuthorizeInput) (AuthorizationRequest, error)
	ExchangeCode(ctx context.Context, in ExchangeInput) (CredentialRecord, error)
	Refresh(ctx context.Context, refreshToken string) (CredentialRecord, error)
	ListItems(ctx context.Context, accessToken string) (ListResult, error)
	Normalize(raw RawItem) IntegrationItem
}

type Registry interface {
	Register(provider Provider) error
	Get(id string) (Provider, bool)
	List() []Provider
}

// KeyValueStore is the TTL store shared by state tokens and credentials.
// Missing and expired keys both report found=false with a nil error.
type KeyValueStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Delete(ctx context.Context, key string) error
}

// KeyTaker is implemented by stores that can read and delete a key atomically.
type KeyTaker interface {
	Take(ctx context.Context, key string) (value []byte, found bool, err error)
}

// FreshReader is implemented by caching stores. GetFresh reads the backing
// store directly and drops any cached copy of the key.
type FreshReader interface {
	GetFresh(ctx context.Context, key string) (value []byte, found bool, err error)
}

// ExpiredSweeper is implemented by stores that keep expired rows until swept.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// KeyLocker provides per-key mutual exclusion. Acquire must fail fast with
// ErrLockHeld when another holder owns the key.
type KeyLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

type CredentialCodec interface {
	Encode(record CredentialRecord) ([]byte, error)
	Decode(raw []byte) (CredentialRecord, error)
}

// SecretProvider seals stored credential bytes at rest.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type IntegrationService interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error)
	AuthURLs(ctx context.Context, req AuthURLsRequest) (map[string]AuthorizeResponse, error)
	Callback(ctx context.Context, req CallbackRequest) (CallbackResponse, error)
	GetCredentials(ctx context.Context, req CredentialsRequest) (CredentialsResponse, error)
	HasCredentials(ctx context.Context, req CredentialsRequest) (bool, error)
	ListItems(ctx context.Context, req ListItemsRequest) ([]IntegrationItem, error)
	Providers() []string
}
