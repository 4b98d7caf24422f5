package integrations

import "github.com/goliatone/go-integrations/core"

type Config = core.Config

type RefreshConfig = core.RefreshConfig

type RefreshPolicy = core.RefreshPolicy

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Provider = core.Provider
type KeyValueStore = core.KeyValueStore
type KeyLocker = core.KeyLocker
type MetricsRecorder = core.MetricsRecorder
type IntegrationItem = core.IntegrationItem

type AuthorizeRequest = core.AuthorizeRequest
type AuthorizeResponse = core.AuthorizeResponse
type AuthURLsRequest = core.AuthURLsRequest
type CallbackRequest = core.CallbackRequest
type CallbackResponse = core.CallbackResponse
type CredentialsRequest = core.CredentialsRequest
type CredentialsResponse = core.CredentialsResponse
type ListItemsRequest = core.ListItemsRequest

const (
	RefreshPolicyAlways     = core.RefreshPolicyAlways
	RefreshPolicyNearExpiry = core.RefreshPolicyNearExpiry
)

var (
	WithLogger              = core.WithLogger
	WithLoggerProvider      = core.WithLoggerProvider
	WithMetricsRecorder     = core.WithMetricsRecorder
	WithErrorFactory        = core.WithErrorFactory
	WithErrorMapper         = core.WithErrorMapper
	WithConfigProvider      = core.WithConfigProvider
	WithOptionsResolver     = core.WithOptionsResolver
	WithRegistry            = core.WithRegistry
	WithProviders           = core.WithProviders
	WithKeyValueStore       = core.WithKeyValueStore
	WithKeyLocker           = core.WithKeyLocker
	WithLockBackoff         = core.WithLockBackoff
	WithCredentialCodec     = core.WithCredentialCodec
	WithClock               = core.WithClock
	WithStateNonceGenerator = core.WithStateNonceGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

