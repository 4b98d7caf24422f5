package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the OAuth flow controller. It owns no process wide state; every
// collaborator is injected through Option values.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        Registry
	store           KeyValueStore
	locker          KeyLocker
	lockBackoff     ExponentialBackoffScheduler
	credentialCodec CredentialCodec
	nowFn           func() time.Time
	nonceFn         func() (string, error)
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Registry        Registry
	Store           KeyValueStore
	Locker          KeyLocker
	CredentialCodec CredentialCodec
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := resolveLogging(builder.loggerProvider, builder.logger)

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		registry, err := NewProviderRegistry()
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
		builder.registry = registry
	}
	for _, adapter := range builder.providers {
		if err := builder.registry.Register(adapter); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}
	if builder.store == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: key-value store is required"))
	}
	if builder.locker == nil {
		builder.locker = NewMemoryKeyLocker()
	}
	if builder.credentialCodec == nil {
		builder.credentialCodec = JSONCredentialCodec{}
	}
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
	}
	if builder.nonceFn == nil {
		builder.nonceFn = generateStateNonce
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		registry:        builder.registry,
		store:           builder.store,
		locker:          builder.locker,
		lockBackoff:     builder.lockBackoff,
		credentialCodec: builder.credentialCodec,
		nowFn:           builder.nowFn,
		nonceFn:         builder.nonceFn,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Registry:        s.registry,
		Store:           s.store,
		Locker:          s.locker,
		CredentialCodec: s.credentialCodec,
	}
}

// Providers lists registered provider names in sorted order.
func (s *Service) Providers() []string {
	if s == nil || s.registry == nil {
		return nil
	}
	providers := s.registry.List()
	ids := make([]string, 0, len(providers))
	for _, provider := range providers {
		ids = append(ids, normalizeProviderID(provider.ID()))
	}
	return ids
}

func (s *Service) resolveProvider(providerID string) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	providerID = normalizeProviderID(providerID)
	provider, ok := s.registry.Get(providerID)
	if ok {
		return provider, nil
	}
	return nil, s.errorFactory("Integration not found", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorProviderNotFound).
		WithMetadata(map[string]any{metadataKeyProvider: providerID})
}

func (s *Service) badRequest(message string) error {
	return s.errorFactory(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadRequest)
}

func (s *Service) unauthorized(message string) error {
	return s.errorFactory(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorUnauthorized)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// upstreamError keeps classified adapter errors and treats anything else as a
// transient upstream failure without exposing the raw cause to callers.
func (s *Service) upstreamError(provider string, message string, err error) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return s.mapError(richErr)
	}
	return NewUpstreamAuthError(UpstreamFailure{
		Provider:  provider,
		Message:   message,
		Transient: true,
		Cause:     err,
	})
}

func (s *Service) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.UpstreamTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.UpstreamTimeout)
}

func (s *Service) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn().UTC()
}

// resolveLogging prefers an explicit logger, then the provider's named
// logger, then a nop logger.
func resolveLogging(provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	switch {
	case provider == nil && logger == nil:
		provider, logger = glog.Resolve(loggerName, nil, nil)
	case provider == nil:
		provider = glog.ProviderFromLogger(logger)
	case logger == nil:
		logger = provider.GetLogger(loggerName)
	}
	return provider, glog.Ensure(logger)
}
