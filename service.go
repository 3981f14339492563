package integrations

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/airtable"
	"github.com/goliatone/go-integrations/providers/hubspot"
	"github.com/goliatone/go-integrations/providers/notion"
	memorystore "github.com/goliatone/go-integrations/store/memory"
)

const defaultHTTPTimeout = 30 * time.Second

// Service fronts the registry with the four integration operations. It is
// safe for concurrent use once Setup returns.
type Service struct {
	config   core.Config
	registry core.Registry
	store    core.KeyValueStore
	logger   core.Logger
}

type serviceBuilder struct {
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	store           core.KeyValueStore
	httpClient      core.HTTPDoer
	registry        core.Registry
	adapters        []core.Adapter
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
}

type Option func(*serviceBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) { b.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) { b.loggerProvider = provider }
}

// WithStore swaps the process-local default for a shared backend, e.g.
// redisstore or sqlstore.
func WithStore(store core.KeyValueStore) Option {
	return func(b *serviceBuilder) { b.store = store }
}

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(b *serviceBuilder) { b.httpClient = client }
}

func WithRegistry(registry core.Registry) Option {
	return func(b *serviceBuilder) { b.registry = registry }
}

// WithAdapters registers extra adapters beyond the built-in providers.
func WithAdapters(adapters ...core.Adapter) Option {
	return func(b *serviceBuilder) { b.adapters = append(b.adapters, adapters...) }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) { b.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) { b.optionsResolver = resolver }
}

// Setup resolves configuration layers, builds an adapter per configured
// provider, and returns the ready service. cfg is the runtime layer; file
// or environment values come through the config provider.
func Setup(cfg Config, options ...Option) (*Service, error) {
	builder := serviceBuilder{}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, err
	}
	resolved, err := builder.optionsResolver.Resolve(defaults, loaded, cfg)
	if err != nil {
		return nil, err
	}

	store := builder.store
	if store == nil {
		store = memorystore.New()
		logger.Warn("no key value store configured, using the in-process store")
	}
	httpClient := builder.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	registry := builder.registry
	if registry == nil {
		registry = core.NewAdapterRegistry()
	}

	for key := range resolved.Providers {
		adapter, err := buildBuiltinAdapter(key, resolved.Provider(key), builtinDeps{
			store:          store,
			httpClient:     httpClient,
			logger:         builder.logger,
			loggerProvider: builder.loggerProvider,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
		logger.Info("provider adapter registered", "provider", adapter.ID())
	}
	for _, adapter := range builder.adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
		logger.Info("provider adapter registered", "provider", adapter.ID())
	}

	return &Service{
		config:   resolved,
		registry: registry,
		store:    store,
		logger:   logger,
	}, nil
}

type builtinDeps struct {
	store          core.KeyValueStore
	httpClient     core.HTTPDoer
	logger         core.Logger
	loggerProvider core.LoggerProvider
}

func buildBuiltinAdapter(key string, cfg core.ProviderConfig, deps builtinDeps) (core.Adapter, error) {
	switch key {
	case notion.ProviderID:
		return notion.New(notion.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			RedirectURI:    cfg.RedirectURI,
			Scopes:         cfg.Scopes,
			AuthURL:        cfg.AuthURL,
			TokenURL:       cfg.TokenURL,
			StateTTL:       cfg.StateTTL(),
			CredentialTTL:  cfg.CredentialTTL(),
			MaxPages:       cfg.MaxPages,
			Store:          deps.store,
			HTTPClient:     deps.httpClient,
			Logger:         deps.logger,
			LoggerProvider: deps.loggerProvider,
		})
	case airtable.ProviderID:
		return airtable.New(airtable.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			RedirectURI:    cfg.RedirectURI,
			Scopes:         cfg.Scopes,
			AuthURL:        cfg.AuthURL,
			TokenURL:       cfg.TokenURL,
			StateTTL:       cfg.StateTTL(),
			CredentialTTL:  cfg.CredentialTTL(),
			MaxPages:       cfg.MaxPages,
			Store:          deps.store,
			HTTPClient:     deps.httpClient,
			Logger:         deps.logger,
			LoggerProvider: deps.loggerProvider,
		})
	case hubspot.ProviderID:
		return hubspot.New(hubspot.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			RedirectURI:    cfg.RedirectURI,
			Scopes:         cfg.Scopes,
			AuthURL:        cfg.AuthURL,
			TokenURL:       cfg.TokenURL,
			StateTTL:       cfg.StateTTL(),
			CredentialTTL:  cfg.CredentialTTL(),
			MaxPages:       cfg.MaxPages,
			Store:          deps.store,
			HTTPClient:     deps.httpClient,
			Logger:         deps.logger,
			LoggerProvider: deps.loggerProvider,
		})
	default:
		return nil, core.NewUnknownProviderError(key)
	}
}

// Authorize starts the connect flow for a provider and returns the URL the
// browser should visit.
func (s *Service) Authorize(ctx context.Context, providerKey string, req AuthorizeRequest) (AuthorizeResponse, error) {
	adapter, err := s.resolve(providerKey)
	if err != nil {
		return AuthorizeResponse{}, err
	}
	return adapter.Authorize(ctx, req)
}

// Callback finishes the connect flow and returns the opaque credential key.
func (s *Service) Callback(ctx context.Context, providerKey string, params map[string]string) (string, error) {
	adapter, err := s.resolve(providerKey)
	if err != nil {
		return "", err
	}
	return adapter.Callback(ctx, params)
}

// Credentials releases a staged credential exactly once.
func (s *Service) Credentials(ctx context.Context, providerKey, credentialKey string) (Credential, error) {
	adapter, err := s.resolve(providerKey)
	if err != nil {
		return Credential{}, err
	}
	return adapter.Credentials(ctx, credentialKey)
}

// List fetches and normalizes the provider's resources.
func (s *Service) List(ctx context.Context, providerKey string, credential Credential) (ListResult, error) {
	adapter, err := s.resolve(providerKey)
	if err != nil {
		return ListResult{}, err
	}
	return adapter.List(ctx, credential)
}

// Providers reports the registered provider keys in stable order.
func (s *Service) Providers() []string {
	if s == nil || s.registry == nil {
		return []string{}
	}
	adapters := s.registry.List()
	keys := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		keys = append(keys, adapter.ID())
	}
	return keys
}

// Config returns the resolved configuration.
func (s *Service) Config() Config {
	if s == nil {
		return core.DefaultConfig()
	}
	return s.config
}

func (s *Service) resolve(providerKey string) (core.Adapter, error) {
	if s == nil || s.registry == nil {
		return nil, core.NewBadInputError("integrations service is not configured")
	}
	return s.registry.Resolve(providerKey)
}
