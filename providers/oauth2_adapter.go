package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-integrations/core"
)

const (
	defaultCredentialTTL = 90 * time.Second
	defaultMaxPages      = 50

	credentialKeyPrefix = "oauth:credentials"
)

// Page is one provider response worth of normalized items plus the cursor
// that fetches the next one. HasMore false ends the run regardless of
// NextCursor.
type Page struct {
	Items      []core.IntegrationItem
	NextCursor string
	HasMore    bool
}

// Lister fetches one page of a provider's resources. Implementations map
// native payloads to IntegrationItem and surface upstream failures through
// the shared error taxonomy.
type Lister interface {
	FetchPage(ctx context.Context, credential core.Credential, cursor string) (Page, error)
}

type OAuth2Config struct {
	ID       string
	Strategy core.AuthStrategy
	Store    core.KeyValueStore
	Codec    core.CredentialCodec
	Lister   Lister

	CredentialTTL time.Duration
	MaxPages      int

	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Now            func() time.Time
}

// OAuth2Adapter composes a flow strategy, a key-value store, and a lister
// into the four-operation adapter contract. The same type serves every
// provider; only the wiring differs.
type OAuth2Adapter struct {
	cfg    OAuth2Config
	logger core.Logger
}

func NewOAuth2Adapter(cfg OAuth2Config) (*OAuth2Adapter, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: adapter id is required")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("providers: auth strategy is required for adapter %q", cfg.ID)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("providers: key value store is required for adapter %q", cfg.ID)
	}
	if cfg.Codec == nil {
		cfg.Codec = core.JSONCredentialCodec{}
	}
	if cfg.Lister == nil {
		return nil, fmt.Errorf("providers: lister is required for adapter %q", cfg.ID)
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = defaultCredentialTTL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	_, logger := glog.Resolve("providers."+cfg.ID, cfg.LoggerProvider, cfg.Logger)

	return &OAuth2Adapter{
		cfg:    cfg,
		logger: glog.Ensure(logger),
	}, nil
}

func (a *OAuth2Adapter) ID() string {
	if a == nil {
		return ""
	}
	return a.cfg.ID
}

// AuthKind reports the wired flow variant, e.g. oauth2_auth_code or
// oauth2_pkce.
func (a *OAuth2Adapter) AuthKind() string {
	if a == nil || a.cfg.Strategy == nil {
		return ""
	}
	return a.cfg.Strategy.Kind()
}

func (a *OAuth2Adapter) Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error) {
	if a == nil {
		return core.AuthorizeResponse{}, fmt.Errorf("providers: oauth2 adapter is nil")
	}
	response, err := a.cfg.Strategy.BuildAuthorizeURL(ctx, req)
	if err != nil {
		return core.AuthorizeResponse{}, err
	}
	a.logger.Info("authorization url issued",
		"provider", a.cfg.ID,
		"auth_kind", a.AuthKind(),
	)
	return response, nil
}

// Callback completes the code exchange and stages the credential under an
// opaque key. The caller receives the key, never token material.
func (a *OAuth2Adapter) Callback(ctx context.Context, params map[string]string) (string, error) {
	if a == nil {
		return "", fmt.Errorf("providers: oauth2 adapter is nil")
	}

	credential, err := a.cfg.Strategy.HandleCallback(ctx, params)
	if err != nil {
		return "", err
	}
	credential.Provider = a.cfg.ID

	payload, err := a.cfg.Codec.Encode(credential)
	if err != nil {
		return "", fmt.Errorf("providers: encode credential for %q: %w", a.cfg.ID, err)
	}

	credentialKey := uuid.NewString()
	if err := a.cfg.Store.Set(ctx, a.credentialStorageKey(credentialKey), payload, a.cfg.CredentialTTL); err != nil {
		return "", fmt.Errorf("providers: stage credential for %q: %w", a.cfg.ID, err)
	}

	a.logger.Info("credential staged",
		"provider", a.cfg.ID,
		"credential_key", credentialKey,
		"ttl_seconds", int(a.cfg.CredentialTTL/time.Second),
		"has_refresh_token", credential.RefreshToken != "",
	)
	return credentialKey, nil
}

// Credentials dereferences a staged credential exactly once. The store
// consume removes the payload before this method returns it, so a second
// call with the same key misses.
func (a *OAuth2Adapter) Credentials(ctx context.Context, credentialKey string) (core.Credential, error) {
	if a == nil {
		return core.Credential{}, fmt.Errorf("providers: oauth2 adapter is nil")
	}
	credentialKey = strings.TrimSpace(credentialKey)
	if credentialKey == "" {
		return core.Credential{}, core.NewBadInputError("credential key is required")
	}

	payload, found, err := a.cfg.Store.Consume(ctx, a.credentialStorageKey(credentialKey))
	if err != nil {
		return core.Credential{}, fmt.Errorf("providers: consume credential for %q: %w", a.cfg.ID, err)
	}
	if !found {
		return core.Credential{}, core.NewCredentialsNotFoundError(credentialKey)
	}

	credential, err := a.cfg.Codec.Decode(payload)
	if err != nil {
		return core.Credential{}, fmt.Errorf("providers: decode credential for %q: %w", a.cfg.ID, err)
	}

	a.logger.Info("credential released",
		"provider", a.cfg.ID,
		"credential_key", credentialKey,
	)
	return credential, nil
}

// List walks the provider's pagination until exhaustion, the page cap, or a
// failure. Items gathered before a failure always come back with it.
func (a *OAuth2Adapter) List(ctx context.Context, credential core.Credential) (core.ListResult, error) {
	if a == nil {
		return core.ListResult{}, fmt.Errorf("providers: oauth2 adapter is nil")
	}
	if err := credential.Validate(); err != nil {
		return core.ListResult{}, core.NewBadInputError(err.Error())
	}

	result := core.ListResult{Items: []core.IntegrationItem{}}
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			result.Truncated = true
			return result, err
		}

		page, err := a.cfg.Lister.FetchPage(ctx, credential, cursor)
		if err != nil {
			result.Truncated = true
			a.logger.Warn("listing stopped on page failure",
				"provider", a.cfg.ID,
				"pages", result.Pages,
				"items", len(result.Items),
			)
			return result, err
		}

		for _, item := range page.Items {
			if err := item.Validate(); err != nil {
				result.Truncated = true
				return result, fmt.Errorf("providers: invalid item from %q: %w", a.cfg.ID, err)
			}
		}
		result.Items = append(result.Items, page.Items...)
		result.Pages++

		if !page.HasMore {
			a.logger.Info("listing complete",
				"provider", a.cfg.ID,
				"pages", result.Pages,
				"items", len(result.Items),
			)
			return result, nil
		}
		if result.Pages >= a.cfg.MaxPages {
			result.Truncated = true
			a.logger.Warn("listing hit the page cap",
				"provider", a.cfg.ID,
				"max_pages", a.cfg.MaxPages,
				"items", len(result.Items),
			)
			return result, core.NewPaginationLimitError(a.cfg.ID, a.cfg.MaxPages)
		}
		cursor = page.NextCursor
	}
}

func (a *OAuth2Adapter) credentialStorageKey(credentialKey string) string {
	return credentialKeyPrefix + ":" + a.cfg.ID + ":" + credentialKey
}

var _ core.Adapter = (*OAuth2Adapter)(nil)
