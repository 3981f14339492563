package airtable

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/oauth"
	"github.com/goliatone/go-integrations/providers"
)

const (
	ProviderID = "airtable"
	AuthURL    = "https://airtable.com/oauth2/v1/authorize"
	TokenURL   = "https://airtable.com/oauth2/v1/token"
	MetaURL    = "https://api.airtable.com/v0/meta"

	// Listing ids carry a kind suffix so a base and one of its tables can
	// never collide.
	baseIDSuffix  = "_Base"
	tableIDSuffix = "_Table"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	MetaURL  string

	StateTTL      time.Duration
	CredentialTTL time.Duration
	MaxPages      int

	Store      core.KeyValueStore
	HTTPClient core.HTTPDoer

	Logger         core.Logger
	LoggerProvider core.LoggerProvider
}

func DefaultConfig() Config {
	return Config{
		AuthURL:  AuthURL,
		TokenURL: TokenURL,
		MetaURL:  MetaURL,
		Scopes:   []string{"data.records:read", "schema.bases:read"},
	}
}

// New wires the PKCE strategy and the bases-and-tables lister. Airtable
// requires PKCE on top of the client secret; both the basic auth header and
// the verifier travel on the exchange.
func New(cfg Config) (*providers.OAuth2Adapter, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.MetaURL == "" {
		cfg.MetaURL = defaults.MetaURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}

	strategy, err := oauth.NewPKCE(oauth.Config{
		Provider:        ProviderID,
		AuthURL:         cfg.AuthURL,
		TokenURL:        cfg.TokenURL,
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		RedirectURI:     cfg.RedirectURI,
		Scopes:          cfg.Scopes,
		ExtraAuthParams: map[string]string{"owner": "user"},
		StateTTL:        cfg.StateTTL,
		Store:           cfg.Store,
		HTTPClient:      cfg.HTTPClient,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return providers.NewOAuth2Adapter(providers.OAuth2Config{
		ID:       ProviderID,
		Strategy: strategy,
		Store:    cfg.Store,
		Lister: &metaLister{
			metaURL:    strings.TrimRight(cfg.MetaURL, "/"),
			httpClient: cfg.HTTPClient,
			logger:     cfg.Logger,
		},
		CredentialTTL:  cfg.CredentialTTL,
		MaxPages:       cfg.MaxPages,
		Logger:         cfg.Logger,
		LoggerProvider: cfg.LoggerProvider,
	})
}

// metaLister walks the bases listing; each page expands every base on it
// into the base item plus one item per table.
type metaLister struct {
	metaURL    string
	httpClient core.HTTPDoer
	logger     core.Logger
}

type basesResponse struct {
	Bases []struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		PermissionLevel string `json:"permissionLevel"`
	} `json:"bases"`
	Offset string `json:"offset"`
}

type tablesResponse struct {
	Tables []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"tables"`
}

func (l *metaLister) FetchPage(ctx context.Context, credential core.Credential, cursor string) (providers.Page, error) {
	basesURL := l.metaURL + "/bases"
	if strings.TrimSpace(cursor) != "" {
		basesURL += "?" + url.Values{"offset": []string{cursor}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, basesURL, nil)
	if err != nil {
		return providers.Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+credential.AccessToken)

	var decoded basesResponse
	if err := providers.FetchJSON(l.httpClient, l.logger, ProviderID, req, &decoded); err != nil {
		return providers.Page{}, err
	}

	items := make([]core.IntegrationItem, 0, len(decoded.Bases))
	for _, base := range decoded.Bases {
		items = append(items, core.IntegrationItem{
			ID:   base.ID + baseIDSuffix,
			Name: base.Name,
			Type: core.ItemTypeBase,
			RawSourceFields: map[string]any{
				"base_id":          base.ID,
				"permission_level": base.PermissionLevel,
			},
		})

		tables, err := l.fetchTables(ctx, credential, base.ID)
		if err != nil {
			return providers.Page{}, err
		}
		for _, table := range tables.Tables {
			items = append(items, core.IntegrationItem{
				ID:               table.ID + tableIDSuffix,
				Name:             table.Name,
				Type:             core.ItemTypeTable,
				ParentID:         base.ID + baseIDSuffix,
				ParentPathOrName: base.Name,
				RawSourceFields:  map[string]any{"table_id": table.ID},
			})
		}
	}

	return providers.Page{
		Items:      items,
		NextCursor: decoded.Offset,
		HasMore:    strings.TrimSpace(decoded.Offset) != "",
	}, nil
}

func (l *metaLister) fetchTables(ctx context.Context, credential core.Credential, baseID string) (tablesResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/bases/%s/tables", l.metaURL, url.PathEscape(baseID)),
		nil,
	)
	if err != nil {
		return tablesResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+credential.AccessToken)

	var decoded tablesResponse
	if err := providers.FetchJSON(l.httpClient, l.logger, ProviderID, req, &decoded); err != nil {
		return tablesResponse{}, err
	}
	return decoded, nil
}

var _ providers.Lister = (*metaLister)(nil)
