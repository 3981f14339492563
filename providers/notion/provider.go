package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/oauth"
	"github.com/goliatone/go-integrations/providers"
)

const (
	ProviderID = "notion"
	AuthURL    = "https://api.notion.com/v1/oauth/authorize"
	TokenURL   = "https://api.notion.com/v1/oauth/token"
	SearchURL  = "https://api.notion.com/v1/search"

	// Pinned API revision; bump deliberately, not per request.
	notionVersion = "2022-06-28"

	defaultPageSize = 100
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	SearchURL string

	StateTTL      time.Duration
	CredentialTTL time.Duration
	MaxPages      int
	PageSize      int

	Store      core.KeyValueStore
	HTTPClient core.HTTPDoer

	Logger         core.Logger
	LoggerProvider core.LoggerProvider
}

func DefaultConfig() Config {
	return Config{
		AuthURL:   AuthURL,
		TokenURL:  TokenURL,
		SearchURL: SearchURL,
		PageSize:  defaultPageSize,
	}
}

// New wires the standard authorization-code strategy and the workspace
// search lister into an adapter. Notion authenticates the token exchange
// with basic auth and expects a JSON body.
func New(cfg Config) (*providers.OAuth2Adapter, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = defaults.SearchURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("notion: client secret is required")
	}

	strategy, err := oauth.NewStandard(oauth.Config{
		Provider:         ProviderID,
		AuthURL:          cfg.AuthURL,
		TokenURL:         cfg.TokenURL,
		ClientID:         cfg.ClientID,
		ClientSecret:     cfg.ClientSecret,
		RedirectURI:      cfg.RedirectURI,
		Scopes:           cfg.Scopes,
		TokenRequestJSON: true,
		ExtraAuthParams:  map[string]string{"owner": "user"},
		StateTTL:         cfg.StateTTL,
		Store:            cfg.Store,
		HTTPClient:       cfg.HTTPClient,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return providers.NewOAuth2Adapter(providers.OAuth2Config{
		ID:       ProviderID,
		Strategy: strategy,
		Store:    cfg.Store,
		Lister: &searchLister{
			searchURL:  cfg.SearchURL,
			pageSize:   cfg.PageSize,
			httpClient: cfg.HTTPClient,
			logger:     cfg.Logger,
		},
		CredentialTTL:  cfg.CredentialTTL,
		MaxPages:       cfg.MaxPages,
		Logger:         cfg.Logger,
		LoggerProvider: cfg.LoggerProvider,
	})
}

type searchLister struct {
	searchURL  string
	pageSize   int
	httpClient core.HTTPDoer
	logger     core.Logger
}

type searchResponse struct {
	Results    []map[string]any `json:"results"`
	HasMore    bool             `json:"has_more"`
	NextCursor string           `json:"next_cursor"`
}

func (l *searchLister) FetchPage(ctx context.Context, credential core.Credential, cursor string) (providers.Page, error) {
	body := map[string]any{"page_size": l.pageSize}
	if strings.TrimSpace(cursor) != "" {
		body["start_cursor"] = cursor
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return providers.Page{}, fmt.Errorf("notion: encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.searchURL, bytes.NewReader(encoded))
	if err != nil {
		return providers.Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+credential.AccessToken)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	var decoded searchResponse
	if err := providers.FetchJSON(l.httpClient, l.logger, ProviderID, req, &decoded); err != nil {
		return providers.Page{}, err
	}

	items := make([]core.IntegrationItem, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		item, err := mapSearchResult(result)
		if err != nil {
			return providers.Page{}, err
		}
		items = append(items, item)
	}

	return providers.Page{
		Items:      items,
		NextCursor: decoded.NextCursor,
		HasMore:    decoded.HasMore,
	}, nil
}

func mapSearchResult(result map[string]any) (core.IntegrationItem, error) {
	object := readString(result, "object")
	itemType, err := mapObjectType(object)
	if err != nil {
		return core.IntegrationItem{}, err
	}

	item := core.IntegrationItem{
		ID:               readString(result, "id"),
		Name:             itemName(result, object),
		Type:             itemType,
		CreationTime:     providers.ParseTimestamp(readString(result, "created_time")),
		LastModifiedTime: providers.ParseTimestamp(readString(result, "last_edited_time")),
		RawSourceFields:  map[string]any{"object": object},
	}

	if archived, ok := result["archived"].(bool); ok {
		visible := !archived
		item.Visibility = &visible
	}

	parentID, parentType := parentRef(result)
	item.ParentID = parentID
	item.ParentPathOrName = parentType
	return item, nil
}

func mapObjectType(object string) (core.ItemType, error) {
	switch object {
	case "page":
		return core.ItemTypePage, nil
	case "database":
		return core.ItemTypeDatabase, nil
	default:
		return "", core.NewUnmappedItemTypeError(ProviderID, object)
	}
}

// itemName mirrors the workspace UI: the first text content found in the
// item's properties, prefixed with the object kind.
func itemName(result map[string]any, object string) string {
	name := recursiveSearch(readMap(result, "properties"), "content")
	if name == "" {
		name = recursiveSearch(result, "content")
	}
	if name == "" {
		name = "multi_select"
	}
	return strings.TrimSpace(object + " " + name)
}

// parentRef resolves the parent pointer. Workspace-rooted items have no
// parent id; everything else carries the id under the key named by
// parent.type (page_id, database_id, block_id).
func parentRef(result map[string]any) (string, string) {
	parent := readMap(result, "parent")
	parentType := readString(parent, "type")
	if parentType == "" || parentType == "workspace" {
		return "", ""
	}
	return readString(parent, parentType), parentType
}

func recursiveSearch(data map[string]any, targetKey string) string {
	if len(data) == 0 {
		return ""
	}
	if value, ok := data[targetKey]; ok {
		return strings.TrimSpace(fmt.Sprint(value))
	}
	for _, value := range data {
		switch typed := value.(type) {
		case map[string]any:
			if found := recursiveSearch(typed, targetKey); found != "" {
				return found
			}
		case []any:
			for _, element := range typed {
				if nested, ok := element.(map[string]any); ok {
					if found := recursiveSearch(nested, targetKey); found != "" {
						return found
					}
				}
			}
		}
	}
	return ""
}

func readString(data map[string]any, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

func readMap(data map[string]any, key string) map[string]any {
	value, ok := data[key]
	if !ok {
		return map[string]any{}
	}
	nested, ok := value.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return nested
}

var _ providers.Lister = (*searchLister)(nil)
