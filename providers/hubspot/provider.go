package hubspot

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
	ProviderID = "hubspot"
	AuthURL    = "https://app.hubspot.com/oauth/authorize"
	TokenURL   = "https://api.hubapi.com/oauth/v1/token"
	APIBaseURL = "https://api.hubapi.com"

	defaultPageSize = 100
)

// objectConfig drives name assembly per CRM object collection.
type objectConfig struct {
	itemType      core.ItemType
	properties    string
	nameFields    []string
	fallbackField string
}

// Collections list in this order; the cursor walks them one at a time.
var objectOrder = []string{"contacts", "companies", "deals"}

var objectConfigs = map[string]objectConfig{
	"contacts": {
		itemType:      core.ItemTypeContact,
		properties:    "firstname,lastname,email,phone,company,createdate,lastmodifieddate",
		nameFields:    []string{"firstname", "lastname"},
		fallbackField: "email",
	},
	"companies": {
		itemType:      core.ItemTypeCompany,
		properties:    "name,domain,industry,city,state,country,createdate,lastmodifieddate",
		nameFields:    []string{"name"},
		fallbackField: "domain",
	},
	"deals": {
		itemType:      core.ItemTypeDeal,
		properties:    "dealname,amount,dealstage,closedate,pipeline,createdate,lastmodifieddate",
		nameFields:    []string{"dealname"},
		fallbackField: "amount",
	},
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL    string
	TokenURL   string
	APIBaseURL string

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
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		Scopes:     []string{"crm.objects.contacts.read", "crm.objects.companies.read", "crm.objects.deals.read"},
		PageSize:   defaultPageSize,
	}
}

// New wires the standard authorization-code strategy and the CRM object
// lister. Hubspot's token endpoint wants the client secret in the form
// body, not in a basic auth header.
func New(cfg Config) (*providers.OAuth2Adapter, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("hubspot: client secret is required")
	}

	strategy, err := oauth.NewStandard(oauth.Config{
		Provider:           ProviderID,
		AuthURL:            cfg.AuthURL,
		TokenURL:           cfg.TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             cfg.Scopes,
		ClientSecretInBody: true,
		StateTTL:           cfg.StateTTL,
		Store:              cfg.Store,
		HTTPClient:         cfg.HTTPClient,
		Logger:             cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return providers.NewOAuth2Adapter(providers.OAuth2Config{
		ID:       ProviderID,
		Strategy: strategy,
		Store:    cfg.Store,
		Lister: &crmLister{
			apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
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

// crmLister walks contacts, then companies, then deals. The cursor encodes
// both the collection and its after token as "collection|after".
type crmLister struct {
	apiBaseURL string
	pageSize   int
	httpClient core.HTTPDoer
	logger     core.Logger
}

type objectsResponse struct {
	Results []struct {
		ID         string            `json:"id"`
		Properties map[string]string `json:"properties"`
		CreatedAt  string            `json:"createdAt"`
		UpdatedAt  string            `json:"updatedAt"`
		Archived   bool              `json:"archived"`
	} `json:"results"`
	Paging struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (l *crmLister) FetchPage(ctx context.Context, credential core.Credential, cursor string) (providers.Page, error) {
	objectType, after, err := decodeCursor(cursor)
	if err != nil {
		return providers.Page{}, err
	}
	config := objectConfigs[objectType]

	query := url.Values{}
	query.Set("limit", fmt.Sprint(l.pageSize))
	query.Set("properties", config.properties)
	query.Set("archived", "false")
	if after != "" {
		query.Set("after", after)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/crm/v3/objects/%s?%s", l.apiBaseURL, objectType, query.Encode()),
		nil,
	)
	if err != nil {
		return providers.Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+credential.AccessToken)

	var decoded objectsResponse
	if err := providers.FetchJSON(l.httpClient, l.logger, ProviderID, req, &decoded); err != nil {
		return providers.Page{}, err
	}

	items := make([]core.IntegrationItem, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		visible := !result.Archived
		item := core.IntegrationItem{
			ID:           result.ID,
			Name:         objectName(objectType, config, result.ID, result.Properties),
			Type:         config.itemType,
			CreationTime: providers.ParseTimestamp(result.Properties["createdate"]),
			Visibility:   &visible,
			RawSourceFields: map[string]any{
				"object_type": objectType,
			},
		}
		if item.CreationTime == nil {
			item.CreationTime = providers.ParseTimestamp(result.CreatedAt)
		}
		item.LastModifiedTime = providers.ParseTimestamp(result.Properties["lastmodifieddate"])
		if item.LastModifiedTime == nil {
			item.LastModifiedTime = providers.ParseTimestamp(result.UpdatedAt)
		}
		items = append(items, item)
	}

	nextCursor, hasMore := nextCursorAfter(objectType, decoded.Paging.Next.After)
	return providers.Page{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func decodeCursor(cursor string) (string, string, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return objectOrder[0], "", nil
	}
	objectType, after, _ := strings.Cut(cursor, "|")
	if _, ok := objectConfigs[objectType]; !ok {
		return "", "", core.NewBadInputError("hubspot list cursor references an unknown collection: " + objectType)
	}
	return objectType, after, nil
}

func nextCursorAfter(objectType, after string) (string, bool) {
	if strings.TrimSpace(after) != "" {
		return objectType + "|" + after, true
	}
	for index, candidate := range objectOrder {
		if candidate == objectType && index+1 < len(objectOrder) {
			return objectOrder[index+1] + "|", true
		}
	}
	return "", false
}

// objectName assembles a display name from the configured fields, falling
// back to the secondary field and finally the object id.
func objectName(objectType string, config objectConfig, objectID string, properties map[string]string) string {
	parts := make([]string, 0, len(config.nameFields))
	for _, field := range config.nameFields {
		if value := strings.TrimSpace(properties[field]); value != "" {
			parts = append(parts, value)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if fallback := strings.TrimSpace(properties[config.fallbackField]); fallback != "" {
		return fallback
	}
	return titleCase(objectType) + " " + objectID
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

var _ providers.Lister = (*crmLister)(nil)
