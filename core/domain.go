package core

import (
	"fmt"
	"strings"
	"time"
)

// ItemType is the closed set of cross-provider resource categories. Adapters
// map provider-native kinds onto this set; kinds without a mapping fail
// normalization with an item-type error rather than being silently dropped.
type ItemType string

const (
	ItemTypePage     ItemType = "page"
	ItemTypeDatabase ItemType = "database"
	ItemTypeBase     ItemType = "base"
	ItemTypeTable    ItemType = "table"
	ItemTypeRecord   ItemType = "record"
	ItemTypeContact  ItemType = "contact"
	ItemTypeCompany  ItemType = "company"
	ItemTypeDeal     ItemType = "deal"
)

func knownItemTypes() map[ItemType]struct{} {
	return map[ItemType]struct{}{
		ItemTypePage:     {},
		ItemTypeDatabase: {},
		ItemTypeBase:     {},
		ItemTypeTable:    {},
		ItemTypeRecord:   {},
		ItemTypeContact:  {},
		ItemTypeCompany:  {},
		ItemTypeDeal:     {},
	}
}

func (t ItemType) Valid() bool {
	_, ok := knownItemTypes()[t]
	return ok
}

// IntegrationItem is the normalized unit returned by a list operation. ID and
// Type are always present; everything else is best-effort.
type IntegrationItem struct {
	ID               string         `json:"id"`
	Name             string         `json:"name,omitempty"`
	Type             ItemType       `json:"type"`
	CreationTime     *time.Time     `json:"creation_time,omitempty"`
	LastModifiedTime *time.Time     `json:"last_modified_time,omitempty"`
	ParentID         string         `json:"parent_id,omitempty"`
	ParentPathOrName string         `json:"parent_path_or_name,omitempty"`
	Visibility       *bool          `json:"visibility,omitempty"`
	RawSourceFields  map[string]any `json:"raw_source_fields,omitempty"`
}

func (item IntegrationItem) Validate() error {
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("core: integration item id is required")
	}
	if !item.Type.Valid() {
		return fmt.Errorf("core: integration item type %q is not in the shared enum", item.Type)
	}
	return nil
}

// Credential is the ephemeral token record produced by a callback exchange.
// It lives in the key-value store under a short TTL and is handed to the
// caller at most once.
type Credential struct {
	Provider      string     `json:"provider"`
	TokenType     string     `json:"token_type,omitempty"`
	AccessToken   string     `json:"access_token"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	GrantedScopes []string   `json:"granted_scopes,omitempty"`
}

func (c Credential) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("core: credential access token is required")
	}
	return nil
}

// OAuthStateRecord is the ephemeral flow state persisted between authorize and
// callback. It is exclusively owned by the key-value store keyed by State and
// is consumed (deleted) on the first matching callback.
type OAuthStateRecord struct {
	State        string    `json:"state"`
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListResult carries the eagerly collected normalized items of one list call.
// Truncated is set when pagination stopped before the provider signaled
// exhaustion, either at the page cap or on an upstream error; the accompanying
// error tells the caller which.
type ListResult struct {
	Items     []IntegrationItem
	Pages     int
	Truncated bool
}
