package oauth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	defaultStateTTL            = 10 * time.Minute
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
	stateKeyPrefix             = "oauth:state"
)

// Config carries the wiring for one authorization-flow strategy instance.
// Store and HTTPClient are required; everything else has a sane default or
// is validated per provider.
type Config struct {
	Provider     string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// ClientSecretInBody sends the secret as a form field instead of basic
	// auth on the token request.
	ClientSecretInBody bool

	// TokenRequestJSON posts the exchange payload as a JSON object instead
	// of a urlencoded form.
	TokenRequestJSON bool

	// ExtraAuthParams are appended verbatim to the authorize URL.
	ExtraAuthParams map[string]string

	StateTTL            time.Duration
	TokenRequestTimeout time.Duration

	Store      core.KeyValueStore
	HTTPClient core.HTTPDoer
	Logger     core.Logger
	Now        func() time.Time
}

func (c *Config) normalize() error {
	c.Provider = strings.TrimSpace(strings.ToLower(c.Provider))
	if c.Provider == "" {
		return fmt.Errorf("oauth: provider id is required")
	}
	c.AuthURL = strings.TrimSpace(c.AuthURL)
	if c.AuthURL == "" {
		return fmt.Errorf("oauth: auth url is required for provider %q", c.Provider)
	}
	c.TokenURL = strings.TrimSpace(c.TokenURL)
	if c.TokenURL == "" {
		return fmt.Errorf("oauth: token url is required for provider %q", c.Provider)
	}
	c.ClientID = strings.TrimSpace(c.ClientID)
	if c.ClientID == "" {
		return fmt.Errorf("oauth: client id is required for provider %q", c.Provider)
	}
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.RedirectURI = strings.TrimSpace(c.RedirectURI)
	if c.RedirectURI == "" {
		return fmt.Errorf("oauth: redirect uri is required for provider %q", c.Provider)
	}
	if c.Store == nil {
		return fmt.Errorf("oauth: key value store is required for provider %q", c.Provider)
	}
	c.Scopes = normalizeScopes(c.Scopes)
	if c.StateTTL <= 0 {
		c.StateTTL = defaultStateTTL
	}
	if c.TokenRequestTimeout <= 0 {
		c.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.TokenRequestTimeout}
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return nil
}

// StateKey is the storage key for one in-flight authorization, namespaced by
// provider so two providers cannot consume each other's state.
func StateKey(provider, state string) string {
	return stateKeyPrefix + ":" + strings.TrimSpace(strings.ToLower(provider)) + ":" + strings.TrimSpace(state)
}

// GenerateStateToken returns a URL-safe random token with 256 bits of
// entropy. Collisions are not handled; at this size they do not happen.
func GenerateStateToken() (string, error) {
	return randomURLToken(32)
}

// GenerateCodeVerifier returns a PKCE code verifier within the RFC 7636
// 43..128 character bounds.
func GenerateCodeVerifier() (string, error) {
	return randomURLToken(32)
}

// CodeChallengeS256 derives the S256 challenge: unpadded base64url of the
// SHA-256 digest of the ASCII verifier.
func CodeChallengeS256(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

func randomURLToken(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("oauth: generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func saveStateRecord(ctx context.Context, cfg Config, record core.OAuthStateRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("oauth: encode state record: %w", err)
	}
	if err := cfg.Store.Set(ctx, StateKey(record.Provider, record.State), payload, cfg.StateTTL); err != nil {
		return fmt.Errorf("oauth: persist state record: %w", err)
	}
	return nil
}

// consumeStateRecord atomically removes the state record on read so a
// replayed callback observes an absent key.
func consumeStateRecord(ctx context.Context, cfg Config, state string) (core.OAuthStateRecord, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return core.OAuthStateRecord{}, core.NewBadInputError("oauth state parameter is required")
	}

	payload, found, err := cfg.Store.Consume(ctx, StateKey(cfg.Provider, state))
	if err != nil {
		return core.OAuthStateRecord{}, fmt.Errorf("oauth: consume state record: %w", err)
	}
	if !found {
		return core.OAuthStateRecord{}, core.NewInvalidStateError("oauth state not found, expired, or already used")
	}

	var record core.OAuthStateRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return core.OAuthStateRecord{}, core.NewInvalidStateError("oauth state record is malformed")
	}
	if record.State != state || record.Provider != cfg.Provider {
		return core.OAuthStateRecord{}, core.NewInvalidStateError("oauth state does not match this provider flow")
	}
	return record, nil
}

func buildAuthorizeURL(cfg Config, req core.AuthorizeRequest, state string, extra url.Values) string {
	scopes := normalizeScopes(req.Scopes)
	if len(scopes) == 0 {
		scopes = append([]string(nil), cfg.Scopes...)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", cfg.ClientID)
	values.Set("redirect_uri", cfg.RedirectURI)
	if len(scopes) > 0 {
		values.Set("scope", strings.Join(scopes, " "))
	}
	values.Set("state", state)
	for key, items := range extra {
		for _, item := range items {
			values.Set(key, item)
		}
	}
	for key, value := range cfg.ExtraAuthParams {
		if strings.TrimSpace(key) != "" {
			values.Set(key, value)
		}
	}

	authURL := cfg.AuthURL
	if strings.Contains(authURL, "?") {
		return authURL + "&" + values.Encode()
	}
	return authURL + "?" + values.Encode()
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

// exchangeToken posts the authorization-code exchange and parses the reply.
// Raw response bodies stay inside this function; failures surface only the
// status code and the provider's error code.
func exchangeToken(ctx context.Context, cfg Config, form url.Values) (tokenEndpointPayload, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, cfg.TokenRequestTimeout)
	defer cancel()

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", cfg.ClientID)
	if cfg.ClientSecretInBody && cfg.ClientSecret != "" {
		values.Set("client_secret", cfg.ClientSecret)
	}

	var body io.Reader
	contentType := "application/x-www-form-urlencoded"
	if cfg.TokenRequestJSON {
		encoded, err := json.Marshal(flattenFormValues(values))
		if err != nil {
			return tokenEndpointPayload{}, fmt.Errorf("oauth: encode token request: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	} else {
		body = strings.NewReader(values.Encode())
	}

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, cfg.TokenURL, body)
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if !cfg.ClientSecretInBody && cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	}

	response, err := cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: token request failed: %w", err)
	}
	defer response.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: read token response: %w", readErr)
	}
	if int64(len(raw)) > maxTokenResponseBodyBytes {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(raw, response.Header.Get("Content-Type"))
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		logTokenExchangeFailure(cfg, response.StatusCode, raw)
		return tokenEndpointPayload{}, fmt.Errorf(
			"oauth: token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload),
		)
	}
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: decode token response: %w", parseErr)
	}
	if payload.ErrorCode != "" {
		logTokenExchangeFailure(cfg, response.StatusCode, raw)
		return tokenEndpointPayload{}, fmt.Errorf("oauth: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: token endpoint response missing access token")
	}
	return payload, nil
}

// logTokenExchangeFailure records the raw provider body for operators; the
// body never reaches the caller-facing error.
func logTokenExchangeFailure(cfg Config, statusCode int, raw []byte) {
	if cfg.Logger == nil {
		return
	}
	cfg.Logger.Error(
		"oauth token exchange rejected",
		"provider", cfg.Provider,
		"status_code", statusCode,
		"response_body", string(raw),
	)
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func credentialFromToken(cfg Config, payload tokenEndpointPayload) core.Credential {
	granted := normalizeScopes(parseScopeList(payload.Scope))
	if len(granted) == 0 {
		granted = append([]string(nil), cfg.Scopes...)
	}
	credential := core.Credential{
		Provider:      cfg.Provider,
		TokenType:     normalizeTokenType(payload.TokenType),
		AccessToken:   strings.TrimSpace(payload.AccessToken),
		RefreshToken:  strings.TrimSpace(payload.RefreshToken),
		GrantedScopes: granted,
	}
	if payload.ExpiresIn > 0 {
		expiresAt := cfg.Now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second)
		credential.ExpiresAt = &expiresAt
	}
	return credential
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func parseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return []string{}
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		values = append(values, normalized)
	}
	sort.Strings(values)
	return values
}

func flattenFormValues(values url.Values) map[string]string {
	flattened := make(map[string]string, len(values))
	for key := range values {
		flattened[key] = values.Get(key)
	}
	return flattened
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
