package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
)

func TestStandardStrategy_BuildAuthorizeURL(t *testing.T) {
	store := newMemStore()
	strategy, err := NewStandard(testConfig(store, &fakeDoer{}))
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	response, err := strategy.BuildAuthorizeURL(context.Background(), core.AuthorizeRequest{})
	if err != nil {
		t.Fatalf("build authorize url: %v", err)
	}
	if response.State == "" {
		t.Fatalf("expected a generated state token")
	}

	parsed, err := url.Parse(response.URL)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	query := parsed.Query()
	if query.Get("response_type") != "code" {
		t.Fatalf("expected response_type=code, got %q", query.Get("response_type"))
	}
	if query.Get("client_id") != "client-1" {
		t.Fatalf("unexpected client_id: %q", query.Get("client_id"))
	}
	if query.Get("state") != response.State {
		t.Fatalf("authorize url state does not match response state")
	}
	if query.Get("scope") != "read" {
		t.Fatalf("unexpected scope: %q", query.Get("scope"))
	}

	if _, found, _ := store.Get(context.Background(), StateKey("notion", response.State)); !found {
		t.Fatalf("expected state record persisted under %s", StateKey("notion", response.State))
	}
}

func TestStandardStrategy_StatesAreUnique(t *testing.T) {
	strategy, err := NewStandard(testConfig(newMemStore(), &fakeDoer{}))
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	seen := map[string]struct{}{}
	for i := 0; i < 20; i++ {
		response, err := strategy.BuildAuthorizeURL(context.Background(), core.AuthorizeRequest{})
		if err != nil {
			t.Fatalf("build authorize url: %v", err)
		}
		if _, dup := seen[response.State]; dup {
			t.Fatalf("state token repeated: %s", response.State)
		}
		seen[response.State] = struct{}{}
	}
}

func TestStandardStrategy_HandleCallback(t *testing.T) {
	store := newMemStore()
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(http.StatusOK,
		`{"access_token":"tok1","token_type":"Bearer","refresh_token":"ref1","expires_in":3600,"scope":"read write"}`,
	)}}
	strategy, err := NewStandard(testConfig(store, doer))
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	response, err := strategy.BuildAuthorizeURL(context.Background(), core.AuthorizeRequest{})
	if err != nil {
		t.Fatalf("build authorize url: %v", err)
	}

	credential, err := strategy.HandleCallback(context.Background(), map[string]string{
		"code":  "auth-code",
		"state": response.State,
	})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if credential.AccessToken != "tok1" || credential.RefreshToken != "ref1" {
		t.Fatalf("unexpected credential: %+v", credential)
	}
	if credential.TokenType != "bearer" {
		t.Fatalf("expected normalized token type, got %q", credential.TokenType)
	}
	if credential.ExpiresAt == nil {
		t.Fatalf("expected expiry derived from expires_in")
	}
	if len(credential.GrantedScopes) != 2 {
		t.Fatalf("expected granted scopes from response, got %v", credential.GrantedScopes)
	}

	request := doer.lastRequest()
	if request.Method != http.MethodPost {
		t.Fatalf("expected POST token request, got %s", request.Method)
	}
	if !strings.HasPrefix(request.AuthHeader, "Basic ") {
		t.Fatalf("expected basic auth on token request, got %q", request.AuthHeader)
	}
	form, err := url.ParseQuery(request.Body)
	if err != nil {
		t.Fatalf("parse token request body: %v", err)
	}
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "auth-code" {
		t.Fatalf("unexpected token request form: %v", form)
	}
	if form.Get("client_secret") != "" {
		t.Fatalf("client secret must not travel in the form when basic auth is used")
	}
}

func TestStandardStrategy_StateIsSingleUse(t *testing.T) {
	strategy, err := NewStandard(testConfig(newMemStore(), &fakeDoer{}))
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	response, err := strategy.BuildAuthorizeURL(context.Background(), core.AuthorizeRequest{})
	if err != nil {
		t.Fatalf("build authorize url: %v", err)
	}

	params := map[string]string{"code": "auth-code", "state": response.State}
	if _, err := strategy.HandleCallback(context.Background(), params); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	_, err = strategy.HandleCallback(context.Background(), params)
	if !core.IsInvalidState(err) {
		t.Fatalf("expected invalid state on replay, got %v", err)
	}
}

func TestStandardStrategy_UnknownStateRejected(t *testing.T) {
	strategy, err := NewStandard(testConfig(newMemStore(), &fakeDoer{}))
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	_, err = strategy.HandleCallback(context.Background(), map[string]string{
		"code":  "auth-code",
		"state": "forged-state",
	})
	if !core.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	_, err = strategy.HandleCallback(context.Background(), map[string]string{"state": "whatever"})
	if err == nil || core.IsInvalidState(err) {
		t.Fatalf("missing code must fail before state lookup, got %v", err)
	}
}

func TestStandardStrategy_ExchangeFailureKeepsBodyOut(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(http.StatusBadRequest,
		`{"error":"invalid_grant","error_description":"code expired","internal_trace":"super-secret-debug-dump"}`,
	)}}
	strategy, err := NewStandard(testConfig(newMemStore(), doer))
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	response, err := strategy.BuildAuthorizeURL(context.Background(), core.AuthorizeRequest{})
	if err != nil {
		t.Fatalf("build authorize url: %v", err)
	}

	_, err = strategy.HandleCallback(context.Background(), map[string]string{
		"code":  "auth-code",
		"state": response.State,
	})
	if !core.IsTokenExchangeFailed(err) {
		t.Fatalf("expected token exchange failure, got %v", err)
	}
	if strings.Contains(err.Error(), "super-secret-debug-dump") {
		t.Fatalf("raw provider body leaked into the error: %v", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status code in the wrapped detail, got %v", err)
	}
}

func TestStandardStrategy_SecretInBody(t *testing.T) {
	doer := &fakeDoer{}
	cfg := testConfig(newMemStore(), doer)
	cfg.ClientSecretInBody = true
	strategy, err := NewStandard(cfg)
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	response, err := strategy.BuildAuthorizeURL(context.Background(), core.AuthorizeRequest{})
	if err != nil {
		t.Fatalf("build authorize url: %v", err)
	}
	if _, err := strategy.HandleCallback(context.Background(), map[string]string{
		"code":  "auth-code",
		"state": response.State,
	}); err != nil {
		t.Fatalf("handle callback: %v", err)
	}

	request := doer.lastRequest()
	if request.AuthHeader != "" {
		t.Fatalf("expected no basic auth when the secret travels in the body")
	}
	form, err := url.ParseQuery(request.Body)
	if err != nil {
		t.Fatalf("parse token request body: %v", err)
	}
	if form.Get("client_secret") != "secret-1" {
		t.Fatalf("expected client secret in the form, got %v", form)
	}
}

func TestStandardStrategy_JSONExchangePayload(t *testing.T) {
	doer := &fakeDoer{}
	cfg := testConfig(newMemStore(), doer)
	cfg.TokenRequestJSON = true
	strategy, err := NewStandard(cfg)
	if err != nil {
		t.Fatalf("new standard strategy: %v", err)
	}

	response, err := strategy.BuildAuthorizeURL(context.Background(), core.AuthorizeRequest{})
	if err != nil {
		t.Fatalf("build authorize url: %v", err)
	}
	if _, err := strategy.HandleCallback(context.Background(), map[string]string{
		"code":  "auth-code",
		"state": response.State,
	}); err != nil {
		t.Fatalf("handle callback: %v", err)
	}

	request := doer.lastRequest()
	if !strings.Contains(request.ContentType, "application/json") {
		t.Fatalf("expected json content type, got %q", request.ContentType)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(request.Body), &payload); err != nil {
		t.Fatalf("decode json token request: %v", err)
	}
	if payload["grant_type"] != "authorization_code" || payload["code"] != "auth-code" {
		t.Fatalf("unexpected json token request: %v", payload)
	}
}
