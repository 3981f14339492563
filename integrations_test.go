package integrations

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/devkit"
)

const notionTokenResponse = `{"access_token":"tok1","token_type":"bearer","workspace_name":"Acme"}`

const notionSearchResponse = `{
	"results": [
		{
			"object": "page",
			"id": "p1",
			"created_time": "2026-01-01T00:00:00.000Z",
			"last_edited_time": "2026-01-02T00:00:00.000Z",
			"parent": {"type": "workspace", "workspace": true},
			"properties": {"title": {"title": [{"text": {"content": "Roadmap"}}]}}
		}
	],
	"has_more": false,
	"next_cursor": null
}`

func notionRuntimeConfig() Config {
	return Config{
		Providers: map[string]ProviderConfig{
			"notion": {
				ClientID:     "client-1",
				ClientSecret: "secret-1",
				RedirectURI:  "http://localhost:8000/integrations/notion/callback",
			},
		},
	}
}

func TestSetup_RegistersConfiguredProviders(t *testing.T) {
	service, err := Setup(notionRuntimeConfig(),
		WithHTTPClient(devkit.NewFakeHTTPClient()),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	providers := service.Providers()
	if len(providers) != 1 || providers[0] != "notion" {
		t.Fatalf("expected the notion adapter registered, got %v", providers)
	}

	resolved := service.Config()
	if resolved.ServiceName != "integrations" {
		t.Fatalf("defaults must fill the service name, got %q", resolved.ServiceName)
	}
	if resolved.StateTTLSeconds != 600 || resolved.CredentialTTLSeconds != 90 {
		t.Fatalf("unexpected resolved ttls: %+v", resolved)
	}
}

func TestSetup_RejectsUnknownProviderKey(t *testing.T) {
	_, err := Setup(Config{
		Providers: map[string]ProviderConfig{
			"fakecrm": {ClientID: "x", ClientSecret: "y"},
		},
	})
	if !IsUnknownProvider(err) {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestService_EndToEndConnectAndList(t *testing.T) {
	ctx := context.Background()
	client := devkit.NewFakeHTTPClient(
		devkit.HTTPScript{Body: notionTokenResponse},
		devkit.HTTPScript{Body: notionSearchResponse},
	)
	service, err := Setup(notionRuntimeConfig(), WithHTTPClient(client))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	authorize, err := service.Authorize(ctx, "notion", AuthorizeRequest{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authorize.URL == "" || authorize.State == "" {
		t.Fatalf("expected authorize url and state, got %+v", authorize)
	}

	key, err := service.Callback(ctx, "notion", map[string]string{
		"code":  "auth-code",
		"state": authorize.State,
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if strings.Contains(key, "tok1") {
		t.Fatalf("credential key must stay opaque, got %q", key)
	}

	credential, err := service.Credentials(ctx, "notion", key)
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if credential.AccessToken != "tok1" {
		t.Fatalf("unexpected credential: %+v", credential)
	}
	if _, err := service.Credentials(ctx, "notion", key); !IsCredentialsNotFound(err) {
		t.Fatalf("expected purged credential key, got %v", err)
	}

	result, err := service.List(ctx, "notion", credential)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Name != "page Roadmap" {
		t.Fatalf("unexpected listing: %+v", result)
	}
}

func TestService_UnregisteredProviderFailsDispatch(t *testing.T) {
	service, err := Setup(notionRuntimeConfig(),
		WithHTTPClient(devkit.NewFakeHTTPClient()),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := service.Authorize(context.Background(), "linear", AuthorizeRequest{}); !IsUnknownProvider(err) {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

type staticAdapter struct {
	id string
}

func (a staticAdapter) ID() string { return a.id }

func (a staticAdapter) Authorize(context.Context, core.AuthorizeRequest) (core.AuthorizeResponse, error) {
	return core.AuthorizeResponse{URL: "https://example.test/authorize", State: "s"}, nil
}

func (a staticAdapter) Callback(context.Context, map[string]string) (string, error) {
	return "key", nil
}

func (a staticAdapter) Credentials(context.Context, string) (core.Credential, error) {
	return core.Credential{Provider: a.id}, nil
}

func (a staticAdapter) List(context.Context, core.Credential) (core.ListResult, error) {
	return core.ListResult{}, nil
}

func TestSetup_RegistersExtraAdapters(t *testing.T) {
	service, err := Setup(Config{}, WithAdapters(staticAdapter{id: "customcrm"}))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	credential, err := service.Credentials(context.Background(), "customcrm", "any")
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if credential.Provider != "customcrm" {
		t.Fatalf("expected the custom adapter to answer, got %+v", credential)
	}
}
