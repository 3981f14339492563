package hubspot

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/devkit"
	memorystore "github.com/goliatone/go-integrations/store/memory"
)

const tokenResponse = `{"access_token":"tok1","token_type":"bearer","refresh_token":"ref1","expires_in":1800}`

const contactsPageOne = `{
	"results": [
		{
			"id": "101",
			"properties": {
				"firstname": "Ada",
				"lastname": "Lovelace",
				"email": "ada@example.com",
				"createdate": "1705312200000",
				"lastmodifieddate": "2026-01-20T08:00:00Z"
			},
			"archived": false
		},
		{
			"id": "102",
			"properties": {"email": "anon@example.com"},
			"archived": true
		}
	],
	"paging": {"next": {"after": "after-2"}}
}`

const contactsPageTwo = `{
	"results": [
		{"id": "103", "properties": {"firstname": "Grace"}, "archived": false}
	]
}`

const companiesPage = `{
	"results": [
		{"id": "201", "properties": {"name": "Initech", "domain": "initech.test"}, "archived": false}
	]
}`

const dealsPage = `{
	"results": [
		{"id": "301", "properties": {}, "archived": false, "createdAt": "2026-02-01T12:00:00Z"}
	]
}`

func newTestAdapter(t *testing.T, client *devkit.FakeHTTPClient) core.Adapter {
	t.Helper()
	adapter, err := New(Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "http://localhost:8000/integrations/hubspot/callback",
		Store:        memorystore.New(),
		HTTPClient:   client,
	})
	if err != nil {
		t.Fatalf("new hubspot adapter: %v", err)
	}
	return adapter
}

func TestAdapter_SecretTravelsInExchangeBody(t *testing.T) {
	ctx := context.Background()
	client := devkit.NewFakeHTTPClient(devkit.HTTPScript{Body: tokenResponse})
	adapter := newTestAdapter(t, client)

	authorize, err := adapter.Authorize(ctx, core.AuthorizeRequest{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if _, err := adapter.Callback(ctx, map[string]string{"code": "auth-code", "state": authorize.State}); err != nil {
		t.Fatalf("callback: %v", err)
	}

	exchange := client.Requests()[0]
	if exchange.Header.Get("Authorization") != "" {
		t.Fatalf("hubspot exchange must not use basic auth")
	}
	form, err := url.ParseQuery(string(exchange.Body))
	if err != nil {
		t.Fatalf("parse exchange form: %v", err)
	}
	if form.Get("client_secret") != "secret-1" {
		t.Fatalf("expected client secret in the form body, got %v", form)
	}
}

func TestAdapter_ListsAllCollections(t *testing.T) {
	ctx := context.Background()
	client := devkit.NewFakeHTTPClient(
		devkit.HTTPScript{Body: contactsPageOne},
		devkit.HTTPScript{Body: contactsPageTwo},
		devkit.HTTPScript{Body: companiesPage},
		devkit.HTTPScript{Body: dealsPage},
	)
	adapter := newTestAdapter(t, client)

	result, err := adapter.List(ctx, core.Credential{AccessToken: "tok1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Pages != 4 || len(result.Items) != 5 {
		t.Fatalf("expected five items across four pages, got %+v", result)
	}

	ada := result.Items[0]
	if ada.Name != "Ada Lovelace" || ada.Type != core.ItemTypeContact {
		t.Fatalf("unexpected contact: %+v", ada)
	}
	if ada.CreationTime == nil || ada.CreationTime.Unix() != 1705312200 {
		t.Fatalf("expected millisecond epoch creation time, got %+v", ada.CreationTime)
	}
	if ada.LastModifiedTime == nil {
		t.Fatalf("expected rfc3339 modification time")
	}
	if ada.Visibility == nil || !*ada.Visibility {
		t.Fatalf("active contact must be visible")
	}

	anon := result.Items[1]
	if anon.Name != "anon@example.com" {
		t.Fatalf("expected email fallback name, got %q", anon.Name)
	}
	if anon.Visibility == nil || *anon.Visibility {
		t.Fatalf("archived contact must be invisible")
	}

	company := result.Items[3]
	if company.Name != "Initech" || company.Type != core.ItemTypeCompany {
		t.Fatalf("unexpected company: %+v", company)
	}

	deal := result.Items[4]
	if deal.Type != core.ItemTypeDeal {
		t.Fatalf("unexpected deal: %+v", deal)
	}
	if deal.Name != "Deals 301" {
		t.Fatalf("expected id-based fallback name, got %q", deal.Name)
	}
	if deal.CreationTime == nil {
		t.Fatalf("deal must fall back to the envelope created timestamp")
	}

	requests := client.Requests()
	if !strings.Contains(requests[0].URL, "/crm/v3/objects/contacts") {
		t.Fatalf("first fetch must hit contacts, got %s", requests[0].URL)
	}
	if !strings.Contains(requests[1].URL, "after=after-2") {
		t.Fatalf("second contacts fetch must carry the after token, got %s", requests[1].URL)
	}
	if !strings.Contains(requests[2].URL, "/crm/v3/objects/companies") {
		t.Fatalf("third fetch must hit companies, got %s", requests[2].URL)
	}
	if !strings.Contains(requests[3].URL, "/crm/v3/objects/deals") {
		t.Fatalf("fourth fetch must hit deals, got %s", requests[3].URL)
	}
}

func TestDecodeCursor(t *testing.T) {
	objectType, after, err := decodeCursor("")
	if err != nil || objectType != "contacts" || after != "" {
		t.Fatalf("blank cursor must start at contacts, got %s %s %v", objectType, after, err)
	}

	objectType, after, err = decodeCursor("companies|a9")
	if err != nil || objectType != "companies" || after != "a9" {
		t.Fatalf("unexpected cursor decode: %s %s %v", objectType, after, err)
	}

	if _, _, err := decodeCursor("tickets|x"); err == nil {
		t.Fatalf("unknown collection must be rejected")
	}
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(Config{
		ClientID:    "client-1",
		RedirectURI: "http://localhost:8000/integrations/hubspot/callback",
		Store:       memorystore.New(),
	})
	if err == nil {
		t.Fatalf("expected missing secret to fail construction")
	}
}
