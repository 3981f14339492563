package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// KeyValueStore is the ephemeral storage capability consumed by strategies
// and adapters. Implementations enforce TTL expiry themselves; a key absent
// after its TTL must be indistinguishable from an explicitly deleted key.
// Consume is an atomic get-and-delete on a single key, so two concurrent
// consumers of the same key cannot both observe the value.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Consume(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// HTTPDoer is the shared, connection-pooled HTTP client contract. A single
// instance is injected into all adapters and must tolerate arbitrary
// concurrent use.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type AuthorizeRequest struct {
	Scopes   []string
	Metadata map[string]any
}

type AuthorizeResponse struct {
	URL   string
	State string
}

// AuthStrategy encapsulates one authorization-flow variant. Selection is a
// static provider-to-variant mapping done at wiring time, never runtime
// detection.
type AuthStrategy interface {
	Kind() string
	BuildAuthorizeURL(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error)
	HandleCallback(ctx context.Context, params map[string]string) (Credential, error)
}

// Adapter is the four-operation integration capability implemented once per
// provider. Callback returns an opaque credential key, never token material;
// Credentials dereferences that key exactly once (purge-after-read).
type Adapter interface {
	ID() string
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error)
	Callback(ctx context.Context, params map[string]string) (string, error)
	Credentials(ctx context.Context, credentialKey string) (Credential, error)
	List(ctx context.Context, credential Credential) (ListResult, error)
}

// Registry maps provider keys to adapter instances. It is populated once at
// startup and read-only afterward.
type Registry interface {
	Register(adapter Adapter) error
	Resolve(providerKey string) (Adapter, error)
	List() []Adapter
}

// CredentialCodec serializes credentials for key-value storage.
type CredentialCodec interface {
	Encode(credential Credential) ([]byte, error)
	Decode(payload []byte) (Credential, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
