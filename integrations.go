// Package integrations exposes one OAuth connect, callback, credentials,
// and listing surface over many SaaS providers. Provider adapters register
// against a shared registry; hosts mount the four operations however they
// serve HTTP.
package integrations

import "github.com/goliatone/go-integrations/core"

type Config = core.Config

type ProviderConfig = core.ProviderConfig

type Adapter = core.Adapter

type Registry = core.Registry

type KeyValueStore = core.KeyValueStore

type HTTPDoer = core.HTTPDoer

type AuthStrategy = core.AuthStrategy

type Credential = core.Credential

type IntegrationItem = core.IntegrationItem

type ItemType = core.ItemType

type ListResult = core.ListResult

type AuthorizeRequest = core.AuthorizeRequest

type AuthorizeResponse = core.AuthorizeResponse

type Logger = core.Logger

type LoggerProvider = core.LoggerProvider

var (
	IsInvalidState            = core.IsInvalidState
	IsTokenExchangeFailed     = core.IsTokenExchangeFailed
	IsCredentialsNotFound     = core.IsCredentialsNotFound
	IsUnknownProvider         = core.IsUnknownProvider
	IsUnmappedItemType        = core.IsUnmappedItemType
	IsPaginationLimitExceeded = core.IsPaginationLimitExceeded
	IsUpstreamHTTPError       = core.IsUpstreamHTTPError
	MapError                  = core.MapError
)

// CloseWindowHTML is the callback response body for popup-driven connect
// flows: the popup closes itself and the opener polls for credentials.
const CloseWindowHTML = `<html><script>window.close();</script></html>`

func DefaultConfig() Config {
	return core.DefaultConfig()
}
