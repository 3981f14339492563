package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IntegrationErrorBadInput            = "INTEGRATION_BAD_INPUT"
	IntegrationErrorProviderNotFound    = "INTEGRATION_PROVIDER_NOT_FOUND"
	IntegrationErrorStateInvalid        = "INTEGRATION_OAUTH_STATE_INVALID"
	IntegrationErrorTokenExchangeFailed = "INTEGRATION_TOKEN_EXCHANGE_FAILED"
	IntegrationErrorCredentialsNotFound = "INTEGRATION_CREDENTIALS_NOT_FOUND"
	IntegrationErrorItemTypeUnmapped    = "INTEGRATION_ITEM_TYPE_UNMAPPED"
	IntegrationErrorPaginationExceeded  = "INTEGRATION_PAGINATION_LIMIT_EXCEEDED"
	IntegrationErrorUpstreamHTTP        = "INTEGRATION_UPSTREAM_HTTP_ERROR"
	IntegrationErrorInternal            = "INTEGRATION_INTERNAL_ERROR"
)

func integrationError(
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureIntegrationErrorEnvelope(err)
}

func integrationWrapError(
	source error,
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return integrationError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureIntegrationErrorEnvelope(err)
}

// NewBadInputError flags malformed caller input; the request is not retried
// as-is.
func NewBadInputError(message string) error {
	return integrationError(message, goerrors.CategoryBadInput, IntegrationErrorBadInput, nil)
}

// NewUnknownProviderError flags a provider key with no registered adapter; a
// programming or configuration error, fatal to the request.
func NewUnknownProviderError(providerKey string) error {
	return integrationError(
		"integration provider is not registered: "+strings.TrimSpace(providerKey),
		goerrors.CategoryNotFound,
		IntegrationErrorProviderNotFound,
		map[string]any{"provider_id": strings.TrimSpace(providerKey)},
	)
}

// NewInvalidStateError flags a callback whose state is missing, expired,
// replayed, or forged. Recoverable: the caller restarts the connect flow.
func NewInvalidStateError(message string) error {
	return integrationError(message, goerrors.CategoryAuth, IntegrationErrorStateInvalid, nil)
}

// NewTokenExchangeError flags a rejected or malformed code exchange. The
// provider's raw response body is never included; pass only safe detail.
func NewTokenExchangeError(message string, source error) error {
	return integrationWrapError(
		source,
		message,
		goerrors.CategoryExternal,
		IntegrationErrorTokenExchangeFailed,
		nil,
	)
}

// NewCredentialsNotFoundError flags an expired or already consumed credential
// key. Recoverable: the caller surfaces "session expired, retry connect".
func NewCredentialsNotFoundError(credentialKey string) error {
	return integrationError(
		"integration credentials not found or already consumed",
		goerrors.CategoryNotFound,
		IntegrationErrorCredentialsNotFound,
		map[string]any{"credential_key": strings.TrimSpace(credentialKey)},
	)
}

// NewUnmappedItemTypeError flags schema drift: a provider-native kind with no
// entry in the shared enum. Fatal to the current list call, never silently
// skipped.
func NewUnmappedItemTypeError(providerKey, nativeKind string) error {
	return integrationError(
		"integration item kind has no mapping: "+strings.TrimSpace(nativeKind),
		goerrors.CategoryOperation,
		IntegrationErrorItemTypeUnmapped,
		map[string]any{
			"provider_id": strings.TrimSpace(providerKey),
			"native_kind": strings.TrimSpace(nativeKind),
		},
	)
}

// NewPaginationLimitError flags a pagination run that hit the page cap before
// the provider signaled exhaustion. Partial results accompany this error.
func NewPaginationLimitError(providerKey string, maxPages int) error {
	return integrationError(
		"integration pagination exceeded the configured page limit",
		goerrors.CategoryOperation,
		IntegrationErrorPaginationExceeded,
		map[string]any{
			"provider_id": strings.TrimSpace(providerKey),
			"max_pages":   maxPages,
		},
	)
}

// NewUpstreamHTTPError flags a non-2xx provider response mid-listing. Only
// the status code crosses the boundary; bodies are logged, never surfaced.
func NewUpstreamHTTPError(providerKey string, statusCode int) error {
	err := goerrors.New(
		"integration provider returned a non-success status",
		goerrors.CategoryExternal,
	).
		WithCode(http.StatusBadGateway).
		WithTextCode(IntegrationErrorUpstreamHTTP)
	err.WithMetadata(map[string]any{
		"provider_id": strings.TrimSpace(providerKey),
		"status_code": statusCode,
	})
	return ensureIntegrationErrorEnvelope(err)
}

func IsInvalidState(err error) bool { return hasTextCode(err, IntegrationErrorStateInvalid) }

func IsTokenExchangeFailed(err error) bool {
	return hasTextCode(err, IntegrationErrorTokenExchangeFailed)
}

func IsCredentialsNotFound(err error) bool {
	return hasTextCode(err, IntegrationErrorCredentialsNotFound)
}

func IsUnknownProvider(err error) bool { return hasTextCode(err, IntegrationErrorProviderNotFound) }

func IsUnmappedItemType(err error) bool { return hasTextCode(err, IntegrationErrorItemTypeUnmapped) }

func IsPaginationLimitExceeded(err error) bool {
	return hasTextCode(err, IntegrationErrorPaginationExceeded)
}

func IsUpstreamHTTPError(err error) bool { return hasTextCode(err, IntegrationErrorUpstreamHTTP) }

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// MapError normalizes any error crossing the adapter boundary into the
// integration taxonomy envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIntegrationErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not registered"):
		return ensureIntegrationErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryNotFound).
				WithTextCode(IntegrationErrorProviderNotFound),
		)
	case strings.Contains(msg, "oauth state"):
		return ensureIntegrationErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryAuth).
				WithTextCode(IntegrationErrorStateInvalid),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return ensureIntegrationErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(IntegrationErrorBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIntegrationErrorEnvelope(mapped)
}

func ensureIntegrationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IntegrationErrorBadInput
	case goerrors.CategoryNotFound:
		return IntegrationErrorProviderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return IntegrationErrorStateInvalid
	case goerrors.CategoryExternal:
		return IntegrationErrorUpstreamHTTP
	case goerrors.CategoryOperation:
		return IntegrationErrorPaginationExceeded
	default:
		return IntegrationErrorInternal
	}
}

func integrationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
