package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

const maxListResponseBodyBytes = 8 << 20 // 8 MiB

// FetchJSON executes a provider API request and decodes the JSON reply into
// out. Non-2xx replies log the raw body for operators and come back as an
// upstream error carrying only the status code.
func FetchJSON(client core.HTTPDoer, logger core.Logger, providerID string, req *http.Request, out any) error {
	if client == nil {
		return fmt.Errorf("providers: http client is required for %q", providerID)
	}
	logger = glog.Ensure(logger)

	response, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("providers: %q request failed: %w", providerID, err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxListResponseBodyBytes+1))
	if readErr != nil {
		return fmt.Errorf("providers: read %q response: %w", providerID, readErr)
	}
	if int64(len(body)) > maxListResponseBodyBytes {
		return fmt.Errorf("providers: %q response exceeds %d bytes", providerID, maxListResponseBodyBytes)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		logger.Error("provider api rejected request",
			"provider", providerID,
			"method", req.Method,
			"url", req.URL.String(),
			"status_code", response.StatusCode,
			"response_body", string(body),
		)
		return core.NewUpstreamHTTPError(providerID, response.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("providers: decode %q response: %w", providerID, err)
	}
	return nil
}
