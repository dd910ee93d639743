package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// envelopeError mirrors the {"error":{"code","message"}} body the storefront
// API returns on failure.
type envelopeError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// translates it into an error. 404 always maps to apperrors.ErrNotFound so
// callers can tell a missing resource from a transient failure.
func ParseResponseError(resp *http.Response, resource, id string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", resource, resp.StatusCode, err)
	}

	message := string(body)
	var env envelopeError
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		message = env.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(resource, id)
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(fmt.Sprintf("%s: %s", resource, message))
	case resp.StatusCode == http.StatusConflict:
		return apperrors.Conflict(fmt.Sprintf("%s: %s", resource, message))
	case resp.StatusCode == http.StatusServiceUnavailable:
		return apperrors.Unavailable(fmt.Sprintf("%s unavailable", resource), nil)
	default:
		return fmt.Errorf("%s returned status %d: %s", resource, resp.StatusCode, message)
	}
}
