// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// invalidSessionMessage is the server's error text for a session that
// no longer exists (for example after a server restart).
const invalidSessionMessage = "invalid session id"

// APIError is a non-2xx response from the server. Callers extract it
// with errors.As:
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Message is the server's "error" text, or its "reason" text when
	// the endpoint reports failures that way. Empty when the body was
	// not JSON.
	Message string
	// Body is the raw response body, kept for diagnostics.
	Body string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: unexpected %d response: %s", e.StatusCode, e.Body)
}

// IsSessionInvalid reports whether err means the client's session no
// longer exists: a 401 response, or an error reading "invalid session
// id" from either channel.
func IsSessionInvalid(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized {
			return true
		}
		return strings.EqualFold(apiErr.Message, invalidSessionMessage)
	}
	return strings.Contains(strings.ToLower(err.Error()), invalidSessionMessage)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, statusCode int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == statusCode
	}
	return false
}
