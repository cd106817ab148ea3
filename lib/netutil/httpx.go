// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the network I/O helpers shared by the REST
// client and the push-channel transport.
//
// ReadResponse and ErrorBody bound every response body read at
// MaxResponseSize. Chat history is the largest payload the server
// returns; anything past the bound is truncated rather than buffered.
//
// IsExpectedCloseError classifies the errors a push-channel reader sees
// when either side hangs up normally, so they are not logged as
// failures.
package netutil

import (
	"fmt"
	"io"
)

// MaxResponseSize is the bound on REST response body reads: 32 MiB.
const MaxResponseSize int64 = 32 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}

// ErrorBody reads an error response body for use in a diagnostic
// message. Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
