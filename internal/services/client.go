// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
)

// ErrNotConfigured is returned by a client whose base URL is empty.
var ErrNotConfigured = errors.New("service endpoint not configured")

// httpClient is the shared request path of every downstream client. It adds
// the bearer token, enforces the per-call timeout through the http.Client and
// turns responses into transient or permanent errors.
type httpClient struct {
	name    string
	baseURL string
	http    *http.Client
	tokens  *TokenSource
}

func newHTTPClient(name, baseURL string, hc *http.Client, tokens *TokenSource) httpClient {
	return httpClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		tokens:  tokens,
	}
}

// do sends in as JSON and decodes the response into out when out is non-nil.
// It returns the raw response body for the request tracker.
func (c httpClient) do(ctx context.Context, method, path string, in, out any) (string, error) {
	if c.baseURL == "" {
		return "", retry.Permanent(fmt.Errorf("%s: %w", c.name, ErrNotConfigured))
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return "", retry.Permanent(fmt.Errorf("%s: encode request: %w", c.name, err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("%s: build request: %w", c.name, err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s %s: %w", c.name, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", c.name, err)
	}
	text := strings.TrimSpace(string(raw))

	if resp.StatusCode == http.StatusUnauthorized {
		// A revoked token should be replaced on the next attempt, not cached.
		c.tokens.Invalidate()
		return text, fmt.Errorf("%s: %w", c.name, &retry.HTTPStatusError{Service: c.name, StatusCode: resp.StatusCode, Body: text})
	}
	if err := retry.ClassifyHTTPStatus(c.name, resp.StatusCode, text); err != nil {
		logctx.FromContext(ctx).Debug("Downstream call failed",
			slog.String("service", c.name),
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return text, err
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return text, retry.Permanent(fmt.Errorf("%s: decode response: %w", c.name, err))
		}
	}
	return text, nil
}
