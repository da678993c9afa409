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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/filingrunner/internal/retry"
)

// TokenSource fetches OAuth client-credentials tokens and caches them until
// shortly before they expire. One TokenSource is shared by every client of a
// process.
type TokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	margin       time.Duration
	http         *http.Client
	cache        *ttlcache.Cache[string, string]
}

func NewTokenSource(cfg Config, httpClient *http.Client) *TokenSource {
	return &TokenSource{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		margin:       cfg.TokenRefreshMargin,
		http:         httpClient,
		cache:        ttlcache.New[string, string](ttlcache.WithDisableTouchOnHit[string, string]()),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a bearer token, or "" when no token endpoint is configured.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t == nil || t.tokenURL == "" {
		return "", nil
	}
	if item := t.cache.Get(t.clientID); item != nil {
		return item.Value(), nil
	}

	tok, ttl, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.cache.Set(t.clientID, tok, ttl)
	return tok, nil
}

// Invalidate drops the cached token, e.g. after a 401.
func (t *TokenSource) Invalidate() {
	if t == nil {
		return
	}
	t.cache.Delete(t.clientID)
}

func (t *TokenSource) fetch(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, retry.Permanent(fmt.Errorf("token request: %w", err))
	}
	req.SetBasicAuth(t.clientID, t.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := retry.ClassifyHTTPStatus("token", resp.StatusCode, strings.TrimSpace(string(body))); err != nil {
		return "", 0, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("token response carried no access_token")
	}

	ttl := time.Duration(tr.ExpiresIn)*time.Second - t.margin
	if ttl <= 0 {
		ttl = time.Second
	}
	return tr.AccessToken, ttl, nil
}
