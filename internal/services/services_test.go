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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

func strPtr(s string) *string { return &s }

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newServer(t *testing.T, status int, response string, got *[]recorded) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var tokens atomic.Int64
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "runner", user)
		assert.Equal(t, "secret", pass)
		tokens.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 300})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		*got = append(*got, rec)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClients(srv *httptest.Server) *Clients {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.EmailURL = srv.URL
	cfg.BNURL = srv.URL
	cfg.CredentialURL = srv.URL
	cfg.AuthURL = srv.URL
	cfg.CorpURL = srv.URL + "/"
	cfg.TokenURL = srv.URL + "/token"
	cfg.ClientID = "runner"
	cfg.ClientSecret = "secret"
	return New(cfg)
}

func testRequest(requestType string) Request {
	return Request{
		RequestType: requestType,
		Filing: ledgerdb.Filing{
			ID:                 77,
			BusinessIdentifier: "BC0871234",
			FilingType:         "dissolution",
		},
		Business: ledgerdb.Business{
			Identifier: "BC0871234",
			LegalName:  "Acme Holdings Ltd.",
			State:      ledgerdb.BusinessStateHistorical,
			TaxID:      strPtr("123456789"),
		},
	}
}

func TestEmail_NotifiesWithBearerToken(t *testing.T) {
	var got []recorded
	srv := newServer(t, http.StatusOK, `{"id":"n-1"}`, &got)
	c := newClients(srv)

	resp, err := c.Email.Handle(context.Background(), testRequest("filing-confirmation"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"n-1"}`, resp)

	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "/notifications", got[0].path)
	assert.Equal(t, "Bearer tok-1", got[0].auth)
	assert.Equal(t, "filing-confirmation", got[0].body["template"])
	assert.Equal(t, float64(77), got[0].body["filingId"])
}

func TestBN_MissingTaxIDIsPermanent(t *testing.T) {
	var got []recorded
	srv := newServer(t, http.StatusOK, "", &got)
	c := newClients(srv)

	req := testRequest(BNRequestCorrelate)
	req.Business.TaxID = nil
	_, err := c.BN.Handle(context.Background(), req)
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.Empty(t, got)
}

func TestBN_Correlate(t *testing.T) {
	var got []recorded
	srv := newServer(t, http.StatusAccepted, "", &got)
	c := newClients(srv)

	_, err := c.BN.Handle(context.Background(), testRequest(BNRequestCorrelate))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/business-numbers/BC0871234/correlate", got[0].path)
	assert.Equal(t, "123456789", got[0].body["taxId"])
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"server error is transient", http.StatusBadGateway, false},
		{"throttled is transient", http.StatusTooManyRequests, false},
		{"bad request is permanent", http.StatusBadRequest, true},
		{"unauthorized is transient", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []recorded
			srv := newServer(t, tt.status, "nope", &got)
			c := newClients(srv)

			_, err := c.Credential.Handle(context.Background(), testRequest(CredentialRequestRevoke))
			require.Error(t, err)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
			assert.Equal(t, "/credentials/BC0871234/revoke", got[0].path)
		})
	}
}

func TestUnsupportedRequestTypeIsPermanent(t *testing.T) {
	var got []recorded
	srv := newServer(t, http.StatusOK, "", &got)
	c := newClients(srv)

	for name, h := range c.Handlers() {
		_, err := h.Handle(context.Background(), testRequest(""))
		assert.True(t, retry.IsPermanent(err), name)
	}
	assert.Equal(t, []string{"auth", "bn", "corp", "credential", "email"}, HandlerNames(c.Handlers()))
}

func TestCorp_Freeze(t *testing.T) {
	var got []recorded
	srv := newServer(t, http.StatusOK, `{"frozen":true}`, &got)
	c := newClients(srv)

	_, err := c.Corp.Freeze(context.Background(), "0123456")
	require.NoError(t, err)
	assert.Equal(t, "/corporations/0123456/freeze", got[0].path)

	var notFrozen []recorded
	srv2 := newServer(t, http.StatusOK, `{"frozen":false}`, &notFrozen)
	_, err = newClients(srv2).Corp.Freeze(context.Background(), "0123456")
	assert.True(t, retry.IsPermanent(err))
}

func TestNotConfiguredIsPermanent(t *testing.T) {
	c := New(DefaultConfig())
	_, err := c.Auth.Affiliate(context.Background(), "BC1")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, retry.IsPermanent(err))
}

func TestTokenSource_Caches(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "abc", "expires_in": 600})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.TokenURL = srv.URL
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	ts := NewTokenSource(cfg, srv.Client())

	for range 3 {
		tok, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "abc", tok)
	}
	assert.Equal(t, int64(1), calls.Load())

	ts.Invalidate()
	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestTokenSource_Disabled(t *testing.T) {
	ts := NewTokenSource(DefaultConfig(), http.DefaultClient)
	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}
