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

// Package services holds the clients for the downstream HTTP services a
// completed filing or a batch flow fans out to.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/cardinalhq/filingrunner/ledgerdb"
)

// Request is one downstream call the dispatcher wants made on behalf of a
// filing.
type Request struct {
	RequestType string
	Filing      ledgerdb.Filing
	Business    ledgerdb.Business
}

// Handler performs requests for one downstream service. The returned string
// is stored as the request tracker's response_object.
type Handler interface {
	Name() string
	Handle(ctx context.Context, req Request) (string, error)
}

// Clients bundles the process-wide downstream clients. They share one
// http.Client and one token cache.
type Clients struct {
	Email      *EmailClient
	BN         *BNClient
	Credential *CredentialClient
	Auth       *AuthClient
	Corp       *CorpClient
}

func New(cfg Config) *Clients {
	hc := &http.Client{Timeout: cfg.Timeout}
	return NewWithHTTPClient(cfg, hc)
}

func NewWithHTTPClient(cfg Config, hc *http.Client) *Clients {
	tokens := NewTokenSource(cfg, hc)
	return &Clients{
		Email:      &EmailClient{c: newHTTPClient("email", cfg.EmailURL, hc, tokens)},
		BN:         &BNClient{c: newHTTPClient("bn", cfg.BNURL, hc, tokens)},
		Credential: &CredentialClient{c: newHTTPClient("credential", cfg.CredentialURL, hc, tokens)},
		Auth:       &AuthClient{c: newHTTPClient("auth", cfg.AuthURL, hc, tokens)},
		Corp:       &CorpClient{c: newHTTPClient("corp", cfg.CorpURL, hc, tokens)},
	}
}

// Handlers returns the dispatchable clients keyed by service name.
func (c *Clients) Handlers() map[string]Handler {
	out := map[string]Handler{}
	for _, h := range []Handler{c.Email, c.BN, c.Credential, c.Auth, c.Corp} {
		out[h.Name()] = h
	}
	return out
}

// HandlerNames lists the keys of a handler map in sorted order.
func HandlerNames(handlers map[string]Handler) []string {
	names := make([]string, 0, len(handlers))
	for n := range handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func unsupported(service, requestType string) error {
	return fmt.Errorf("%s: unsupported request type %q", service, requestType)
}

func escape(s string) string {
	return url.PathEscape(s)
}
