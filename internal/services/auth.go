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
	"net/http"

	"github.com/cardinalhq/filingrunner/internal/retry"
)

const AuthRequestUpdateEntity = "update-entity"

// AuthClient talks to the account and affiliation service.
type AuthClient struct {
	c httpClient
}

type entityUpdate struct {
	LegalName string `json:"legalName"`
	State     string `json:"state"`
}

type affiliation struct {
	BusinessIdentifier string `json:"businessIdentifier"`
}

func (a *AuthClient) Name() string { return a.c.name }

// Affiliate registers the business with the account service so it can be
// managed online.
func (a *AuthClient) Affiliate(ctx context.Context, identifier string) (string, error) {
	return a.c.do(ctx, http.MethodPost, "/entities", affiliation{BusinessIdentifier: identifier}, nil)
}

func (a *AuthClient) Handle(ctx context.Context, req Request) (string, error) {
	if req.RequestType != AuthRequestUpdateEntity {
		return "", retry.Permanent(unsupported(a.c.name, req.RequestType))
	}
	return a.c.do(ctx, http.MethodPatch, "/entities/"+escape(req.Business.Identifier), entityUpdate{
		LegalName: req.Business.LegalName,
		State:     string(req.Business.State),
	}, nil)
}
