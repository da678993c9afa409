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

const CorpRequestFreeze = "freeze"

// CorpClient talks to the legacy corporation registry.
type CorpClient struct {
	c httpClient
}

type freezeResponse struct {
	Frozen bool `json:"frozen"`
}

func (cc *CorpClient) Name() string { return cc.c.name }

// Freeze stops the legacy registry from accepting further changes to the
// corporation. Freezing an already frozen corporation succeeds.
func (cc *CorpClient) Freeze(ctx context.Context, identifier string) (string, error) {
	var out freezeResponse
	raw, err := cc.c.do(ctx, http.MethodPost, "/corporations/"+escape(identifier)+"/freeze", nil, &out)
	if err != nil {
		return raw, err
	}
	if !out.Frozen {
		return raw, retry.Permanentf("corp: registry did not freeze %s", identifier)
	}
	return raw, nil
}

func (cc *CorpClient) Handle(ctx context.Context, req Request) (string, error) {
	if req.RequestType != CorpRequestFreeze {
		return "", retry.Permanent(unsupported(cc.c.name, req.RequestType))
	}
	return cc.Freeze(ctx, req.Business.Identifier)
}
