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

const (
	CredentialRequestIssue  = "issue"
	CredentialRequestRevoke = "revoke"
)

// CredentialClient talks to the digital credential service.
type CredentialClient struct {
	c httpClient
}

type credentialChange struct {
	Reason   string `json:"reason"`
	FilingID int64  `json:"filingId"`
}

func (cc *CredentialClient) Name() string { return cc.c.name }

func (cc *CredentialClient) Handle(ctx context.Context, req Request) (string, error) {
	id := escape(req.Business.Identifier)
	body := credentialChange{Reason: req.Filing.FilingType, FilingID: req.Filing.ID}
	switch req.RequestType {
	case CredentialRequestIssue:
		return cc.c.do(ctx, http.MethodPost, "/credentials/"+id+"/issue", body, nil)
	case CredentialRequestRevoke:
		return cc.c.do(ctx, http.MethodPost, "/credentials/"+id+"/revoke", body, nil)
	default:
		return "", retry.Permanent(unsupported(cc.c.name, req.RequestType))
	}
}
