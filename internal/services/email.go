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

// EmailClient talks to the notification service.
type EmailClient struct {
	c httpClient
}

type notification struct {
	BusinessIdentifier string `json:"businessIdentifier"`
	Template           string `json:"template"`
	FilingID           int64  `json:"filingId,omitempty"`
	FilingType         string `json:"filingType,omitempty"`
}

func (e *EmailClient) Name() string { return e.c.name }

// Notify sends a templated email about a business. filingID may be zero.
func (e *EmailClient) Notify(ctx context.Context, identifier, template string, filingID int64, filingType string) (string, error) {
	return e.c.do(ctx, http.MethodPost, "/notifications", notification{
		BusinessIdentifier: identifier,
		Template:           template,
		FilingID:           filingID,
		FilingType:         filingType,
	}, nil)
}

func (e *EmailClient) Handle(ctx context.Context, req Request) (string, error) {
	if req.RequestType == "" {
		return "", retry.Permanent(unsupported(e.c.name, req.RequestType))
	}
	return e.Notify(ctx, req.Filing.BusinessIdentifier, req.RequestType, req.Filing.ID, req.Filing.FilingType)
}
