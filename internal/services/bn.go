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
	BNRequestCorrelate  = "correlate"
	BNRequestChangeName = "change-name"
)

// BNClient talks to the business-number service.
type BNClient struct {
	c httpClient
}

type bnCorrelation struct {
	TaxID     string `json:"taxId"`
	LegalName string `json:"legalName"`
}

type bnNameChange struct {
	LegalName string `json:"legalName"`
	FilingID  int64  `json:"filingId"`
}

func (b *BNClient) Name() string { return b.c.name }

func (b *BNClient) Handle(ctx context.Context, req Request) (string, error) {
	id := req.Business.Identifier
	if req.Business.TaxID == nil || *req.Business.TaxID == "" {
		// The tax id arrives from another system; retrying now cannot help.
		return "", retry.Permanentf("bn: no tax identifier available yet for %s", id)
	}

	switch req.RequestType {
	case BNRequestCorrelate:
		return b.c.do(ctx, http.MethodPost, "/business-numbers/"+escape(id)+"/correlate", bnCorrelation{
			TaxID:     *req.Business.TaxID,
			LegalName: req.Business.LegalName,
		}, nil)
	case BNRequestChangeName:
		return b.c.do(ctx, http.MethodPut, "/business-numbers/"+escape(id)+"/name", bnNameChange{
			LegalName: req.Business.LegalName,
			FilingID:  req.Filing.ID,
		}, nil)
	default:
		return "", retry.Permanent(unsupported(b.c.name, req.RequestType))
	}
}
