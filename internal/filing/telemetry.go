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

package filing

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/filingrunner/ledgerdb"
)

var (
	transitions         metric.Int64Counter
	integrityViolations metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/filingrunner/internal/filing")

	var err error
	transitions, err = meter.Int64Counter(
		"filingrunner.filing.transitions",
		metric.WithDescription("Filing status transitions, by target status"),
	)
	if err != nil {
		log.Fatalf("failed to create filing.transitions counter: %v", err)
	}

	integrityViolations, err = meter.Int64Counter(
		"filingrunner.filing.integrity_violations",
		metric.WithDescription("Apply transactions rolled back because a status write did not land"),
	)
	if err != nil {
		log.Fatalf("failed to create filing.integrity_violations counter: %v", err)
	}
}

func transitionAttr(filingType string, to ledgerdb.FilingStatus) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("filing_type", filingType),
		attribute.String("status", string(to)),
	)
}
