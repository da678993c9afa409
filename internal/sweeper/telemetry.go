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

package sweeper

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var sweptCounter metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/filingrunner/internal/sweeper")

	var err error
	sweptCounter, err = meter.Int64Counter(
		"filingrunner.sweeper.swept_total",
		metric.WithDescription("Rows acted on by sweeper tasks"),
	)
	if err != nil {
		log.Fatalf("failed to create swept_total counter: %v", err)
	}
}

func recordTask(ctx context.Context, task string, n int) {
	sweptCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("task", task)))
}
