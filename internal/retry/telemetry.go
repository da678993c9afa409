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

package retry

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	outcomeCounter    metric.Int64Counter
	attemptsHistogram metric.Int64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/filingrunner/internal/retry")

	var err error
	outcomeCounter, err = meter.Int64Counter(
		"filingrunner.retry.outcomes",
		metric.WithDescription("Number of executions finished, by status"),
	)
	if err != nil {
		log.Fatalf("failed to create retry.outcomes counter: %v", err)
	}

	attemptsHistogram, err = meter.Int64Histogram(
		"filingrunner.retry.attempts",
		metric.WithDescription("Attempts used per execution"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 13, 21),
	)
	if err != nil {
		log.Fatalf("failed to create retry.attempts histogram: %v", err)
	}
}
