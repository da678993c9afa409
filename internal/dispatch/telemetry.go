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

package dispatch

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	dispatchSteps metric.Int64Counter
	rechecks      metric.Int64Counter

	tracer trace.Tracer
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/filingrunner/internal/dispatch")
	tracer = otel.Tracer("github.com/cardinalhq/filingrunner/internal/dispatch")

	var err error
	dispatchSteps, err = meter.Int64Counter(
		"filingrunner.dispatch.steps",
		metric.WithDescription("Dispatch plan steps, by service and result"),
	)
	if err != nil {
		log.Fatalf("failed to create dispatch.steps counter: %v", err)
	}

	rechecks, err = meter.Int64Counter(
		"filingrunner.dispatch.rechecks",
		metric.WithDescription("Completed filings re-announced because a step is still pending"),
	)
	if err != nil {
		log.Fatalf("failed to create dispatch.rechecks counter: %v", err)
	}
}

func stepAttr(service string, res StepResult) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("result", string(res)),
	)
}
