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

package events

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

var (
	messagesConsumed  metric.Int64Counter
	messagesPublished metric.Int64Counter
	publishErrors     metric.Int64Counter
	bytesPublished    metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/filingrunner/internal/events")
	tracer = otel.Tracer("github.com/cardinalhq/filingrunner/internal/events")

	var err error
	messagesConsumed, err = meter.Int64Counter(
		"filingrunner.events.consumer.messages",
		metric.WithDescription("Kafka messages consumed, by outcome"),
	)
	if err != nil {
		log.Fatalf("failed to create consumer.messages counter: %v", err)
	}

	messagesPublished, err = meter.Int64Counter(
		"filingrunner.events.producer.messages.sent",
		metric.WithDescription("Kafka messages successfully sent"),
	)
	if err != nil {
		log.Fatalf("failed to create producer.messages.sent counter: %v", err)
	}

	publishErrors, err = meter.Int64Counter(
		"filingrunner.events.producer.messages.errors",
		metric.WithDescription("Kafka message send errors"),
	)
	if err != nil {
		log.Fatalf("failed to create producer.messages.errors counter: %v", err)
	}

	bytesPublished, err = meter.Int64Counter(
		"filingrunner.events.producer.bytes.sent",
		metric.WithDescription("Bytes sent to Kafka"),
		metric.WithUnit("By"),
	)
	if err != nil {
		log.Fatalf("failed to create producer.bytes.sent counter: %v", err)
	}
}

func recordConsumed(ctx context.Context, topic, outcome string) {
	messagesConsumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome)))
}

func recordPublished(ctx context.Context, topic string, size int, err error) {
	attrs := metric.WithAttributes(attribute.String("topic", topic))
	if err != nil {
		publishErrors.Add(ctx, 1, attrs)
		return
	}
	messagesPublished.Add(ctx, 1, attrs)
	bytesPublished.Add(ctx, int64(size), attrs)
}
