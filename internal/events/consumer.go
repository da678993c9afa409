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
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
)

// MessageHandler processes one consumed message. Errors wrapped with
// retry.Permanent drop the message; others are retried and, once the
// executor gives up, stop the consumer without committing.
type MessageHandler func(ctx context.Context, msg ConsumedMessage) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
	topic  string
	group  string
	exec   *retry.Executor
}

func newConsumer(reader messageReader, topic, group string, exec *retry.Executor) *Consumer {
	if exec == nil {
		exec = retry.NewExecutor(retry.DefaultConfig(), retry.WithName("consumer"))
	}
	return &Consumer{reader: reader, topic: topic, group: group, exec: exec}
}

// Consume reads messages one at a time until ctx is cancelled, committing
// each offset only after handler has finished with it.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	ll := logctx.FromContext(ctx).With(
		slog.String("topic", c.topic),
		slog.String("consumerGroup", c.group))
	ll.Info("Starting Kafka consumer")

	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}
		msg := fromKafka(km)

		out := c.handle(ctx, msg, handler)
		switch {
		case out.Succeeded():
			recordConsumed(ctx, c.topic, "handled")
		case out.Permanent:
			recordConsumed(ctx, c.topic, "dropped")
			ll.Warn("Dropping message after permanent failure",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", out.LastError))
		default:
			recordConsumed(ctx, c.topic, "failed")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("handler failed at %s after %d attempt(s): %w",
				msg.Position(), out.Attempts, out.LastError)
		}

		if err := c.reader.CommitMessages(ctx, km); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

// handle runs handler for one message under the executor, in its own span.
func (c *Consumer) handle(ctx context.Context, msg ConsumedMessage, handler MessageHandler) retry.Outcome[struct{}] {
	ctx, span := tracer.Start(ctx, "events.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", c.topic),
			attribute.String("messaging.consumer.group.name", c.group),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
			attribute.String("event_type", msg.EventType())))
	defer span.End()

	out := retry.Execute(ctx, c.exec, 0, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, handler(ctx, msg)
	})
	span.SetAttributes(
		attribute.Int("attempts", out.Attempts),
		attribute.Bool("permanent", out.Permanent))
	if out.LastError != nil && !out.Succeeded() {
		span.RecordError(out.LastError)
		span.SetStatus(codes.Error, out.LastError.Error())
	}
	return out
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
