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

// Package retry runs a unit of work a bounded number of times, separating
// transient failures that deserve another attempt from permanent ones that
// do not.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/filingrunner/internal/logctx"
)

type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Outcome is the result of Execute. Attempts counts invocations of the unit
// of work, so an always-failing unit under MaxAttempts=N reports N.
type Outcome[T any] struct {
	Status    Status
	Attempts  int
	LastError error
	Permanent bool
	Value     T
}

func (o Outcome[T]) Succeeded() bool {
	return o.Status == StatusCompleted
}

// Func is one attempt. attempt starts at 1.
type Func[T any] func(ctx context.Context, attempt int) (T, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// AttemptObserver is told about every failed attempt that will be retried.
type AttemptObserver func(attempt int, err error, delay time.Duration)

type Executor struct {
	cfg      Config
	name     string
	sleep    SleepFunc
	observer AttemptObserver
}

type Option func(*Executor)

// WithSleeper replaces the real clock; tests use it to avoid waiting.
func WithSleeper(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

func WithObserver(fn AttemptObserver) Option {
	return func(e *Executor) { e.observer = fn }
}

// WithName labels the executor in logs and metrics.
func WithName(name string) Option {
	return func(e *Executor) { e.name = name }
}

func NewExecutor(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:   cfg,
		name:  "default",
		sleep: sleepContext,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Executor) Config() Config {
	return e.cfg
}

// Execute runs fn until it succeeds, returns a permanent error, or has been
// invoked maxAttempts times. maxAttempts <= 0 uses the configured bound.
// Errors never escape as a second return value; the Outcome carries them.
func Execute[T any](ctx context.Context, e *Executor, maxAttempts int, fn Func[T]) Outcome[T] {
	if maxAttempts <= 0 {
		maxAttempts = e.cfg.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	ll := logctx.FromContext(ctx).With(slog.String("executor", e.name))
	b := e.cfg.NewBackOff()

	var out Outcome[T]
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Status = StatusFailed
			out.LastError = errors.Join(out.LastError, err)
			break
		}

		value, err := fn(ctx, attempt)
		out.Attempts = attempt
		if err == nil {
			out.Status = StatusCompleted
			out.Value = value
			out.LastError = nil
			break
		}
		out.LastError = err

		if IsPermanent(err) {
			ll.Warn("Permanent failure, not retrying",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			out.Status = StatusFailed
			out.Permanent = true
			break
		}

		if attempt >= maxAttempts {
			ll.Warn("Retry budget exhausted",
				slog.Int("attempts", attempt),
				slog.Any("error", err))
			out.Status = StatusFailed
			break
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			out.Status = StatusFailed
			break
		}
		if e.observer != nil {
			e.observer(attempt, err, delay)
		}
		ll.Debug("Attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if err := e.sleep(ctx, delay); err != nil {
			out.Status = StatusFailed
			out.LastError = errors.Join(out.LastError, err)
			break
		}
	}

	recordOutcome(ctx, e.name, out.Status, out.Permanent, out.Attempts)
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func recordOutcome(ctx context.Context, name string, status Status, permanent bool, attempts int) {
	attrs := metric.WithAttributes(
		attribute.String("executor", name),
		attribute.String("status", string(status)),
		attribute.Bool("permanent", permanent),
	)
	outcomeCounter.Add(ctx, 1, attrs)
	attemptsHistogram.Record(ctx, int64(attempts), attrs)
}
