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

// Package heartbeat keeps a run's claim lease fresh while it works.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Func renews the lease once.
type Func func(ctx context.Context) error

// Heartbeater calls a Func immediately and then every interval until stopped.
// When a give-up threshold is set, that many consecutive failures mean the
// lease can no longer be trusted and the give-up callback fires once.
type Heartbeater struct {
	beat     Func
	interval time.Duration
	ll       *slog.Logger

	giveUpAfter int64
	onGiveUp    func(error)
	gaveUp      sync.Once

	failures atomic.Int64
	lastOK   atomic.Int64
}

type Option func(*Heartbeater)

// WithGiveUp calls fn with the last error after n consecutive failures.
func WithGiveUp(n int, fn func(error)) Option {
	return func(h *Heartbeater) {
		h.giveUpAfter = int64(n)
		h.onGiveUp = fn
	}
}

func New(beat Func, interval time.Duration, logger *slog.Logger, opts ...Option) *Heartbeater {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Heartbeater{
		beat:     beat,
		interval: interval,
		ll:       logger.With(slog.String("component", "heartbeater")),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Start runs the loop in a goroutine. The returned function stops it and
// waits for an in-flight beat to return.
func (h *Heartbeater) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.loop(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (h *Heartbeater) ConsecutiveFailures() int64 {
	return h.failures.Load()
}

// LastSuccess is the zero time until a beat succeeds.
func (h *Heartbeater) LastSuccess() time.Time {
	if ns := h.lastOK.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

func (h *Heartbeater) loop(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		h.once(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (h *Heartbeater) once(ctx context.Context) {
	err := h.beat(ctx)
	if err == nil {
		h.failures.Store(0)
		h.lastOK.Store(time.Now().UnixNano())
		return
	}
	if ctx.Err() != nil {
		return
	}

	n := h.failures.Add(1)
	h.ll.Error("Heartbeat failed", slog.Any("error", err), slog.Int64("consecutive_failures", n))
	if h.onGiveUp != nil && h.giveUpAfter > 0 && n >= h.giveUpAfter {
		h.gaveUp.Do(func() {
			h.onGiveUp(fmt.Errorf("lease not renewed after %d attempts: %w", n, err))
		})
	}
}
