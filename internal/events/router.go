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
	"log/slog"

	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
)

// HandlerFunc handles one decoded envelope.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Router dispatches envelopes to handlers by event type. Types with no
// handler are acknowledged and ignored so that topics can be shared.
type Router struct {
	handlers map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: map[string]HandlerFunc{}}
}

func (r *Router) Handle(eventType string, h HandlerFunc) *Router {
	r.handlers[eventType] = h
	return r
}

// Types lists the event types with handlers.
func (r *Router) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// HandleMessage is a MessageHandler. Undecodable messages are permanent
// failures.
func (r *Router) HandleMessage(ctx context.Context, msg ConsumedMessage) error {
	env, err := DecodeEnvelope(msg.Value)
	if err != nil {
		return retry.Permanent(err)
	}
	ll := logctx.FromContext(ctx).With(
		slog.String("event_id", env.ID),
		slog.String("event_type", env.Type))
	h, ok := r.handlers[env.Type]
	if !ok {
		ll.Debug("No handler for event type, skipping")
		return nil
	}
	return h(logctx.WithLogger(ctx, ll), env)
}
