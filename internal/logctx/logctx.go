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

package logctx

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey struct{}

var loggerKey = contextKey{}

// WithLogger returns a new context with the given logger stored in it.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves a logger from the context. If no logger is found,
// it returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRun attaches run attributes to the context logger.
func WithRun(ctx context.Context, runID uuid.UUID, runScope string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(
		slog.String("run_id", runID.String()),
		slog.String("run_scope", runScope),
	))
}

// WithItem attaches the work item id to the context logger.
func WithItem(ctx context.Context, itemID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(slog.String("item_id", itemID)))
}

// WithFiling attaches filing attributes to the context logger.
func WithFiling(ctx context.Context, filingID int64, filingType string) context.Context {
	ll := FromContext(ctx).With(slog.Int64("filing_id", filingID))
	if filingType != "" {
		ll = ll.With(slog.String("filing_type", filingType))
	}
	return WithLogger(ctx, ll)
}
