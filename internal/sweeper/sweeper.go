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

// Package sweeper runs the periodic recovery tasks: re-offering abandoned
// work item claims, applying filings whose effective date has arrived,
// re-emitting completions that were never published, and re-checking
// dispatch steps left pending.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/workclaim"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

type StaleSweeper interface {
	SweepStale(ctx context.Context, p workclaim.SweepParams) ([]ledgerdb.WorkItemSweepStaleRow, error)
}

type FilingSweeper interface {
	SweepDue(ctx context.Context, limit int) (int, error)
	RepublishCompleted(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type DispatchRechecker interface {
	RecheckPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type Config struct {
	Interval       time.Duration
	StaleAfter     time.Duration
	StaleLimit     int
	DueLimit       int
	RepublishAfter time.Duration
	RepublishLimit int
	RecheckAfter   time.Duration
	RecheckLimit   int
}

type Sweeper struct {
	claims   StaleSweeper
	filings  FilingSweeper
	dispatch DispatchRechecker
	cfg      Config
}

// New returns a sweeper. Either dependency may be nil to skip its tasks.
func New(claims StaleSweeper, filings FilingSweeper, cfg Config) *Sweeper {
	return &Sweeper{claims: claims, filings: filings, cfg: cfg}
}

// WithRechecker enables the pending dispatch step re-check.
func (s *Sweeper) WithRechecker(r DispatchRechecker) *Sweeper {
	s.dispatch = r
	return s
}

// Run loops until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	logctx.FromContext(ctx).Info("Starting sweeper",
		slog.Duration("interval", s.cfg.Interval),
		slog.Bool("claims", s.claims != nil),
		slog.Bool("filings", s.filings != nil),
		slog.Bool("dispatch", s.dispatch != nil))

	g, gctx := errgroup.WithContext(ctx)
	if s.claims != nil {
		g.Go(func() error { return periodicLoop(gctx, s.cfg.Interval, "stale_claims", s.SweepStaleClaims) })
	}
	if s.filings != nil {
		g.Go(func() error { return periodicLoop(gctx, s.cfg.Interval, "due_filings", s.ApplyDueFilings) })
		g.Go(func() error { return periodicLoop(gctx, s.cfg.Interval, "republish", s.RepublishCompletions) })
	}
	if s.dispatch != nil {
		g.Go(func() error { return periodicLoop(gctx, s.cfg.Interval, "dispatch_recheck", s.RecheckDispatch) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SweepStaleClaims releases claims older than the staleness threshold in
// every scope.
func (s *Sweeper) SweepStaleClaims(ctx context.Context) error {
	rows, err := s.claims.SweepStale(ctx, workclaim.SweepParams{
		StaleAfter: s.cfg.StaleAfter,
		Limit:      s.cfg.StaleLimit,
	})
	if err != nil {
		return err
	}
	recordTask(ctx, "stale_claims", len(rows))
	return nil
}

func (s *Sweeper) ApplyDueFilings(ctx context.Context) error {
	n, err := s.filings.SweepDue(ctx, s.cfg.DueLimit)
	recordTask(ctx, "due_filings", n)
	if n > 0 {
		logctx.FromContext(ctx).Info("Applied future-effective filings", slog.Int("count", n))
	}
	return err
}

func (s *Sweeper) RepublishCompletions(ctx context.Context) error {
	n, err := s.filings.RepublishCompleted(ctx, s.cfg.RepublishAfter, s.cfg.RepublishLimit)
	recordTask(ctx, "republish", n)
	if n > 0 {
		logctx.FromContext(ctx).Info("Republished filing completions", slog.Int("count", n))
	}
	return err
}

// RecheckDispatch re-announces completed filings whose dispatch steps are
// still pending, such as a step that was missing a tax id.
func (s *Sweeper) RecheckDispatch(ctx context.Context) error {
	n, err := s.dispatch.RecheckPending(ctx, s.cfg.RecheckAfter, s.cfg.RecheckLimit)
	recordTask(ctx, "dispatch_recheck", n)
	if n > 0 {
		logctx.FromContext(ctx).Info("Re-checked pending dispatch steps", slog.Int("count", n))
	}
	return err
}

func periodicLoop(ctx context.Context, period time.Duration, name string, f func(context.Context) error) error {
	run := func() {
		if err := f(ctx); err != nil && ctx.Err() == nil {
			logctx.FromContext(ctx).Error("periodic task error",
				slog.String("task", name),
				slog.Any("error", err))
		}
	}
	run()

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			run()
		}
	}
}
