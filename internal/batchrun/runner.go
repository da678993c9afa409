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

// Package batchrun drives one batch flow over a run scope: start a run,
// reserve a slice of the backlog, and let a small pool of workers drain it
// through the retry executor.
package batchrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/filingrunner/internal/heartbeat"
	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/internal/workclaim"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

var tracer = otel.Tracer("github.com/cardinalhq/filingrunner/internal/batchrun")

// Flags are side-effect markers merged into a work item, e.g. frozen=true.
type Flags map[string]bool

// Processor performs the flow's side effect for one item. Returned errors are
// transient unless wrapped with retry.Permanent.
type Processor interface {
	Flow() string
	Process(ctx context.Context, item ledgerdb.WorkItem) (Flags, error)
}

// Result summarizes one run.
type Result struct {
	RunID     uuid.UUID
	Reserved  int
	Completed int64
	Failed    int64
	LeaseLost int64
	// Errors collects per-item problems that did not stop the run.
	Errors error
}

type Runner struct {
	coord *workclaim.Coordinator
	exec  *retry.Executor
	cfg   workclaim.Config
}

func NewRunner(coord *workclaim.Coordinator, exec *retry.Executor) *Runner {
	return &Runner{
		coord: coord,
		exec:  exec,
		cfg:   coord.Config(),
	}
}

// Run executes the processor over up to cfg.MaxItems items of runScope.
// Items are processed in claim order within each worker. A cancelled ctx
// stops the run without recording a status for the item in hand; its claim
// is left for the stale sweep.
func (r *Runner) Run(ctx context.Context, runScope string, p Processor) (Result, error) {
	run, err := r.coord.StartRun(ctx, runScope, p.Flow(), r.cfg.MaxItems, r.cfg.BatchSize)
	if err != nil {
		return Result{}, err
	}
	ctx = logctx.WithRun(ctx, run.ID, runScope)
	ll := logctx.FromContext(ctx)
	res := Result{RunID: run.ID}

	res.Reserved, err = r.coord.Reserve(ctx, run.ID, runScope, r.cfg.MaxItems)
	if err != nil {
		return res, err
	}
	if res.Reserved == 0 {
		ll.Info("Nothing to do")
		return res, nil
	}

	// A run whose lease may have gone stale must stop: the sweep is free to
	// re-offer its items.
	ctx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	giveUp := max(1, int(r.cfg.StaleAfter/r.cfg.HeartbeatInterval)-1)
	hb := heartbeat.New(func(ctx context.Context) error {
		_, err := r.coord.Heartbeat(ctx, run.ID)
		return err
	}, r.cfg.HeartbeatInterval, ll, heartbeat.WithGiveUp(giveUp, func(err error) {
		ll.Error("Stopping run, claim lease cannot be renewed", slog.Any("error", err))
		cancelRun(err)
	}))
	stopHeartbeat := hb.Start(ctx)
	defer stopHeartbeat()

	var (
		completed, failed, lost atomic.Int64
		errMu                   sync.Mutex
		errs                    *multierror.Error
	)
	note := func(err error) {
		errMu.Lock()
		errs = multierror.Append(errs, err)
		errMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		g.Go(func() error {
			for {
				batch, err := r.coord.ClaimBatch(gctx, run.ID, r.cfg.BatchSize)
				if err != nil {
					return err
				}
				if len(batch) == 0 {
					return nil
				}
				for _, item := range batch {
					status, err := r.processOne(gctx, run, item, p)
					if err != nil {
						if errors.Is(err, workclaim.ErrLeaseLost) {
							lost.Add(1)
							note(err)
							continue
						}
						return err
					}
					if status == ledgerdb.ProcessingStatusCompleted {
						completed.Add(1)
					} else {
						failed.Add(1)
					}
				}
			}
		})
	}
	runErr := g.Wait()
	if runErr != nil && ctx.Err() != nil {
		runErr = context.Cause(ctx)
	}

	res.Completed = completed.Load()
	res.Failed = failed.Load()
	res.LeaseLost = lost.Load()
	res.Errors = errs.ErrorOrNil()

	ll.Info("Run finished",
		slog.Int("reserved", res.Reserved),
		slog.Int64("completed", res.Completed),
		slog.Int64("failed", res.Failed),
		slog.Int64("lease_lost", res.LeaseLost),
		slog.Any("error", runErr))
	return res, runErr
}

func (r *Runner) processOne(ctx context.Context, run ledgerdb.Run, item ledgerdb.WorkItem, p Processor) (status ledgerdb.ProcessingStatus, err error) {
	ctx, span := tracer.Start(ctx, "batchrun.item", trace.WithAttributes(
		attribute.String("run_id", run.ID.String()),
		attribute.String("run_scope", run.RunScope),
		attribute.String("flow", p.Flow()),
		attribute.String("item_id", item.ItemID)))
	defer func() {
		span.SetAttributes(attribute.String("status", string(status)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	ctx = logctx.WithItem(ctx, item.ItemID)

	out := retry.Execute(ctx, r.exec, 0, func(ctx context.Context, attempt int) (Flags, error) {
		return p.Process(ctx, item)
	})
	if err := ctx.Err(); err != nil {
		return "", err
	}

	update := workclaim.StatusUpdate{
		RunID:    run.ID,
		RunScope: run.RunScope,
		ItemID:   item.ItemID,
		Attempts: int(item.Attempts) + out.Attempts,
		Flags:    out.Value,
	}
	if out.Succeeded() {
		update.Status = ledgerdb.ProcessingStatusCompleted
	} else {
		update.Status = ledgerdb.ProcessingStatusFailed
		update.Error = diagnostic(out)
		span.SetStatus(codes.Error, update.Error)
		logctx.FromContext(ctx).Warn("Item failed",
			slog.Int("attempts", out.Attempts),
			slog.Bool("permanent", out.Permanent),
			slog.Any("error", out.LastError))
	}

	if err := r.coord.UpdateStatus(ctx, update); err != nil {
		return "", err
	}
	return update.Status, nil
}

// diagnostic is the last_error text recorded for a failed item.
func diagnostic[T any](out retry.Outcome[T]) string {
	kind := "transient"
	if out.Permanent {
		kind = "permanent"
	}
	msg := "unknown error"
	if out.LastError != nil {
		msg = out.LastError.Error()
	}
	return fmt.Sprintf("%s after %d attempt(s): %s", kind, out.Attempts, msg)
}

// ItemFlags decodes an item's stored flags.
func ItemFlags(item ledgerdb.WorkItem) Flags {
	f := Flags{}
	if len(item.Flags) > 0 {
		_ = json.Unmarshal(item.Flags, &f)
	}
	return f
}
