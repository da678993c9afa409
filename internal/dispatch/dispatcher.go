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

// Package dispatch fans a completed filing out to downstream services. Each
// (business, service, request type, filing) tuple has one request tracker
// row; once it is processed the step is never called again, so replayed
// completion events are harmless.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/internal/services"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

var (
	ErrFilingNotCompleted = errors.New("filing is not COMPLETED")
	ErrUnknownService     = errors.New("no handler for service")

	errTrackerProcessed = errors.New("request tracker already processed")
)

// Store is the ledger surface the dispatcher needs.
type Store interface {
	FilingGet(ctx context.Context, id int64) (ledgerdb.Filing, error)
	BusinessGet(ctx context.Context, identifier string) (ledgerdb.Business, error)
	RequestTrackerEnsure(ctx context.Context, arg ledgerdb.RequestTrackerEnsureParams) (ledgerdb.RequestTracker, error)
	RequestTrackerRecordFailure(ctx context.Context, arg ledgerdb.RequestTrackerRecordFailureParams) (int32, error)
	RequestTrackerRecordPermanentFailure(ctx context.Context, arg ledgerdb.RequestTrackerRecordPermanentFailureParams) (int64, error)
	RequestTrackerMarkProcessed(ctx context.Context, arg ledgerdb.RequestTrackerMarkProcessedParams) (int64, error)
	RequestTrackerListForFiling(ctx context.Context, filingID int64) ([]ledgerdb.RequestTracker, error)
	BusinessSetTaxID(ctx context.Context, arg ledgerdb.BusinessSetTaxIDParams) (int64, error)
}

type Dispatcher struct {
	store       Store
	handlers    map[string]services.Handler
	plans       Plans
	exec        *retry.Executor
	retryBudget int
}

func NewDispatcher(store Store, handlers map[string]services.Handler, plans Plans, exec *retry.Executor, retryBudget int) *Dispatcher {
	if retryBudget < 1 {
		retryBudget = DefaultConfig().RetryBudget
	}
	return &Dispatcher{
		store:       store,
		handlers:    handlers,
		plans:       plans,
		exec:        exec,
		retryBudget: retryBudget,
	}
}

// StepResult is what happened to one planned step.
type StepResult string

const (
	StepDispatched StepResult = "dispatched"
	StepSkipped    StepResult = "skipped"
	StepFailed     StepResult = "failed"
	StepExhausted  StepResult = "exhausted"
	StepNotReached StepResult = "not_reached"
)

// Report summarises one Dispatch call, step results in plan order.
type Report struct {
	FilingID int64
	Steps    []Step
	Results  []StepResult
	Halted   bool
}

// Count returns how many steps ended with r.
func (r Report) Count(res StepResult) int {
	n := 0
	for _, x := range r.Results {
		if x == res {
			n++
		}
	}
	return n
}

// Dispatch runs the plan for a completed filing, one step at a time in plan
// order. Steps already processed are skipped. A failed step is recorded on
// its tracker; a failed halt_on_failure step leaves the remaining steps for
// a later delivery. The returned error aggregates failures that are worth
// redelivering: transient errors on steps with budget left. Permanent
// failures stay pending on their tracker for Redispatch or the sweeper.
func (d *Dispatcher) Dispatch(ctx context.Context, filingID int64) (Report, error) {
	rep := Report{FilingID: filingID}

	f, err := d.store.FilingGet(ctx, filingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rep, retry.Permanentf("filing %d not found", filingID)
		}
		return rep, fmt.Errorf("failed to load filing %d: %w", filingID, err)
	}
	if f.Status != ledgerdb.FilingStatusCompleted {
		return rep, retry.Permanent(fmt.Errorf("%w: filing %d is %s", ErrFilingNotCompleted, f.ID, f.Status))
	}

	ctx = logctx.WithFiling(ctx, f.ID, f.FilingType)
	ll := logctx.FromContext(ctx)

	steps := d.plans[f.FilingType]
	rep.Steps = steps
	rep.Results = make([]StepResult, len(steps))
	for i := range rep.Results {
		rep.Results[i] = StepNotReached
	}
	if len(steps) == 0 {
		ll.Debug("No dispatch plan for filing type")
		return rep, nil
	}

	business, err := d.store.BusinessGet(ctx, f.BusinessIdentifier)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		business = ledgerdb.Business{Identifier: f.BusinessIdentifier}
	default:
		return rep, fmt.Errorf("failed to load business %s: %w", f.BusinessIdentifier, err)
	}

	var errs *multierror.Error
	for i, step := range steps {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		res, stepErr := d.runStep(ctx, f, business, step)
		rep.Results[i] = res
		dispatchSteps.Add(ctx, 1, stepAttr(step.Service, res))

		if res == StepFailed && !retry.IsPermanent(stepErr) {
			errs = multierror.Append(errs, fmt.Errorf("%s/%s: %w", step.Service, step.RequestType, stepErr))
		}
		if res == StepFailed || res == StepExhausted {
			if step.HaltOnFailure {
				ll.Warn("Dispatch halted by failed step",
					slog.String("service", step.Service),
					slog.String("request_type", step.RequestType),
					slog.Any("error", stepErr))
				rep.Halted = true
				break
			}
		}
	}
	return rep, errs.ErrorOrNil()
}

func (d *Dispatcher) runStep(ctx context.Context, f ledgerdb.Filing, business ledgerdb.Business, step Step) (res StepResult, err error) {
	ctx, span := tracer.Start(ctx, "dispatch.step", trace.WithAttributes(
		attribute.Int64("filing_id", f.ID),
		attribute.String("service", step.Service),
		attribute.String("request_type", step.RequestType)))
	defer func() {
		span.SetAttributes(attribute.String("result", string(res)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ll := logctx.FromContext(ctx).With(
		slog.String("service", step.Service),
		slog.String("request_type", step.RequestType))

	handler, ok := d.handlers[step.Service]
	if !ok {
		return StepFailed, retry.Permanent(fmt.Errorf("%w: %s", ErrUnknownService, step.Service))
	}

	tracker, err := d.ensureTracker(ctx, f, step)
	if err != nil {
		return StepFailed, err
	}
	if tracker.IsProcessed {
		ll.Debug("Step already processed, skipping", slog.Int64("tracker_id", tracker.ID))
		return StepSkipped, nil
	}
	if int(tracker.RetryNumber) >= d.retryBudget {
		ll.Warn("Step retry budget exhausted", slog.Int("retry_number", int(tracker.RetryNumber)))
		return StepExhausted, nil
	}

	req := services.Request{RequestType: step.RequestType, Filing: f, Business: business}
	out := retry.Execute(ctx, d.exec, 0, func(ctx context.Context, attempt int) (string, error) {
		resp, err := handler.Handle(ctx, req)
		if err == nil {
			return resp, nil
		}
		msg := err.Error()
		if retry.IsPermanent(err) {
			if _, rerr := d.store.RequestTrackerRecordPermanentFailure(ctx, ledgerdb.RequestTrackerRecordPermanentFailureParams{
				ResponseObject: &msg,
				ID:             tracker.ID,
			}); rerr != nil {
				return "", retry.Permanent(fmt.Errorf("failed to record failure on tracker %d: %w", tracker.ID, errors.Join(err, rerr)))
			}
			return "", err
		}
		n, rerr := d.store.RequestTrackerRecordFailure(ctx, ledgerdb.RequestTrackerRecordFailureParams{
			ResponseObject: &msg,
			ID:             tracker.ID,
		})
		if errors.Is(rerr, pgx.ErrNoRows) {
			return "", retry.Permanent(errTrackerProcessed)
		}
		if rerr != nil {
			return "", retry.Permanent(fmt.Errorf("failed to record attempt on tracker %d: %w", tracker.ID, errors.Join(err, rerr)))
		}
		if int(n) >= d.retryBudget {
			return "", retry.Permanent(err)
		}
		return "", err
	})

	if !out.Succeeded() {
		if errors.Is(out.LastError, errTrackerProcessed) {
			return StepSkipped, nil
		}
		ll.Warn("Step failed",
			slog.Int("attempts", out.Attempts),
			slog.Bool("permanent", out.Permanent),
			slog.Any("error", out.LastError))
		return StepFailed, out.LastError
	}

	n, err := d.store.RequestTrackerMarkProcessed(ctx, ledgerdb.RequestTrackerMarkProcessedParams{
		ResponseObject: &out.Value,
		ID:             tracker.ID,
	})
	if err != nil {
		return StepFailed, fmt.Errorf("downstream call succeeded but tracker %d was not marked: %w", tracker.ID, err)
	}
	if n == 0 {
		ll.Info("Tracker was processed concurrently", slog.Int64("tracker_id", tracker.ID))
	}
	return StepDispatched, nil
}

// ensureTracker looks up or creates the tracker row. A concurrent insert of
// the same tuple can make the first attempt see neither row, so it is tried
// twice.
func (d *Dispatcher) ensureTracker(ctx context.Context, f ledgerdb.Filing, step Step) (ledgerdb.RequestTracker, error) {
	params := ledgerdb.RequestTrackerEnsureParams{
		BusinessIdentifier: f.BusinessIdentifier,
		ServiceName:        step.Service,
		RequestType:        step.RequestType,
		FilingID:           f.ID,
	}
	var err error
	for range 2 {
		var t ledgerdb.RequestTracker
		t, err = d.store.RequestTrackerEnsure(ctx, params)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			break
		}
	}
	return ledgerdb.RequestTracker{}, fmt.Errorf("failed to ensure request tracker: %w", err)
}
