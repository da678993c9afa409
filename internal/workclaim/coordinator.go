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

// Package workclaim hands out a shared backlog of work items to concurrent
// runs so that each item is owned by at most one run at a time.
//
// All cross-process coordination goes through the ledger. Reservation is the
// only step that contends with other runs; it runs in one transaction under a
// per-scope advisory lock and is all-or-nothing. Claim batches only touch rows
// the run already owns.
package workclaim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cardinalhq/filingrunner/internal/idgen"
	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

// Ledger is the subset of the ledger store the coordinator uses.
type Ledger interface {
	RunCreate(ctx context.Context, arg ledgerdb.RunCreateParams) (ledgerdb.Run, error)
	RunGet(ctx context.Context, id uuid.UUID) (ledgerdb.Run, error)
	WorkItemSeed(ctx context.Context, arg ledgerdb.WorkItemSeedParams) (int64, error)
	ReserveWorkItems(ctx context.Context, arg ledgerdb.WorkItemReserveDirectParams) ([]string, error)
	WorkItemClaimBatch(ctx context.Context, arg ledgerdb.WorkItemClaimBatchParams) ([]ledgerdb.WorkItem, error)
	WorkItemUpdateStatus(ctx context.Context, arg ledgerdb.WorkItemUpdateStatusParams) (int64, error)
	WorkItemGet(ctx context.Context, arg ledgerdb.WorkItemGetParams) (ledgerdb.WorkItem, error)
	WorkItemHeartbeat(ctx context.Context, runID uuid.UUID) (int64, error)
	WorkItemSweepStale(ctx context.Context, arg ledgerdb.WorkItemSweepStaleParams) ([]ledgerdb.WorkItemSweepStaleRow, error)
	RequeueFailedWorkItems(ctx context.Context, arg ledgerdb.WorkItemRequeueFailedDirectParams) ([]ledgerdb.WorkItemRequeueFailedDirectRow, error)
	WorkItemRunSummary(ctx context.Context, runID uuid.UUID) ([]ledgerdb.WorkItemRunSummaryRow, error)
}

type Coordinator struct {
	db       Ledger
	cfg      Config
	reserver *retry.Executor
	newRunID func() uuid.UUID
	workerID int64
}

type Option func(*Coordinator)

// WithReserveExecutor replaces the executor used to retry conflicting
// reservations.
func WithReserveExecutor(e *retry.Executor) Option {
	return func(c *Coordinator) { c.reserver = e }
}

func WithRunIDSource(fn func() uuid.UUID) Option {
	return func(c *Coordinator) { c.newRunID = fn }
}

func NewCoordinator(db Ledger, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		db:       db,
		cfg:      cfg,
		newRunID: uuid.New,
		workerID: idgen.NextWorkerID(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.reserver == nil {
		c.reserver = retry.NewExecutor(cfg.ReserveRetry, retry.WithName("reserve"))
	}
	return c
}

func (c *Coordinator) Config() Config {
	return c.cfg
}

// StartRun records a new immutable Run for the scope.
func (c *Coordinator) StartRun(ctx context.Context, runScope, flow string, maxItems, batchSize int) (ledgerdb.Run, error) {
	if runScope == "" {
		return ledgerdb.Run{}, errors.New("run scope is required")
	}
	if maxItems < 1 {
		return ledgerdb.Run{}, fmt.Errorf("max items must be positive, got %d", maxItems)
	}
	if batchSize < 1 {
		return ledgerdb.Run{}, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	run, err := c.db.RunCreate(ctx, ledgerdb.RunCreateParams{
		ID:        c.newRunID(),
		RunScope:  runScope,
		Flow:      flow,
		WorkerID:  c.workerID,
		MaxItems:  clampInt32(maxItems),
		BatchSize: clampInt32(batchSize),
	})
	if err != nil {
		return ledgerdb.Run{}, fmt.Errorf("failed to create run for scope %s: %w", runScope, err)
	}

	logctx.FromContext(ctx).Info("Run started",
		slog.String("run_id", run.ID.String()),
		slog.String("run_scope", run.RunScope),
		slog.String("flow", run.Flow),
		slog.Int64("worker_id", run.WorkerID),
		slog.Int("max_items", maxItems),
		slog.Int("batch_size", batchSize))
	return run, nil
}

// Seed adds backlog candidates to a scope. Ids already present, in any
// status, are left alone. Returns the number of new items.
func (c *Coordinator) Seed(ctx context.Context, runScope string, itemIDs []string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	n, err := c.db.WorkItemSeed(ctx, ledgerdb.WorkItemSeedParams{
		RunScope: runScope,
		ItemIds:  itemIDs,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed %d items into %s: %w", len(itemIDs), runScope, err)
	}
	return n, nil
}

// Reserve assigns up to maxItems unclaimed, not-completed items of the scope
// to the run and returns how many it got. A maxItems beyond the backlog is
// clamped silently. Lock conflicts are retried with backoff; after the retry
// budget the error wraps ErrReservationConflict and nothing is reserved.
func (c *Coordinator) Reserve(ctx context.Context, runID uuid.UUID, runScope string, maxItems int) (int, error) {
	if maxItems <= 0 {
		return 0, nil
	}

	params := ledgerdb.WorkItemReserveDirectParams{
		RunScope: runScope,
		MaxItems: clampInt32(maxItems),
		RunID:    runID,
	}

	out := retry.Execute(ctx, c.reserver, 0, func(ctx context.Context, attempt int) ([]string, error) {
		ids, err := c.db.ReserveWorkItems(ctx, params)
		if err == nil {
			return ids, nil
		}
		if retry.IsConflict(err) {
			reserveConflicts.Add(ctx, 1)
			return nil, err
		}
		return nil, retry.Permanent(err)
	})
	if !out.Succeeded() {
		if retry.IsConflict(out.LastError) {
			return 0, fmt.Errorf("%w: scope %s after %d attempts: %w", ErrReservationConflict, runScope, out.Attempts, out.LastError)
		}
		return 0, fmt.Errorf("failed to reserve work items for scope %s: %w", runScope, out.LastError)
	}

	reserved := len(out.Value)
	reservedItems.Add(ctx, int64(reserved))
	logctx.FromContext(ctx).Info("Reserved work items",
		slog.String("run_id", runID.String()),
		slog.String("run_scope", runScope),
		slog.Int("requested", maxItems),
		slog.Int("reserved", reserved))
	return reserved, nil
}

// ClaimBatch checks out up to batchSize of the run's reserved, unprocessed
// items in created_at, item_id order. Each item is handed out once per
// reservation, so repeated calls drain the reservation and then return empty.
func (c *Coordinator) ClaimBatch(ctx context.Context, runID uuid.UUID, batchSize int) ([]ledgerdb.WorkItem, error) {
	if batchSize <= 0 {
		return nil, nil
	}
	items, err := c.db.WorkItemClaimBatch(ctx, ledgerdb.WorkItemClaimBatchParams{
		RunID:     runID,
		BatchSize: clampInt32(batchSize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch for run %s: %w", runID, err)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ItemID < items[j].ItemID
	})
	claimedItems.Add(ctx, int64(len(items)))
	return items, nil
}

// StatusUpdate is the result of processing one item.
type StatusUpdate struct {
	RunID    uuid.UUID
	RunScope string
	ItemID   string
	Status   ledgerdb.ProcessingStatus
	// Error is recorded as last_error; empty clears it.
	Error    string
	Attempts int
	// Flags are merged into the item's side-effect flags.
	Flags map[string]bool
}

// UpdateStatus records a terminal status for an item the run owns. Writing
// the same status and payload again is a no-op. ErrLeaseLost means the run no
// longer owns the item and must not act on it further.
func (c *Coordinator) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	if !u.Status.Terminal() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
	}

	flags := u.Flags
	if flags == nil {
		flags = map[string]bool{}
	}
	flagJSON, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}

	var lastError *string
	if u.Error != "" {
		lastError = &u.Error
	}

	rows, err := c.db.WorkItemUpdateStatus(ctx, ledgerdb.WorkItemUpdateStatusParams{
		ProcessingStatus: u.Status,
		LastError:        lastError,
		Attempts:         clampInt32(u.Attempts),
		Flags:            flagJSON,
		RunScope:         u.RunScope,
		ItemID:           u.ItemID,
		RunID:            u.RunID,
	})
	if err != nil {
		return fmt.Errorf("failed to update status of %s/%s: %w", u.RunScope, u.ItemID, err)
	}
	if rows > 0 {
		statusUpdates.Add(ctx, 1, statusAttr(u.Status))
		return nil
	}

	// Nothing changed. Work out whether that was a replay or a lost claim.
	item, err := c.db.WorkItemGet(ctx, ledgerdb.WorkItemGetParams{
		RunScope: u.RunScope,
		ItemID:   u.ItemID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNoSuchItem, u.RunScope, u.ItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to read back %s/%s: %w", u.RunScope, u.ItemID, err)
	}
	if item.ClaimedByRunID == nil || *item.ClaimedByRunID != u.RunID {
		leaseLost.Add(ctx, 1)
		return fmt.Errorf("%w: %s/%s", ErrLeaseLost, u.RunScope, u.ItemID)
	}
	if item.ProcessingStatus == ledgerdb.ProcessingStatusCompleted && u.Status != ledgerdb.ProcessingStatusCompleted {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyCompleted, u.RunScope, u.ItemID)
	}
	return nil
}

// Heartbeat refreshes the lease on every in-flight item of the run.
func (c *Coordinator) Heartbeat(ctx context.Context, runID uuid.UUID) (int64, error) {
	n, err := c.db.WorkItemHeartbeat(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to heartbeat run %s: %w", runID, err)
	}
	return n, nil
}

// SweepParams selects abandoned claims. An empty RunScope sweeps every scope.
type SweepParams struct {
	RunScope   string
	StaleAfter time.Duration
	Limit      int
}

// SweepStale releases claims on UNSET items whose lease is older than
// StaleAfter so that a later run can reserve them again.
func (c *Coordinator) SweepStale(ctx context.Context, p SweepParams) ([]ledgerdb.WorkItemSweepStaleRow, error) {
	if p.StaleAfter <= 0 {
		p.StaleAfter = c.cfg.StaleAfter
	}
	if p.Limit <= 0 {
		p.Limit = c.cfg.SweepLimit
	}
	var scope *string
	if p.RunScope != "" {
		scope = &p.RunScope
	}

	rows, err := c.db.WorkItemSweepStale(ctx, ledgerdb.WorkItemSweepStaleParams{
		StaleAfter: pgtype.Interval{Microseconds: p.StaleAfter.Microseconds(), Valid: true},
		RunScope:   scope,
		MaxRows:    clampInt32(p.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sweep stale claims: %w", err)
	}

	if len(rows) > 0 {
		sweptItems.Add(ctx, int64(len(rows)))
		ll := logctx.FromContext(ctx)
		for _, r := range rows {
			ll.Warn("Released stale claim",
				slog.String("run_scope", r.RunScope),
				slog.String("item_id", r.ItemID),
				slog.String("previous_run_id", r.PreviousRunID.String()),
				slog.Int("sweep_count", int(r.SweepCount)))
		}
	}
	return rows, nil
}

// RequeueFailed returns FAILED items of a scope to the unclaimed pool for a
// later re-check. Their last_error is kept until the next status write.
func (c *Coordinator) RequeueFailed(ctx context.Context, runScope string, limit int) ([]ledgerdb.WorkItemRequeueFailedDirectRow, error) {
	if runScope == "" {
		return nil, errors.New("run scope is required")
	}
	if limit <= 0 {
		limit = c.cfg.SweepLimit
	}
	rows, err := c.db.RequeueFailedWorkItems(ctx, ledgerdb.WorkItemRequeueFailedDirectParams{
		RunScope: runScope,
		MaxRows:  clampInt32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to requeue failed items of %s: %w", runScope, err)
	}
	requeuedItems.Add(ctx, int64(len(rows)))
	return rows, nil
}

// RunStatus is a run with its item counts by status.
type RunStatus struct {
	Run    ledgerdb.Run
	Counts map[ledgerdb.ProcessingStatus]int64
}

// Status loads the run row and its summary.
func (c *Coordinator) Status(ctx context.Context, runID uuid.UUID) (RunStatus, error) {
	run, err := c.db.RunGet(ctx, runID)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunStatus{}, fmt.Errorf("%w: %s", ErrNoSuchRun, runID)
	}
	if err != nil {
		return RunStatus{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	counts, err := c.Summary(ctx, runID)
	if err != nil {
		return RunStatus{}, err
	}
	return RunStatus{Run: run, Counts: counts}, nil
}

// Summary counts the run's items by status.
func (c *Coordinator) Summary(ctx context.Context, runID uuid.UUID) (map[ledgerdb.ProcessingStatus]int64, error) {
	rows, err := c.db.WorkItemRunSummary(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize run %s: %w", runID, err)
	}
	out := make(map[ledgerdb.ProcessingStatus]int64, len(rows))
	for _, r := range rows {
		out[r.ProcessingStatus] = r.ItemCount
	}
	return out, nil
}

func clampInt32(v int) int32 {
	const maxInt32 = 1<<31 - 1
	if v > maxInt32 {
		return maxInt32
	}
	if v < 0 {
		return 0
	}
	return int32(v)
}
