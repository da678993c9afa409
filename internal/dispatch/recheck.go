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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

// Pending returns the trackers of a filing that have not been processed.
func (d *Dispatcher) Pending(ctx context.Context, filingID int64) ([]ledgerdb.RequestTracker, error) {
	all, err := d.store.RequestTrackerListForFiling(ctx, filingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trackers for filing %d: %w", filingID, err)
	}
	var out []ledgerdb.RequestTracker
	for _, t := range all {
		if !t.IsProcessed {
			out = append(out, t)
		}
	}
	return out, nil
}

// Redispatch re-checks a completed filing by hand. A non-empty taxID is
// recorded on the business first, unless it already has one, so a step that
// was waiting on it can now succeed. Processed steps are skipped as usual.
func (d *Dispatcher) Redispatch(ctx context.Context, filingID int64, taxID string) (Report, error) {
	ll := logctx.FromContext(ctx).With(slog.Int64("filing_id", filingID))

	if taxID != "" {
		f, err := d.store.FilingGet(ctx, filingID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Report{FilingID: filingID}, fmt.Errorf("filing %d not found", filingID)
			}
			return Report{FilingID: filingID}, err
		}
		n, err := d.store.BusinessSetTaxID(ctx, ledgerdb.BusinessSetTaxIDParams{
			TaxID:      &taxID,
			Identifier: f.BusinessIdentifier,
		})
		if err != nil {
			return Report{FilingID: filingID}, fmt.Errorf("failed to set tax id on %s: %w", f.BusinessIdentifier, err)
		}
		if n == 0 {
			ll.Warn("Tax id not recorded, business is missing or already has one",
				slog.String("business", f.BusinessIdentifier))
		}
	}

	pending, err := d.Pending(ctx, filingID)
	if err != nil {
		return Report{FilingID: filingID}, err
	}
	ll.Info("Re-checking filing dispatch", slog.Int("pending_steps", len(pending)))
	return d.Dispatch(ctx, filingID)
}

// RecheckStore is the ledger surface the scheduled re-check needs.
type RecheckStore interface {
	FilingGet(ctx context.Context, id int64) (ledgerdb.Filing, error)
	RequestTrackerListPendingFilings(ctx context.Context, arg ledgerdb.RequestTrackerListPendingFilingsParams) ([]int64, error)
}

// CompletionAnnouncer re-emits a filing-completed event.
type CompletionAnnouncer interface {
	FilingCompleted(ctx context.Context, f ledgerdb.Filing) error
}

// Rechecker finds completed filings with steps left pending, typically by a
// permanent precondition failure, and announces them again so the dispatcher
// service retries the pending steps.
type Rechecker struct {
	store       RecheckStore
	announcer   CompletionAnnouncer
	retryBudget int
	now         func() time.Time
}

func NewRechecker(store RecheckStore, announcer CompletionAnnouncer, retryBudget int) *Rechecker {
	if retryBudget < 1 {
		retryBudget = DefaultConfig().RetryBudget
	}
	return &Rechecker{store: store, announcer: announcer, retryBudget: retryBudget, now: time.Now}
}

// RecheckPending announces up to limit filings whose pending trackers have
// not been touched for olderThan. Trackers out of retry budget are left alone.
func (r *Rechecker) RecheckPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	ids, err := r.store.RequestTrackerListPendingFilings(ctx, ledgerdb.RequestTrackerListPendingFilingsParams{
		RetryBudget:    int32(r.retryBudget),
		ModifiedBefore: r.now().Add(-olderThan),
		MaxRows:        int32(limit),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list filings with pending steps: %w", err)
	}

	var errs *multierror.Error
	n := 0
	for _, id := range ids {
		f, err := r.store.FilingGet(ctx, id)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("filing %d: %w", id, err))
			continue
		}
		if f.Status != ledgerdb.FilingStatusCompleted {
			continue
		}
		if err := r.announcer.FilingCompleted(ctx, f); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("filing %d: %w", id, err))
			continue
		}
		n++
	}
	if n > 0 {
		rechecks.Add(ctx, int64(n))
	}
	return n, errs.ErrorOrNil()
}
