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

// Package memledger is an in-memory work item ledger with the same claim
// semantics as the SQL in ledgerdb. It backs unit tests of code built on
// workclaim.Coordinator.
package memledger

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cardinalhq/filingrunner/ledgerdb"
)

type key struct {
	scope string
	id    string
}

type Ledger struct {
	mu    sync.Mutex
	items map[key]*ledgerdb.WorkItem
	runs  map[uuid.UUID]ledgerdb.Run
	seq   int64

	// Now is the ledger clock. Tests move it forward to age leases.
	Now func() time.Time

	// ConflictsToInject makes the next N reservations fail with a postgres
	// lock_not_available error before touching any row.
	ConflictsToInject int
	ReserveCalls      int
}

func New() *Ledger {
	return &Ledger{
		items: map[key]*ledgerdb.WorkItem{},
		runs:  map[uuid.UUID]ledgerdb.Run{},
		Now:   time.Now,
	}
}

func (l *Ledger) RunCreate(_ context.Context, arg ledgerdb.RunCreateParams) (ledgerdb.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runs[arg.ID]; ok {
		return ledgerdb.Run{}, &pgconn.PgError{Code: "23505", Message: "duplicate run id"}
	}
	run := ledgerdb.Run{
		ID:        arg.ID,
		RunScope:  arg.RunScope,
		Flow:      arg.Flow,
		WorkerID:  arg.WorkerID,
		MaxItems:  arg.MaxItems,
		BatchSize: arg.BatchSize,
		StartedAt: l.Now(),
	}
	l.runs[arg.ID] = run
	return run, nil
}

func (l *Ledger) RunGet(_ context.Context, id uuid.UUID) (ledgerdb.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.runs[id]
	if !ok {
		return ledgerdb.Run{}, pgx.ErrNoRows
	}
	return run, nil
}

func (l *Ledger) WorkItemSeed(_ context.Context, arg ledgerdb.WorkItemSeedParams) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, id := range arg.ItemIds {
		k := key{arg.RunScope, id}
		if _, ok := l.items[k]; ok {
			continue
		}
		l.seq++
		l.items[k] = &ledgerdb.WorkItem{
			RunScope:         arg.RunScope,
			ItemID:           id,
			ProcessingStatus: ledgerdb.ProcessingStatusUnset,
			Flags:            []byte("{}"),
			CreatedAt:        l.Now().Add(time.Duration(l.seq) * time.Microsecond),
		}
		n++
	}
	return n, nil
}

func (l *Ledger) ReserveWorkItems(_ context.Context, arg ledgerdb.WorkItemReserveDirectParams) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ReserveCalls++
	if l.ConflictsToInject > 0 {
		l.ConflictsToInject--
		return nil, &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	}

	var out []string
	now := l.Now()
	for _, wi := range l.ordered(arg.RunScope) {
		if int32(len(out)) >= arg.MaxItems {
			break
		}
		if wi.ClaimedByRunID != nil || wi.ProcessingStatus == ledgerdb.ProcessingStatusCompleted {
			continue
		}
		runID := arg.RunID
		wi.ClaimedByRunID = &runID
		wi.ClaimedAt = &now
		wi.CheckedOutAt = nil
		out = append(out, wi.ItemID)
	}
	return out, nil
}

func (l *Ledger) WorkItemClaimBatch(_ context.Context, arg ledgerdb.WorkItemClaimBatchParams) ([]ledgerdb.WorkItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ledgerdb.WorkItem
	now := l.Now()
	for _, wi := range l.ordered("") {
		if int32(len(out)) >= arg.BatchSize {
			break
		}
		if wi.ClaimedByRunID == nil || *wi.ClaimedByRunID != arg.RunID {
			continue
		}
		if wi.ProcessingStatus != ledgerdb.ProcessingStatusUnset || wi.CheckedOutAt != nil {
			continue
		}
		wi.CheckedOutAt = &now
		out = append(out, *wi)
	}
	return out, nil
}

func (l *Ledger) WorkItemUpdateStatus(_ context.Context, arg ledgerdb.WorkItemUpdateStatusParams) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wi, ok := l.items[key{arg.RunScope, arg.ItemID}]
	if !ok || wi.ClaimedByRunID == nil || *wi.ClaimedByRunID != arg.RunID {
		return 0, nil
	}
	if wi.ProcessingStatus == ledgerdb.ProcessingStatusCompleted {
		return 0, nil
	}

	current := map[string]any{}
	_ = json.Unmarshal(wi.Flags, &current)
	incoming := map[string]any{}
	if err := json.Unmarshal(arg.Flags, &incoming); err != nil {
		return 0, &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type json"}
	}

	contained := true
	for k, v := range incoming {
		if cv, ok := current[k]; !ok || cv != v {
			contained = false
			current[k] = v
		}
	}
	changed := wi.ProcessingStatus != arg.ProcessingStatus ||
		!sameString(wi.LastError, arg.LastError) ||
		wi.Attempts != arg.Attempts ||
		!contained
	if !changed {
		return 0, nil
	}

	merged, _ := json.Marshal(current)
	now := l.Now()
	wi.ProcessingStatus = arg.ProcessingStatus
	wi.LastError = copyString(arg.LastError)
	wi.Attempts = arg.Attempts
	wi.Flags = merged
	wi.ProcessedAt = &now
	return 1, nil
}

func (l *Ledger) WorkItemGet(_ context.Context, arg ledgerdb.WorkItemGetParams) (ledgerdb.WorkItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wi, ok := l.items[key{arg.RunScope, arg.ItemID}]
	if !ok {
		return ledgerdb.WorkItem{}, pgx.ErrNoRows
	}
	return *wi, nil
}

func (l *Ledger) WorkItemHeartbeat(_ context.Context, runID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	now := l.Now()
	for _, wi := range l.items {
		if wi.ClaimedByRunID != nil && *wi.ClaimedByRunID == runID && wi.ProcessingStatus == ledgerdb.ProcessingStatusUnset {
			wi.ClaimedAt = &now
			n++
		}
	}
	return n, nil
}

func (l *Ledger) WorkItemSweepStale(_ context.Context, arg ledgerdb.WorkItemSweepStaleParams) ([]ledgerdb.WorkItemSweepStaleRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.Now().Add(-time.Duration(arg.StaleAfter.Microseconds) * time.Microsecond)
	scope := ""
	if arg.RunScope != nil {
		scope = *arg.RunScope
	}

	var out []ledgerdb.WorkItemSweepStaleRow
	for _, wi := range l.ordered(scope) {
		if int32(len(out)) >= arg.MaxRows {
			break
		}
		if wi.ProcessingStatus != ledgerdb.ProcessingStatusUnset || wi.ClaimedByRunID == nil {
			continue
		}
		if wi.ClaimedAt == nil || !wi.ClaimedAt.Before(cutoff) {
			continue
		}
		prev := *wi.ClaimedByRunID
		wi.ClaimedByRunID = nil
		wi.ClaimedAt = nil
		wi.CheckedOutAt = nil
		wi.SweepCount++
		out = append(out, ledgerdb.WorkItemSweepStaleRow{
			RunScope:      wi.RunScope,
			ItemID:        wi.ItemID,
			PreviousRunID: prev,
			SweepCount:    wi.SweepCount,
		})
	}
	return out, nil
}

func (l *Ledger) RequeueFailedWorkItems(_ context.Context, arg ledgerdb.WorkItemRequeueFailedDirectParams) ([]ledgerdb.WorkItemRequeueFailedDirectRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ledgerdb.WorkItemRequeueFailedDirectRow
	for _, wi := range l.ordered(arg.RunScope) {
		if int32(len(out)) >= arg.MaxRows {
			break
		}
		if wi.ProcessingStatus != ledgerdb.ProcessingStatusFailed {
			continue
		}
		wi.ProcessingStatus = ledgerdb.ProcessingStatusUnset
		wi.ClaimedByRunID = nil
		wi.ClaimedAt = nil
		wi.CheckedOutAt = nil
		out = append(out, ledgerdb.WorkItemRequeueFailedDirectRow{
			ItemID:    wi.ItemID,
			LastError: copyString(wi.LastError),
		})
	}
	return out, nil
}

func (l *Ledger) WorkItemRunSummary(_ context.Context, runID uuid.UUID) ([]ledgerdb.WorkItemRunSummaryRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := map[ledgerdb.ProcessingStatus]int64{}
	for _, wi := range l.items {
		if wi.ClaimedByRunID != nil && *wi.ClaimedByRunID == runID {
			counts[wi.ProcessingStatus]++
		}
	}
	var out []ledgerdb.WorkItemRunSummaryRow
	for s, n := range counts {
		out = append(out, ledgerdb.WorkItemRunSummaryRow{ProcessingStatus: s, ItemCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessingStatus < out[j].ProcessingStatus })
	return out, nil
}

// Item returns a copy of the stored item.
func (l *Ledger) Item(scope, id string) (ledgerdb.WorkItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wi, ok := l.items[key{scope, id}]
	if !ok {
		return ledgerdb.WorkItem{}, false
	}
	cp := *wi
	cp.Flags = bytes.Clone(wi.Flags)
	return cp, true
}

// Items returns copies of all items of a scope in reservation order.
func (l *Ledger) Items(scope string) []ledgerdb.WorkItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ledgerdb.WorkItem
	for _, wi := range l.ordered(scope) {
		out = append(out, *wi)
	}
	return out
}

// ordered returns items of scope (all scopes when empty) sorted by
// created_at, item_id. Callers hold l.mu.
func (l *Ledger) ordered(scope string) []*ledgerdb.WorkItem {
	var out []*ledgerdb.WorkItem
	for k, wi := range l.items {
		if scope != "" && k.scope != scope {
			continue
		}
		out = append(out, wi)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
