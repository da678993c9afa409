//go:build integration

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

package workclaim_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filingrunner/internal/workclaim"
	"github.com/cardinalhq/filingrunner/ledgerdb"
	"github.com/cardinalhq/filingrunner/testhelpers"
)

func TestLedger_ConcurrentRunsReserveDisjointSets(t *testing.T) {
	ctx := context.Background()
	store := testhelpers.NewTestLedgerStore(t)
	coord := workclaim.NewCoordinator(store, workclaim.DefaultConfig())

	ids := make([]string, 200)
	for i := range ids {
		ids[i] = fmt.Sprintf("BC%07d", i)
	}
	added, err := coord.Seed(ctx, "freeze-pg", ids)
	require.NoError(t, err)
	require.Equal(t, int64(200), added)

	again, err := coord.Seed(ctx, "freeze-pg", ids[:10])
	require.NoError(t, err)
	assert.Zero(t, again, "seeding is idempotent")

	const runs = 5
	claimed := make([][]ledgerdb.WorkItem, runs)
	var wg sync.WaitGroup
	for r := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := coord.StartRun(ctx, "freeze-pg", "freeze", 60, 20)
			if !assert.NoError(t, err) {
				return
			}
			_, err = coord.Reserve(ctx, run.ID, "freeze-pg", 60)
			if !assert.NoError(t, err) {
				return
			}
			for {
				batch, err := coord.ClaimBatch(ctx, run.ID, 20)
				if !assert.NoError(t, err) || len(batch) == 0 {
					return
				}
				claimed[r] = append(claimed[r], batch...)
			}
		}()
	}
	wg.Wait()

	seen := mapset.NewThreadUnsafeSet[string]()
	total := 0
	for _, items := range claimed {
		for _, it := range items {
			assert.True(t, seen.Add(it.ItemID), "item %s claimed twice", it.ItemID)
			total++
		}
	}
	assert.Equal(t, 200, total)
}

func TestLedger_StatusSweepAndRequeue(t *testing.T) {
	ctx := context.Background()
	store := testhelpers.NewTestLedgerStore(t)
	coord := workclaim.NewCoordinator(store, workclaim.DefaultConfig())

	_, err := coord.Seed(ctx, "notify-pg", []string{"A", "B", "C"})
	require.NoError(t, err)

	run, err := coord.StartRun(ctx, "notify-pg", "notify", 10, 10)
	require.NoError(t, err)
	n, err := coord.Reserve(ctx, run.ID, "notify-pg", 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	batch, err := coord.ClaimBatch(ctx, run.ID, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	require.NoError(t, coord.UpdateStatus(ctx, workclaim.StatusUpdate{
		RunID: run.ID, RunScope: "notify-pg", ItemID: "A",
		Status: ledgerdb.ProcessingStatusCompleted, Attempts: 1,
		Flags: map[string]bool{"notified": true},
	}))
	require.NoError(t, coord.UpdateStatus(ctx, workclaim.StatusUpdate{
		RunID: run.ID, RunScope: "notify-pg", ItemID: "B",
		Status: ledgerdb.ProcessingStatusFailed, Attempts: 3, Error: "502 from email service",
	}))
	// Replaying the same result is a no-op.
	require.NoError(t, coord.UpdateStatus(ctx, workclaim.StatusUpdate{
		RunID: run.ID, RunScope: "notify-pg", ItemID: "A",
		Status: ledgerdb.ProcessingStatusCompleted, Attempts: 1,
		Flags: map[string]bool{"notified": true},
	}))

	summary, err := coord.Summary(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary[ledgerdb.ProcessingStatusCompleted])
	assert.Equal(t, int64(1), summary[ledgerdb.ProcessingStatusFailed])
	assert.Equal(t, int64(1), summary[ledgerdb.ProcessingStatusUnset])

	// C was abandoned; once its lease is old enough the sweep releases it.
	time.Sleep(20 * time.Millisecond)
	swept, err := coord.SweepStale(ctx, workclaim.SweepParams{RunScope: "notify-pg", StaleAfter: time.Millisecond})
	require.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Equal(t, "C", swept[0].ItemID)
	assert.Equal(t, run.ID, swept[0].PreviousRunID)

	err = coord.UpdateStatus(ctx, workclaim.StatusUpdate{
		RunID: run.ID, RunScope: "notify-pg", ItemID: "C",
		Status: ledgerdb.ProcessingStatusCompleted, Attempts: 1,
	})
	assert.ErrorIs(t, err, workclaim.ErrLeaseLost)

	requeued, err := coord.RequeueFailed(ctx, "notify-pg", 10)
	require.NoError(t, err)
	require.Len(t, requeued, 1)
	assert.Equal(t, "B", requeued[0].ItemID)

	next, err := coord.StartRun(ctx, "notify-pg", "notify", 10, 10)
	require.NoError(t, err)
	n, err = coord.Reserve(ctx, next.ID, "notify-pg", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "B and C are offered again, A never is")
}
