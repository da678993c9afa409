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

package batchrun

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/internal/workclaim"
	"github.com/cardinalhq/filingrunner/internal/workclaim/memledger"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

type scriptedProcessor struct {
	mu       sync.Mutex
	calls    map[string]int
	order    []string
	behavior func(id string, call int) error
}

func (p *scriptedProcessor) Flow() string { return "freeze" }

func (p *scriptedProcessor) Process(_ context.Context, item ledgerdb.WorkItem) (Flags, error) {
	p.mu.Lock()
	p.calls[item.ItemID]++
	n := p.calls[item.ItemID]
	p.order = append(p.order, item.ItemID)
	p.mu.Unlock()

	if err := p.behavior(item.ItemID, n); err != nil {
		return nil, err
	}
	return Flags{"frozen": true}, nil
}

func noSleep() retry.Option {
	return retry.WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() })
}

func newRunner(t *testing.T, workers, maxItems int) (*Runner, *workclaim.Coordinator, *memledger.Ledger) {
	t.Helper()
	ledger := memledger.New()
	cfg := workclaim.DefaultConfig()
	cfg.Workers = workers
	cfg.MaxItems = maxItems
	cfg.BatchSize = 4
	coord := workclaim.NewCoordinator(ledger, cfg)

	rc := retry.DefaultConfig()
	rc.MaxAttempts = 3
	return NewRunner(coord, retry.NewExecutor(rc, noSleep())), coord, ledger
}

func seed(t *testing.T, coord *workclaim.Coordinator, scope string, n int) {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("C%04d", i)
	}
	_, err := coord.Seed(context.Background(), scope, ids)
	require.NoError(t, err)
}

func TestRun_ProcessesEveryItemOnce(t *testing.T) {
	r, coord, ledger := newRunner(t, 3, 100)
	seed(t, coord, "freeze-2024", 25)

	p := &scriptedProcessor{calls: map[string]int{}, behavior: func(string, int) error { return nil }}
	res, err := r.Run(context.Background(), "freeze-2024", p)
	require.NoError(t, err)

	assert.Equal(t, 25, res.Reserved)
	assert.Equal(t, int64(25), res.Completed)
	assert.Zero(t, res.Failed)
	assert.NoError(t, res.Errors)
	for id, n := range p.calls {
		assert.Equal(t, 1, n, id)
	}
	for _, wi := range ledger.Items("freeze-2024") {
		assert.Equal(t, ledgerdb.ProcessingStatusCompleted, wi.ProcessingStatus)
		assert.Equal(t, int32(1), wi.Attempts)
		assert.JSONEq(t, `{"frozen":true}`, string(wi.Flags))
	}
}

func TestRun_RespectsMaxItems(t *testing.T) {
	r, coord, ledger := newRunner(t, 1, 10)
	seed(t, coord, "freeze", 15)

	p := &scriptedProcessor{calls: map[string]int{}, behavior: func(string, int) error { return nil }}
	res, err := r.Run(context.Background(), "freeze", p)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Reserved)
	assert.Len(t, p.calls, 10)

	// Single worker keeps claim order.
	items := ledger.Items("freeze")
	for i := 0; i < 10; i++ {
		assert.Equal(t, items[i].ItemID, p.order[i])
	}
}

func TestRun_RecordsFailures(t *testing.T) {
	r, coord, ledger := newRunner(t, 2, 100)
	seed(t, coord, "freeze", 3)

	p := &scriptedProcessor{calls: map[string]int{}, behavior: func(id string, call int) error {
		switch id {
		case "C0000":
			return errors.New("registry timeout")
		case "C0001":
			return retry.Permanentf("corporation %s is not in good standing", id)
		case "C0002":
			if call < 2 {
				return errors.New("503")
			}
		}
		return nil
	}}

	res, err := r.Run(context.Background(), "freeze", p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Completed)
	assert.Equal(t, int64(2), res.Failed)

	transient, _ := ledger.Item("freeze", "C0000")
	assert.Equal(t, ledgerdb.ProcessingStatusFailed, transient.ProcessingStatus)
	assert.Equal(t, int32(3), transient.Attempts)
	require.NotNil(t, transient.LastError)
	assert.Contains(t, *transient.LastError, "transient after 3 attempt(s): registry timeout")

	permanent, _ := ledger.Item("freeze", "C0001")
	assert.Equal(t, ledgerdb.ProcessingStatusFailed, permanent.ProcessingStatus)
	assert.Equal(t, int32(1), permanent.Attempts)
	assert.Contains(t, *permanent.LastError, "permanent after 1 attempt(s)")
	assert.Equal(t, 1, p.calls["C0001"])

	recovered, _ := ledger.Item("freeze", "C0002")
	assert.Equal(t, ledgerdb.ProcessingStatusCompleted, recovered.ProcessingStatus)
	assert.Equal(t, int32(2), recovered.Attempts)
	assert.Nil(t, recovered.LastError)
}

func TestRun_RequeuedItemAccumulatesAttempts(t *testing.T) {
	r, coord, ledger := newRunner(t, 1, 100)
	seed(t, coord, "freeze", 1)

	fail := true
	p := &scriptedProcessor{calls: map[string]int{}, behavior: func(string, int) error {
		if fail {
			return retry.Permanentf("not yet")
		}
		return nil
	}}
	_, err := r.Run(context.Background(), "freeze", p)
	require.NoError(t, err)

	_, err = coord.RequeueFailed(context.Background(), "freeze", 10)
	require.NoError(t, err)

	fail = false
	res, err := r.Run(context.Background(), "freeze", p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Completed)

	wi, _ := ledger.Item("freeze", "C0000")
	assert.Equal(t, int32(2), wi.Attempts)
	assert.Equal(t, res.RunID, *wi.ClaimedByRunID)
}

func TestRun_EmptyBacklog(t *testing.T) {
	r, _, _ := newRunner(t, 2, 100)
	p := &scriptedProcessor{calls: map[string]int{}, behavior: func(string, int) error { return nil }}

	res, err := r.Run(context.Background(), "nothing-here", p)
	require.NoError(t, err)
	assert.Zero(t, res.Reserved)
	assert.Empty(t, p.calls)
}

func TestRun_CancelLeavesClaimForSweep(t *testing.T) {
	r, coord, ledger := newRunner(t, 1, 100)
	seed(t, coord, "freeze", 2)

	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedProcessor{calls: map[string]int{}, behavior: func(string, int) error {
		cancel()
		return errors.New("interrupted")
	}}

	_, err := r.Run(ctx, "freeze", p)
	assert.ErrorIs(t, err, context.Canceled)

	for _, wi := range ledger.Items("freeze") {
		assert.Equal(t, ledgerdb.ProcessingStatusUnset, wi.ProcessingStatus)
		assert.NotNil(t, wi.ClaimedByRunID)
	}
}

func TestRun_TracesEachItem(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	r, coord, _ := newRunner(t, 1, 10)
	seed(t, coord, "trace-scope", 2)
	p := &scriptedProcessor{calls: map[string]int{}, behavior: func(id string, _ int) error {
		if id == "C0001" {
			return retry.Permanentf("business not found")
		}
		return nil
	}}
	res, err := r.Run(context.Background(), "trace-scope", p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Failed)

	byItem := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range sr.Ended() {
		if s.Name() != "batchrun.item" {
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "item_id" {
				byItem[kv.Value.AsString()] = s
			}
		}
	}
	require.Len(t, byItem, 2)
	assert.Equal(t, codes.Unset, byItem["C0000"].Status().Code)
	assert.Equal(t, codes.Error, byItem["C0001"].Status().Code)
	assert.Contains(t, byItem["C0001"].Status().Description, "permanent")
}
