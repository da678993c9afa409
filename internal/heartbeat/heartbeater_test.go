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

package heartbeat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counting(calls *atomic.Int64, err error) Func {
	return func(context.Context) error {
		calls.Add(1)
		return err
	}
}

func TestBeatsImmediatelyThenPeriodically(t *testing.T) {
	var calls atomic.Int64
	h := New(counting(&calls, nil), 20*time.Millisecond, nil)

	stop := h.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stop()

	assert.False(t, h.LastSuccess().IsZero())
	assert.Zero(t, h.ConsecutiveFailures())
}

func TestStopWaitsForLoop(t *testing.T) {
	var calls atomic.Int64
	h := New(counting(&calls, nil), time.Hour, nil)

	stop := h.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	stop()

	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestParentCancelStopsLoop(t *testing.T) {
	var calls atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	h := New(counting(&calls, nil), 10*time.Millisecond, nil)

	stop := h.Start(ctx)
	defer stop()
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	before := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
}

func TestGivesUpOnceAfterConsecutiveFailures(t *testing.T) {
	var calls, gaveUp atomic.Int64
	var cause atomic.Value
	h := New(counting(&calls, errors.New("ledger unavailable")), 5*time.Millisecond, nil,
		WithGiveUp(3, func(err error) {
			gaveUp.Add(1)
			cause.Store(err)
		}))

	stop := h.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() >= 6 }, time.Second, 2*time.Millisecond)
	stop()

	assert.Equal(t, int64(1), gaveUp.Load())
	require.NotNil(t, cause.Load())
	assert.ErrorContains(t, cause.Load().(error), "ledger unavailable")
	assert.True(t, h.LastSuccess().IsZero())
	assert.GreaterOrEqual(t, h.ConsecutiveFailures(), int64(6))
}
