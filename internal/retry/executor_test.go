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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(delays *[]time.Duration) Option {
	return WithSleeper(func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	})
}

func TestExecute_AlwaysTransientUsesExactlyMaxAttempts(t *testing.T) {
	e := NewExecutor(DefaultConfig(), noSleep(nil))
	calls := 0

	out := Execute(context.Background(), e, 3, func(ctx context.Context, attempt int) (struct{}, error) {
		calls++
		return struct{}{}, errors.New("connection reset")
	})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, calls)
	assert.False(t, out.Permanent)
	assert.EqualError(t, out.LastError, "connection reset")
}

func TestExecute_SucceedsAfterTransient(t *testing.T) {
	e := NewExecutor(DefaultConfig(), noSleep(nil))

	out := Execute(context.Background(), e, 5, func(ctx context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	})

	assert.True(t, out.Succeeded())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, "ok", out.Value)
	assert.NoError(t, out.LastError)
}

func TestExecute_PermanentShortCircuits(t *testing.T) {
	e := NewExecutor(DefaultConfig(), noSleep(nil))
	calls := 0

	out := Execute(context.Background(), e, 10, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, Permanentf("no tax identifier available for %s", "BC0871234")
	})

	assert.Equal(t, StatusFailed, out.Status)
	assert.True(t, out.Permanent)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(out.LastError))
}

func TestExecute_DefaultsToConfiguredBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 4
	e := NewExecutor(cfg, noSleep(nil))

	out := Execute(context.Background(), e, 0, func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Equal(t, 4, out.Attempts)
}

func TestExecute_FixedDelays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyFixed
	cfg.InitialDelay = 250 * time.Millisecond
	var delays []time.Duration
	e := NewExecutor(cfg, noSleep(&delays))

	Execute(context.Background(), e, 4, func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("boom")
	})

	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}, delays)
}

func TestExecute_ExponentialDelaysAreCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialDelay = 100 * time.Millisecond
	cfg.MaxDelay = 300 * time.Millisecond
	cfg.Jitter = 0
	var delays []time.Duration
	e := NewExecutor(cfg, noSleep(&delays))

	Execute(context.Background(), e, 5, func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("boom")
	})

	require.Len(t, delays, 4)
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 200*time.Millisecond, delays[1])
	assert.Equal(t, 300*time.Millisecond, delays[2])
	assert.Equal(t, 300*time.Millisecond, delays[3])
}

func TestExecute_CancelledContextStops(t *testing.T) {
	e := NewExecutor(DefaultConfig(), noSleep(nil))
	ctx, cancel := context.WithCancel(context.Background())

	out := Execute(ctx, e, 10, func(ctx context.Context, attempt int) (int, error) {
		cancel()
		return 0, errors.New("boom")
	})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.ErrorIs(t, out.LastError, context.Canceled)
}

func TestExecute_ObserverSeesRetriedAttempts(t *testing.T) {
	var seen []int
	e := NewExecutor(DefaultConfig(), noSleep(nil), WithObserver(func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}))

	Execute(context.Background(), e, 3, func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("boom")
	})

	assert.Equal(t, []int{1, 2}, seen)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Strategy = "random"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Jitter = 1.5
	assert.Error(t, cfg.Validate())
}
