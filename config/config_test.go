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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500, cfg.WorkClaim.MaxItems)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "payment-confirmed", cfg.Events.Topics.PaymentConfirmed)
	assert.Equal(t, 10, cfg.Dispatch.RetryBudget)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Sweeper.RecheckAfter)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FILINGRUNNER_EVENTS_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("FILINGRUNNER_EVENTS_SASL_ENABLED", "true")
	t.Setenv("FILINGRUNNER_EVENTS_SASL_USERNAME", "alice")
	t.Setenv("FILINGRUNNER_EVENTS_TOPICS_FILING_COMPLETED", "completed-v2")
	t.Setenv("FILINGRUNNER_WORKCLAIM_BATCH_SIZE", "7")
	t.Setenv("FILINGRUNNER_WORKCLAIM_STALE_AFTER", "45m")
	t.Setenv("FILINGRUNNER_WORKCLAIM_RESERVE_RETRY_MAX_ATTEMPTS", "9")
	t.Setenv("FILINGRUNNER_DISPATCH_RETRY_BUDGET", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Events.Brokers)
	assert.True(t, cfg.Events.SASLEnabled)
	assert.Equal(t, "alice", cfg.Events.SASLUsername)
	assert.Equal(t, "completed-v2", cfg.Events.Topics.FilingCompleted)
	assert.Equal(t, 7, cfg.WorkClaim.BatchSize)
	assert.Equal(t, 45*time.Minute, cfg.WorkClaim.StaleAfter)
	assert.Equal(t, 9, cfg.WorkClaim.ReserveRetry.MaxAttempts)
	assert.Equal(t, 4, cfg.Dispatch.RetryBudget)
}

func TestValidateReportsEverySection(t *testing.T) {
	cfg := defaults()
	cfg.WorkClaim.BatchSize = 0
	cfg.Dispatch.RetryBudget = 0
	cfg.Sweeper.Interval = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workclaim:")
	assert.Contains(t, err.Error(), "dispatch:")
	assert.Contains(t, err.Error(), "sweeper:")
}
