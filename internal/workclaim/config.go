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

package workclaim

import (
	"errors"
	"fmt"
	"time"

	"github.com/cardinalhq/filingrunner/internal/retry"
)

type Config struct {
	MaxItems          int           `mapstructure:"max_items"`
	BatchSize         int           `mapstructure:"batch_size"`
	Workers           int           `mapstructure:"workers"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SweepLimit        int           `mapstructure:"sweep_limit"`
	// ReserveRetry governs retries of a reservation that lost a lock race.
	ReserveRetry retry.Config `mapstructure:"reserve_retry"`
}

func DefaultConfig() Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = 5
	rc.InitialDelay = 200 * time.Millisecond
	rc.MaxDelay = 5 * time.Second
	return Config{
		MaxItems:          500,
		BatchSize:         25,
		Workers:           4,
		StaleAfter:        15 * time.Minute,
		HeartbeatInterval: time.Minute,
		SweepLimit:        1000,
		ReserveRetry:      rc,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxItems < 1 {
		errs = append(errs, fmt.Errorf("max_items must be positive, got %d", c.MaxItems))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("heartbeat_interval must be positive"))
	}
	// A lease that expires between two heartbeats would be swept from under
	// a healthy run.
	if c.StaleAfter <= 2*c.HeartbeatInterval {
		errs = append(errs, fmt.Errorf("stale_after (%s) must exceed twice heartbeat_interval (%s)", c.StaleAfter, c.HeartbeatInterval))
	}
	if err := c.ReserveRetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("reserve_retry: %w", err))
	}
	return errors.Join(errs...)
}
