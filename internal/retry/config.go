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
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	StrategyExponential = "exponential"
	StrategyFixed       = "fixed"
)

type Config struct {
	// MaxAttempts is the total number of invocations, first one included.
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Strategy     string        `mapstructure:"strategy"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	Jitter       float64       `mapstructure:"jitter"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		Strategy:     StrategyExponential,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	switch c.Strategy {
	case StrategyExponential:
		if c.Multiplier < 1 {
			return fmt.Errorf("retry multiplier must be >= 1, got %v", c.Multiplier)
		}
	case StrategyFixed:
	default:
		return fmt.Errorf("unknown retry strategy %q", c.Strategy)
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		return fmt.Errorf("retry jitter must be in [0, 1), got %v", c.Jitter)
	}
	return nil
}

// NewBackOff builds the delay schedule described by the config.
func (c Config) NewBackOff() backoff.BackOff {
	if c.Strategy == StrategyFixed {
		return backoff.NewConstantBackOff(c.InitialDelay)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: c.Jitter,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxDelay,
	}
	b.Reset()
	return b
}
