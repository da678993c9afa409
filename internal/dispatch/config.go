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
	"errors"

	"github.com/cardinalhq/filingrunner/internal/retry"
)

type Config struct {
	// PlanFile overrides the built-in plans when set.
	PlanFile string `mapstructure:"plan_file"`

	// RetryBudget caps retry_number over the lifetime of a tracker row,
	// across every delivery of the completion event.
	RetryBudget int `mapstructure:"retry_budget"`

	// Retry bounds the attempts made within one delivery.
	Retry retry.Config `mapstructure:"retry"`
}

func DefaultConfig() Config {
	return Config{
		RetryBudget: 10,
		Retry:       retry.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.RetryBudget < 1 {
		errs = append(errs, errors.New("dispatch.retry_budget must be at least 1"))
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
