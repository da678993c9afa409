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

// Package migrations holds the options shared by every embedded schema
// package when a worker verifies it is running against the right version.
package migrations

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CheckMode says what a worker does when the schema is not at the version
// it was built for.
type CheckMode string

const (
	// CheckModeWait polls until the migrator catches up or the timeout passes.
	CheckModeWait CheckMode = "wait"
	// CheckModeWarn logs the mismatch and carries on.
	CheckModeWarn CheckMode = "warn"
	// CheckModeSkip does not look at the schema at all.
	CheckModeSkip CheckMode = "skip"
)

// ParseCheckMode accepts wait, warn and skip. "false" and "off" mean skip.
func ParseCheckMode(s string) (CheckMode, error) {
	switch m := CheckMode(strings.ToLower(strings.TrimSpace(s))); m {
	case CheckModeWait, CheckModeWarn, CheckModeSkip:
		return m, nil
	case "false", "off":
		return CheckModeSkip, nil
	case "true", "on", "":
		return CheckModeWait, nil
	default:
		return "", fmt.Errorf("unknown migration check mode %q", s)
	}
}

type CheckOptions struct {
	Mode          CheckMode
	Timeout       time.Duration
	RetryInterval time.Duration
	AllowDirty    bool
}

type CheckOption func(*CheckOptions)

func WithCheckMode(mode CheckMode) CheckOption {
	return func(o *CheckOptions) { o.Mode = mode }
}

func WithTimeout(timeout time.Duration) CheckOption {
	return func(o *CheckOptions) { o.Timeout = timeout }
}

// Resolve layers the defaults, the environment and then explicit options.
// The environment is read from
//
//	<PREFIX>_MIGRATION_CHECK          wait | warn | skip
//	MIGRATION_CHECK_TIMEOUT           duration
//	MIGRATION_CHECK_RETRY_INTERVAL    duration
//	MIGRATION_CHECK_ALLOW_DIRTY       bool
//
// Unparseable values are ignored.
func Resolve(prefix string, opts ...CheckOption) CheckOptions {
	o := CheckOptions{
		Mode:          CheckModeWait,
		Timeout:       2 * time.Minute,
		RetryInterval: 5 * time.Second,
	}

	if v, ok := os.LookupEnv(prefix + "_MIGRATION_CHECK"); ok {
		if m, err := ParseCheckMode(v); err == nil {
			o.Mode = m
		}
	}
	if d, err := time.ParseDuration(os.Getenv("MIGRATION_CHECK_TIMEOUT")); err == nil {
		o.Timeout = d
	}
	if d, err := time.ParseDuration(os.Getenv("MIGRATION_CHECK_RETRY_INTERVAL")); err == nil && d > 0 {
		o.RetryInterval = d
	}
	if b, err := strconv.ParseBool(os.Getenv("MIGRATION_CHECK_ALLOW_DIRTY")); err == nil {
		o.AllowDirty = b
	}

	for _, opt := range opts {
		opt(&o)
	}
	return o
}
