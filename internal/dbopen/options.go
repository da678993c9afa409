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

package dbopen

import "github.com/cardinalhq/filingrunner/migrations"

type connectOptions struct {
	check    []migrations.CheckOption
	maxConns int32
}

// Option adjusts how a pool is opened.
type Option func(*connectOptions)

// SkipMigrationCheck opens the pool without looking at the schema version.
// The migrate command uses it so it can bring an old schema forward.
func SkipMigrationCheck() Option {
	return func(o *connectOptions) {
		o.check = append(o.check, migrations.WithCheckMode(migrations.CheckModeSkip))
	}
}

// WarnOnMigrationMismatch logs a schema version mismatch instead of waiting.
func WarnOnMigrationMismatch() Option {
	return func(o *connectOptions) {
		o.check = append(o.check, migrations.WithCheckMode(migrations.CheckModeWarn))
	}
}

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(o *connectOptions) { o.maxConns = n }
}

func resolve(opts []Option) connectOptions {
	var o connectOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
