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

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"
)

const defaultSourceConns = 4

// ConnectToSource opens a read-only pool against the system of record
// configured through SOURCEDB_*. Nothing in this binary writes there.
func ConnectToSource(ctx context.Context, opts ...Option) (*pgxpool.Pool, error) {
	o := resolve(opts)

	connectionString, err := GetDatabaseURLFromEnv("SOURCEDB")
	if err != nil {
		return nil, errors.Join(ErrDatabaseNotConfigured, err)
	}

	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCEDB connection string: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{Name: "sourcedb"}
	cfg.MaxConns = defaultSourceConns
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}
