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

	"github.com/cardinalhq/filingrunner/ledgerdb"
	ledgermigrations "github.com/cardinalhq/filingrunner/ledgerdb/migrations"
)

// ConnectToLedger opens the ledger pool configured through LEDGERDB_* and
// waits until the schema is at the version this binary expects.
func ConnectToLedger(ctx context.Context, opts ...Option) (*pgxpool.Pool, error) {
	o := resolve(opts)

	connectionString, err := GetDatabaseURLFromEnv("LEDGERDB")
	if err != nil {
		return nil, errors.Join(ErrDatabaseNotConfigured, err)
	}

	pool, err := ledgerdb.NewConnectionPool(ctx, connectionString, o.maxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger pool: %w", err)
	}

	if err := ledgermigrations.CheckVersion(ctx, pool, o.check...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger schema check failed: %w", err)
	}
	return pool, nil
}

// LedgerStore wraps ConnectToLedger in a store. Closing the store closes the
// pool.
func LedgerStore(ctx context.Context, opts ...Option) (*ledgerdb.Store, error) {
	pool, err := ConnectToLedger(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return ledgerdb.NewStore(pool), nil
}
