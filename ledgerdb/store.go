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

package ledgerdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"
)

// Store is the ledger: generated queries over a pool, plus the multi-step
// operations that need a transaction.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// NewConnectionPool opens a traced pool. maxConns of zero keeps the pgxpool
// default.
func NewConnectionPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger connection string: %w", err)
	}
	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{Name: "ledgerdb"}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ExecTx runs fn inside a single transaction. Everything fn does through the
// supplied Querier commits or rolls back together.
func (s *Store) ExecTx(ctx context.Context, fn func(Querier) error) error {
	return s.inTx(ctx, func(tx *Store) error { return fn(tx) })
}

// inTx commits when fn returns nil and rolls back otherwise. The Store
// handed to fn shares the pool but issues every query on the transaction.
func (s *Store) inTx(ctx context.Context, fn func(*Store) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{Queries: s.WithTx(tx), pool: s.pool})
	})
}
