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

// Package backlog seeds work items from the system of record. It only ever
// reads from the source; everything it learns is written to the ledger.
package backlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/filingrunner/internal/logctx"
)

var ErrNoQuery = errors.New("no backlog query configured for scope")

type Config struct {
	// Queries maps a run scope to a read-only SQL statement returning one
	// text column of item ids.
	Queries map[string]string `mapstructure:"queries"`

	ChunkSize int `mapstructure:"chunk_size"`
}

func DefaultConfig() Config {
	return Config{
		Queries:   map[string]string{},
		ChunkSize: 1000,
	}
}

// Source yields candidate ids for a scope.
type Source interface {
	Candidates(ctx context.Context, runScope string, yield func(id string) error) error
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgSource runs the configured query for a scope against the system of
// record.
type PgSource struct {
	db      querier
	queries map[string]string
}

func NewPgSource(db querier, queries map[string]string) *PgSource {
	return &PgSource{db: db, queries: queries}
}

func (s *PgSource) Candidates(ctx context.Context, runScope string, yield func(id string) error) error {
	q, ok := s.queries[runScope]
	if !ok || q == "" {
		return fmt.Errorf("%w: %s", ErrNoQuery, runScope)
	}
	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("backlog query for %s failed: %w", runScope, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan backlog id: %w", err)
		}
		if err := yield(id); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Target receives seeded ids; workclaim.Coordinator satisfies it.
type Target interface {
	Seed(ctx context.Context, runScope string, itemIDs []string) (int64, error)
}

type Result struct {
	Candidates int64
	Inserted   int64
}

type Seeder struct {
	src       Source
	target    Target
	chunkSize int
}

func NewSeeder(src Source, target Target, chunkSize int) *Seeder {
	if chunkSize <= 0 {
		chunkSize = DefaultConfig().ChunkSize
	}
	return &Seeder{src: src, target: target, chunkSize: chunkSize}
}

// Seed copies the scope's candidate ids into the ledger in chunks. Ids
// already present are left untouched, so seeding is safe to repeat.
func (s *Seeder) Seed(ctx context.Context, runScope string) (Result, error) {
	var res Result
	chunk := make([]string, 0, s.chunkSize)
	seen := make(map[string]struct{})

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := s.target.Seed(ctx, runScope, chunk)
		if err != nil {
			return err
		}
		res.Inserted += n
		chunk = chunk[:0]
		return nil
	}

	err := s.src.Candidates(ctx, runScope, func(id string) error {
		if id == "" {
			return nil
		}
		if _, dup := seen[id]; dup {
			return nil
		}
		seen[id] = struct{}{}
		res.Candidates++
		chunk = append(chunk, id)
		if len(chunk) >= s.chunkSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return res, err
	}

	logctx.FromContext(ctx).Info("Seeded backlog",
		slog.String("run_scope", runScope),
		slog.Int64("candidates", res.Candidates),
		slog.Int64("inserted", res.Inserted))
	return res, nil
}
