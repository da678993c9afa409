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

package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/filingrunner/migrations"
)

// CheckVersion verifies that the ledger database is at the expected migration
// version. Workers call this before touching the ledger so that a rolling
// deploy never runs new code against an old schema.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, options ...migrations.CheckOption) error {
	opts := migrations.Resolve("LEDGERDB", options...)
	if opts.Mode == migrations.CheckModeSkip {
		slog.Debug("Migration version checking disabled for ledgerdb")
		return nil
	}

	expected, err := latestVersion(migrationFiles)
	if err != nil {
		return fmt.Errorf("failed to extract expected ledgerdb migration version: %w", err)
	}

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		current, dirty, err := currentVersion(pool)
		if err != nil {
			return fmt.Errorf("failed to get current ledgerdb migration version: %w", err)
		}

		if dirty && !opts.AllowDirty {
			if opts.Mode != migrations.CheckModeWarn {
				return errors.New("ledgerdb migration is in dirty state, please fix before proceeding")
			}
			slog.Warn("ledgerdb migration is dirty, continuing anyway")
		}

		switch {
		case current == expected:
			return nil
		case current > expected:
			if opts.Mode == migrations.CheckModeWarn {
				slog.Warn("ledgerdb version is newer than expected",
					slog.Uint64("current_version", uint64(current)),
					slog.Uint64("expected_version", uint64(expected)))
				return nil
			}
			return fmt.Errorf("ledgerdb version %d is newer than expected version %d", current, expected)
		case opts.Mode == migrations.CheckModeWarn:
			slog.Warn("ledgerdb version is older than expected",
				slog.Uint64("current_version", uint64(current)),
				slog.Uint64("expected_version", uint64(expected)))
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for ledgerdb migrations: at %d, want %d", current, expected)
		}

		slog.Info("Waiting for ledgerdb migrations to complete",
			slog.Uint64("current_version", uint64(current)),
			slog.Uint64("expected_version", uint64(expected)),
			slog.Duration("remaining_timeout", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for ledgerdb migrations: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// latestVersion returns the highest version prefix among the *.up.sql files.
func latestVersion(files fs.ReadDirFS) (uint, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		if uint(version) > maxVersion {
			maxVersion = uint(version)
		}
	}

	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return maxVersion, nil
}

func currentVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, closer, err := newMigrator(pool)
	if err != nil {
		return 0, false, err
	}
	defer closer()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty, nil
}
