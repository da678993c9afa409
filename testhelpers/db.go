//go:build integration

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

package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	postgrespreset "github.com/orlangure/gnomock/preset/postgres"

	"github.com/cardinalhq/filingrunner/ledgerdb"
	ledgermigrations "github.com/cardinalhq/filingrunner/ledgerdb/migrations"
)

const (
	containerUser     = "filingrunner"
	containerPassword = "filingrunner"
	containerDB       = "testing_ledger"
)

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// baseURL points at a database that test databases can be created from.
// LEDGERDB_HOST selects an existing server; otherwise a shared Postgres
// container is started on first use.
func baseURL() (string, error) {
	if host := os.Getenv("LEDGERDB_HOST"); host != "" {
		user := getEnvOrDefault("LEDGERDB_USER", os.Getenv("USER"))
		port := getEnvOrDefault("LEDGERDB_PORT", "5432")
		db := getEnvOrDefault("LEDGERDB_DBNAME", containerDB)
		if pw := os.Getenv("LEDGERDB_PASSWORD"); pw != "" {
			return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", user, pw, host, port, db), nil
		}
		return fmt.Sprintf("postgresql://%s@%s:%s/%s?sslmode=disable", user, host, port, db), nil
	}

	containerOnce.Do(func() {
		c, err := gnomock.Start(postgrespreset.Preset(
			postgrespreset.WithVersion("16"),
			postgrespreset.WithUser(containerUser, containerPassword),
			postgrespreset.WithDatabase(containerDB),
		), gnomock.WithTimeout(2*time.Minute))
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}
		containerURL = fmt.Sprintf("postgresql://%s:%s@%s/%s?sslmode=disable",
			containerUser, containerPassword, c.DefaultAddress(), containerDB)
	})
	return containerURL, containerErr
}

func withDatabase(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/" + name
	return u.String(), nil
}

// SetupTestLedger creates a fresh ledger database with every migration
// applied and drops it when the test ends.
func SetupTestLedger(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	base, err := baseURL()
	if err != nil {
		t.Fatalf("No test database available: %v", err)
	}
	basePool, err := pgxpool.New(ctx, base)
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	dbName := fmt.Sprintf("test_ledger_%d_%d", time.Now().Unix(), rand.IntN(100000))
	if _, err := basePool.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	testURL, err := withDatabase(base, dbName)
	if err != nil {
		basePool.Close()
		t.Fatalf("Invalid database url: %v", err)
	}
	testPool, err := ledgerdb.NewConnectionPool(ctx, testURL, 0)
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := ledgermigrations.RunMigrationsUp(ctx, testPool); err != nil {
		testPool.Close()
		basePool.Close()
		t.Fatalf("Failed to run ledger migrations: %v", err)
	}

	t.Cleanup(func() {
		testPool.Close()
		if _, err := basePool.Exec(context.Background(), "DROP DATABASE IF EXISTS "+dbName); err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	return testPool
}

// NewTestLedgerStore returns a store over a fresh test database.
func NewTestLedgerStore(t *testing.T) *ledgerdb.Store {
	return ledgerdb.NewStore(SetupTestLedger(t))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
