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

package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/filingrunner/internal/dbopen"
	ledgermigrations "github.com/cardinalhq/filingrunner/ledgerdb/migrations"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Run ledger database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, doneFx, err := setupTelemetry("filingrunner-migrate")
			if err != nil {
				return err
			}
			defer func() { _ = doneFx() }()
			return migrateLedger(ctx)
		},
	})
}

func migrateLedger(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pool, err := dbopen.ConnectToLedger(ctx, dbopen.SkipMigrationCheck())
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("Running ledger migrations")
	if err := ledgermigrations.RunMigrationsUp(ctx, pool); err != nil {
		return err
	}
	slog.Info("Ledger migrations completed successfully")
	return nil
}
