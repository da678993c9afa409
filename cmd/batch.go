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
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/filingrunner/config"
	"github.com/cardinalhq/filingrunner/internal/backlog"
	"github.com/cardinalhq/filingrunner/internal/batchrun"
	"github.com/cardinalhq/filingrunner/internal/dbopen"
	"github.com/cardinalhq/filingrunner/internal/flows"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/internal/services"
	"github.com/cardinalhq/filingrunner/internal/workclaim"
)

func init() {
	var scope string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Copy candidate item ids for a scope from the source database into the ledger",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runService("filingrunner-seed", func(ctx context.Context, cfg *config.Config) error {
				return seedScope(ctx, cfg, scope)
			})
		},
	}
	seedCmd.Flags().StringVar(&scope, "scope", "", "Run scope to seed")
	_ = seedCmd.MarkFlagRequired("scope")

	var (
		flow     string
		maxItems int
		workers  int
	)
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Reserve and process a bounded batch of work items",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runService("filingrunner-batch", func(ctx context.Context, cfg *config.Config) error {
				if maxItems > 0 {
					cfg.WorkClaim.MaxItems = maxItems
				}
				if workers > 0 {
					cfg.WorkClaim.Workers = workers
				}
				return runBatch(ctx, cfg, flow, scope)
			})
		},
	}
	batchCmd.Flags().StringVar(&flow, "flow", "", fmt.Sprintf("Flow to run %v", flows.Names()))
	batchCmd.Flags().StringVar(&scope, "scope", "", "Run scope; defaults to the flow name")
	batchCmd.Flags().IntVar(&maxItems, "max-items", 0, "Override workclaim.max_items")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "Override workclaim.workers")
	_ = batchCmd.MarkFlagRequired("flow")

	var limit int
	requeueCmd := &cobra.Command{
		Use:   "requeue-failed",
		Short: "Return FAILED items of a scope to the unclaimed pool",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runService("filingrunner-requeue", func(ctx context.Context, cfg *config.Config) error {
				store, err := openLedger(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				rows, err := workclaim.NewCoordinator(store, cfg.WorkClaim).RequeueFailed(ctx, scope, limit)
				if err != nil {
					return err
				}
				slog.Info("Requeued failed items", slog.String("run_scope", scope), slog.Int("count", len(rows)))
				return nil
			})
		},
	}
	requeueCmd.Flags().StringVar(&scope, "scope", "", "Run scope to requeue")
	requeueCmd.Flags().IntVar(&limit, "limit", 1000, "Maximum items to requeue")
	_ = requeueCmd.MarkFlagRequired("scope")

	var runID string
	statusCmd := &cobra.Command{
		Use:   "run-status",
		Short: "Print a run and its per-status item counts",
		RunE: func(c *cobra.Command, _ []string) error {
			id, err := uuid.Parse(runID)
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			return runService("filingrunner-status", func(ctx context.Context, cfg *config.Config) error {
				store, err := openLedger(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				st, err := workclaim.NewCoordinator(store, cfg.WorkClaim).Status(ctx, id)
				if err != nil {
					return err
				}
				out := c.OutOrStdout()
				fmt.Fprintf(out, "run        %s\nscope      %s\nflow       %s\nworker     %d\nmax_items  %d\nstarted_at %s\n",
					st.Run.ID, st.Run.RunScope, st.Run.Flow, st.Run.WorkerID, st.Run.MaxItems,
					st.Run.StartedAt.Format(time.RFC3339))
				for _, status := range slices.Sorted(maps.Keys(st.Counts)) {
					fmt.Fprintf(out, "%-10s %d\n", status, st.Counts[status])
				}
				return nil
			})
		},
	}
	statusCmd.Flags().StringVar(&runID, "run-id", "", "Run id")
	_ = statusCmd.MarkFlagRequired("run-id")

	rootCmd.AddCommand(seedCmd, batchCmd, requeueCmd, statusCmd)
}

func seedScope(ctx context.Context, cfg *config.Config, scope string) error {
	src, err := dbopen.ConnectToSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	store, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	coord := workclaim.NewCoordinator(store, cfg.WorkClaim)
	seeder := backlog.NewSeeder(backlog.NewPgSource(src, cfg.Backlog.Queries), coord, cfg.Backlog.ChunkSize)
	res, err := seeder.Seed(ctx, scope)
	if err != nil {
		return err
	}
	slog.Info("Seeded work items",
		slog.String("run_scope", scope),
		slog.Int64("candidates", res.Candidates),
		slog.Int64("inserted", res.Inserted))
	return nil
}

func runBatch(ctx context.Context, cfg *config.Config, flow, scope string) error {
	if scope == "" {
		scope = flow
	}
	if err := cfg.WorkClaim.Validate(); err != nil {
		return err
	}
	proc, err := flows.New(flow, services.New(cfg.Services), cfg.Flows.NotifyTemplate)
	if err != nil {
		return err
	}

	store, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	coord := workclaim.NewCoordinator(store, cfg.WorkClaim)
	runner := batchrun.NewRunner(coord, retry.NewExecutor(cfg.Retry, retry.WithName("batch")))
	res, err := runner.Run(ctx, scope, proc)
	if err != nil {
		return err
	}

	slog.Info("Batch run finished",
		slog.String("run_id", res.RunID.String()),
		slog.String("run_scope", scope),
		slog.String("flow", flow),
		slog.Int("reserved", res.Reserved),
		slog.Int64("completed", res.Completed),
		slog.Int64("failed", res.Failed),
		slog.Int64("lease_lost", res.LeaseLost))
	if res.Errors != nil {
		slog.Warn("Some items failed", slog.Any("error", res.Errors))
	}
	if res.Failed > 0 {
		return errors.New("one or more items failed; see requeue-failed")
	}
	return nil
}
