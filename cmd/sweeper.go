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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/filingrunner/config"
	"github.com/cardinalhq/filingrunner/internal/dispatch"
	"github.com/cardinalhq/filingrunner/internal/sweeper"
	"github.com/cardinalhq/filingrunner/internal/workclaim"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweeper",
		Short: "Release stale claims, apply due filings, republish completions and re-check pending dispatch steps",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runService("filingrunner-sweeper", runSweeper)
		},
	}

	rootCmd.AddCommand(cmd)
}

func runSweeper(ctx context.Context, cfg *config.Config) error {
	stack, err := newFilingStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	coord := workclaim.NewCoordinator(stack.store, cfg.WorkClaim)
	s := sweeper.New(coord, stack.machine, sweeper.Config{
		Interval:       cfg.Sweeper.Interval,
		StaleAfter:     cfg.WorkClaim.StaleAfter,
		StaleLimit:     cfg.WorkClaim.SweepLimit,
		DueLimit:       cfg.Sweeper.DueLimit,
		RepublishAfter: cfg.Sweeper.RepublishAfter,
		RepublishLimit: cfg.Sweeper.RepublishLimit,
		RecheckAfter:   cfg.Sweeper.RecheckAfter,
		RecheckLimit:   cfg.Sweeper.RecheckLimit,
	}).WithRechecker(dispatch.NewRechecker(stack.store, stack.emitter, cfg.Dispatch.RetryBudget))
	return s.Run(ctx)
}
