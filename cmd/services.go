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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/filingrunner/config"
	"github.com/cardinalhq/filingrunner/internal/dispatch"
	"github.com/cardinalhq/filingrunner/internal/events"
	"github.com/cardinalhq/filingrunner/internal/filing"
	"github.com/cardinalhq/filingrunner/internal/healthcheck"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/internal/services"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "filer",
		Short: "Consume submission and payment events and drive the filing lifecycle",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runService("filingrunner-filer", runFiler)
		},
	}, &cobra.Command{
		Use:   "dispatcher",
		Short: "Consume completion events and notify downstream services",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runService("filingrunner-dispatcher", runDispatcher)
		},
	})

	var (
		filingID int64
		taxID    string
	)
	redispatchCmd := &cobra.Command{
		Use:   "redispatch",
		Short: "Re-check the pending dispatch steps of a completed filing",
		RunE: func(c *cobra.Command, _ []string) error {
			return runService("filingrunner-redispatch", func(ctx context.Context, cfg *config.Config) error {
				store, err := openLedger(ctx)
				if err != nil {
					return err
				}
				defer store.Close()

				d, err := newDispatcher(cfg, store)
				if err != nil {
					return err
				}
				rep, err := d.Redispatch(ctx, filingID, taxID)
				out := c.OutOrStdout()
				for i, step := range rep.Steps {
					fmt.Fprintf(out, "%-12s %-16s %s\n", step.Service, step.RequestType, rep.Results[i])
				}
				if err != nil {
					return err
				}
				pending, err := d.Pending(ctx, filingID)
				if err != nil {
					return err
				}
				for _, t := range pending {
					msg := ""
					if t.ResponseObject != nil {
						msg = *t.ResponseObject
					}
					fmt.Fprintf(out, "pending %s/%s retries=%d: %s\n", t.ServiceName, t.RequestType, t.RetryNumber, msg)
				}
				return nil
			})
		},
	}
	redispatchCmd.Flags().Int64Var(&filingID, "filing-id", 0, "Completed filing id")
	redispatchCmd.Flags().StringVar(&taxID, "tax-id", "", "Tax id to record on the business before re-checking")
	_ = redispatchCmd.MarkFlagRequired("filing-id")
	rootCmd.AddCommand(redispatchCmd)
}

// consumeLoop runs one consumer per topic plus the health server until ctx
// is cancelled or a consumer stops.
func consumeLoop(ctx context.Context, factory *events.Factory, service string, topics []string, exec *retry.Executor, router *events.Router, health *healthcheck.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		c, err := factory.NewConsumer(topic, service, exec)
		if err != nil {
			return fmt.Errorf("failed to create consumer for %s: %w", topic, err)
		}
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("Failed to close consumer", slog.String("topic", topic), slog.Any("error", err))
			}
		}()
		g.Go(func() error {
			err := c.Consume(gctx, router.HandleMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				health.SetStatus(healthcheck.StatusUnhealthy)
			}
			return err
		})
	}
	g.Go(func() error { return health.Start(gctx) })

	health.SetStatus(healthcheck.StatusHealthy)
	health.SetReady(true)
	return g.Wait()
}

func runFiler(ctx context.Context, cfg *config.Config) error {
	stack, err := newFilingStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	health := healthcheck.NewServer(healthcheck.GetConfigFromEnv())
	health.Register("ledger", stack.store.Pool().Ping)

	router := events.FilerRoutes(events.NewRouter(), stack.machine)
	exec := retry.NewExecutor(cfg.Retry, retry.WithName("filer"))
	return consumeLoop(ctx, events.NewFactory(cfg.Events), "filer",
		[]string{cfg.Events.Topics.FilingSubmitted, cfg.Events.Topics.PaymentConfirmed},
		exec, router, health)
}

// newDispatcher loads and validates the plans and builds the dispatcher
// over store.
func newDispatcher(cfg *config.Config, store dispatch.Store) (*dispatch.Dispatcher, error) {
	plans, err := dispatch.LoadPlans(cfg.Dispatch.PlanFile)
	if err != nil {
		return nil, err
	}
	handlers := services.New(cfg.Services).Handlers()
	if err := plans.Validate(
		mapset.NewSet(services.HandlerNames(handlers)...),
		filing.KnownTypes(filing.DefaultProcessors()),
	); err != nil {
		return nil, fmt.Errorf("invalid dispatch plans: %w", err)
	}
	return dispatch.NewDispatcher(store, handlers, plans,
		retry.NewExecutor(cfg.Dispatch.Retry, retry.WithName("dispatch")),
		cfg.Dispatch.RetryBudget), nil
}

func runDispatcher(ctx context.Context, cfg *config.Config) error {
	store, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := newDispatcher(cfg, store)
	if err != nil {
		return err
	}

	health := healthcheck.NewServer(healthcheck.GetConfigFromEnv())
	health.Register("ledger", store.Pool().Ping)
	router := events.DispatcherRoutes(events.NewRouter(), d)

	// Step retries happen inside Dispatch; the consumer only redelivers.
	exec := retry.NewExecutor(cfg.Retry, retry.WithName("dispatcher"))
	return consumeLoop(ctx, events.NewFactory(cfg.Events), "dispatcher",
		[]string{cfg.Events.Topics.FilingCompleted},
		exec, router, health)
}
