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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/filingrunner/config"
	"github.com/cardinalhq/filingrunner/internal/events"
	"github.com/cardinalhq/filingrunner/internal/filing"
)

func init() {
	var (
		business      string
		filingType    string
		payloadFile   string
		paymentRef    string
		effectiveDate string
		corrects      int64
	)
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a DRAFT filing and announce its submission",
		RunE: func(c *cobra.Command, _ []string) error {
			nf := filing.NewFiling{
				BusinessIdentifier: business,
				FilingType:         filingType,
			}
			if payloadFile != "" {
				b, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("failed to read payload: %w", err)
				}
				nf.Payload = b
			}
			if effectiveDate != "" {
				t, err := time.Parse(time.RFC3339, effectiveDate)
				if err != nil {
					return fmt.Errorf("invalid effective date: %w", err)
				}
				nf.FutureEffectiveDate = &t
			}
			if corrects > 0 {
				nf.CorrectedFilingID = &corrects
			}
			return runService("filingrunner-submit", func(ctx context.Context, cfg *config.Config) error {
				stack, err := newFilingStack(ctx, cfg)
				if err != nil {
					return err
				}
				defer stack.Close()

				f, err := stack.machine.Create(ctx, nf)
				if err != nil {
					return err
				}
				if err := stack.emitter.FilingSubmitted(ctx, f.ID, paymentRef); err != nil {
					return fmt.Errorf("filing %d created but submission was not announced: %w", f.ID, err)
				}
				slog.Info("Filing submitted", slog.Int64("filing_id", f.ID), slog.String("payment_reference", paymentRef))
				fmt.Fprintln(c.OutOrStdout(), f.ID)
				return nil
			})
		},
	}
	submitCmd.Flags().StringVar(&business, "business", "", "Business identifier")
	submitCmd.Flags().StringVar(&filingType, "type", "", "Filing type")
	submitCmd.Flags().StringVar(&payloadFile, "payload", "", "Path to the filing JSON document")
	submitCmd.Flags().StringVar(&paymentRef, "payment-ref", "", "Payment reference the filing waits on")
	submitCmd.Flags().StringVar(&effectiveDate, "effective-date", "", "Future effective date, RFC 3339")
	submitCmd.Flags().Int64Var(&corrects, "corrects", 0, "Filing id this filing corrects")
	for _, f := range []string{"business", "type", "payment-ref"} {
		_ = submitCmd.MarkFlagRequired(f)
	}

	var paidAt string
	confirmCmd := &cobra.Command{
		Use:   "confirm-payment",
		Short: "Announce that a payment reference was paid",
		RunE: func(_ *cobra.Command, _ []string) error {
			at := time.Now().UTC()
			if paidAt != "" {
				t, err := time.Parse(time.RFC3339, paidAt)
				if err != nil {
					return fmt.Errorf("invalid paid-at: %w", err)
				}
				at = t
			}
			return runService("filingrunner-confirm-payment", func(ctx context.Context, cfg *config.Config) error {
				producer, err := events.NewFactory(cfg.Events).NewProducer()
				if err != nil {
					return err
				}
				defer func() { _ = producer.Close() }()
				return events.NewEmitter(producer, cfg.Events).PaymentConfirmed(ctx, paymentRef, at)
			})
		},
	}
	confirmCmd.Flags().StringVar(&paymentRef, "payment-ref", "", "Payment reference")
	confirmCmd.Flags().StringVar(&paidAt, "paid-at", "", "Payment time, RFC 3339; defaults to now")
	_ = confirmCmd.MarkFlagRequired("payment-ref")

	rootCmd.AddCommand(submitCmd, confirmCmd)
}
