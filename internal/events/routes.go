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

package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cardinalhq/filingrunner/internal/dispatch"
	"github.com/cardinalhq/filingrunner/internal/filing"
	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

type FilingMachine interface {
	Submit(ctx context.Context, filingID int64, paymentReference string) (ledgerdb.Filing, error)
	ConfirmPayment(ctx context.Context, paymentReference string, paidAt time.Time) (ledgerdb.Filing, error)
}

type FilingDispatcher interface {
	Dispatch(ctx context.Context, filingID int64) (dispatch.Report, error)
}

// FilerRoutes wires filing-submitted and payment-confirmed events to the
// state machine.
func FilerRoutes(r *Router, m FilingMachine) *Router {
	r.Handle(TypeFilingSubmitted, func(ctx context.Context, env Envelope) error {
		var ev FilingSubmitted
		if err := env.DecodeData(&ev); err != nil {
			return retry.Permanent(err)
		}
		_, err := m.Submit(ctx, ev.FilingID, ev.PaymentReference)
		return classifyFilingError(err)
	})
	r.Handle(TypePaymentConfirmed, func(ctx context.Context, env Envelope) error {
		var ev PaymentConfirmed
		if err := env.DecodeData(&ev); err != nil {
			return retry.Permanent(err)
		}
		if ev.Status != PaymentStatusCompleted {
			logctx.FromContext(ctx).Info("Ignoring payment that did not complete",
				slog.String("payment_reference", ev.PaymentReference),
				slog.String("status", ev.Status))
			return nil
		}
		paidAt := ev.PaidAt
		if paidAt.IsZero() {
			paidAt = env.Time
		}
		if paidAt.IsZero() {
			paidAt = time.Now().UTC()
		}
		f, err := m.ConfirmPayment(ctx, ev.PaymentReference, paidAt)
		err = classifyFilingError(err)
		if err != nil && !retry.IsPermanent(err) && f.Status == ledgerdb.FilingStatusPaid {
			logctx.FromContext(ctx).Warn("Payment recorded but apply failed, leaving filing for the due sweep",
				slog.Int64("filing_id", f.ID),
				slog.Any("error", err))
			return nil
		}
		return err
	})
	return r
}

// DispatcherRoutes wires filing-completed events to the dispatcher.
func DispatcherRoutes(r *Router, d FilingDispatcher) *Router {
	r.Handle(TypeFilingCompleted, func(ctx context.Context, env Envelope) error {
		var ev FilingCompleted
		if err := env.DecodeData(&ev); err != nil {
			return retry.Permanent(err)
		}
		rep, err := d.Dispatch(ctx, ev.FilingID)
		if rep.Halted {
			logctx.FromContext(ctx).Warn("Dispatch halted", slog.Int64("filing_id", ev.FilingID))
		}
		return err
	})
	return r
}

// classifyFilingError marks state machine errors that redelivery cannot fix
// as permanent.
func classifyFilingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, filing.ErrNotFound),
		errors.Is(err, filing.ErrInvalidTransition),
		errors.Is(err, filing.ErrInvalidFiling),
		errors.Is(err, filing.ErrUnknownType),
		errors.Is(err, filing.ErrIntegrityViolation):
		return retry.Permanent(err)
	default:
		return err
	}
}
