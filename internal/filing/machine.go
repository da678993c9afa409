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

// Package filing advances filings through DRAFT -> PENDING -> PAID ->
// COMPLETED, or to ERROR. Every transition is a guarded compare-and-set in
// the ledger so duplicate events are harmless, and the type-specific
// processor commits in the same transaction as the COMPLETED write.
package filing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/filingrunner/internal/logctx"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

var errNoRows = pgx.ErrNoRows

// Store is the ledger surface the machine needs.
type Store interface {
	ledgerdb.Querier
	ExecTx(ctx context.Context, fn func(ledgerdb.Querier) error) error
}

// CompletionPublisher announces a COMPLETED filing to the dispatcher.
type CompletionPublisher interface {
	FilingCompleted(ctx context.Context, f ledgerdb.Filing) error
}

type Machine struct {
	store      Store
	processors map[string]Processor
	publisher  CompletionPublisher
	now        func() time.Time
}

type Option func(*Machine)

func WithProcessors(p map[string]Processor) Option {
	return func(m *Machine) { m.processors = p }
}

func WithPublisher(p CompletionPublisher) Option {
	return func(m *Machine) { m.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func NewMachine(store Store, opts ...Option) *Machine {
	m := &Machine{
		store:      store,
		processors: DefaultProcessors(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewFiling describes a DRAFT filing to create.
type NewFiling struct {
	BusinessIdentifier  string
	FilingType          string
	Payload             []byte
	FutureEffectiveDate *time.Time
	CorrectedFilingID   *int64
}

// Create stores a new DRAFT filing.
func (m *Machine) Create(ctx context.Context, nf NewFiling) (ledgerdb.Filing, error) {
	if nf.BusinessIdentifier == "" {
		return ledgerdb.Filing{}, fmt.Errorf("%w: business identifier is required", ErrInvalidFiling)
	}
	if _, ok := m.processors[nf.FilingType]; !ok {
		return ledgerdb.Filing{}, fmt.Errorf("%w: %q", ErrUnknownType, nf.FilingType)
	}
	payload := nf.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	f, err := m.store.FilingInsert(ctx, ledgerdb.FilingInsertParams{
		BusinessIdentifier:  nf.BusinessIdentifier,
		FilingType:          nf.FilingType,
		FilingJson:          payload,
		FutureEffectiveDate: nf.FutureEffectiveDate,
		CorrectedFilingID:   nf.CorrectedFilingID,
	})
	if err != nil {
		return ledgerdb.Filing{}, fmt.Errorf("failed to insert filing: %w", err)
	}
	transitions.Add(ctx, 1, transitionAttr(f.FilingType, ledgerdb.FilingStatusDraft))
	return f, nil
}

// Submit validates a DRAFT filing and moves it to PENDING, awaiting payment
// under paymentReference. Re-submitting a PENDING filing with the same
// reference is a no-op.
func (m *Machine) Submit(ctx context.Context, filingID int64, paymentReference string) (ledgerdb.Filing, error) {
	if paymentReference == "" {
		return ledgerdb.Filing{}, fmt.Errorf("%w: payment reference is required", ErrInvalidFiling)
	}

	var out ledgerdb.Filing
	err := m.store.ExecTx(ctx, func(q ledgerdb.Querier) error {
		f, err := lock(ctx, q, filingID)
		if err != nil {
			return err
		}
		if f.Status == ledgerdb.FilingStatusPending && f.PaymentReference != nil && *f.PaymentReference == paymentReference {
			out = f
			return nil
		}
		if f.Status != ledgerdb.FilingStatusDraft {
			return fmt.Errorf("%w: submit filing %d in status %s", ErrInvalidTransition, f.ID, f.Status)
		}

		p, ok := m.processors[f.FilingType]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownType, f.FilingType)
		}
		if err := p.Validate(f); err != nil {
			return err
		}

		n, err := q.FilingMarkPending(ctx, ledgerdb.FilingMarkPendingParams{
			PaymentReference: &paymentReference,
			ID:               f.ID,
		})
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("%w: filing %d did not move to PENDING", ErrIntegrityViolation, f.ID)
		}
		out, err = q.FilingGet(ctx, f.ID)
		if err == nil {
			transitions.Add(ctx, 1, transitionAttr(out.FilingType, ledgerdb.FilingStatusPending))
		}
		return err
	})
	if err != nil {
		return ledgerdb.Filing{}, err
	}
	return out, nil
}

// ConfirmPayment handles a payment-confirmed event. The filing moves to PAID
// and receives its effective date, the later of paidAt and any requested
// future date. A zero paidAt means the payment is recorded now. If that
// date has arrived the filing is applied immediately, otherwise the due
// sweep applies it later. Duplicate events are absorbed:
// a PAID filing is simply applied again if due, a COMPLETED one is returned
// unchanged.
func (m *Machine) ConfirmPayment(ctx context.Context, paymentReference string, paidAt time.Time) (ledgerdb.Filing, error) {
	if paidAt.IsZero() {
		paidAt = m.now()
	}
	f, err := m.store.FilingGetByPaymentReference(ctx, &paymentReference)
	if errors.Is(err, errNoRows) {
		return ledgerdb.Filing{}, fmt.Errorf("%w: payment reference %s", ErrNotFound, paymentReference)
	}
	if err != nil {
		return ledgerdb.Filing{}, err
	}
	ctx = logctx.WithFiling(ctx, f.ID, f.FilingType)

	err = m.store.ExecTx(ctx, func(q ledgerdb.Querier) error {
		cur, err := lock(ctx, q, f.ID)
		if err != nil {
			return err
		}
		switch cur.Status {
		case ledgerdb.FilingStatusPaid, ledgerdb.FilingStatusCompleted:
			f = cur
			return nil
		case ledgerdb.FilingStatusPending:
		default:
			return fmt.Errorf("%w: payment for filing %d in status %s", ErrInvalidTransition, cur.ID, cur.Status)
		}

		paid, err := q.FilingMarkPaid(ctx, ledgerdb.FilingMarkPaidParams{PaidAt: paidAt.UTC(), ID: cur.ID})
		if errors.Is(err, errNoRows) {
			return fmt.Errorf("%w: filing %d did not move to PAID", ErrIntegrityViolation, cur.ID)
		}
		if err != nil {
			return err
		}
		if paid.EffectiveDate == nil {
			return fmt.Errorf("%w: filing %d is PAID without an effective date", ErrIntegrityViolation, cur.ID)
		}
		f = paid
		transitions.Add(ctx, 1, transitionAttr(f.FilingType, ledgerdb.FilingStatusPaid))
		return nil
	})
	if err != nil {
		return ledgerdb.Filing{}, err
	}

	if f.Status != ledgerdb.FilingStatusPaid {
		return f, nil
	}
	if f.EffectiveDate.After(m.now()) {
		logctx.FromContext(ctx).Info("Filing is future effective, deferring",
			slog.Time("effective_date", *f.EffectiveDate))
		return f, nil
	}
	return m.Apply(ctx, f.ID)
}

// Apply runs the type-specific processor for a due PAID filing and flips it
// to COMPLETED in the same transaction. A permanent processor error moves
// the filing to ERROR and is returned; a transient one leaves it PAID.
// Applying a COMPLETED filing returns it unchanged.
func (m *Machine) Apply(ctx context.Context, filingID int64) (ledgerdb.Filing, error) {
	var out ledgerdb.Filing
	applied := false
	err := m.store.ExecTx(ctx, func(q ledgerdb.Querier) error {
		f, err := lock(ctx, q, filingID)
		if err != nil {
			return err
		}
		out = f
		switch f.Status {
		case ledgerdb.FilingStatusCompleted:
			return nil
		case ledgerdb.FilingStatusPaid:
		default:
			return fmt.Errorf("%w: apply filing %d in status %s", ErrInvalidTransition, f.ID, f.Status)
		}
		if f.EffectiveDate == nil {
			return fmt.Errorf("%w: filing %d is PAID without an effective date", ErrIntegrityViolation, f.ID)
		}
		if f.EffectiveDate.After(m.now()) {
			return fmt.Errorf("%w: filing %d effective %s", ErrNotDue, f.ID, f.EffectiveDate.Format(time.RFC3339))
		}

		p, ok := m.processors[f.FilingType]
		if !ok {
			return retry.Permanent(fmt.Errorf("%w: %q", ErrUnknownType, f.FilingType))
		}

		var business *ledgerdb.Business
		b, err := q.BusinessGet(ctx, f.BusinessIdentifier)
		switch {
		case err == nil:
			business = &b
		case errors.Is(err, errNoRows):
		default:
			return err
		}

		if err := p.Apply(ctx, q, f, business); err != nil {
			return err
		}

		n, err := q.FilingMarkCompleted(ctx, f.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("%w: processor ran but filing %d did not move to COMPLETED", ErrIntegrityViolation, f.ID)
		}
		out, err = q.FilingGet(ctx, f.ID)
		applied = err == nil
		return err
	})

	ll := logctx.FromContext(logctx.WithFiling(ctx, filingID, out.FilingType))
	switch {
	case err == nil:
	case errors.Is(err, ErrIntegrityViolation):
		integrityViolations.Add(ctx, 1)
		ll.Error("Filing integrity violation, transaction rolled back", slog.Any("error", err))
		return out, err
	case retry.IsPermanent(err):
		ll.Warn("Filing processor failed permanently", slog.Any("error", err))
		if failErr := m.Fail(ctx, filingID, err.Error()); failErr != nil {
			return out, errors.Join(err, failErr)
		}
		return out, err
	default:
		return out, err
	}

	if applied {
		transitions.Add(ctx, 1, transitionAttr(out.FilingType, ledgerdb.FilingStatusCompleted))
		ll.Info("Filing completed")
		m.publish(ctx, out)
	}
	return out, nil
}

// Fail moves a non-terminal filing to ERROR with a diagnostic.
func (m *Machine) Fail(ctx context.Context, filingID int64, reason string) error {
	n, err := m.store.FilingMarkError(ctx, ledgerdb.FilingMarkErrorParams{
		ErrorMessage: &reason,
		ID:           filingID,
	})
	if err != nil {
		return fmt.Errorf("failed to mark filing %d ERROR: %w", filingID, err)
	}
	if n == 0 {
		f, err := m.store.FilingGet(ctx, filingID)
		if errors.Is(err, errNoRows) {
			return fmt.Errorf("%w: %d", ErrNotFound, filingID)
		}
		if err != nil {
			return err
		}
		if f.Status == ledgerdb.FilingStatusError {
			return nil
		}
		return fmt.Errorf("%w: fail filing %d in status %s", ErrInvalidTransition, filingID, f.Status)
	}
	transitions.Add(ctx, 1, transitionAttr("", ledgerdb.FilingStatusError))
	return nil
}

// SweepDue applies PAID filings whose effective date has arrived. It returns
// how many completed; per-filing errors are aggregated.
func (m *Machine) SweepDue(ctx context.Context, limit int) (int, error) {
	due, err := m.store.FilingListDue(ctx, ledgerdb.FilingListDueParams{
		Now:     m.now().UTC(),
		MaxRows: int32(max(limit, 1)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list due filings: %w", err)
	}

	var errs *multierror.Error
	completed := 0
	for _, f := range due {
		if ctx.Err() != nil {
			break
		}
		out, err := m.Apply(ctx, f.ID)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("filing %d: %w", f.ID, err))
			continue
		}
		if out.Status == ledgerdb.FilingStatusCompleted {
			completed++
		}
	}
	return completed, errs.ErrorOrNil()
}

// RepublishCompleted re-emits completion events that were never confirmed
// as published, for filings completed before olderThan ago.
func (m *Machine) RepublishCompleted(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if m.publisher == nil {
		return 0, nil
	}
	rows, err := m.store.FilingListUnpublished(ctx, ledgerdb.FilingListUnpublishedParams{
		CompletedBefore: m.now().Add(-olderThan).UTC(),
		MaxRows:         int32(max(limit, 1)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list unpublished filings: %w", err)
	}

	var errs *multierror.Error
	published := 0
	for _, f := range rows {
		if err := m.publishOnce(ctx, f); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("filing %d: %w", f.ID, err))
			continue
		}
		published++
	}
	return published, errs.ErrorOrNil()
}

func (m *Machine) publish(ctx context.Context, f ledgerdb.Filing) {
	if m.publisher == nil {
		return
	}
	if err := m.publishOnce(ctx, f); err != nil {
		logctx.FromContext(ctx).Warn("Failed to publish filing completion, sweeper will retry",
			slog.Int64("filing_id", f.ID),
			slog.Any("error", err))
	}
}

func (m *Machine) publishOnce(ctx context.Context, f ledgerdb.Filing) error {
	if err := m.publisher.FilingCompleted(ctx, f); err != nil {
		return err
	}
	if _, err := m.store.FilingMarkPublished(ctx, f.ID); err != nil {
		return fmt.Errorf("failed to mark filing %d published: %w", f.ID, err)
	}
	return nil
}

func lock(ctx context.Context, q ledgerdb.Querier, id int64) (ledgerdb.Filing, error) {
	f, err := q.FilingLockForUpdate(ctx, id)
	if errors.Is(err, errNoRows) {
		return ledgerdb.Filing{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return f, err
}
