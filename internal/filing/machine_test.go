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

package filing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu    sync.Mutex
	ids   []int64
	fails int
}

func (p *recordingPublisher) FilingCompleted(_ context.Context, f ledgerdb.Filing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("broker unavailable")
	}
	p.ids = append(p.ids, f.ID)
	return nil
}

func (p *recordingPublisher) published() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.ids...)
}

type flakyProcessor struct{}

func (flakyProcessor) Validate(ledgerdb.Filing) error { return nil }

func (flakyProcessor) Apply(ctx context.Context, q ledgerdb.Querier, f ledgerdb.Filing, _ *ledgerdb.Business) error {
	if err := q.BusinessUpsert(ctx, ledgerdb.BusinessUpsertParams{
		Identifier: f.BusinessIdentifier,
		LegalName:  "Half Written Ltd.",
		State:      ledgerdb.BusinessStateActive,
	}); err != nil {
		return err
	}
	return errors.New("registry unavailable")
}

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *fakeStore, *testClock, *recordingPublisher) {
	t.Helper()
	store := newFakeStore()
	clock := &testClock{t: time.Now().UTC()}
	pub := &recordingPublisher{}
	all := append([]Option{WithClock(clock.Now), WithPublisher(pub)}, opts...)
	return NewMachine(store, all...), store, clock, pub
}

func submitted(t *testing.T, m *Machine, nf NewFiling, ref string) ledgerdb.Filing {
	t.Helper()
	ctx := context.Background()
	f, err := m.Create(ctx, nf)
	require.NoError(t, err)
	f, err = m.Submit(ctx, f.ID, ref)
	require.NoError(t, err)
	require.Equal(t, ledgerdb.FilingStatusPending, f.Status)
	return f
}

func TestCreateRejectsBadInput(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	ctx := context.Background()

	_, err := m.Create(ctx, NewFiling{FilingType: TypeIncorporation})
	assert.ErrorIs(t, err, ErrInvalidFiling)

	_, err = m.Create(ctx, NewFiling{BusinessIdentifier: "BC1", FilingType: "annualReport"})
	assert.ErrorIs(t, err, ErrUnknownType)

	f, err := m.Create(ctx, NewFiling{BusinessIdentifier: "BC1", FilingType: TypeDissolution})
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusDraft, f.Status)
	assert.JSONEq(t, "{}", string(f.FilingJson))
}

func TestIncorporationCompletesOnPayment(t *testing.T) {
	m, store, clock, pub := newTestMachine(t)
	ctx := context.Background()

	f := submitted(t, m, NewFiling{
		BusinessIdentifier: "BC0000001",
		FilingType:         TypeIncorporation,
		Payload:            []byte(`{"legalName":"Acme Widgets Ltd.","taxId":"123456789"}`),
	}, "pay-1")

	out, err := m.ConfirmPayment(ctx, "pay-1", clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusCompleted, out.Status)
	require.NotNil(t, out.EffectiveDate)
	assert.Equal(t, clock.Now().Add(-time.Minute), *out.EffectiveDate)

	b, ok := store.business("BC0000001")
	require.True(t, ok)
	assert.Equal(t, "Acme Widgets Ltd.", b.LegalName)
	assert.Equal(t, ledgerdb.BusinessStateActive, b.State)
	require.NotNil(t, b.LastFilingID)
	assert.Equal(t, f.ID, *b.LastFilingID)

	assert.Equal(t, []int64{f.ID}, pub.published())
	assert.NotNil(t, store.filing(f.ID).CompletionPublishedAt)
}

func TestPaymentWithoutTimestampUsesClock(t *testing.T) {
	m, _, clock, _ := newTestMachine(t)
	ctx := context.Background()

	submitted(t, m, NewFiling{
		BusinessIdentifier: "BC0000002",
		FilingType:         TypeIncorporation,
		Payload:            []byte(`{"legalName":"Zero Time Ltd."}`),
	}, "pay-z")

	out, err := m.ConfirmPayment(ctx, "pay-z", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusCompleted, out.Status)
	require.NotNil(t, out.EffectiveDate)
	assert.Equal(t, clock.Now(), *out.EffectiveDate)
	require.NotNil(t, out.PaymentCompletedAt)
	assert.False(t, out.PaymentCompletedAt.IsZero())
}

func TestSubmitIsIdempotentForSameReference(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	ctx := context.Background()

	f := submitted(t, m, NewFiling{BusinessIdentifier: "BC1", FilingType: TypeLiquidation}, "pay-2")

	again, err := m.Submit(ctx, f.ID, "pay-2")
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusPending, again.Status)

	_, err = m.Submit(ctx, f.ID, "pay-other")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Submit(ctx, 9999, "pay-3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitValidatesPayload(t *testing.T) {
	m, store, _, _ := newTestMachine(t)
	ctx := context.Background()

	f, err := m.Create(ctx, NewFiling{
		BusinessIdentifier: "BC1",
		FilingType:         TypeChangeOfName,
		Payload:            []byte(`{"legalName":""}`),
	})
	require.NoError(t, err)

	_, err = m.Submit(ctx, f.ID, "pay-4")
	assert.ErrorIs(t, err, ErrInvalidFiling)
	assert.Equal(t, ledgerdb.FilingStatusDraft, store.filing(f.ID).Status)

	_, err = m.Submit(ctx, f.ID, "")
	assert.ErrorIs(t, err, ErrInvalidFiling)
}

func TestFutureEffectiveFilingWaitsForSweep(t *testing.T) {
	m, store, clock, _ := newTestMachine(t)
	ctx := context.Background()
	store.putBusiness(ledgerdb.Business{Identifier: "BC2", LegalName: "Old Name Inc.", State: ledgerdb.BusinessStateActive})

	future := clock.Now().Add(48 * time.Hour)
	f := submitted(t, m, NewFiling{
		BusinessIdentifier:  "BC2",
		FilingType:          TypeChangeOfName,
		Payload:             []byte(`{"legalName":"New Name Inc."}`),
		FutureEffectiveDate: &future,
	}, "pay-5")

	out, err := m.ConfirmPayment(ctx, "pay-5", clock.Now())
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusPaid, out.Status)
	require.NotNil(t, out.EffectiveDate)
	assert.Equal(t, future, *out.EffectiveDate)

	_, err = m.Apply(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotDue)

	n, err := m.SweepDue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(49 * time.Hour)
	n, err = m.SweepDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b, _ := store.business("BC2")
	assert.Equal(t, "New Name Inc.", b.LegalName)
	assert.Equal(t, ledgerdb.FilingStatusCompleted, store.filing(f.ID).Status)
}

func TestDuplicatePaymentConfirmation(t *testing.T) {
	m, store, clock, pub := newTestMachine(t)
	ctx := context.Background()
	store.putBusiness(ledgerdb.Business{Identifier: "BC3", LegalName: "Three Ltd.", State: ledgerdb.BusinessStateActive})

	f := submitted(t, m, NewFiling{BusinessIdentifier: "BC3", FilingType: TypeDissolution}, "pay-6")

	first, err := m.ConfirmPayment(ctx, "pay-6", clock.Now())
	require.NoError(t, err)
	second, err := m.ConfirmPayment(ctx, "pay-6", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, ledgerdb.FilingStatusCompleted, second.Status)
	assert.Equal(t, first.EffectiveDate, second.EffectiveDate)
	assert.Equal(t, []int64{f.ID}, pub.published())

	_, err = m.ConfirmPayment(ctx, "pay-unknown", clock.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPermanentProcessorFailureMovesToError(t *testing.T) {
	m, store, clock, pub := newTestMachine(t)
	ctx := context.Background()

	f := submitted(t, m, NewFiling{
		BusinessIdentifier: "BC404",
		FilingType:         TypeChangeOfName,
		Payload:            []byte(`{"legalName":"Nobody Inc."}`),
	}, "pay-7")

	_, err := m.ConfirmPayment(ctx, "pay-7", clock.Now())
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.ErrorIs(t, err, ErrBusinessMissing)

	got := store.filing(f.ID)
	assert.Equal(t, ledgerdb.FilingStatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "BC404")
	assert.Empty(t, pub.published())
}

func TestStateProcessorRejectsInvalidLifecycleMove(t *testing.T) {
	m, store, clock, _ := newTestMachine(t)
	ctx := context.Background()
	store.putBusiness(ledgerdb.Business{Identifier: "BC5", LegalName: "Gone Ltd.", State: ledgerdb.BusinessStateHistorical})

	f := submitted(t, m, NewFiling{BusinessIdentifier: "BC5", FilingType: TypeLiquidation}, "pay-8")
	_, err := m.ConfirmPayment(ctx, "pay-8", clock.Now())
	require.Error(t, err)
	assert.Equal(t, ledgerdb.FilingStatusError, store.filing(f.ID).Status)

	b, _ := store.business("BC5")
	assert.Equal(t, ledgerdb.BusinessStateHistorical, b.State)
}

func TestTransientProcessorFailureRollsBackAndStaysPaid(t *testing.T) {
	m, store, clock, _ := newTestMachine(t, WithProcessors(map[string]Processor{"flaky": flakyProcessor{}}))
	ctx := context.Background()

	f := submitted(t, m, NewFiling{BusinessIdentifier: "BC6", FilingType: "flaky"}, "pay-9")
	_, err := m.ConfirmPayment(ctx, "pay-9", clock.Now())
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))

	assert.Equal(t, ledgerdb.FilingStatusPaid, store.filing(f.ID).Status)
	_, ok := store.business("BC6")
	assert.False(t, ok, "processor writes must roll back with the failed transaction")

	n, err := m.SweepDue(ctx, 10)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestIntegrityViolationRollsBackProcessor(t *testing.T) {
	m, store, clock, pub := newTestMachine(t)
	ctx := context.Background()
	store.putBusiness(ledgerdb.Business{Identifier: "BC7", LegalName: "Seven Ltd.", State: ledgerdb.BusinessStateActive})

	f := submitted(t, m, NewFiling{BusinessIdentifier: "BC7", FilingType: TypeDissolution}, "pay-10")
	store.dropCompleted = true

	_, err := m.ConfirmPayment(ctx, "pay-10", clock.Now())
	assert.ErrorIs(t, err, ErrIntegrityViolation)

	b, _ := store.business("BC7")
	assert.Equal(t, ledgerdb.BusinessStateActive, b.State)
	assert.Equal(t, ledgerdb.FilingStatusPaid, store.filing(f.ID).Status)
	assert.Empty(t, pub.published())
}

func TestCorrectionMovesEffectiveDateOfCompletedFiling(t *testing.T) {
	m, store, clock, _ := newTestMachine(t)
	ctx := context.Background()
	store.putBusiness(ledgerdb.Business{Identifier: "BC8", LegalName: "Eight Ltd.", State: ledgerdb.BusinessStateActive})

	orig := submitted(t, m, NewFiling{
		BusinessIdentifier: "BC8",
		FilingType:         TypeChangeOfName,
		Payload:            []byte(`{"legalName":"Eight Renamed Ltd."}`),
	}, "pay-11")
	_, err := m.ConfirmPayment(ctx, "pay-11", clock.Now())
	require.NoError(t, err)

	_, err = m.Create(ctx, NewFiling{BusinessIdentifier: "BC8", FilingType: TypeCorrection})
	require.NoError(t, err, "creation does not validate the payload")

	corrected := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	c, err := m.Create(ctx, NewFiling{
		BusinessIdentifier: "BC8",
		FilingType:         TypeCorrection,
		Payload:            []byte(`{"effectiveDate":"2026-01-15T00:00:00Z"}`),
		CorrectedFilingID:  &orig.ID,
	})
	require.NoError(t, err)
	_, err = m.Submit(ctx, c.ID, "pay-12")
	require.NoError(t, err)
	out, err := m.ConfirmPayment(ctx, "pay-12", clock.Now())
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusCompleted, out.Status)

	got := store.filing(orig.ID)
	require.NotNil(t, got.EffectiveDate)
	assert.True(t, corrected.Equal(*got.EffectiveDate))
}

func TestRepublishCompleted(t *testing.T) {
	m, store, clock, pub := newTestMachine(t)
	ctx := context.Background()
	store.putBusiness(ledgerdb.Business{Identifier: "BC9", LegalName: "Nine Ltd.", State: ledgerdb.BusinessStateActive})
	pub.fails = 1

	f := submitted(t, m, NewFiling{BusinessIdentifier: "BC9", FilingType: TypeLiquidation}, "pay-13")
	out, err := m.ConfirmPayment(ctx, "pay-13", clock.Now())
	require.NoError(t, err, "publish failure does not fail the transition")
	assert.Equal(t, ledgerdb.FilingStatusCompleted, out.Status)
	assert.Nil(t, store.filing(f.ID).CompletionPublishedAt)

	clock.Advance(time.Hour)
	n, err := m.RepublishCompleted(ctx, 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{f.ID}, pub.published())

	n, err = m.RepublishCompleted(ctx, 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFail(t *testing.T) {
	m, store, clock, _ := newTestMachine(t)
	ctx := context.Background()
	store.putBusiness(ledgerdb.Business{Identifier: "BC10", LegalName: "Ten Ltd.", State: ledgerdb.BusinessStateActive})

	draft, err := m.Create(ctx, NewFiling{BusinessIdentifier: "BC10", FilingType: TypeLiquidation})
	require.NoError(t, err)
	require.NoError(t, m.Fail(ctx, draft.ID, "abandoned"))
	require.NoError(t, m.Fail(ctx, draft.ID, "abandoned again"))
	assert.Equal(t, "abandoned", *store.filing(draft.ID).ErrorMessage)

	done := submitted(t, m, NewFiling{BusinessIdentifier: "BC10", FilingType: TypeLiquidation}, "pay-14")
	_, err = m.ConfirmPayment(ctx, "pay-14", clock.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, m.Fail(ctx, done.ID, "too late"), ErrInvalidTransition)

	assert.ErrorIs(t, m.Fail(ctx, 12345, "missing"), ErrNotFound)
}
