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

package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filingrunner/internal/dispatch"
	"github.com/cardinalhq/filingrunner/internal/filing"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/internal/services"
	"github.com/cardinalhq/filingrunner/ledgerdb"
	"github.com/cardinalhq/filingrunner/testhelpers"
)

type okHandler struct{ name string }

func (h okHandler) Name() string { return h.name }

func (h okHandler) Handle(_ context.Context, req services.Request) (string, error) {
	if h.name == "bn" && req.Business.TaxID == nil {
		return "", retry.Permanentf("bn: no tax identifier available yet for %s", req.Business.Identifier)
	}
	return `{"ok":true}`, nil
}

type announced struct{ ids []int64 }

func (a *announced) FilingCompleted(_ context.Context, f ledgerdb.Filing) error {
	a.ids = append(a.ids, f.ID)
	return nil
}

func TestLedger_PendingStepIsRecheckedAfterTaxID(t *testing.T) {
	ctx := context.Background()
	store := testhelpers.NewTestLedgerStore(t)
	m := filing.NewMachine(store)

	f, err := m.Create(ctx, filing.NewFiling{
		BusinessIdentifier: "BC0000077",
		FilingType:         filing.TypeIncorporation,
		Payload:            []byte(`{"legalName":"No Number Yet Ltd."}`),
	})
	require.NoError(t, err)
	_, err = m.Submit(ctx, f.ID, "pay-77")
	require.NoError(t, err)
	f, err = m.ConfirmPayment(ctx, "pay-77", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, ledgerdb.FilingStatusCompleted, f.Status)

	handlers := map[string]services.Handler{}
	for _, n := range []string{"email", "bn", "credential", "auth", "corp"} {
		handlers[n] = okHandler{name: n}
	}
	d := dispatch.NewDispatcher(store, handlers, dispatch.DefaultPlans(),
		retry.NewExecutor(retry.DefaultConfig()), 3)

	rep, err := d.Dispatch(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Count(dispatch.StepFailed))

	pending, err := d.Pending(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bn", pending[0].ServiceName)
	assert.Equal(t, int32(0), pending[0].RetryNumber)
	require.NotNil(t, pending[0].ResponseObject)
	assert.Contains(t, *pending[0].ResponseObject, "no tax identifier")

	a := &announced{}
	n, err := dispatch.NewRechecker(store, a, 3).RecheckPending(ctx, -time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{f.ID}, a.ids)

	rep, err = d.Redispatch(ctx, f.ID, "987654321")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Count(dispatch.StepDispatched))

	pending, err = d.Pending(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	b, err := store.BusinessGet(ctx, "BC0000077")
	require.NoError(t, err)
	require.NotNil(t, b.TaxID)
	assert.Equal(t, "987654321", *b.TaxID)
}
