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

package filing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filingrunner/ledgerdb"
	"github.com/cardinalhq/filingrunner/testhelpers"
)

func TestLedger_IncorporationThenChangeOfName(t *testing.T) {
	ctx := context.Background()
	store := testhelpers.NewTestLedgerStore(t)
	pub := &recordingPublisher{}
	m := NewMachine(store, WithPublisher(pub))

	inc, err := m.Create(ctx, NewFiling{
		BusinessIdentifier: "BC0000042",
		FilingType:         TypeIncorporation,
		Payload:            []byte(`{"legalName":"Harbour Rope Works Ltd.","taxId":"123456789"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusDraft, inc.Status)

	_, err = m.Submit(ctx, inc.ID, "pay-inc-42")
	require.NoError(t, err)
	done, err := m.ConfirmPayment(ctx, "pay-inc-42", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusCompleted, done.Status)

	// A replayed confirmation leaves the filing alone.
	again, err := m.ConfirmPayment(ctx, "pay-inc-42", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.FilingStatusCompleted, again.Status)

	b, err := store.BusinessGet(ctx, "BC0000042")
	require.NoError(t, err)
	assert.Equal(t, "Harbour Rope Works Ltd.", b.LegalName)
	require.NotNil(t, b.LastFilingID)
	assert.Equal(t, inc.ID, *b.LastFilingID)

	con, err := m.Create(ctx, NewFiling{
		BusinessIdentifier: "BC0000042",
		FilingType:         TypeChangeOfName,
		Payload:            []byte(`{"legalName":"Harbour Rope & Sail Ltd."}`),
	})
	require.NoError(t, err)
	_, err = m.Submit(ctx, con.ID, "pay-con-42")
	require.NoError(t, err)
	_, err = m.ConfirmPayment(ctx, "pay-con-42", time.Now().UTC())
	require.NoError(t, err)

	b, err = store.BusinessGet(ctx, "BC0000042")
	require.NoError(t, err)
	assert.Equal(t, "Harbour Rope & Sail Ltd.", b.LegalName)
	assert.Equal(t, []int64{inc.ID, con.ID}, pub.published())

	unpublished, err := store.FilingListUnpublished(ctx, ledgerdb.FilingListUnpublishedParams{
		CompletedBefore: time.Now().Add(time.Hour),
		MaxRows:         10,
	})
	require.NoError(t, err)
	assert.Empty(t, unpublished)
}

func TestLedger_SecondIncorporationGoesToError(t *testing.T) {
	ctx := context.Background()
	store := testhelpers.NewTestLedgerStore(t)
	m := NewMachine(store)

	for i, ref := range []string{"pay-a", "pay-b"} {
		f, err := m.Create(ctx, NewFiling{
			BusinessIdentifier: "BC0000077",
			FilingType:         TypeIncorporation,
			Payload:            []byte(`{"legalName":"Twice Ltd."}`),
		})
		require.NoError(t, err)
		_, err = m.Submit(ctx, f.ID, ref)
		require.NoError(t, err)
		_, err = m.ConfirmPayment(ctx, ref, time.Now().UTC())
		if i == 0 {
			require.NoError(t, err)
			continue
		}
		require.Error(t, err)
		got, gerr := store.FilingGet(ctx, f.ID)
		require.NoError(t, gerr)
		assert.Equal(t, ledgerdb.FilingStatusError, got.Status)
	}
}
