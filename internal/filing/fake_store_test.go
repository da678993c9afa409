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
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/cardinalhq/filingrunner/ledgerdb"
)

// fakeStore is an in-memory ledger for the filing tables. ExecTx snapshots
// the tables and restores them when fn fails.
type fakeStore struct {
	ledgerdb.Querier

	mu         sync.Mutex
	nextID     int64
	filings    map[int64]ledgerdb.Filing
	businesses map[string]ledgerdb.Business

	// dropCompleted makes FilingMarkCompleted report zero rows.
	dropCompleted bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		filings:    map[int64]ledgerdb.Filing{},
		businesses: map[string]ledgerdb.Business{},
	}
}

func (s *fakeStore) ExecTx(ctx context.Context, fn func(ledgerdb.Querier) error) error {
	s.mu.Lock()
	filings := maps.Clone(s.filings)
	businesses := maps.Clone(s.businesses)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.filings = filings
		s.businesses = businesses
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) filing(id int64) ledgerdb.Filing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filings[id]
}

func (s *fakeStore) business(id string) (ledgerdb.Business, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	return b, ok
}

func (s *fakeStore) putBusiness(b ledgerdb.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.Identifier] = b
}

func (s *fakeStore) update(id int64, fn func(*ledgerdb.Filing) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filings[id]
	if !ok || !fn(&f) {
		return 0
	}
	f.LastModified = time.Now()
	s.filings[id] = f
	return 1
}

func (s *fakeStore) BusinessGet(_ context.Context, identifier string) (ledgerdb.Business, error) {
	if b, ok := s.business(identifier); ok {
		return b, nil
	}
	return ledgerdb.Business{}, errNoRows
}

func (s *fakeStore) BusinessUpsert(_ context.Context, arg ledgerdb.BusinessUpsertParams) error {
	s.putBusiness(ledgerdb.Business{
		Identifier: arg.Identifier,
		LegalName:  arg.LegalName,
		State:      arg.State,
		TaxID:      arg.TaxID,
	})
	return nil
}

func (s *fakeStore) BusinessSetLegalName(_ context.Context, arg ledgerdb.BusinessSetLegalNameParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[arg.Identifier]
	if !ok {
		return 0, nil
	}
	b.LegalName = arg.LegalName
	b.LastFilingID = arg.FilingID
	s.businesses[arg.Identifier] = b
	return 1, nil
}

func (s *fakeStore) BusinessSetState(_ context.Context, arg ledgerdb.BusinessSetStateParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[arg.Identifier]
	if !ok {
		return 0, nil
	}
	b.State = arg.State
	b.LastFilingID = arg.FilingID
	s.businesses[arg.Identifier] = b
	return 1, nil
}

func (s *fakeStore) FilingInsert(_ context.Context, arg ledgerdb.FilingInsertParams) (ledgerdb.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now()
	f := ledgerdb.Filing{
		ID:                  s.nextID,
		BusinessIdentifier:  arg.BusinessIdentifier,
		FilingType:          arg.FilingType,
		Status:              ledgerdb.FilingStatusDraft,
		FilingJson:          arg.FilingJson,
		FutureEffectiveDate: arg.FutureEffectiveDate,
		CorrectedFilingID:   arg.CorrectedFilingID,
		CreatedAt:           now,
		LastModified:        now,
	}
	s.filings[f.ID] = f
	return f, nil
}

func (s *fakeStore) FilingGet(_ context.Context, id int64) (ledgerdb.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.filings[id]; ok {
		return f, nil
	}
	return ledgerdb.Filing{}, errNoRows
}

func (s *fakeStore) FilingLockForUpdate(ctx context.Context, id int64) (ledgerdb.Filing, error) {
	return s.FilingGet(ctx, id)
}

func (s *fakeStore) FilingGetByPaymentReference(_ context.Context, ref *string) (ledgerdb.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.filings {
		if f.PaymentReference != nil && ref != nil && *f.PaymentReference == *ref {
			return f, nil
		}
	}
	return ledgerdb.Filing{}, errNoRows
}

func (s *fakeStore) FilingMarkPending(_ context.Context, arg ledgerdb.FilingMarkPendingParams) (int64, error) {
	return s.update(arg.ID, func(f *ledgerdb.Filing) bool {
		if f.Status != ledgerdb.FilingStatusDraft {
			return false
		}
		now := time.Now()
		f.Status = ledgerdb.FilingStatusPending
		f.PaymentReference = arg.PaymentReference
		f.SubmittedAt = &now
		return true
	}), nil
}

func (s *fakeStore) FilingMarkPaid(_ context.Context, arg ledgerdb.FilingMarkPaidParams) (ledgerdb.Filing, error) {
	n := s.update(arg.ID, func(f *ledgerdb.Filing) bool {
		if f.Status != ledgerdb.FilingStatusPending {
			return false
		}
		paid := arg.PaidAt
		f.Status = ledgerdb.FilingStatusPaid
		f.PaymentCompletedAt = &paid
		if f.EffectiveDate == nil {
			eff := paid
			if f.FutureEffectiveDate != nil && f.FutureEffectiveDate.After(paid) {
				eff = *f.FutureEffectiveDate
			}
			f.EffectiveDate = &eff
		}
		return true
	})
	if n == 0 {
		return ledgerdb.Filing{}, errNoRows
	}
	return s.filing(arg.ID), nil
}

func (s *fakeStore) FilingMarkCompleted(_ context.Context, id int64) (int64, error) {
	if s.dropCompleted {
		return 0, nil
	}
	return s.update(id, func(f *ledgerdb.Filing) bool {
		if f.Status != ledgerdb.FilingStatusPaid {
			return false
		}
		now := time.Now()
		f.Status = ledgerdb.FilingStatusCompleted
		f.CompletedAt = &now
		return true
	}), nil
}

func (s *fakeStore) FilingMarkError(_ context.Context, arg ledgerdb.FilingMarkErrorParams) (int64, error) {
	return s.update(arg.ID, func(f *ledgerdb.Filing) bool {
		if f.Status == ledgerdb.FilingStatusCompleted || f.Status == ledgerdb.FilingStatusError {
			return false
		}
		f.Status = ledgerdb.FilingStatusError
		f.ErrorMessage = arg.ErrorMessage
		return true
	}), nil
}

func (s *fakeStore) FilingMarkPublished(_ context.Context, id int64) (int64, error) {
	return s.update(id, func(f *ledgerdb.Filing) bool {
		if f.Status != ledgerdb.FilingStatusCompleted || f.CompletionPublishedAt != nil {
			return false
		}
		now := time.Now()
		f.CompletionPublishedAt = &now
		return true
	}), nil
}

func (s *fakeStore) FilingCorrectEffectiveDate(_ context.Context, arg ledgerdb.FilingCorrectEffectiveDateParams) (int64, error) {
	return s.update(arg.ID, func(f *ledgerdb.Filing) bool {
		if f.Status != ledgerdb.FilingStatusCompleted {
			return false
		}
		f.EffectiveDate = arg.EffectiveDate
		return true
	}), nil
}

func (s *fakeStore) FilingListDue(_ context.Context, arg ledgerdb.FilingListDueParams) ([]ledgerdb.Filing, error) {
	return s.list(int(arg.MaxRows), func(f ledgerdb.Filing) bool {
		return f.Status == ledgerdb.FilingStatusPaid && f.EffectiveDate != nil && !f.EffectiveDate.After(arg.Now)
	}), nil
}

func (s *fakeStore) FilingListUnpublished(_ context.Context, arg ledgerdb.FilingListUnpublishedParams) ([]ledgerdb.Filing, error) {
	return s.list(int(arg.MaxRows), func(f ledgerdb.Filing) bool {
		return f.Status == ledgerdb.FilingStatusCompleted && f.CompletionPublishedAt == nil &&
			f.CompletedAt != nil && f.CompletedAt.Before(arg.CompletedBefore)
	}), nil
}

func (s *fakeStore) list(limit int, match func(ledgerdb.Filing) bool) []ledgerdb.Filing {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledgerdb.Filing
	for _, f := range s.filings {
		if match(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
