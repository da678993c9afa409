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

package ledgerdb

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// reserveLockTimeout bounds how long a reservation waits for another run
// holding the same scope. Exceeding it surfaces as a lock_not_available error
// which callers treat as a reservation conflict and retry.
const reserveLockTimeout = "5s"

// ScopeLockKey maps a run scope to the advisory lock key that serializes
// reservations within that scope.
func ScopeLockKey(runScope string) int64 {
	return int64(xxhash.Sum64String("work_items/" + runScope))
}

func (s *Store) lockScope(ctx context.Context, runScope string) error {
	if _, err := s.db.Exec(ctx, "SET LOCAL lock_timeout = '"+reserveLockTimeout+"'"); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	if _, err := s.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ScopeLockKey(runScope)); err != nil {
		return fmt.Errorf("failed to acquire scope lock for %q: %w", runScope, err)
	}
	return nil
}

// ReserveWorkItems atomically assigns up to MaxItems unclaimed, not-completed
// items of the scope to the run. Either every selected row is claimed or none is.
func (s *Store) ReserveWorkItems(ctx context.Context, params WorkItemReserveDirectParams) ([]string, error) {
	var reserved []string
	err := s.inTx(ctx, func(tx *Store) error {
		if err := tx.lockScope(ctx, params.RunScope); err != nil {
			return err
		}
		var err error
		reserved, err = tx.WorkItemReserveDirect(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// RequeueFailedWorkItems returns FAILED items of a scope to the unclaimed pool
// so that a later run can reserve them again.
func (s *Store) RequeueFailedWorkItems(ctx context.Context, params WorkItemRequeueFailedDirectParams) ([]WorkItemRequeueFailedDirectRow, error) {
	var result []WorkItemRequeueFailedDirectRow
	err := s.inTx(ctx, func(tx *Store) error {
		if err := tx.lockScope(ctx, params.RunScope); err != nil {
			return err
		}
		var err error
		result, err = tx.WorkItemRequeueFailedDirect(ctx, params)
		return err
	})
	return result, err
}
