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

package workclaim

import "errors"

var (
	// ErrReservationConflict means the reservation kept losing to concurrent
	// runs of the same scope until its retry budget ran out. Nothing was
	// reserved.
	ErrReservationConflict = errors.New("work item reservation conflict")

	// ErrLeaseLost means the item is no longer claimed by the calling run,
	// usually because the stale sweep re-offered it.
	ErrLeaseLost = errors.New("work item claim no longer held by run")

	// ErrAlreadyCompleted rejects a status write against an item that some
	// earlier call already recorded as COMPLETED with a different status.
	ErrAlreadyCompleted = errors.New("work item already completed")

	ErrNoSuchItem    = errors.New("work item not found")
	ErrNoSuchRun     = errors.New("run not found")
	ErrInvalidStatus = errors.New("invalid work item status")
)
