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

import "errors"

var (
	// ErrInvalidTransition rejects an event that does not apply to the
	// filing's current status.
	ErrInvalidTransition = errors.New("invalid filing transition")

	// ErrIntegrityViolation means a status write inside the apply transaction
	// did not land after the processor ran. The transaction is rolled back;
	// reaching this is a data bug, never a retryable condition.
	ErrIntegrityViolation = errors.New("filing state integrity violation")

	// ErrNotDue is returned by Apply for a PAID filing whose effective date
	// has not arrived. The due sweep will pick it up.
	ErrNotDue = errors.New("filing not yet effective")

	ErrNotFound        = errors.New("filing not found")
	ErrUnknownType     = errors.New("unknown filing type")
	ErrInvalidFiling   = errors.New("filing failed validation")
	ErrBusinessMissing = errors.New("business not found")
)
