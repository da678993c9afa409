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

// ProcessingStatus is the terminal-or-not state of a WorkItem.
type ProcessingStatus string

const (
	ProcessingStatusUnset     ProcessingStatus = "UNSET"
	ProcessingStatusCompleted ProcessingStatus = "COMPLETED"
	ProcessingStatusFailed    ProcessingStatus = "FAILED"
)

// Terminal reports whether the status may be written by UpdateStatus.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

type FilingStatus string

const (
	FilingStatusDraft     FilingStatus = "DRAFT"
	FilingStatusPending   FilingStatus = "PENDING"
	FilingStatusPaid      FilingStatus = "PAID"
	FilingStatusCompleted FilingStatus = "COMPLETED"
	FilingStatusError     FilingStatus = "ERROR"
)

type BusinessState string

const (
	BusinessStateActive      BusinessState = "ACTIVE"
	BusinessStateHistorical  BusinessState = "HISTORICAL"
	BusinessStateLiquidation BusinessState = "LIQUIDATION"
)
