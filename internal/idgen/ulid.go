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

package idgen

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator makes lexically sortable event ids. Ids made within the same
// millisecond still sort in creation order.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(crand.Reader, 0)}
}

// Make returns an id stamped with t. If the monotonic entropy for t's
// millisecond is exhausted the id is drawn from fresh entropy instead, which
// keeps it unique but not ordered against its neighbours.
func (u *ULIDGenerator) Make(t time.Time) string {
	u.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(t), u.entropy)
	u.mu.Unlock()
	if err != nil {
		return ulid.MustNew(ulid.Timestamp(t), crand.Reader).String()
	}
	return id.String()
}
