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
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// flakeEpoch is the zero point of generated ids. Moving it would reorder ids
// already stored on runs.
var flakeEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Flake hands out process-unique, roughly time-ordered positive ids. Each
// Run records the id of the worker that created it.
type Flake struct {
	sf *sonyflake.Sonyflake
}

// NewFlake fails when sonyflake cannot derive a machine id, typically on a
// host without a private address.
func NewFlake(epoch time.Time) (*Flake, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: epoch})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("sonyflake returned no generator")
	}
	return &Flake{sf: sf}, nil
}

// Next never fails. Without a working generator it returns a random positive
// id, which is still unique enough to tell workers apart.
func (f *Flake) Next() int64 {
	if f != nil && f.sf != nil {
		if v, err := f.sf.NextID(); err == nil {
			return int64(v)
		}
	}
	return rand.Int64N(1<<62) + 1
}

var defaultFlake = sync.OnceValue(func() *Flake {
	f, err := NewFlake(flakeEpoch)
	if err != nil {
		slog.Warn("Falling back to random worker ids", slog.Any("error", err))
		return &Flake{}
	}
	return f
})

// NextWorkerID draws from the process-wide generator.
func NextWorkerID() int64 {
	return defaultFlake().Next()
}
