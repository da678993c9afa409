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

package backlog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filingrunner/internal/workclaim"
	"github.com/cardinalhq/filingrunner/internal/workclaim/memledger"
)

type sliceSource struct {
	ids []string
	err error
}

func (s sliceSource) Candidates(_ context.Context, _ string, yield func(string) error) error {
	for _, id := range s.ids {
		if err := yield(id); err != nil {
			return err
		}
	}
	return s.err
}

type recordingTarget struct {
	chunks [][]string
}

func (r *recordingTarget) Seed(_ context.Context, _ string, ids []string) (int64, error) {
	r.chunks = append(r.chunks, append([]string(nil), ids...))
	return int64(len(ids)), nil
}

func TestSeedChunksAndDeduplicates(t *testing.T) {
	target := &recordingTarget{}
	s := NewSeeder(sliceSource{ids: []string{"A1", "A2", "", "A3", "A2", "A4", "A5"}}, target, 2)

	res, err := s.Seed(context.Background(), "freeze-2024")
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Candidates)
	assert.Equal(t, int64(5), res.Inserted)
	assert.Equal(t, [][]string{{"A1", "A2"}, {"A3", "A4"}, {"A5"}}, target.chunks)
}

func TestSeedIsRepeatableAgainstLedger(t *testing.T) {
	ledger := memledger.New()
	coord := workclaim.NewCoordinator(ledger, workclaim.DefaultConfig())
	src := sliceSource{ids: []string{"BC1", "BC2", "BC3"}}

	res, err := NewSeeder(src, coord, 10).Seed(context.Background(), "notify")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Inserted)

	src.ids = append(src.ids, "BC4")
	res, err = NewSeeder(src, coord, 10).Seed(context.Background(), "notify")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Candidates)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Len(t, ledger.Items("notify"), 4)
}

func TestSeedStopsOnSourceError(t *testing.T) {
	target := &recordingTarget{}
	boom := errors.New("source went away")
	_, err := NewSeeder(sliceSource{ids: []string{"A1"}, err: boom}, target, 10).Seed(context.Background(), "s")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, target.chunks, "a partial final chunk is not written after a source error")
}

func TestPgSourceRequiresQuery(t *testing.T) {
	src := NewPgSource(nil, map[string]string{"freeze": "SELECT identifier FROM corporations"})
	err := src.Candidates(context.Background(), "notify", func(string) error { return nil })
	assert.ErrorIs(t, err, ErrNoQuery)
}
