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

package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestVersion_Embedded(t *testing.T) {
	got, err := latestVersion(migrationFiles)
	require.NoError(t, err)
	assert.Equal(t, uint(1760745600), got)
}

func TestLatestVersion_PicksHighestUp(t *testing.T) {
	files := fstest.MapFS{
		"100_a.up.sql":   {Data: []byte("")},
		"300_c.down.sql": {Data: []byte("")},
		"200_b.up.sql":   {Data: []byte("")},
		"junk.up.sql":    {Data: []byte("")},
	}
	got, err := latestVersion(files)
	require.NoError(t, err)
	assert.Equal(t, uint(200), got)
}

func TestLatestVersion_Empty(t *testing.T) {
	_, err := latestVersion(fstest.MapFS{})
	assert.Error(t, err)
}
