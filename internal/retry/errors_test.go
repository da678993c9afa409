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

package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("missing tax id")
	p := Permanent(base)
	assert.True(t, IsPermanent(p))
	assert.ErrorIs(t, p, base)
	assert.Same(t, p, Permanent(p))

	wrapped := fmt.Errorf("bn lookup: %w", p)
	assert.True(t, IsPermanent(wrapped))
	assert.False(t, IsPermanent(base))
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantErr   bool
		permanent bool
	}{
		{http.StatusOK, false, false},
		{http.StatusAccepted, false, false},
		{http.StatusBadRequest, true, true},
		{http.StatusNotFound, true, true},
		{http.StatusConflict, true, true},
		{http.StatusRequestTimeout, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusServiceUnavailable, true, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := ClassifyHTTPStatus("bn", tt.code, "")
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))

			var se *HTTPStatusError
			assert.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.StatusCode)
		})
	}
}

func TestClassifyPgError(t *testing.T) {
	assert.Nil(t, ClassifyPgError(nil))

	unique := &pgconn.PgError{Code: "23505"}
	assert.True(t, IsPermanent(ClassifyPgError(unique)))

	serialization := &pgconn.PgError{Code: "40001"}
	assert.False(t, IsPermanent(ClassifyPgError(serialization)))
	assert.True(t, IsConflict(fmt.Errorf("reserve: %w", serialization)))

	lock := &pgconn.PgError{Code: "55P03"}
	assert.True(t, IsConflict(lock))
	assert.False(t, IsConflict(unique))
	assert.False(t, IsConflict(errors.New("plain")))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(errors.New("nope")))
}
