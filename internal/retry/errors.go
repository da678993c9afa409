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
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrPermanent matches, via errors.Is, every error wrapped with Permanent.
var ErrPermanent = errors.New("permanent failure")

// PermanentError marks a failure that must not be retried: retrying it can
// only hold a claim longer without any chance of a different result.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func (e *PermanentError) Is(target error) bool {
	return target == ErrPermanent
}

// Permanent wraps err so that Execute stops after the current attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *PermanentError
	if errors.As(err, &p) {
		return err
	}
	return &PermanentError{Err: err}
}

// Permanentf is fmt.Errorf followed by Permanent.
func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// HTTPStatusError is returned by downstream clients for non-2xx responses.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}

// ClassifyHTTPStatus returns nil for 2xx, the error as-is for statuses worth
// retrying (408, 425, 429 and 5xx) and a permanent error for everything else.
func ClassifyHTTPStatus(service string, statusCode int, body string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	err := &HTTPStatusError{Service: service, StatusCode: statusCode, Body: body}
	switch {
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooEarly,
		statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		return err
	default:
		return Permanent(err)
	}
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

// IsConflict reports whether err is postgres telling us another transaction
// got there first. The whole transaction may simply be retried.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

// ClassifyPgError marks integrity, syntax and data errors as permanent.
// Conflicts, cancellations, connection and resource errors stay transient.
func ClassifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if len(pgErr.Code) < 2 {
		return err
	}
	switch pgErr.Code[:2] {
	case "22", "23", "42":
		return Permanent(err)
	}
	return err
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
