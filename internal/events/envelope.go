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

// Package events carries the filing pipeline's asynchronous messages over
// Kafka. Every message value is a CloudEvents-style JSON envelope; delivery
// is at-least-once, so every handler must tolerate duplicates.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	specVersion     = "1.0"
	contentTypeJSON = "application/json"

	TypeFilingSubmitted  = "ca.registry.filing.submitted"
	TypePaymentConfirmed = "ca.registry.payment.confirmed"
	TypeFilingCompleted  = "ca.registry.filing.completed"
)

var ErrMalformedEnvelope = errors.New("malformed event envelope")

type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// FilingSubmitted asks for a DRAFT filing to move to PENDING.
type FilingSubmitted struct {
	FilingID         int64  `json:"filingId"`
	PaymentReference string `json:"paymentReference"`
}

// PaymentConfirmed reports a payment outcome. Only StatusCompleted payments
// advance a filing.
type PaymentConfirmed struct {
	PaymentReference string    `json:"paymentReference"`
	Status           string    `json:"statusCode"`
	PaidAt           time.Time `json:"paidAt"`
}

const PaymentStatusCompleted = "COMPLETED"

type FilingCompleted struct {
	FilingID           int64  `json:"filingId"`
	FilingType         string `json:"filingType"`
	BusinessIdentifier string `json:"businessIdentifier"`
}

// NewEnvelope wraps data in an envelope with the given id.
func NewEnvelope(id, source, eventType, subject string, at time.Time, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s data: %w", eventType, err)
	}
	return Envelope{
		SpecVersion:     specVersion,
		ID:              id,
		Source:          source,
		Type:            eventType,
		Subject:         subject,
		Time:            at.UTC(),
		DataContentType: contentTypeJSON,
		Data:            raw,
	}, nil
}

// DecodeEnvelope parses and checks the required envelope attributes.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch {
	case e.SpecVersion != specVersion:
		return Envelope{}, fmt.Errorf("%w: unsupported specversion %q", ErrMalformedEnvelope, e.SpecVersion)
	case e.ID == "":
		return Envelope{}, fmt.Errorf("%w: missing id", ErrMalformedEnvelope)
	case e.Type == "":
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	return e, nil
}

// DecodeData unmarshals the envelope payload into dst.
func (e Envelope) DecodeData(dst any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedEnvelope, e.Type)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformedEnvelope, e.Type, err)
	}
	return nil
}
