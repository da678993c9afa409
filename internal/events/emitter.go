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

package events

import (
	"context"
	"strconv"
	"time"

	"github.com/cardinalhq/filingrunner/internal/idgen"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

type publisher interface {
	Publish(ctx context.Context, topic, key string, env Envelope) error
}

// Emitter builds envelopes and publishes them to the configured topics.
type Emitter struct {
	pub    publisher
	topics Topics
	source string
	ids    *idgen.ULIDGenerator
	now    func() time.Time
}

func NewEmitter(pub publisher, cfg Config) *Emitter {
	return &Emitter{
		pub:    pub,
		topics: cfg.Topics,
		source: cfg.Source,
		ids:    idgen.NewULIDGenerator(),
		now:    time.Now,
	}
}

func (e *Emitter) emit(ctx context.Context, topic, key, eventType, subject string, data any) error {
	at := e.now()
	env, err := NewEnvelope(e.ids.Make(at), e.source, eventType, subject, at, data)
	if err != nil {
		return err
	}
	return e.pub.Publish(ctx, topic, key, env)
}

func filingKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// FilingCompleted announces a completed filing to the dispatcher.
func (e *Emitter) FilingCompleted(ctx context.Context, f ledgerdb.Filing) error {
	return e.emit(ctx, e.topics.FilingCompleted, filingKey(f.ID), TypeFilingCompleted, f.BusinessIdentifier, FilingCompleted{
		FilingID:           f.ID,
		FilingType:         f.FilingType,
		BusinessIdentifier: f.BusinessIdentifier,
	})
}

func (e *Emitter) FilingSubmitted(ctx context.Context, filingID int64, paymentReference string) error {
	return e.emit(ctx, e.topics.FilingSubmitted, filingKey(filingID), TypeFilingSubmitted, "", FilingSubmitted{
		FilingID:         filingID,
		PaymentReference: paymentReference,
	})
}

func (e *Emitter) PaymentConfirmed(ctx context.Context, paymentReference string, paidAt time.Time) error {
	return e.emit(ctx, e.topics.PaymentConfirmed, paymentReference, TypePaymentConfirmed, "", PaymentConfirmed{
		PaymentReference: paymentReference,
		Status:           PaymentStatusCompleted,
		PaidAt:           paidAt.UTC(),
	})
}
