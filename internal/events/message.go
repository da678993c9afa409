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
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one record as the event layer sees it. Envelope attributes are
// copied into ce_* headers so a reader can tell what a record is without
// decoding the body.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

func envelopeMessage(key string, value []byte, env Envelope) Message {
	return Message{
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"ce_id":          env.ID,
			"ce_type":        env.Type,
			"ce_source":      env.Source,
			"ce_specversion": env.SpecVersion,
			"content-type":   contentTypeJSON,
		},
	}
}

// EventType is the ce_type header, empty for records not written by a
// Producer.
func (m Message) EventType() string {
	return m.Headers["ce_type"]
}

// ConsumedMessage is a Message together with where it was read from.
type ConsumedMessage struct {
	Message
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// Position renders topic/partition@offset for logs.
func (m ConsumedMessage) Position() string {
	return fmt.Sprintf("%s/%d@%d", m.Topic, m.Partition, m.Offset)
}

func (m Message) toKafka() kafka.Message {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	km := kafka.Message{Key: m.Key, Value: m.Value}
	for _, k := range keys {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(m.Headers[k])})
	}
	return km
}

func fromKafka(km kafka.Message) ConsumedMessage {
	m := ConsumedMessage{
		Message:   Message{Key: km.Key, Value: km.Value, Headers: map[string]string{}},
		Topic:     km.Topic,
		Partition: km.Partition,
		Offset:    km.Offset,
		Timestamp: km.Time,
	}
	for _, h := range km.Headers {
		m.Headers[h.Key] = string(h.Value)
	}
	return m
}
