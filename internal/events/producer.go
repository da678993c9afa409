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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes envelopes, keeping one writer per topic.
type Producer struct {
	newWriter func(topic string) messageWriter

	mu      sync.RWMutex
	writers map[string]messageWriter
}

func newProducer(newWriter func(topic string) messageWriter) *Producer {
	return &Producer{
		newWriter: newWriter,
		writers:   make(map[string]messageWriter),
	}
}

func (p *Producer) writer(topic string) messageWriter {
	p.mu.RLock()
	w, ok := p.writers[topic]
	p.mu.RUnlock()
	if ok {
		return w
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w = p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// Publish writes env to topic keyed by key, so events about the same
// entity stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	msg := envelopeMessage(key, value, env)
	err = p.writer(topic).WriteMessages(ctx, msg.toKafka())
	recordPublished(ctx, topic, len(value), err)
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", env.Type, topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.writers = make(map[string]messageWriter)
	return firstErr
}
