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
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/cardinalhq/filingrunner/internal/retry"
)

// Factory creates Kafka producers and consumers with consistent configuration.
type Factory struct {
	cfg Config
}

func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) Config() Config {
	return f.cfg
}

// NewProducer returns a producer writing to any topic.
func (f *Factory) NewProducer() (*Producer, error) {
	compression, err := parseCompression(f.cfg.ProducerCompression)
	if err != nil {
		return nil, err
	}
	transport, err := f.transport()
	if err != nil {
		return nil, err
	}
	newWriter := func(topic string) messageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(f.cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: f.cfg.ProducerBatchTimeout,
			RequiredAcks: kafka.RequireAll,
			Transport:    transport,
			Compression:  compression,
		}
	}
	return newProducer(newWriter), nil
}

// NewConsumer returns a consumer for topic in the service's group. Offsets
// are committed explicitly after each message is handled.
func (f *Factory) NewConsumer(topic, service string, exec *retry.Executor) (*Consumer, error) {
	dialer, err := f.dialer()
	if err != nil {
		return nil, err
	}
	group := f.cfg.ConsumerGroup(service)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        f.cfg.Brokers,
		Topic:          topic,
		GroupID:        group,
		MinBytes:       f.cfg.ConsumerMinBytes,
		MaxBytes:       f.cfg.ConsumerMaxBytes,
		MaxWait:        f.cfg.ConsumerMaxWait,
		StartOffset:    kafka.FirstOffset,
		Dialer:         dialer,
		CommitInterval: 0, // synchronous commits only when explicitly called
	})
	return newConsumer(reader, topic, group, exec), nil
}

func (f *Factory) dialer() (*kafka.Dialer, error) {
	timeout := f.cfg.ConnectionTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	d := &kafka.Dialer{Timeout: timeout}
	if f.cfg.SASLEnabled {
		m, err := f.saslMechanism()
		if err != nil {
			return nil, err
		}
		d.SASLMechanism = m
	}
	d.TLS = f.tlsConfig()
	return d, nil
}

func (f *Factory) transport() (*kafka.Transport, error) {
	t := &kafka.Transport{DialTimeout: f.cfg.ConnectionTimeout}
	if f.cfg.SASLEnabled {
		m, err := f.saslMechanism()
		if err != nil {
			return nil, err
		}
		t.SASL = m
	}
	t.TLS = f.tlsConfig()
	return t, nil
}

func (f *Factory) tlsConfig() *tls.Config {
	if !f.cfg.TLSEnabled {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: f.cfg.TLSSkipVerify}
}

func (f *Factory) saslMechanism() (sasl.Mechanism, error) {
	switch strings.ToUpper(f.cfg.SASLMechanism) {
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, f.cfg.SASLUsername, f.cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, f.cfg.SASLUsername, f.cfg.SASLPassword)
	case "PLAIN":
		return plain.Mechanism{
			Username: f.cfg.SASLUsername,
			Password: f.cfg.SASLPassword,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", f.cfg.SASLMechanism)
	}
}

func parseCompression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none", "uncompressed":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("unsupported compression: %s", name)
	}
}
