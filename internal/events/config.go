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
	"errors"
	"time"
)

// Topics names the topics the pipeline reads and writes.
type Topics struct {
	FilingSubmitted  string `mapstructure:"filing_submitted"`
	PaymentConfirmed string `mapstructure:"payment_confirmed"`
	FilingCompleted  string `mapstructure:"filing_completed"`
}

// Config holds the Kafka configuration.
type Config struct {
	Brokers []string `mapstructure:"brokers"`

	// SASL/SCRAM authentication
	SASLEnabled   bool   `mapstructure:"sasl_enabled"`
	SASLMechanism string `mapstructure:"sasl_mechanism"` // "SCRAM-SHA-256", "SCRAM-SHA-512" or "PLAIN"
	SASLUsername  string `mapstructure:"sasl_username"`
	SASLPassword  string `mapstructure:"sasl_password"`

	TLSEnabled    bool `mapstructure:"tls_enabled"`
	TLSSkipVerify bool `mapstructure:"tls_skip_verify"`

	ProducerBatchTimeout time.Duration `mapstructure:"producer_batch_timeout"`
	ProducerCompression  string        `mapstructure:"producer_compression"`

	ConsumerGroupPrefix string        `mapstructure:"consumer_group_prefix"`
	ConsumerMaxWait     time.Duration `mapstructure:"consumer_max_wait"`
	ConsumerMinBytes    int           `mapstructure:"consumer_min_bytes"`
	ConsumerMaxBytes    int           `mapstructure:"consumer_max_bytes"`

	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`

	// Source is the CloudEvents source stamped on published envelopes.
	Source string `mapstructure:"source"`

	Topics Topics `mapstructure:"topics"`
}

func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:9092"},

		SASLMechanism: "SCRAM-SHA-256",

		ProducerBatchTimeout: 10 * time.Millisecond,
		ProducerCompression:  "snappy",

		ConsumerGroupPrefix: "filingrunner",
		ConsumerMaxWait:     500 * time.Millisecond,
		ConsumerMinBytes:    1,
		ConsumerMaxBytes:    10 * 1024 * 1024, // 10MB

		ConnectionTimeout: 10 * time.Second,

		Source: "/filingrunner",

		Topics: Topics{
			FilingSubmitted:  "filing-submitted",
			PaymentConfirmed: "payment-confirmed",
			FilingCompleted:  "filing-completed",
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("events.brokers must not be empty"))
	}
	if c.Topics.FilingSubmitted == "" || c.Topics.PaymentConfirmed == "" || c.Topics.FilingCompleted == "" {
		errs = append(errs, errors.New("events.topics must name all three topics"))
	}
	if c.SASLEnabled && c.SASLUsername == "" {
		errs = append(errs, errors.New("events.sasl_username is required when SASL is enabled"))
	}
	return errors.Join(errs...)
}

// ConsumerGroup returns the consumer group name for the given service.
func (c Config) ConsumerGroup(service string) string {
	return c.ConsumerGroupPrefix + "." + service
}
