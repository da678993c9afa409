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

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/filingrunner/internal/backlog"
	"github.com/cardinalhq/filingrunner/internal/dispatch"
	"github.com/cardinalhq/filingrunner/internal/events"
	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/internal/services"
	"github.com/cardinalhq/filingrunner/internal/workclaim"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	WorkClaim workclaim.Config `mapstructure:"workclaim"`
	Retry     retry.Config     `mapstructure:"retry"`
	Services  services.Config  `mapstructure:"services"`
	Dispatch  dispatch.Config  `mapstructure:"dispatch"`
	Events    events.Config    `mapstructure:"events"`
	Backlog   backlog.Config   `mapstructure:"backlog"`
	Flows     FlowsConfig      `mapstructure:"flows"`
	Sweeper   SweeperConfig    `mapstructure:"sweeper"`
}

type FlowsConfig struct {
	NotifyTemplate string `mapstructure:"notify_template"`
}

// SweeperConfig controls the periodic maintenance loop.
type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// DueLimit bounds how many future-effective filings one pass applies.
	DueLimit int `mapstructure:"due_limit"`
	// RepublishAfter is how long a completion may stay unpublished before
	// the sweeper emits it again.
	RepublishAfter time.Duration `mapstructure:"republish_after"`
	RepublishLimit int           `mapstructure:"republish_limit"`
	// RecheckAfter is how long a pending dispatch step waits before its
	// filing is announced again.
	RecheckAfter time.Duration `mapstructure:"recheck_after"`
	RecheckLimit int           `mapstructure:"recheck_limit"`
}

func defaults() *Config {
	return &Config{
		WorkClaim: workclaim.DefaultConfig(),
		Retry:     retry.DefaultConfig(),
		Services:  services.DefaultConfig(),
		Dispatch:  dispatch.DefaultConfig(),
		Events:    events.DefaultConfig(),
		Backlog:   backlog.DefaultConfig(),
		Flows: FlowsConfig{
			NotifyTemplate: "business-notice",
		},
		Sweeper: SweeperConfig{
			Interval:       time.Minute,
			DueLimit:       100,
			RepublishAfter: 5 * time.Minute,
			RepublishLimit: 100,
			RecheckAfter:   30 * time.Minute,
			RecheckLimit:   50,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "FILINGRUNNER" and the dot character
// in keys is replaced by an underscore. For example, "events.brokers" becomes
// "FILINGRUNNER_EVENTS_BROKERS".
func Load() (*Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("FILINGRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if b := v.GetString("events.brokers"); b != "" && !strings.HasPrefix(b, "[") {
		cfg.Events.Brokers = strings.Split(b, ",")
	}
	return cfg, nil
}

// Validate checks every sub-config.
func (c *Config) Validate() error {
	var errs []error
	add := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	add("workclaim", c.WorkClaim.Validate())
	add("retry", c.Retry.Validate())
	add("services", c.Services.Validate())
	add("dispatch", c.Dispatch.Validate())
	add("events", c.Events.Validate())
	if c.Sweeper.Interval <= 0 {
		errs = append(errs, errors.New("sweeper: interval must be positive"))
	}
	return errors.Join(errs...)
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
