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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/filingrunner/internal/idgen"
	"github.com/cardinalhq/filingrunner/internal/logctx"
)

var (
	meter = otel.Meter("github.com/cardinalhq/filingrunner")

	myInstanceID int64

	// existsGauge is recorded as 1 once at startup so every instance has a
	// series even while idle.
	existsGauge metric.Int64Gauge
)

func otlpEnabled() bool {
	return os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true"
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" || os.Getenv("FILINGRUNNER_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func newLogger(servicename string, otlp bool) *slog.Logger {
	var h slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()})
	if otlp {
		h = slogmulti.Fanout(h, otelslog.NewHandler(servicename))
	}
	return slog.New(h).With(
		slog.String("service", servicename),
		slog.Int64("instanceID", myInstanceID),
	)
}

// startOTel brings up the OTLP SDK plus runtime and host metrics and returns
// its flush function.
func startOTel(ctx context.Context) (func(context.Context) error, error) {
	shutdown, err := telemetry.SetupOTelSDK(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
	}
	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		slog.Warn("failed to start runtime metrics", slog.Any("error", err))
	}
	if err := host.Start(); err != nil {
		slog.Warn("failed to start host metrics", slog.Any("error", err))
	}
	return shutdown, nil
}

// setupTelemetry installs the default logger, starts OTLP export when
// enabled and returns a context cancelled on SIGINT or SIGTERM. The returned
// function flushes telemetry and must be called before exit.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	myInstanceID = idgen.NextWorkerID()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	otlp := otlpEnabled()
	slog.SetDefault(newLogger(servicename, otlp))

	flush := func() error {
		stop()
		return nil
	}
	if otlp {
		slog.Info("OpenTelemetry exporting enabled")
		shutdown, err := startOTel(ctx)
		if err != nil {
			stop()
			return ctx, nil, err
		}
		flush = func() error {
			defer stop()
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return shutdown(sctx)
		}
	}

	recordExists(servicename)
	return logctx.WithLogger(ctx, slog.Default()), flush, nil
}

func recordExists(servicename string) {
	g, err := meter.Int64Gauge(
		"filingrunner.exists",
		metric.WithDescription("Indicates if the service is running (1) or not (0)"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create exists gauge: %w", err))
	}
	existsGauge = g
	existsGauge.Record(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", servicename),
		attribute.Int64("instanceID", myInstanceID),
	))
}
