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
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/filingrunner/config"
	"github.com/cardinalhq/filingrunner/internal/dbopen"
	"github.com/cardinalhq/filingrunner/internal/events"
	"github.com/cardinalhq/filingrunner/internal/filing"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

// runService sets up telemetry and configuration and then hands over to fn.
// A run that ends because the process was signalled is not an error.
func runService(servicename string, fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, doneFx, err := setupTelemetry(servicename)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	err = fn(ctx, cfg)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		slog.Info("Shut down on signal")
		return nil
	}
	return err
}

func openLedger(ctx context.Context) (*ledgerdb.Store, error) {
	store, err := dbopen.LedgerStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}
	return store, nil
}

// filingStack wires the filing machine to a ledger store and an event
// producer that announces completions.
type filingStack struct {
	store    *ledgerdb.Store
	producer *events.Producer
	emitter  *events.Emitter
	machine  *filing.Machine
}

func newFilingStack(ctx context.Context, cfg *config.Config) (*filingStack, error) {
	store, err := openLedger(ctx)
	if err != nil {
		return nil, err
	}
	producer, err := events.NewFactory(cfg.Events).NewProducer()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	emitter := events.NewEmitter(producer, cfg.Events)
	return &filingStack{
		store:    store,
		producer: producer,
		emitter:  emitter,
		machine:  filing.NewMachine(store, filing.WithPublisher(emitter)),
	}, nil
}

func (s *filingStack) Close() {
	if err := s.producer.Close(); err != nil {
		slog.Warn("Failed to close event producer", slog.Any("error", err))
	}
	s.store.Close()
}
