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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/filingrunner/cmd"
)

func stderrf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

// tuneRuntime sizes GOMAXPROCS and GOMEMLIMIT to the container the process
// runs in. Failures are reported and otherwise ignored.
func tuneRuntime() {
	var err error
	if gomaxecs.IsECS() {
		_, err = gomaxecs.Set(gomaxecs.WithLogger(stderrf))
	} else {
		_, err = maxprocs.Set(maxprocs.Logger(stderrf))
	}
	if err != nil {
		stderrf("failed to set GOMAXPROCS: %v", err)
	}

	provider := memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)
	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.8),
		memlimit.WithProvider(provider),
		memlimit.WithLogger(slog.Default()),
	); err != nil {
		stderrf("failed to set GOMEMLIMIT: %v", err)
	}
}

func main() {
	// Effective dates and payment times are compared in UTC.
	time.Local = time.UTC
	tuneRuntime()
	cmd.Execute()
}
