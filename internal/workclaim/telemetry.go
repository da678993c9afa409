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

package workclaim

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/filingrunner/ledgerdb"
)

var (
	reservedItems    metric.Int64Counter
	reserveConflicts metric.Int64Counter
	claimedItems     metric.Int64Counter
	statusUpdates    metric.Int64Counter
	leaseLost        metric.Int64Counter
	sweptItems       metric.Int64Counter
	requeuedItems    metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/filingrunner/internal/workclaim")

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&reservedItems, "filingrunner.workclaim.reserved", "Work items reserved by runs"},
		{&reserveConflicts, "filingrunner.workclaim.reserve_conflicts", "Reservation attempts that lost a lock race"},
		{&claimedItems, "filingrunner.workclaim.claimed", "Work items handed out in claim batches"},
		{&statusUpdates, "filingrunner.workclaim.status_updates", "Work item status writes that changed a row"},
		{&leaseLost, "filingrunner.workclaim.lease_lost", "Status writes rejected because the run lost its claim"},
		{&sweptItems, "filingrunner.workclaim.swept", "Stale claims released by the sweeper"},
		{&requeuedItems, "filingrunner.workclaim.requeued", "Failed items returned to the unclaimed pool"},
	}
	for _, c := range counters {
		var err error
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			log.Fatalf("failed to create %s counter: %v", c.name, err)
		}
	}
}

func statusAttr(s ledgerdb.ProcessingStatus) metric.AddOption {
	return metric.WithAttributes(attribute.String("status", string(s)))
}
