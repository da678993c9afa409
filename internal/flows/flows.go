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

// Package flows contains the batch flows a run can execute over a backlog.
package flows

import (
	"context"
	"fmt"
	"sort"

	"github.com/cardinalhq/filingrunner/internal/batchrun"
	"github.com/cardinalhq/filingrunner/internal/services"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

const (
	FlowFreeze = "freeze"
	FlowEnrol  = "enrol"
	FlowNotify = "notify"

	FlagFrozen   = "frozen"
	FlagEnrolled = "enrolled"
	FlagNotified = "notified"
)

type Freezer interface {
	Freeze(ctx context.Context, identifier string) (string, error)
}

type Affiliator interface {
	Affiliate(ctx context.Context, identifier string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, identifier, template string, filingID int64, filingType string) (string, error)
}

// FreezeFlow freezes the corporation in the legacy registry.
type FreezeFlow struct {
	Corp Freezer
}

func (FreezeFlow) Flow() string { return FlowFreeze }

func (f FreezeFlow) Process(ctx context.Context, item ledgerdb.WorkItem) (batchrun.Flags, error) {
	if batchrun.ItemFlags(item)[FlagFrozen] {
		return batchrun.Flags{FlagFrozen: true}, nil
	}
	if _, err := f.Corp.Freeze(ctx, item.ItemID); err != nil {
		return nil, err
	}
	return batchrun.Flags{FlagFrozen: true}, nil
}

// EnrolFlow affiliates a migrated business with the account service.
type EnrolFlow struct {
	Auth Affiliator
}

func (EnrolFlow) Flow() string { return FlowEnrol }

func (f EnrolFlow) Process(ctx context.Context, item ledgerdb.WorkItem) (batchrun.Flags, error) {
	if batchrun.ItemFlags(item)[FlagEnrolled] {
		return batchrun.Flags{FlagEnrolled: true}, nil
	}
	if _, err := f.Auth.Affiliate(ctx, item.ItemID); err != nil {
		return nil, err
	}
	return batchrun.Flags{FlagEnrolled: true}, nil
}

// NotifyFlow emails every business in the backlog using one template.
type NotifyFlow struct {
	Email    Notifier
	Template string
}

func (NotifyFlow) Flow() string { return FlowNotify }

func (f NotifyFlow) Process(ctx context.Context, item ledgerdb.WorkItem) (batchrun.Flags, error) {
	if batchrun.ItemFlags(item)[FlagNotified] {
		return batchrun.Flags{FlagNotified: true}, nil
	}
	if _, err := f.Email.Notify(ctx, item.ItemID, f.Template, 0, ""); err != nil {
		return nil, err
	}
	return batchrun.Flags{FlagNotified: true}, nil
}

// Names lists the flows New accepts.
func Names() []string {
	names := []string{FlowFreeze, FlowEnrol, FlowNotify}
	sort.Strings(names)
	return names
}

// New builds the named flow on top of the downstream clients.
func New(name string, clients *services.Clients, notifyTemplate string) (batchrun.Processor, error) {
	switch name {
	case FlowFreeze:
		return FreezeFlow{Corp: clients.Corp}, nil
	case FlowEnrol:
		return EnrolFlow{Auth: clients.Auth}, nil
	case FlowNotify:
		if notifyTemplate == "" {
			return nil, fmt.Errorf("flow %s needs a template", FlowNotify)
		}
		return NotifyFlow{Email: clients.Email, Template: notifyTemplate}, nil
	default:
		return nil, fmt.Errorf("unknown flow %q (known: %v)", name, Names())
	}
}
