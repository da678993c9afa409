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

package filing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/filingrunner/internal/retry"
	"github.com/cardinalhq/filingrunner/ledgerdb"
)

const (
	TypeIncorporation = "incorporationApplication"
	TypeChangeOfName  = "changeOfName"
	TypeDissolution   = "dissolution"
	TypeLiquidation   = "liquidation"
	TypeRestoration   = "restoration"
	TypeCorrection    = "correction"
)

// Processor applies one filing type to the business aggregate. Apply runs in
// the same transaction as the PAID -> COMPLETED status write; any error rolls
// both back. Errors wrapped with retry.Permanent move the filing to ERROR,
// others leave it PAID for another try.
type Processor interface {
	Validate(f ledgerdb.Filing) error
	Apply(ctx context.Context, q ledgerdb.Querier, f ledgerdb.Filing, business *ledgerdb.Business) error
}

// DefaultProcessors returns the built-in processors keyed by filing type.
func DefaultProcessors() map[string]Processor {
	return map[string]Processor{
		TypeIncorporation: incorporationProcessor{},
		TypeChangeOfName:  changeOfNameProcessor{},
		TypeDissolution:   stateProcessor{to: ledgerdb.BusinessStateHistorical, from: mapset.NewSet(ledgerdb.BusinessStateActive, ledgerdb.BusinessStateLiquidation)},
		TypeLiquidation:   stateProcessor{to: ledgerdb.BusinessStateLiquidation, from: mapset.NewSet(ledgerdb.BusinessStateActive)},
		TypeRestoration:   stateProcessor{to: ledgerdb.BusinessStateActive, from: mapset.NewSet(ledgerdb.BusinessStateHistorical, ledgerdb.BusinessStateLiquidation)},
		TypeCorrection:    correctionProcessor{},
	}
}

// KnownTypes returns the filing types processors exist for.
func KnownTypes(processors map[string]Processor) mapset.Set[string] {
	s := mapset.NewSetWithSize[string](len(processors))
	for t := range processors {
		s.Add(t)
	}
	return s
}

func decodePayload(f ledgerdb.Filing, dst any) error {
	if len(f.FilingJson) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidFiling)
	}
	if err := json.Unmarshal(f.FilingJson, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidFiling, f.FilingType, err)
	}
	return nil
}

type incorporationPayload struct {
	LegalName string `json:"legalName"`
	TaxID     string `json:"taxId,omitempty"`
}

type incorporationProcessor struct{}

func (incorporationProcessor) Validate(f ledgerdb.Filing) error {
	var p incorporationPayload
	if err := decodePayload(f, &p); err != nil {
		return err
	}
	if p.LegalName == "" {
		return fmt.Errorf("%w: legalName is required", ErrInvalidFiling)
	}
	return nil
}

func (incorporationProcessor) Apply(ctx context.Context, q ledgerdb.Querier, f ledgerdb.Filing, business *ledgerdb.Business) error {
	if business != nil {
		return retry.Permanentf("business %s already exists", f.BusinessIdentifier)
	}
	var p incorporationPayload
	if err := decodePayload(f, &p); err != nil {
		return retry.Permanent(err)
	}
	var taxID *string
	if p.TaxID != "" {
		taxID = &p.TaxID
	}
	if err := q.BusinessUpsert(ctx, ledgerdb.BusinessUpsertParams{
		Identifier: f.BusinessIdentifier,
		LegalName:  p.LegalName,
		State:      ledgerdb.BusinessStateActive,
		TaxID:      taxID,
	}); err != nil {
		return retry.ClassifyPgError(err)
	}
	_, err := q.BusinessSetLegalName(ctx, ledgerdb.BusinessSetLegalNameParams{
		LegalName:  p.LegalName,
		FilingID:   &f.ID,
		Identifier: f.BusinessIdentifier,
	})
	return retry.ClassifyPgError(err)
}

type changeOfNamePayload struct {
	LegalName string `json:"legalName"`
}

type changeOfNameProcessor struct{}

func (changeOfNameProcessor) Validate(f ledgerdb.Filing) error {
	var p changeOfNamePayload
	if err := decodePayload(f, &p); err != nil {
		return err
	}
	if p.LegalName == "" {
		return fmt.Errorf("%w: legalName is required", ErrInvalidFiling)
	}
	return nil
}

func (changeOfNameProcessor) Apply(ctx context.Context, q ledgerdb.Querier, f ledgerdb.Filing, business *ledgerdb.Business) error {
	if business == nil {
		return retry.Permanent(fmt.Errorf("%w: %s", ErrBusinessMissing, f.BusinessIdentifier))
	}
	var p changeOfNamePayload
	if err := decodePayload(f, &p); err != nil {
		return retry.Permanent(err)
	}
	n, err := q.BusinessSetLegalName(ctx, ledgerdb.BusinessSetLegalNameParams{
		LegalName:  p.LegalName,
		FilingID:   &f.ID,
		Identifier: business.Identifier,
	})
	if err != nil {
		return retry.ClassifyPgError(err)
	}
	if n == 0 {
		return retry.Permanent(fmt.Errorf("%w: %s", ErrBusinessMissing, business.Identifier))
	}
	return nil
}

// stateProcessor moves the business between lifecycle states.
type stateProcessor struct {
	to   ledgerdb.BusinessState
	from mapset.Set[ledgerdb.BusinessState]
}

func (stateProcessor) Validate(f ledgerdb.Filing) error {
	if len(f.FilingJson) > 0 && !json.Valid(f.FilingJson) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidFiling)
	}
	return nil
}

func (s stateProcessor) Apply(ctx context.Context, q ledgerdb.Querier, f ledgerdb.Filing, business *ledgerdb.Business) error {
	if business == nil {
		return retry.Permanent(fmt.Errorf("%w: %s", ErrBusinessMissing, f.BusinessIdentifier))
	}
	if !s.from.Contains(business.State) {
		return retry.Permanentf("%s cannot move business %s from %s to %s", f.FilingType, business.Identifier, business.State, s.to)
	}
	n, err := q.BusinessSetState(ctx, ledgerdb.BusinessSetStateParams{
		State:      s.to,
		FilingID:   &f.ID,
		Identifier: business.Identifier,
	})
	if err != nil {
		return retry.ClassifyPgError(err)
	}
	if n == 0 {
		return retry.Permanent(fmt.Errorf("%w: %s", ErrBusinessMissing, business.Identifier))
	}
	return nil
}

type correctionPayload struct {
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
}

// correctionProcessor is the only code allowed to move the effective date of
// a filing once it has been set.
type correctionProcessor struct{}

func (correctionProcessor) Validate(f ledgerdb.Filing) error {
	if f.CorrectedFilingID == nil {
		return fmt.Errorf("%w: correction must name the filing it corrects", ErrInvalidFiling)
	}
	var p correctionPayload
	return decodePayload(f, &p)
}

func (correctionProcessor) Apply(ctx context.Context, q ledgerdb.Querier, f ledgerdb.Filing, business *ledgerdb.Business) error {
	if f.CorrectedFilingID == nil {
		return retry.Permanent(fmt.Errorf("%w: correction without target", ErrInvalidFiling))
	}
	var p correctionPayload
	if err := decodePayload(f, &p); err != nil {
		return retry.Permanent(err)
	}

	target, err := q.FilingLockForUpdate(ctx, *f.CorrectedFilingID)
	if err != nil {
		if isNoRows(err) {
			return retry.Permanent(fmt.Errorf("%w: corrected filing %d", ErrNotFound, *f.CorrectedFilingID))
		}
		return err
	}
	if target.BusinessIdentifier != f.BusinessIdentifier {
		return retry.Permanentf("corrected filing %d belongs to %s, not %s", target.ID, target.BusinessIdentifier, f.BusinessIdentifier)
	}
	if p.EffectiveDate == nil {
		return nil
	}

	n, err := q.FilingCorrectEffectiveDate(ctx, ledgerdb.FilingCorrectEffectiveDateParams{
		EffectiveDate: p.EffectiveDate,
		ID:            target.ID,
	})
	if err != nil {
		return retry.ClassifyPgError(err)
	}
	if n == 0 {
		return retry.Permanentf("corrected filing %d is %s, only COMPLETED filings can be corrected", target.ID, target.Status)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, errNoRows)
}
