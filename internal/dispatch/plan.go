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

package dispatch

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

//go:embed default_plans.yaml
var defaultPlansYAML []byte

// Step is one downstream call made for a completed filing.
type Step struct {
	Service       string `yaml:"service"`
	RequestType   string `yaml:"request"`
	HaltOnFailure bool   `yaml:"halt_on_failure"`
}

// Plans maps a filing type to its ordered steps.
type Plans map[string][]Step

type planFile struct {
	Plans Plans `yaml:"plans"`
}

// ParsePlans decodes a plan document.
func ParsePlans(b []byte) (Plans, error) {
	var pf planFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse dispatch plans: %w", err)
	}
	if len(pf.Plans) == 0 {
		return nil, errors.New("dispatch plans: no plans defined")
	}
	return pf.Plans, nil
}

// DefaultPlans returns the built-in plans.
func DefaultPlans() Plans {
	p, err := ParsePlans(defaultPlansYAML)
	if err != nil {
		panic(err)
	}
	return p
}

// LoadPlans reads plans from path, or returns the defaults when path is
// empty.
func LoadPlans(path string) (Plans, error) {
	if path == "" {
		return DefaultPlans(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch plans: %w", err)
	}
	return ParsePlans(b)
}

// Validate checks every step names a known service, that each filing type
// is known, and that no tuple repeats within a plan. A repeated
// (service, request) pair would share one tracker row and silently run once.
func (p Plans) Validate(services, filingTypes mapset.Set[string]) error {
	var errs []error
	for filingType, steps := range p {
		if !filingTypes.Contains(filingType) {
			errs = append(errs, fmt.Errorf("plan for unknown filing type %q", filingType))
		}
		seen := mapset.NewSetWithSize[string](len(steps))
		for i, s := range steps {
			if s.Service == "" || s.RequestType == "" {
				errs = append(errs, fmt.Errorf("%s step %d: service and request are required", filingType, i))
				continue
			}
			if !services.Contains(s.Service) {
				errs = append(errs, fmt.Errorf("%s step %d: unknown service %q", filingType, i, s.Service))
			}
			key := s.Service + "/" + s.RequestType
			if !seen.Add(key) {
				errs = append(errs, fmt.Errorf("%s step %d: duplicate step %s", filingType, i, key))
			}
		}
	}
	return errors.Join(errs...)
}
