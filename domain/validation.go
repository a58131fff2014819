package domain

import (
	"context"
	"errors"
	"fmt"
)

// Validate rejects specializations with an unknown schema version.
func (s *Specialization) Validate(ctx context.Context) error {
	if !s.SmkVersion.Valid() {
		return fmt.Errorf("specialization %d has unknown SMK version %q", s.ID, s.SmkVersion)
	}
	return nil
}

// Validate rejects modules without an owner or with an unknown type.
func (m *Module) Validate(ctx context.Context) error {
	if m.SpecializationID <= 0 {
		return errors.New("module must belong to a specialization")
	}
	switch m.Type {
	case ModuleBasic, ModuleSpecialistic:
		return nil
	}
	return fmt.Errorf("module %d has unknown type %q", m.ID, m.Type)
}

// Validate rejects realizations without an owning specialization.
func (r *RealizationRecord) Validate(ctx context.Context) error {
	if r.SpecializationID <= 0 {
		return errors.New("realization must belong to a specialization")
	}
	return nil
}
