package lifecycle

import (
	"fmt"
	"strings"

	"partlife-backend/internal/model"
)

// AddMachine registers a new machine. An empty status defaults to active.
func AddMachine(d model.Dataset, m model.Machine, ids IDGenerator) (model.Dataset, Change, error) {
	if m.Status == "" {
		m.Status = model.MachineActive
	}
	if err := validateMachine(m); err != nil {
		return d, Change{}, err
	}
	m.ID = ids.NewID(PrefixMachine)

	next := d.Clone()
	next.Machines = append(next.Machines, m)
	return next, Change{Machines: []model.Machine{m}}, nil
}

// EditMachine overwrites an existing machine's attributes.
func EditMachine(d model.Dataset, m model.Machine) (model.Dataset, Change, error) {
	if err := validateMachine(m); err != nil {
		return d, Change{}, err
	}
	next := d.Clone()
	for i := range next.Machines {
		if next.Machines[i].ID == m.ID {
			next.Machines[i] = m
			return next, Change{Machines: []model.Machine{m}}, nil
		}
	}
	return d, Change{}, fmt.Errorf("machine %q: %w", m.ID, ErrNotFound)
}

// AddDefinition registers a new part definition.
func AddDefinition(d model.Dataset, def model.PartDefinition, ids IDGenerator) (model.Dataset, Change, error) {
	if err := validateDefinition(def); err != nil {
		return d, Change{}, err
	}
	def.ID = ids.NewID(PrefixDefinition)

	next := d.Clone()
	next.Definitions = append(next.Definitions, def)
	return next, Change{Definitions: []model.PartDefinition{def}}, nil
}

// EditDefinition overwrites an existing part definition.
func EditDefinition(d model.Dataset, def model.PartDefinition) (model.Dataset, Change, error) {
	if err := validateDefinition(def); err != nil {
		return d, Change{}, err
	}
	next := d.Clone()
	for i := range next.Definitions {
		if next.Definitions[i].ID == def.ID {
			next.Definitions[i] = def
			return next, Change{Definitions: []model.PartDefinition{def}}, nil
		}
	}
	return d, Change{}, fmt.Errorf("part definition %q: %w", def.ID, ErrNotFound)
}

func validateMachine(m model.Machine) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: machine name is required", ErrInvalid)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("%w: unknown machine status %q", ErrInvalid, m.Status)
	}
	return nil
}

func validateDefinition(def model.PartDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: part name is required", ErrInvalid)
	}
	if def.MaxLifetimeDays <= 0 {
		return fmt.Errorf("%w: max lifetime must be positive, got %d", ErrInvalid, def.MaxLifetimeDays)
	}
	if def.Cost.IsNegative() {
		return fmt.Errorf("%w: cost must not be negative", ErrInvalid)
	}
	return nil
}
