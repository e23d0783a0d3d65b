// Package lifecycle implements the state transitions of installed parts.
// Every operation takes the current dataset and returns a new one together
// with the Change that has to be written to durable storage. Inputs are never
// modified.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"partlife-backend/internal/health"
	"partlife-backend/internal/model"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDefinitionInUse = errors.New("part definition is in use")
	ErrDuplicateSerial = errors.New("serial number already installed")
	ErrInvalid         = errors.New("invalid input")
)

// ID prefixes for generated entity identifiers.
const (
	PrefixMachine    = "m"
	PrefixDefinition = "p"
	PrefixPart       = "inst"
	PrefixLog        = "log"
)

// UnknownPartName is logged when a replaced part's definition is gone.
const UnknownPartName = "Unknown Part"

// IDGenerator produces fresh entity identifiers.
type IDGenerator interface {
	NewID(prefix string) string
}

// UUIDGenerator generates random UUID based identifiers.
type UUIDGenerator struct{}

// NewID returns prefix_<uuid>.
func (UUIDGenerator) NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Change describes the writes a transition requires.
type Change struct {
	Machines           []model.Machine
	Definitions        []model.PartDefinition
	Parts              []model.InstalledPart
	Logs               []model.MaintenanceLog
	DeletedMachines    []string
	DeletedDefinitions []string
	DeletedParts       []string
}

// Empty reports whether the change carries no writes.
func (c Change) Empty() bool {
	return len(c.Machines) == 0 && len(c.Definitions) == 0 && len(c.Parts) == 0 && len(c.Logs) == 0 &&
		len(c.DeletedMachines) == 0 && len(c.DeletedDefinitions) == 0 && len(c.DeletedParts) == 0
}

// Install appends a new installed part with zero usage.
// Serial numbers are unique across the fleet, so a serial that is already
// installed anywhere is rejected.
func Install(d model.Dataset, machineID, definitionID, partNumber string, now time.Time, ids IDGenerator) (model.Dataset, Change, error) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return d, Change{}, fmt.Errorf("%w: part number is required", ErrInvalid)
	}
	if _, ok := d.FindMachine(machineID); !ok {
		return d, Change{}, fmt.Errorf("machine %q: %w", machineID, ErrNotFound)
	}
	if _, ok := d.FindDefinition(definitionID); !ok {
		return d, Change{}, fmt.Errorf("part definition %q: %w", definitionID, ErrNotFound)
	}
	if serialInUse(d.Parts, partNumber, "") {
		return d, Change{}, fmt.Errorf("%w: %s", ErrDuplicateSerial, partNumber)
	}

	part := model.InstalledPart{
		ID:              ids.NewID(PrefixPart),
		DefinitionID:    definitionID,
		MachineID:       machineID,
		InstallDate:     now,
		CurrentDaysUsed: 0,
		PartNumber:      partNumber,
		Position:        d.NextPosition(),
	}

	next := d.Clone()
	next.Parts = append(next.Parts, part)
	return next, Change{Parts: []model.InstalledPart{part}}, nil
}

// Replace swaps the physical unit behind an installed part. The old instance
// is closed out with a maintenance log entry and a new instance with a new
// identity takes its place in the list. Both land in the same returned
// dataset and change.
func Replace(d model.Dataset, partID, newPartNumber string, replaceDate *time.Time, now time.Time, ids IDGenerator) (model.Dataset, Change, error) {
	idx := d.PartIndex(partID)
	if idx < 0 {
		return d, Change{}, fmt.Errorf("installed part %q: %w", partID, ErrNotFound)
	}
	newPartNumber = strings.TrimSpace(newPartNumber)
	if newPartNumber == "" {
		return d, Change{}, fmt.Errorf("%w: new part number is required", ErrInvalid)
	}
	if serialInUse(d.Parts, newPartNumber, partID) {
		return d, Change{}, fmt.Errorf("%w: %s", ErrDuplicateSerial, newPartNumber)
	}

	old := d.Parts[idx]
	replacedAt := now
	if replaceDate != nil {
		replacedAt = *replaceDate
	}

	partName := UnknownPartName
	if def, ok := d.FindDefinition(old.DefinitionID); ok {
		partName = def.Name
	}

	entry := model.MaintenanceLog{
		ID:                    ids.NewID(PrefixLog),
		MachineID:             old.MachineID,
		PartDefinitionID:      old.DefinitionID,
		PartName:              partName,
		OldPartNumber:         old.PartNumber,
		NewPartNumber:         newPartNumber,
		ReplacedDate:          replacedAt,
		DaysUsedAtReplacement: health.DaysBetween(old.InstallDate, now),
	}

	fresh := model.InstalledPart{
		ID:              ids.NewID(PrefixPart),
		DefinitionID:    old.DefinitionID,
		MachineID:       old.MachineID,
		InstallDate:     replacedAt,
		CurrentDaysUsed: 0,
		PartNumber:      newPartNumber,
		Position:        old.Position,
	}

	next := d.Clone()
	next.Parts[idx] = fresh
	next.Logs = append([]model.MaintenanceLog{entry}, next.Logs...)

	return next, Change{
		Parts:        []model.InstalledPart{fresh},
		Logs:         []model.MaintenanceLog{entry},
		DeletedParts: []string{old.ID},
	}, nil
}

// PartPatch carries manual corrections to an installed part. Nil fields are
// left untouched.
type PartPatch struct {
	InstallDate     *time.Time `json:"installDate"`
	CurrentDaysUsed *int       `json:"currentDaysUsed"`
	PartNumber      *string    `json:"partNumber"`
}

// UpdatePart merges patch into an installed part without changing its
// identity or writing a maintenance log.
func UpdatePart(d model.Dataset, partID string, patch PartPatch) (model.Dataset, Change, error) {
	idx := d.PartIndex(partID)
	if idx < 0 {
		return d, Change{}, fmt.Errorf("installed part %q: %w", partID, ErrNotFound)
	}

	part := d.Parts[idx]
	if patch.InstallDate != nil {
		part.InstallDate = *patch.InstallDate
	}
	if patch.CurrentDaysUsed != nil {
		if *patch.CurrentDaysUsed < 0 {
			return d, Change{}, fmt.Errorf("%w: days used must not be negative", ErrInvalid)
		}
		part.CurrentDaysUsed = *patch.CurrentDaysUsed
	}
	if patch.PartNumber != nil {
		serial := strings.TrimSpace(*patch.PartNumber)
		if serial == "" {
			return d, Change{}, fmt.Errorf("%w: part number is required", ErrInvalid)
		}
		if serialInUse(d.Parts, serial, partID) {
			return d, Change{}, fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
		}
		part.PartNumber = serial
	}

	next := d.Clone()
	next.Parts[idx] = part
	return next, Change{Parts: []model.InstalledPart{part}}, nil
}

// DeleteInstalledPart removes a single installed part. Unknown ids are a no-op.
func DeleteInstalledPart(d model.Dataset, partID string) (model.Dataset, Change) {
	idx := d.PartIndex(partID)
	if idx < 0 {
		return d, Change{}
	}
	next := d.Clone()
	next.Parts = append(next.Parts[:idx], next.Parts[idx+1:]...)
	return next, Change{DeletedParts: []string{partID}}
}

// DeleteMachine removes a machine and every part installed on it.
func DeleteMachine(d model.Dataset, machineID string) (model.Dataset, Change) {
	var change Change
	next := model.Dataset{
		Definitions: append([]model.PartDefinition(nil), d.Definitions...),
		Logs:        append([]model.MaintenanceLog(nil), d.Logs...),
	}
	for _, m := range d.Machines {
		if m.ID == machineID {
			change.DeletedMachines = append(change.DeletedMachines, m.ID)
			continue
		}
		next.Machines = append(next.Machines, m)
	}
	for _, p := range d.Parts {
		if p.MachineID == machineID {
			change.DeletedParts = append(change.DeletedParts, p.ID)
			continue
		}
		next.Parts = append(next.Parts, p)
	}
	if change.Empty() {
		return d, change
	}
	return next, change
}

// DeleteDefinition removes a part definition. It fails with
// ErrDefinitionInUse while any installed part references it.
func DeleteDefinition(d model.Dataset, definitionID string) (model.Dataset, Change, error) {
	inUse := 0
	for _, p := range d.Parts {
		if p.DefinitionID == definitionID {
			inUse++
		}
	}
	if inUse > 0 {
		return d, Change{}, fmt.Errorf("%w: %d installed part(s) reference %q", ErrDefinitionInUse, inUse, definitionID)
	}

	next := d.Clone()
	next.Definitions = next.Definitions[:0]
	var change Change
	for _, def := range d.Definitions {
		if def.ID == definitionID {
			change.DeletedDefinitions = append(change.DeletedDefinitions, def.ID)
			continue
		}
		next.Definitions = append(next.Definitions, def)
	}
	if change.Empty() {
		return d, change, nil
	}
	return next, change, nil
}

func serialInUse(parts []model.InstalledPart, serial, exceptID string) bool {
	for _, p := range parts {
		if p.ID != exceptID && p.PartNumber == serial {
			return true
		}
	}
	return false
}
