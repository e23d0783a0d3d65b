// Package health projects stored installation records into live part health.
// Nothing computed here is ever persisted; the view is rebuilt on every read.
package health

import (
	"time"

	"partlife-backend/internal/model"
)

// Status classifies a part by its remaining lifetime.
type Status string

const (
	StatusGood     Status = "GOOD"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

const (
	criticalBelow = 10.0
	warningBelow  = 30.0
)

// Day is the unit usage is counted in.
const Day = 24 * time.Hour

// PopulatedPart is an installed part joined with its definition and machine.
type PopulatedPart struct {
	model.InstalledPart
	Definition       model.PartDefinition `json:"definition"`
	MachineName      string               `json:"machineName"`
	HealthPercentage float64              `json:"healthPercentage"`
	Status           Status               `json:"status"`
}

// Orphan is an installed part whose machine or definition no longer exists.
type Orphan struct {
	PartID            string `json:"partId"`
	MachineID         string `json:"machineId"`
	DefinitionID      string `json:"definitionId"`
	MissingMachine    bool   `json:"missingMachine"`
	MissingDefinition bool   `json:"missingDefinition"`
}

// View is the result of a derivation pass.
type View struct {
	Parts   []PopulatedPart
	Orphans []Orphan
}

// DaysBetween returns the number of whole days between a and b, in either order.
func DaysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(d / Day)
}

// Percentage returns the remaining-life percentage for a part used daysUsed
// days out of maxLifetimeDays, clamped at zero. A non-positive lifetime is
// treated as fully used up.
func Percentage(daysUsed, maxLifetimeDays int) float64 {
	if maxLifetimeDays <= 0 {
		return 0
	}
	// (max-used)/max keeps integral percentages exact at the 10 and 30 bounds.
	pct := float64(maxLifetimeDays-daysUsed) * 100 / float64(maxLifetimeDays)
	if pct < 0 {
		return 0
	}
	return pct
}

// Classify maps a health percentage onto a status. Lower bounds are inclusive.
func Classify(pct float64) Status {
	switch {
	case pct < criticalBelow:
		return StatusCritical
	case pct < warningBelow:
		return StatusWarning
	default:
		return StatusGood
	}
}

// Derive builds the populated view of parts at time now. Output order follows
// parts. Parts with a dangling machine or definition reference are left out
// of the view and listed in Orphans instead.
func Derive(parts []model.InstalledPart, definitions []model.PartDefinition, machines []model.Machine, now time.Time) View {
	defs := make(map[string]model.PartDefinition, len(definitions))
	for _, d := range definitions {
		defs[d.ID] = d
	}
	names := make(map[string]string, len(machines))
	for _, m := range machines {
		names[m.ID] = m.Name
	}

	view := View{Parts: make([]PopulatedPart, 0, len(parts))}
	for _, p := range parts {
		def, defOK := defs[p.DefinitionID]
		name, machineOK := names[p.MachineID]
		if !defOK || !machineOK {
			view.Orphans = append(view.Orphans, Orphan{
				PartID:            p.ID,
				MachineID:         p.MachineID,
				DefinitionID:      p.DefinitionID,
				MissingMachine:    !machineOK,
				MissingDefinition: !defOK,
			})
			continue
		}
		view.Parts = append(view.Parts, Populate(p, def, name, now))
	}
	return view
}

// Populate computes the live fields for a single part.
func Populate(p model.InstalledPart, def model.PartDefinition, machineName string, now time.Time) PopulatedPart {
	days := DaysBetween(p.InstallDate, now)
	pct := Percentage(days, def.MaxLifetimeDays)

	out := PopulatedPart{
		InstalledPart:    p,
		Definition:       def,
		MachineName:      machineName,
		HealthPercentage: pct,
		Status:           Classify(pct),
	}
	out.CurrentDaysUsed = days
	return out
}
