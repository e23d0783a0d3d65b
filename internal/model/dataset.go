package model

// Dataset holds the four entity collections that make up the fleet state.
type Dataset struct {
	Machines    []Machine
	Definitions []PartDefinition
	Parts       []InstalledPart
	Logs        []MaintenanceLog
}

// Clone returns a copy whose slices can be modified without affecting d.
func (d Dataset) Clone() Dataset {
	return Dataset{
		Machines:    append([]Machine(nil), d.Machines...),
		Definitions: append([]PartDefinition(nil), d.Definitions...),
		Parts:       append([]InstalledPart(nil), d.Parts...),
		Logs:        append([]MaintenanceLog(nil), d.Logs...),
	}
}

// FindMachine returns the machine with the given ID.
func (d Dataset) FindMachine(id string) (Machine, bool) {
	for _, m := range d.Machines {
		if m.ID == id {
			return m, true
		}
	}
	return Machine{}, false
}

// FindDefinition returns the part definition with the given ID.
func (d Dataset) FindDefinition(id string) (PartDefinition, bool) {
	for _, def := range d.Definitions {
		if def.ID == id {
			return def, true
		}
	}
	return PartDefinition{}, false
}

// NextPosition returns a position that sorts after every installed part.
func (d Dataset) NextPosition() int {
	next := 0
	for _, p := range d.Parts {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}

// NumberParts sets every part's position to its index in the list.
func (d *Dataset) NumberParts() {
	for i := range d.Parts {
		d.Parts[i].Position = i
	}
}

// PartIndex returns the position of the installed part with the given ID, or -1.
func (d Dataset) PartIndex(id string) int {
	for i, p := range d.Parts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
