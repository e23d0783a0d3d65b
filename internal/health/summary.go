package health

import (
	"sort"

	"partlife-backend/internal/model"
)

// Counts tallies parts by status.
type Counts struct {
	Total    int `json:"total"`
	Good     int `json:"good"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

func (c *Counts) add(s Status) {
	c.Total++
	switch s {
	case StatusGood:
		c.Good++
	case StatusWarning:
		c.Warning++
	case StatusCritical:
		c.Critical++
	}
}

// CategoryCounts holds the at-risk parts of one definition category.
type CategoryCounts struct {
	Category string `json:"category"`
	Warning  int    `json:"warning"`
	Critical int    `json:"critical"`
}

// MachineCounts holds the part tallies of one machine.
type MachineCounts struct {
	MachineID   string `json:"machineId"`
	MachineName string `json:"machineName"`
	Counts
}

// DefinitionHealth holds the average health across installed instances of
// one part definition. AverageHealth is 0 when nothing is installed.
type DefinitionHealth struct {
	DefinitionID  string  `json:"definitionId"`
	Name          string  `json:"name"`
	Installed     int     `json:"installed"`
	AverageHealth float64 `json:"averageHealth"`
}

// Summary is the dashboard rollup of a view.
type Summary struct {
	Fleet       Counts             `json:"fleet"`
	Categories  []CategoryCounts   `json:"categories"`
	Machines    []MachineCounts    `json:"machines"`
	Definitions []DefinitionHealth `json:"definitions"`
}

// Summarize rolls up parts into fleet, category, machine and definition
// figures. Machines and definitions appear in the given order, categories in
// first-seen order.
func Summarize(parts []PopulatedPart, machines []model.Machine, definitions []model.PartDefinition) Summary {
	s := Summary{
		Categories:  []CategoryCounts{},
		Machines:    make([]MachineCounts, 0, len(machines)),
		Definitions: make([]DefinitionHealth, 0, len(definitions)),
	}

	catIdx := make(map[string]int)
	byMachine := make(map[string]*Counts)
	healthSum := make(map[string]float64)
	installed := make(map[string]int)

	for _, p := range parts {
		s.Fleet.add(p.Status)

		cat := p.Definition.Category
		i, ok := catIdx[cat]
		if !ok {
			i = len(s.Categories)
			catIdx[cat] = i
			s.Categories = append(s.Categories, CategoryCounts{Category: cat})
		}
		switch p.Status {
		case StatusWarning:
			s.Categories[i].Warning++
		case StatusCritical:
			s.Categories[i].Critical++
		}

		c, ok := byMachine[p.MachineID]
		if !ok {
			c = &Counts{}
			byMachine[p.MachineID] = c
		}
		c.add(p.Status)

		healthSum[p.DefinitionID] += p.HealthPercentage
		installed[p.DefinitionID]++
	}

	for _, m := range machines {
		mc := MachineCounts{MachineID: m.ID, MachineName: m.Name}
		if c, ok := byMachine[m.ID]; ok {
			mc.Counts = *c
		}
		s.Machines = append(s.Machines, mc)
	}

	for _, d := range definitions {
		dh := DefinitionHealth{DefinitionID: d.ID, Name: d.Name, Installed: installed[d.ID]}
		if dh.Installed > 0 {
			dh.AverageHealth = healthSum[d.ID] / float64(dh.Installed)
		}
		s.Definitions = append(s.Definitions, dh)
	}
	return s
}

// SortByHealth returns a copy of parts ordered lowest health first. Ties keep
// their original order.
func SortByHealth(parts []PopulatedPart) []PopulatedPart {
	out := append([]PopulatedPart(nil), parts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HealthPercentage < out[j].HealthPercentage
	})
	return out
}

// FilterStatus returns the parts with the given status, in order.
func FilterStatus(parts []PopulatedPart, status Status) []PopulatedPart {
	var out []PopulatedPart
	for _, p := range parts {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}
