package importer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"

	"partlife-backend/internal/health"
	"partlife-backend/internal/lifecycle"
	"partlife-backend/internal/model"
)

// Defaults for entities synthesised from CSV rows.
const (
	ImportedLocation    = "Imported"
	UnknownModel        = "Unknown"
	DefaultCategory     = "General"
	DefaultLifetimeDays = 365
)

var dateConfig = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats: []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02.01.2006",
		time.RFC3339,
	},
}

// Skip records a row that was not imported.
type Skip struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result holds the additive deltas produced by an import. Nothing in it has
// been applied to any dataset yet.
type Result struct {
	Machines    []model.Machine        `json:"newMachines"`
	Definitions []model.PartDefinition `json:"newDefinitions"`
	Parts       []model.InstalledPart  `json:"newParts"`
	Skipped     []Skip                 `json:"skipped"`
	Rows        int                    `json:"rows"`
}

// Counts is the short report handed back to the caller.
type Counts struct {
	Machines    int `json:"machines"`
	Definitions int `json:"definitions"`
	Parts       int `json:"parts"`
	Skipped     int `json:"skipped"`
}

// Counts returns the number of entities created and rows skipped.
func (r Result) Counts() Counts {
	return Counts{
		Machines:    len(r.Machines),
		Definitions: len(r.Definitions),
		Parts:       len(r.Parts),
		Skipped:     len(r.Skipped),
	}
}

// Empty reports whether the import would create nothing.
func (r Result) Empty() bool {
	return len(r.Machines) == 0 && len(r.Definitions) == 0 && len(r.Parts) == 0
}

// Apply appends the deltas to d. Only non-empty lists appear in the change.
func (r Result) Apply(d model.Dataset) (model.Dataset, lifecycle.Change) {
	next := d.Clone()
	var change lifecycle.Change
	if len(r.Machines) > 0 {
		next.Machines = append(next.Machines, r.Machines...)
		change.Machines = r.Machines
	}
	if len(r.Definitions) > 0 {
		next.Definitions = append(next.Definitions, r.Definitions...)
		change.Definitions = r.Definitions
	}
	if len(r.Parts) > 0 {
		start := next.NextPosition()
		for i := range r.Parts {
			r.Parts[i].Position = start + i
		}
		next.Parts = append(next.Parts, r.Parts...)
		change.Parts = r.Parts
	}
	return next, change
}

// Import parses text and reconciles it against d.
func Import(text string, d model.Dataset, at time.Time, ids lifecycle.IDGenerator) (Result, error) {
	rows, err := ParseRows(text)
	if err != nil {
		return Result{}, err
	}
	return Reconcile(rows, d, at, ids), nil
}

// Reconcile resolves each row against existing machines and definitions by
// case-insensitive name, creating the ones that are missing, and stages an
// installed part for every serial number not seen before. Serial numbers are
// checked first so a duplicate row never creates catalog entries.
func Reconcile(rows []RowResult, d model.Dataset, at time.Time, ids lifecycle.IDGenerator) Result {
	res := Result{Rows: len(rows)}

	machines := make(map[string]string, len(d.Machines))
	for _, m := range d.Machines {
		key := nameKey(m.Name)
		if _, ok := machines[key]; !ok {
			machines[key] = m.ID
		}
	}
	definitions := make(map[string]string, len(d.Definitions))
	for _, def := range d.Definitions {
		key := nameKey(def.Name)
		if _, ok := definitions[key]; !ok {
			definitions[key] = def.ID
		}
	}
	serials := make(map[string]struct{}, len(d.Parts))
	for _, p := range d.Parts {
		serials[p.PartNumber] = struct{}{}
	}

	for _, rr := range rows {
		if rr.Err != nil {
			skip := Skip{Reason: rr.Err.Error()}
			if re, ok := rr.Err.(*RowError); ok {
				skip = Skip{Line: re.Line, Reason: re.Reason}
			}
			res.Skipped = append(res.Skipped, skip)
			continue
		}
		row := rr.Row

		if _, dup := serials[row.SerialNumber]; dup {
			res.Skipped = append(res.Skipped, Skip{Line: row.Line, Reason: "serial number " + row.SerialNumber + " already installed"})
			continue
		}

		machineID, ok := machines[nameKey(row.MachineName)]
		if !ok {
			m := model.Machine{
				ID:       ids.NewID(lifecycle.PrefixMachine),
				Name:     row.MachineName,
				Location: ImportedLocation,
				Model:    UnknownModel,
				Status:   model.MachineActive,
			}
			res.Machines = append(res.Machines, m)
			machines[nameKey(m.Name)] = m.ID
			machineID = m.ID
		}

		definitionID, ok := definitions[nameKey(row.PartName)]
		if !ok {
			category := row.Category
			if category == "" {
				category = DefaultCategory
			}
			def := model.PartDefinition{
				ID:              ids.NewID(lifecycle.PrefixDefinition),
				Name:            row.PartName,
				Category:        category,
				MaxLifetimeDays: parseLifetime(row.LifetimeDaysRaw),
				Cost:            decimal.Zero,
			}
			res.Definitions = append(res.Definitions, def)
			definitions[nameKey(def.Name)] = def.ID
			definitionID = def.ID
		}

		installDate, days := usageSince(row.InstallDateRaw, at)
		res.Parts = append(res.Parts, model.InstalledPart{
			ID:              ids.NewID(lifecycle.PrefixPart),
			DefinitionID:    definitionID,
			MachineID:       machineID,
			InstallDate:     installDate,
			CurrentDaysUsed: days,
			PartNumber:      row.SerialNumber,
		})
		serials[row.SerialNumber] = struct{}{}
	}
	return res
}

// nameKey folds case and trims the ends. Inner whitespace is kept, so
// "Acme  CNC" and "Acme CNC" are different machines.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func parseLifetime(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 1 && !math.IsInf(f, 0) && f < math.MaxInt32 {
		return int(f)
	}
	return DefaultLifetimeDays
}

// usageSince parses an install date and returns it with the whole days
// elapsed until at. Dates that fail to parse, and dates after at, fall back
// to at with zero usage.
func usageSince(raw string, at time.Time) (time.Time, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return at, 0
	}
	installed, err := dateConfig.With(at).Parse(raw)
	if err != nil || installed.After(at) {
		return at, 0
	}
	return installed, int(math.Floor(float64(at.Sub(installed)) / float64(health.Day)))
}
