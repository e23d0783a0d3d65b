// Package backup reads and writes the JSON snapshot of the whole fleet.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"partlife-backend/internal/model"
)

// ErrInvalidFormat is returned for documents that are not a fleet backup.
var ErrInvalidFormat = errors.New("invalid backup file format")

// File is the on-disk shape of a backup.
type File struct {
	Machines        []model.Machine        `json:"machines"`
	PartDefinitions []model.PartDefinition `json:"partDefinitions"`
	InstalledParts  []model.InstalledPart  `json:"installedParts"`
	MaintenanceLogs []model.MaintenanceLog `json:"maintenanceLogs"`
	Timestamp       string                 `json:"timestamp"`
}

var requiredKeys = []string{"machines", "partDefinitions", "installedParts"}

// Encode renders d as an indented backup document stamped with now.
func Encode(d model.Dataset, now time.Time) ([]byte, error) {
	f := File{
		Machines:        nonNil(d.Machines),
		PartDefinitions: nonNil(d.Definitions),
		InstalledParts:  nonNil(d.Parts),
		MaintenanceLogs: nonNil(d.Logs),
		Timestamp:       now.UTC().Format(time.RFC3339),
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return b, nil
}

// Decode validates and parses a backup document. Nothing is returned unless
// the whole document is valid.
func Decode(data []byte) (model.Dataset, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	for _, k := range requiredKeys {
		raw, ok := keys[k]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return model.Dataset{}, fmt.Errorf("%w: missing %q", ErrInvalidFormat, k)
		}
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return model.Dataset{
		Machines:    nonNil(f.Machines),
		Definitions: nonNil(f.PartDefinitions),
		Parts:       nonNil(f.InstalledParts),
		Logs:        nonNil(f.MaintenanceLogs),
	}, nil
}

// FileName is the download name for a backup taken at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("lifecycle_pro_backup_%s.json", now.UTC().Format(time.DateOnly))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
