package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Backups written by older clients carry cost as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

// PartDefinition describes a kind of part and its expected service life.
type PartDefinition struct {
	ID              string          `gorm:"primaryKey;size:64" json:"id"`
	Name            string          `gorm:"size:256;not null" json:"name"`
	Category        string          `gorm:"size:128" json:"category"`
	MaxLifetimeDays int             `gorm:"not null" json:"maxLifetimeDays"`
	Cost            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"cost"`
	CreatedAt       time.Time       `json:"-"`
	UpdatedAt       time.Time       `json:"-"`
}

// InstalledPart is one physical unit's tenure on a machine. A replacement
// creates a new record with a new ID rather than mutating this one.
type InstalledPart struct {
	ID              string    `gorm:"primaryKey;size:64" json:"id"`
	DefinitionID    string    `gorm:"index;size:64;not null" json:"definitionId"`
	MachineID       string    `gorm:"index;size:64;not null" json:"machineId"`
	InstallDate     time.Time `gorm:"not null" json:"installDate"`
	CurrentDaysUsed int       `gorm:"not null" json:"currentDaysUsed"`
	PartNumber      string    `gorm:"index;size:128;not null" json:"partNumber"`
	// Position orders parts in listings; a replacement inherits it.
	Position        int       `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

// MaintenanceLog records a single part replacement. Rows are append-only.
type MaintenanceLog struct {
	ID                    string    `gorm:"primaryKey;size:64" json:"id"`
	MachineID             string    `gorm:"index;size:64;not null" json:"machineId"`
	PartDefinitionID      string    `gorm:"size:64;not null" json:"partDefinitionId"`
	PartName              string    `gorm:"size:256;not null" json:"partName"`
	OldPartNumber         string    `gorm:"size:128" json:"oldPartNumber"`
	NewPartNumber         string    `gorm:"size:128" json:"newPartNumber"`
	ReplacedDate          time.Time `gorm:"index;not null" json:"replacedDate"`
	DaysUsedAtReplacement int       `gorm:"not null" json:"daysUsedAtReplacement"`
}
