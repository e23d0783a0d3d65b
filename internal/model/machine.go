package model

import "time"

// MachineStatus is the operational state of a machine.
type MachineStatus string

const (
	MachineActive      MachineStatus = "active"
	MachineMaintenance MachineStatus = "maintenance"
	MachineOffline     MachineStatus = "offline"
)

// Valid reports whether s is one of the known machine states.
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineActive, MachineMaintenance, MachineOffline:
		return true
	}
	return false
}

// Machine represents a piece of equipment that parts are installed on.
type Machine struct {
	ID        string        `gorm:"primaryKey;size:64" json:"id"`
	Name      string        `gorm:"size:256;not null" json:"name"`
	Location  string        `gorm:"size:256" json:"location"`
	Model     string        `gorm:"size:128" json:"model"`
	Status    MachineStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time     `json:"-"`
	UpdatedAt time.Time     `json:"-"`
}
