// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"partlife-backend/internal/model"
)

// Memory keeps a dataset in memory and records every write call.
type Memory struct {
	mu    sync.Mutex
	data  model.Dataset
	calls []string

	// Fail, when set, makes every write return an error.
	Fail bool
	// Gate, when set, holds every write until it is closed.
	Gate chan struct{}
}

// NewMemory returns a store preloaded with d.
func NewMemory(d model.Dataset) *Memory {
	return &Memory{data: d.Clone()}
}

// Calls returns the names of the write methods invoked so far, in order.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Data returns a copy of the stored dataset.
func (m *Memory) Data() model.Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone()
}

func (m *Memory) wait() {
	if m.Gate != nil {
		<-m.Gate
	}
}

func (m *Memory) record(call string) error {
	m.calls = append(m.calls, call)
	if m.Fail {
		return fmt.Errorf("%s: store unavailable", call)
	}
	return nil
}

func (m *Memory) LoadAll(context.Context) model.Dataset {
	return m.Data()
}

func (m *Memory) SaveMachines(_ context.Context, machines []model.Machine) error {
	if len(machines) == 0 {
		return nil
	}
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveMachines"); err != nil {
		return err
	}
	for _, in := range machines {
		m.data.Machines = upsert(m.data.Machines, in, func(x model.Machine) string { return x.ID })
	}
	return nil
}

func (m *Memory) SaveDefinitions(_ context.Context, defs []model.PartDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveDefinitions"); err != nil {
		return err
	}
	for _, in := range defs {
		m.data.Definitions = upsert(m.data.Definitions, in, func(x model.PartDefinition) string { return x.ID })
	}
	return nil
}

func (m *Memory) SaveParts(_ context.Context, parts []model.InstalledPart) error {
	if len(parts) == 0 {
		return nil
	}
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveParts"); err != nil {
		return err
	}
	for _, in := range parts {
		m.data.Parts = upsert(m.data.Parts, in, func(x model.InstalledPart) string { return x.ID })
	}
	return nil
}

func (m *Memory) SaveLogs(_ context.Context, logs []model.MaintenanceLog) error {
	if len(logs) == 0 {
		return nil
	}
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveLogs"); err != nil {
		return err
	}
	for _, in := range logs {
		exists := false
		for _, l := range m.data.Logs {
			exists = exists || l.ID == in.ID
		}
		if !exists {
			m.data.Logs = append(m.data.Logs, in)
		}
	}
	return nil
}

func (m *Memory) DeleteMachine(_ context.Context, id string) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteMachine"); err != nil {
		return err
	}
	m.data.Machines = remove(m.data.Machines, func(x model.Machine) bool { return x.ID == id })
	m.data.Parts = remove(m.data.Parts, func(x model.InstalledPart) bool { return x.MachineID == id })
	return nil
}

func (m *Memory) DeleteDefinition(_ context.Context, id string) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteDefinition"); err != nil {
		return err
	}
	m.data.Definitions = remove(m.data.Definitions, func(x model.PartDefinition) bool { return x.ID == id })
	return nil
}

func (m *Memory) DeletePart(_ context.Context, id string) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeletePart"); err != nil {
		return err
	}
	m.data.Parts = remove(m.data.Parts, func(x model.InstalledPart) bool { return x.ID == id })
	return nil
}

func (m *Memory) ReplaceAll(_ context.Context, d model.Dataset) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ReplaceAll"); err != nil {
		return err
	}
	m.data = d.Clone()
	return nil
}

// DB is unused by the in-memory store.
func (m *Memory) DB() *gorm.DB {
	return nil
}

func upsert[T any](list []T, in T, key func(T) string) []T {
	for i := range list {
		if key(list[i]) == key(in) {
			list[i] = in
			return list
		}
	}
	return append(list, in)
}

func remove[T any](list []T, match func(T) bool) []T {
	out := list[:0]
	for _, x := range list {
		if !match(x) {
			out = append(out, x)
		}
	}
	return out
}
