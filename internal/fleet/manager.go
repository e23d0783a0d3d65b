// Package fleet owns the live fleet dataset. Every transition runs to
// completion under a single lock and its writes are handed to a Persister
// afterwards, so readers never observe a half-applied replacement.
package fleet

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"partlife-backend/internal/backup"
	"partlife-backend/internal/health"
	"partlife-backend/internal/importer"
	"partlife-backend/internal/lifecycle"
	"partlife-backend/internal/metrics"
	"partlife-backend/internal/model"
)

// Persister receives the writes produced by transitions.
type Persister interface {
	Enqueue(c lifecycle.Change)
	EnqueueRestore(d model.Dataset)
}

// Manager serializes lifecycle transitions over an in-memory dataset.
type Manager struct {
	mu      sync.RWMutex
	data    model.Dataset
	version uint64

	persist Persister
	ids     lifecycle.IDGenerator
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDs overrides the identifier generator.
func WithIDs(ids lifecycle.IDGenerator) Option {
	return func(m *Manager) { m.ids = ids }
}

// NewManager creates a manager starting from initial.
func NewManager(initial model.Dataset, p Persister, log *zap.Logger, mtr *metrics.Metrics, opts ...Option) *Manager {
	m := &Manager{
		data:    initial.Clone(),
		version: 1,
		persist: p,
		ids:     lifecycle.UUIDGenerator{},
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
		metrics: mtr,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Snapshot returns a copy of the current dataset.
func (m *Manager) Snapshot() model.Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Clone()
}

// Version increases every time the dataset changes.
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// View derives the health of every installed part as of now.
func (m *Manager) View() health.View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return health.Derive(m.data.Parts, m.data.Definitions, m.data.Machines, m.now())
}

// Summary derives the view and rolls it up for the dashboard.
func (m *Manager) Summary() health.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view := health.Derive(m.data.Parts, m.data.Definitions, m.data.Machines, m.now())
	return health.Summarize(view.Parts, m.data.Machines, m.data.Definitions)
}

// Logs returns the maintenance history newest first, optionally limited to
// one machine.
func (m *Manager) Logs(machineID string) []model.MaintenanceLog {
	m.mu.RLock()
	logs := make([]model.MaintenanceLog, 0, len(m.data.Logs))
	for _, l := range m.data.Logs {
		if machineID == "" || l.MachineID == machineID {
			logs = append(logs, l)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].ReplacedDate.After(logs[j].ReplacedDate)
	})
	return logs
}

// transition runs fn against the current dataset and, on success, swaps in
// the result and queues its change.
func (m *Manager) transition(op string, fn func(d model.Dataset, now time.Time) (model.Dataset, lifecycle.Change, error)) error {
	m.mu.Lock()
	next, change, err := fn(m.data, m.now())
	if err != nil {
		m.mu.Unlock()
		m.log.Debug("transition rejected", zap.String("operation", op), zap.Error(err))
		return err
	}
	if change.Empty() {
		m.mu.Unlock()
		return nil
	}
	m.data = next
	m.version++
	// Queued under the lock so writes reach the store in transition order.
	m.persist.Enqueue(change)
	m.mu.Unlock()

	m.metrics.Transitions.WithLabelValues(op).Inc()
	return nil
}

// Install puts a new part with the given serial number on a machine.
func (m *Manager) Install(machineID, definitionID, partNumber string) (model.InstalledPart, error) {
	var part model.InstalledPart
	err := m.transition("install", func(d model.Dataset, now time.Time) (model.Dataset, lifecycle.Change, error) {
		next, change, err := lifecycle.Install(d, machineID, definitionID, partNumber, now, m.ids)
		if err == nil {
			part = change.Parts[0]
		}
		return next, change, err
	})
	return part, err
}

// Replace swaps the physical unit behind partID and records the replacement.
// A nil replaceDate means now.
func (m *Manager) Replace(partID, newPartNumber string, replaceDate *time.Time) (model.InstalledPart, model.MaintenanceLog, error) {
	var (
		fresh model.InstalledPart
		entry model.MaintenanceLog
	)
	err := m.transition("replace", func(d model.Dataset, now time.Time) (model.Dataset, lifecycle.Change, error) {
		next, change, err := lifecycle.Replace(d, partID, newPartNumber, replaceDate, now, m.ids)
		if err == nil {
			fresh, entry = change.Parts[0], change.Logs[0]
		}
		return next, change, err
	})
	if err == nil {
		m.log.Info("part replaced",
			zap.String("old_part_id", partID),
			zap.String("new_part_id", fresh.ID),
			zap.String("machine_id", fresh.MachineID),
			zap.Int("days_used", entry.DaysUsedAtReplacement),
		)
	}
	return fresh, entry, err
}

// UpdatePart applies manual corrections to an installed part.
func (m *Manager) UpdatePart(partID string, patch lifecycle.PartPatch) (model.InstalledPart, error) {
	var part model.InstalledPart
	err := m.transition("update_part", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		next, change, err := lifecycle.UpdatePart(d, partID, patch)
		if err == nil {
			part = change.Parts[0]
		}
		return next, change, err
	})
	return part, err
}

// DeleteInstalledPart removes a part. It reports whether anything was removed.
func (m *Manager) DeleteInstalledPart(partID string) bool {
	removed := false
	_ = m.transition("delete_part", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		next, change := lifecycle.DeleteInstalledPart(d, partID)
		removed = !change.Empty()
		return next, change, nil
	})
	return removed
}

// DeleteMachine removes a machine and its installed parts. It returns the
// number of parts removed with it and whether the machine existed.
func (m *Manager) DeleteMachine(machineID string) (int, bool) {
	var change lifecycle.Change
	_ = m.transition("delete_machine", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		var next model.Dataset
		next, change = lifecycle.DeleteMachine(d, machineID)
		return next, change, nil
	})
	return len(change.DeletedParts), len(change.DeletedMachines) > 0
}

// DeleteDefinition removes a part definition that no installed part uses.
func (m *Manager) DeleteDefinition(definitionID string) (bool, error) {
	removed := false
	err := m.transition("delete_definition", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		next, change, err := lifecycle.DeleteDefinition(d, definitionID)
		removed = !change.Empty()
		return next, change, err
	})
	return removed, err
}

// AddMachine registers a machine and returns it with its new ID.
func (m *Manager) AddMachine(in model.Machine) (model.Machine, error) {
	var out model.Machine
	err := m.transition("add_machine", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		next, change, err := lifecycle.AddMachine(d, in, m.ids)
		if err == nil {
			out = change.Machines[0]
		}
		return next, change, err
	})
	return out, err
}

// EditMachine overwrites a machine's attributes.
func (m *Manager) EditMachine(in model.Machine) (model.Machine, error) {
	err := m.transition("edit_machine", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		return lifecycle.EditMachine(d, in)
	})
	return in, err
}

// AddDefinition registers a part definition and returns it with its new ID.
func (m *Manager) AddDefinition(in model.PartDefinition) (model.PartDefinition, error) {
	var out model.PartDefinition
	err := m.transition("add_definition", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		next, change, err := lifecycle.AddDefinition(d, in, m.ids)
		if err == nil {
			out = change.Definitions[0]
		}
		return next, change, err
	})
	return out, err
}

// EditDefinition overwrites a part definition.
func (m *Manager) EditDefinition(in model.PartDefinition) (model.PartDefinition, error) {
	err := m.transition("edit_definition", func(d model.Dataset, _ time.Time) (model.Dataset, lifecycle.Change, error) {
		return lifecycle.EditDefinition(d, in)
	})
	return in, err
}

// PreviewImport reconciles CSV text against the current dataset without
// applying anything.
func (m *Manager) PreviewImport(text string) (importer.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return importer.Import(text, m.data, m.now(), m.ids)
}

// CommitImport reconciles CSV text and applies the result in one step.
func (m *Manager) CommitImport(text string) (importer.Result, error) {
	var res importer.Result
	err := m.transition("import", func(d model.Dataset, now time.Time) (model.Dataset, lifecycle.Change, error) {
		var err error
		res, err = importer.Import(text, d, now, m.ids)
		if err != nil {
			return d, lifecycle.Change{}, err
		}
		next, change := res.Apply(d)
		return next, change, nil
	})
	if err != nil {
		return res, err
	}

	m.metrics.ImportedRows.WithLabelValues("imported").Add(float64(len(res.Parts)))
	m.metrics.ImportedRows.WithLabelValues("skipped").Add(float64(len(res.Skipped)))
	m.log.Info("csv import applied",
		zap.Int("rows", res.Rows),
		zap.Int("machines", len(res.Machines)),
		zap.Int("definitions", len(res.Definitions)),
		zap.Int("parts", len(res.Parts)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// ExportBackup renders the current dataset as a backup document.
func (m *Manager) ExportBackup() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return backup.Encode(m.data, m.now())
}

// RestoreBackup replaces the whole dataset with the content of a backup
// document. Invalid documents leave the current state untouched.
func (m *Manager) RestoreBackup(data []byte) (model.Dataset, error) {
	d, err := backup.Decode(data)
	if err != nil {
		return model.Dataset{}, err
	}
	d.NumberParts()

	m.mu.Lock()
	m.data = d.Clone()
	m.version++
	m.persist.EnqueueRestore(d)
	m.mu.Unlock()

	m.metrics.Transitions.WithLabelValues("restore").Inc()
	m.log.Info("backup restored",
		zap.Int("machines", len(d.Machines)),
		zap.Int("definitions", len(d.Definitions)),
		zap.Int("parts", len(d.Parts)),
		zap.Int("logs", len(d.Logs)),
	)
	return d, nil
}
