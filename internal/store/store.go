package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"partlife-backend/internal/model"
)

// Store defines the persistence contract for the four entity collections.
// Saves are upserts keyed by id, empty saves are no-ops and deletes of
// unknown ids succeed.
type Store interface {
	LoadAll(ctx context.Context) model.Dataset
	SaveMachines(ctx context.Context, machines []model.Machine) error
	SaveDefinitions(ctx context.Context, defs []model.PartDefinition) error
	SaveParts(ctx context.Context, parts []model.InstalledPart) error
	SaveLogs(ctx context.Context, logs []model.MaintenanceLog) error
	DeleteMachine(ctx context.Context, id string) error
	DeleteDefinition(ctx context.Context, id string) error
	DeletePart(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, d model.Dataset) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db   *gorm.DB
	log  *zap.Logger
	seed func() model.Dataset
}

// Option customises a gormStore.
type Option func(*gormStore)

// WithSeed makes LoadAll populate an empty database with the dataset
// returned by fn.
func WithSeed(fn func() model.Dataset) Option {
	return func(s *gormStore) { s.seed = fn }
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log *zap.Logger, opts ...Option) Store {
	s := &gormStore{db: db, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// LoadAll reads every collection. It never fails: on error it logs and
// returns an empty dataset, and an empty database is seeded when a seed is
// configured.
func (s *gormStore) LoadAll(ctx context.Context) model.Dataset {
	d, err := s.fetchAll(ctx)
	if err != nil {
		s.log.Warn("could not load data, starting empty", zap.Error(err))
		return model.Dataset{}
	}

	if len(d.Machines) == 0 && s.seed != nil {
		seed := s.seed()
		s.log.Info("database appears empty, seeding initial data",
			zap.Int("machines", len(seed.Machines)),
			zap.Int("definitions", len(seed.Definitions)),
			zap.Int("parts", len(seed.Parts)),
		)
		if err := s.ReplaceAll(ctx, seed); err != nil {
			s.log.Warn("seeding failed", zap.Error(err))
		}
		return seed
	}
	return d
}

func (s *gormStore) fetchAll(ctx context.Context) (model.Dataset, error) {
	var d model.Dataset
	db := s.db.WithContext(ctx)
	if err := db.Order("created_at, id").Find(&d.Machines).Error; err != nil {
		return d, fmt.Errorf("failed to load machines: %w", err)
	}
	if err := db.Order("created_at, id").Find(&d.Definitions).Error; err != nil {
		return d, fmt.Errorf("failed to load part definitions: %w", err)
	}
	if err := db.Order("position, created_at, id").Find(&d.Parts).Error; err != nil {
		return d, fmt.Errorf("failed to load installed parts: %w", err)
	}
	if err := db.Order("replaced_date DESC, id").Find(&d.Logs).Error; err != nil {
		return d, fmt.Errorf("failed to load maintenance logs: %w", err)
	}
	return d, nil
}

func (s *gormStore) SaveMachines(ctx context.Context, machines []model.Machine) error {
	if len(machines) == 0 {
		return nil
	}
	return upsert(s.db.WithContext(ctx), &machines, "name", "location", "model", "status", "updated_at")
}

func (s *gormStore) SaveDefinitions(ctx context.Context, defs []model.PartDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	return upsert(s.db.WithContext(ctx), &defs, "name", "category", "max_lifetime_days", "cost", "updated_at")
}

func (s *gormStore) SaveParts(ctx context.Context, parts []model.InstalledPart) error {
	if len(parts) == 0 {
		return nil
	}
	return upsert(s.db.WithContext(ctx), &parts, "definition_id", "machine_id", "install_date", "current_days_used", "part_number", "position", "updated_at")
}

func (s *gormStore) SaveLogs(ctx context.Context, logs []model.MaintenanceLog) error {
	if len(logs) == 0 {
		return nil
	}
	// Log rows are immutable; a repeated save of the same id is ignored.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&logs).Error
}

// DeleteMachine removes the machine together with the parts installed on it.
func (s *gormStore) DeleteMachine(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("machine_id = ?", id).Delete(&model.InstalledPart{}).Error; err != nil {
			return fmt.Errorf("failed to delete parts of machine %s: %w", id, err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Machine{}).Error; err != nil {
			return fmt.Errorf("failed to delete machine %s: %w", id, err)
		}
		return nil
	})
}

func (s *gormStore) DeleteDefinition(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PartDefinition{}).Error; err != nil {
		return fmt.Errorf("failed to delete part definition %s: %w", id, err)
	}
	return nil
}

func (s *gormStore) DeletePart(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.InstalledPart{}).Error; err != nil {
		return fmt.Errorf("failed to delete installed part %s: %w", id, err)
	}
	return nil
}

// ReplaceAll swaps the whole database content for d in one transaction.
// Part positions are stored as given.
func (s *gormStore) ReplaceAll(ctx context.Context, d model.Dataset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&model.MaintenanceLog{}, &model.InstalledPart{}, &model.PartDefinition{}, &model.Machine{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", m, err)
			}
		}
		if len(d.Machines) > 0 {
			if err := tx.Create(&d.Machines).Error; err != nil {
				return fmt.Errorf("failed to restore machines: %w", err)
			}
		}
		if len(d.Definitions) > 0 {
			if err := tx.Create(&d.Definitions).Error; err != nil {
				return fmt.Errorf("failed to restore part definitions: %w", err)
			}
		}
		if len(d.Parts) > 0 {
			if err := tx.Create(&d.Parts).Error; err != nil {
				return fmt.Errorf("failed to restore installed parts: %w", err)
			}
		}
		if len(d.Logs) > 0 {
			if err := tx.Create(&d.Logs).Error; err != nil {
				return fmt.Errorf("failed to restore maintenance logs: %w", err)
			}
		}
		return nil
	})
}

func upsert(db *gorm.DB, rows any, columns ...string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(rows).Error
}
