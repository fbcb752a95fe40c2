package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration is one versioned schema change. Versions sort lexically in the
// order they must be applied.
type Migration struct {
	Version string
	Name    string
	Up      func(tx *gorm.DB) error
	Down    func(tx *gorm.DB) error
}

// SchemaMigration records an applied migration. Migrations applied by the
// same Up call share a batch, and Down without a step count reverts a batch.
type SchemaMigration struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"size:191;uniqueIndex;not null"`
	Name      string    `gorm:"size:255;not null"`
	Batch     int       `gorm:"not null;index"`
	AppliedAt time.Time `gorm:"not null"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

type MigrationStatus struct {
	Version string
	Name    string
	Applied bool
	Batch   int
}

type Migrator struct {
	db         *gorm.DB
	log        *zap.Logger
	migrations []Migration
}

func NewMigrator(db *gorm.DB, log *zap.Logger, migrations []Migration) (*Migrator, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	seen := make(map[string]struct{}, len(sorted))
	for _, m := range sorted {
		if m.Version == "" || m.Up == nil || m.Down == nil {
			return nil, fmt.Errorf("migration %q is incomplete", m.Name)
		}
		if _, dup := seen[m.Version]; dup {
			return nil, fmt.Errorf("duplicate migration version %s", m.Version)
		}
		seen[m.Version] = struct{}{}
	}
	return &Migrator{db: db, log: log.Named("migrator"), migrations: sorted}, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&SchemaMigration{})
}

// appliedRecords returns applied migrations, newest first.
func (m *Migrator) appliedRecords(ctx context.Context) ([]SchemaMigration, error) {
	var records []SchemaMigration
	err := m.db.WithContext(ctx).Order("batch DESC").Order("version DESC").Find(&records).Error
	return records, err
}

func (m *Migrator) find(version string) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

// Up applies every pending migration in version order as one new batch and
// returns the names it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	records, err := m.appliedRecords(ctx)
	if err != nil {
		return nil, err
	}

	applied := make(map[string]struct{}, len(records))
	batch := 1
	for _, r := range records {
		applied[r.Version] = struct{}{}
		if r.Batch >= batch {
			batch = r.Batch + 1
		}
	}

	var ran []string
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   mig.Version,
				Name:      mig.Name,
				Batch:     batch,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("migrate %s_%s: %w", mig.Version, mig.Name, err)
		}
		m.log.Info("Migrated", zap.String("version", mig.Version), zap.String("name", mig.Name), zap.Int("batch", batch))
		ran = append(ran, mig.Name)
	}
	return ran, nil
}

// Down reverts migrations, newest first. steps == 0 reverts the last batch.
func (m *Migrator) Down(ctx context.Context, steps int) ([]string, error) {
	if steps < 0 {
		return nil, fmt.Errorf("steps must not be negative, got %d", steps)
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	records, err := m.appliedRecords(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var targets []SchemaMigration
	if steps == 0 {
		last := records[0].Batch
		for _, r := range records {
			if r.Batch == last {
				targets = append(targets, r)
			}
		}
	} else {
		targets = records[:min(steps, len(records))]
	}

	var reverted []string
	for _, rec := range targets {
		mig, ok := m.find(rec.Version)
		if !ok {
			return reverted, fmt.Errorf("applied migration %s_%s is unknown to this build", rec.Version, rec.Name)
		}
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mig.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&SchemaMigration{}, rec.ID).Error
		})
		if err != nil {
			return reverted, fmt.Errorf("rollback %s_%s: %w", mig.Version, mig.Name, err)
		}
		m.log.Info("Rolled back", zap.String("version", mig.Version), zap.String("name", mig.Name))
		reverted = append(reverted, mig.Name)
	}
	return reverted, nil
}

func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	records, err := m.appliedRecords(ctx)
	if err != nil {
		return nil, err
	}
	batches := make(map[string]int, len(records))
	for _, r := range records {
		batches[r.Version] = r.Batch
	}

	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		batch, ok := batches[mig.Version]
		out = append(out, MigrationStatus{Version: mig.Version, Name: mig.Name, Applied: ok, Batch: batch})
	}
	return out, nil
}

// Fresh reverts everything that is applied and migrates again from scratch.
func (m *Migrator) Fresh(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	var count int64
	if err := m.db.WithContext(ctx).Model(&SchemaMigration{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		if _, err := m.Down(ctx, int(count)); err != nil {
			return nil, err
		}
	}
	return m.Up(ctx)
}

// Migrate applies all pending migrations of the application schema.
func Migrate(ctx context.Context, db *gorm.DB, log *zap.Logger) ([]string, error) {
	m, err := NewMigrator(db, log, Migrations())
	if err != nil {
		return nil, err
	}
	return m.Up(ctx)
}
