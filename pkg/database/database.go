package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/carelens/notescan/internal/config"
	"github.com/carelens/notescan/internal/domain/mention"
	"github.com/carelens/notescan/internal/domain/note"
	"github.com/carelens/notescan/internal/domain/pattern"
	"github.com/carelens/notescan/internal/domain/status"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DSN(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "ops"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&pattern.SymptomPattern{},
		&note.Record{},
		&mention.Mention{},
		&status.ProcessingStatus{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// Mention rollups by patient and date drive the HRSN dashboards.
		{
			name:  "idx_mentions_patient_date",
			query: `CREATE INDEX IF NOT EXISTS idx_mentions_patient_date ON clinical.symptom_mentions (patient_id, date_of_service)`,
		},
		{
			name:  "idx_mentions_category",
			query: `CREATE INDEX IF NOT EXISTS idx_mentions_category ON clinical.symptom_mentions (diagnostic_category, kind)`,
		},
		// Stall monitor scan: in-progress rows ordered by last update.
		{
			name:  "idx_status_stale",
			query: `CREATE INDEX IF NOT EXISTS idx_status_stale ON ops.processing_status (last_update_at) WHERE state = 'in_progress'`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}

	return nil
}
