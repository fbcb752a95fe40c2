package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"blogdesk/config"
	"blogdesk/logger"
	"blogdesk/models"
)

// Open connects to the configured database and prepares the GORM schema
// cache. It does not run migrations; see Migrator.
func Open(cfg config.DatabaseConfig, log *zap.Logger, level gormlogger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(log, level, slow),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Prepare(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Prepare registers the custom pivot models with GORM. It must run once per
// *gorm.DB before any tag association is used.
func Prepare(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Post{}, "Tags", &models.PostTag{}); err != nil {
		return fmt.Errorf("setup post_tag join table: %w", err)
	}
	if err := db.SetupJoinTable(&models.Tag{}, "Posts", &models.PostTag{}); err != nil {
		return fmt.Errorf("setup post_tag join table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
