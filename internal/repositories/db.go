package repositories

import (
	"fmt"
	"log/slog"

	"github.com/rohits-web03/collab/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDatabase opens the PostgreSQL connection and migrates the schema.
func ConnectDatabase(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	logger.Info("successfully connected to database")
	return db, nil
}

// Migrate creates the users table and its unique indexes. The indexes are
// what serialize concurrent signups, so migration failure is fatal.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
