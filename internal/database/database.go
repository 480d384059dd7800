package database

import (
	"strings"

	"github.com/pathakanu/noteminder/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLitePath is used when no database URL is configured.
const DefaultSQLitePath = "noteminder.db"

// New opens the local state database.
// When databaseURL is provided PostgreSQL is used, otherwise SQLite is used.
func New(databaseURL string, log *zap.Logger) (*gorm.DB, error) {
	if databaseURL != "" && !strings.HasPrefix(databaseURL, "file:") {
		return open(postgres.Open(databaseURL), log)
	}
	dsn := databaseURL
	if dsn == "" {
		dsn = DefaultSQLitePath
	}
	return open(sqlite.Open(dsn), log)
}

func open(dialector gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.StoredSession{}, &model.AlertRecord{}); err != nil {
		return nil, err
	}

	logBackend(db, log)
	return db, nil
}

func logBackend(db *gorm.DB, log *zap.Logger) {
	if log == nil {
		return
	}
	dialector := db.Dialector.Name()
	switch strings.ToLower(dialector) {
	case "postgres":
		log.Info("database: connected to PostgreSQL")
	case "sqlite":
		log.Info("database: using SQLite")
	default:
		log.Info("database: connected", zap.String("dialector", dialector))
	}
}
