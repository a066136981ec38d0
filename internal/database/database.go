package database

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/config"
	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

// Models lists every table this service owns, in migration order.
func Models() []any {
	return []any{
		&visitors.Visitor{},
		&sessions.Session{},
		&sessions.PageView{},
	}
}

// DBManager adds migrations on top of cartridge's sqlite.Manager.
type DBManager struct {
	*sqlite.Manager
	logger *slog.Logger
}

// NewDBManager creates a new database manager using cartridge's sqlite.Manager.
// Writes use BEGIN IMMEDIATE so concurrent ingestion waits on the busy
// timeout instead of failing on lock upgrade.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	sqliteCfg := sqlite.Config{
		Path:         cfg.GetDatabasePath(),
		MaxOpenConns: cfg.GetMaxOpenConns(),
		MaxIdleConns: cfg.GetMaxIdleConns(),
		Logger:       logger,
		EnableWAL:    true,
		TxImmediate:  true,
		BusyTimeout:  5000,
	}

	return &DBManager{
		Manager: sqlite.NewManager(sqliteCfg),
		logger:  logger,
	}
}

// Init makes sure the storage directory exists and connects.
func (dm *DBManager) Init(cfg *config.Config) error {
	if dir := filepath.Dir(cfg.GetDatabasePath()); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	_, err := dm.Manager.Connect()
	return err
}

// MigrateDatabase creates or updates the visitors, sessions and page_views
// tables, then the partial index that allows one open session per visitor.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(Models()...); err != nil {
			return err
		}
		return sessions.EnsureOpenSessionIndex(tx)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}
