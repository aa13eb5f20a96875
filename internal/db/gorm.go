package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/habiliai/docstore/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSqlite opens (creating if needed) the sqlite database at path in WAL
// mode with foreign keys enforced.
func OpenSqlite(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}

	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on", path)),
		&gorm.Config{Logger: logger.Discard},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %s", path)
	}
	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}

	return nil
}
