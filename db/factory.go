package db

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"movieweb/config"
	"movieweb/metadata"
)

// New creates a DataManager for cfg.StoreBackend.
//
// Supported backends:
//
//	"json"   - the whole document in cfg.DataFilePath (default)
//	"sqlite" - SQLite database next to cfg.DataFilePath (".json" becomes ".db")
func New(cfg *config.Config, fetcher metadata.Fetcher, log *zap.Logger) (DataManager, error) {
	switch cfg.StoreBackend {
	case config.BackendJSON, "":
		return NewJSONStore(cfg, fetcher, log)
	case config.BackendSQLite:
		return NewSQLiteStore(SQLitePath(cfg.DataFilePath), cfg, fetcher, log)
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite)", cfg.StoreBackend)
	}
}

// SQLitePath maps the configured data file to the SQLite database path.
func SQLitePath(dataFile string) string {
	if strings.EqualFold(filepath.Ext(dataFile), ".json") {
		return strings.TrimSuffix(dataFile, filepath.Ext(dataFile)) + ".db"
	}
	return dataFile
}
