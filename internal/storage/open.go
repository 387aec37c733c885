package storage

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/prtimeline/internal/config"
	perrors "github.com/rohankatakam/prtimeline/internal/errors"
)

// Open opens the raw store selected by cfg.Type
func Open(cfg config.StorageConfig, logger logrus.FieldLogger) (RawStore, error) {
	var (
		store RawStore
		err   error
	)
	switch cfg.Type {
	case config.StorageSQLite, "":
		var s *SQLiteStore
		if s, err = NewSQLiteStore(cfg.LocalPath, logger); err == nil {
			store = s
		}
	case config.StorageBolt:
		var s *BoltStore
		if s, err = NewBoltStore(cfg.LocalPath, logger); err == nil {
			store = s
		}
	default:
		err = perrors.ConfigErrorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// OpenSink returns the dataset sink: Postgres when a DSN is configured, else the
// raw store itself when it can hold datasets, else nil. A sink shared with raw
// is closed together with raw.
func OpenSink(cfg config.StorageConfig, raw RawStore, logger logrus.FieldLogger) (DatasetSink, error) {
	if cfg.PostgresDSN != "" {
		driver := cfg.PostgresDriver
		if driver == "" {
			driver = config.DriverPgx
		}
		store, err := NewPostgresStore(driver, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if sink, ok := raw.(DatasetSink); ok {
		return sharedSink{sink}, nil
	}
	return nil, nil
}

type sharedSink struct {
	DatasetSink
}

func (sharedSink) Close() error { return nil }

// SQLDB returns the database behind a SQL dataset sink, or nil for other sinks
func SQLDB(sink DatasetSink) *sqlx.DB {
	switch s := sink.(type) {
	case *SQLiteStore:
		return s.db
	case *PostgresStore:
		return s.db
	case sharedSink:
		return SQLDB(s.DatasetSink)
	}
	return nil
}
