// Package pgstore keeps street records, POIs and simulation results in PostGIS
package pgstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/LdDl/bikenet"
)

// Store implements bikenet.RecordSource, bikenet.POISource and bikenet.ResultWriter
type Store struct {
	db            *sqlx.DB
	logger        *zap.Logger
	snapThreshold float64
}

// StoreOption configures Store
type StoreOption func(*Store)

// WithSnapThreshold sets max distance in meters between raw POI and its street node
func WithSnapThreshold(threshold float64) StoreOption {
	return func(store *Store) {
		store.snapThreshold = threshold
	}
}

// WithLogger sets logger
func WithLogger(logger *zap.Logger) StoreOption {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// New connects to PostgreSQL
func New(cfg bikenet.DatabaseConfig, options ...StoreOption) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "Can't connect to database")
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't ping database")
	}

	store := NewWithDB(db, options...)
	store.logger.Info("PostgreSQL connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
	)
	return store, nil
}

// NewWithDB wraps existing connection
func NewWithDB(db *sqlx.DB, options ...StoreOption) *Store {
	store := &Store{
		db:            db,
		logger:        zap.NewNop(),
		snapThreshold: bikenet.DEFAULT_SNAP_THRESHOLD,
	}
	for _, o := range options {
		o(store)
	}
	return store
}

// Close closes connection pool
func (store *Store) Close() error {
	store.logger.Info("Closing PostgreSQL connection")
	return store.db.Close()
}

// Migrate creates tables when absent
func (store *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := store.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "Can't apply schema")
		}
	}
	return nil
}
