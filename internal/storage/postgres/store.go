// Package postgres implements storage.Store on PostgreSQL. Guarded updates are
// single conditional statements so concurrent transitions never interleave
// inside a read-modify-write.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// NewStore opens and pings the database at dataSourceName.
func NewStore(dataSourceName string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info("connected to postgres")
	return &Store{db: db, log: log}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
