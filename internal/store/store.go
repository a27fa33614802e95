// Package store provides data access layer interfaces and implementations.
// This package abstracts database operations to decouple the export pipeline
// from the database implementation.
package store

import (
	"errors"

	"gorm.io/gorm"
)

// Store aggregates all data store interfaces.
type Store interface {
	Report() ReportStore
	ExportJob() ExportJobStore

	// DB returns the underlying database connection for advanced operations.
	DB() *gorm.DB

	// Transaction executes operations within a database transaction.
	Transaction(fn func(Store) error) error
}

// gormStore implements Store interface using GORM.
type gormStore struct {
	db             *gorm.DB
	reportStore    ReportStore
	exportJobStore ExportJobStore
}

// NewStore creates a new Store instance with GORM backend.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:             db,
		reportStore:    newReportStore(db),
		exportJobStore: newExportJobStore(db),
	}
}

func (s *gormStore) Report() ReportStore {
	return s.reportStore
}

func (s *gormStore) ExportJob() ExportJobStore {
	return s.exportJobStore
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// IsNotFound reports whether err means the requested row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
