package storage

import "luminastay/models"

// DatasetStore is the interface any listing dataset backend must satisfy.
type DatasetStore interface {
	// Write replaces the stored dataset.
	Write(listings []*models.Listing) error
	// ReadAll returns every readable listing. Malformed records are skipped.
	ReadAll() ([]*models.Listing, error)
	// Version changes whenever the stored dataset changes.
	Version() (string, error)
	Close() error
}
