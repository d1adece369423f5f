package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"luminastay/models"
	"luminastay/utils"
)

const listingColumns = 13

// PostgresStore persists the listing dataset to PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, retrying the first
// ping, runs schema migrations, and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string, maxRetries int, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: maxRetries, BaseDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{db: db, logger: logger}
	if err := ps.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS housing_listings (
			id            SERIAL PRIMARY KEY,
			city          TEXT             NOT NULL,
			neighborhood  TEXT             NOT NULL,
			listing_type  VARCHAR(8)       NOT NULL,
			property_type VARCHAR(16)      NOT NULL,
			bedrooms      INTEGER          NOT NULL DEFAULT 0,
			bathrooms     INTEGER          NOT NULL DEFAULT 0,
			size_m2       INTEGER          NOT NULL,
			has_pool      BOOLEAN          NOT NULL DEFAULT FALSE,
			has_garden    BOOLEAN          NOT NULL DEFAULT FALSE,
			is_furnished  BOOLEAN          NOT NULL DEFAULT FALSE,
			latitude      DOUBLE PRECISION NOT NULL,
			longitude     DOUBLE PRECISION NOT NULL,
			price_mad     BIGINT           NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_housing_city_type ON housing_listings(city, listing_type);
		CREATE INDEX IF NOT EXISTS idx_housing_property  ON housing_listings(property_type);
	`)
	return err
}

// Write replaces the table contents with listings in one transaction.
func (ps *PostgresStore) Write(listings []*models.Listing) error {
	tx, err := ps.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM housing_listings"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	const batchSize = 500
	for i := 0; i < len(listings); i += batchSize {
		end := min(i+batchSize, len(listings))
		query, args := insertBatchQuery(listings[i:end])
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	ps.logger.Info("[storage] Stored %d listings in PostgreSQL (table: housing_listings)", len(listings))
	return nil
}

func insertBatchQuery(batch []*models.Listing) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*listingColumns)

	for idx, l := range batch {
		base := idx * listingColumns
		placeholders := make([]string, listingColumns)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.City, l.Neighborhood, string(l.ListingType), string(l.PropertyType),
			l.Bedrooms, l.Bathrooms, l.SizeM2, l.HasPool, l.HasGarden, l.IsFurnished,
			l.Latitude, l.Longitude, l.Price)
	}

	query := fmt.Sprintf(`
		INSERT INTO housing_listings (city, neighborhood, listing_type, property_type,
			bedrooms, bathrooms, size_m2, has_pool, has_garden, is_furnished,
			latitude, longitude, price_mad)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// ReadAll retrieves all stored listings in insertion order.
func (ps *PostgresStore) ReadAll() ([]*models.Listing, error) {
	rows, err := ps.db.Query(`
		SELECT city, neighborhood, listing_type, property_type, bedrooms, bathrooms, size_m2,
		       has_pool, has_garden, is_furnished, latitude, longitude, price_mad
		FROM housing_listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: fetch all: %v", models.ErrDatasetUnavailable, err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var listingType, propertyType string
		if err := rows.Scan(
			&l.City, &l.Neighborhood, &listingType, &propertyType, &l.Bedrooms, &l.Bathrooms, &l.SizeM2,
			&l.HasPool, &l.HasGarden, &l.IsFurnished, &l.Latitude, &l.Longitude, &l.Price,
		); err != nil {
			ps.logger.Warn("[storage] Skipping unreadable row: %v", err)
			continue
		}
		l.ListingType = models.ListingType(listingType)
		l.PropertyType = models.PropertyType(propertyType)
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: postgres: iterate: %v", models.ErrDatasetUnavailable, err)
	}
	return listings, nil
}

// Version combines the row count with the highest id; both change on Write.
func (ps *PostgresStore) Version() (string, error) {
	var count, maxID int64
	err := ps.db.QueryRow(`SELECT COUNT(*), COALESCE(MAX(id), 0) FROM housing_listings`).Scan(&count, &maxID)
	if err != nil {
		return "", fmt.Errorf("%w: postgres: version: %v", models.ErrDatasetUnavailable, err)
	}
	return fmt.Sprintf("pg-%d-%d", count, maxID), nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
