package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"luminastay/models"
	"luminastay/utils"
)

// Columns is the header of the dataset file, in order.
var Columns = []string{
	"City", "Neighborhood", "Listing_Type", "Property_Type", "Bedrooms", "Bathrooms", "Size_m2",
	"Has_Pool", "Has_Garden", "Is_Furnished", "Latitude", "Longitude", "Price_MAD",
}

// CSVStore keeps the dataset in a single CSV file.
// It is safe for concurrent use.
type CSVStore struct {
	mu     sync.RWMutex
	path   string
	logger *utils.Logger
}

// NewCSVStore returns a store for the file at path. The file does not need
// to exist yet.
func NewCSVStore(path string, logger *utils.Logger) *CSVStore {
	return &CSVStore{path: path, logger: logger}
}

// Path returns the dataset file location.
func (c *CSVStore) Path() string {
	return c.path
}

// Write creates (or truncates) the file and writes the header and every
// listing. Intermediate directories are created automatically.
func (c *CSVStore) Write(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	tmp := c.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", tmp, err)
	}
	defer os.Remove(tmp)

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, l := range listings {
		if err := w.Write(formatRow(l)); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csv: close: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("csv: replace %q: %w", c.path, err)
	}
	return nil
}

// ReadAll parses the whole file. Rows with malformed values are logged and
// skipped; a missing or unreadable file yields models.ErrDatasetUnavailable.
func (c *CSVStore) ReadAll() ([]*models.Listing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", models.ErrDatasetUnavailable, c.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header of %q: %v", models.ErrDatasetUnavailable, c.path, err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDatasetUnavailable, err)
	}

	var listings []*models.Listing
	skipped := 0
	for row := 1; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				c.logger.Warn("[storage] Skipping row %d: %v", row, err)
				skipped++
				continue
			}
			return nil, fmt.Errorf("%w: read %q: %v", models.ErrDatasetUnavailable, c.path, err)
		}

		l, err := parseRow(record, cols)
		if err != nil {
			var encErr *models.EncodingError
			if errors.As(err, &encErr) {
				encErr.Row = row
			}
			c.logger.Warn("[storage] Skipping row: %v", err)
			skipped++
			continue
		}
		listings = append(listings, l)
	}

	c.logger.Debug("[storage] Read %d listings from %s (skipped %d)", len(listings), c.path, skipped)
	return listings, nil
}

// Version is derived from the file size and modification time.
func (c *CSVStore) Version() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, err := os.Stat(c.path)
	if err != nil {
		return "", fmt.Errorf("%w: stat %q: %v", models.ErrDatasetUnavailable, c.path, err)
	}
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()), nil
}

// Close is a no-op; the file is only open during Write and ReadAll.
func (c *CSVStore) Close() error {
	return nil
}

func formatRow(l *models.Listing) []string {
	return []string{
		l.City,
		l.Neighborhood,
		string(l.ListingType),
		string(l.PropertyType),
		strconv.Itoa(l.Bedrooms),
		strconv.Itoa(l.Bathrooms),
		strconv.Itoa(l.SizeM2),
		boolDigit(l.HasPool),
		boolDigit(l.HasGarden),
		boolDigit(l.IsFurnished),
		strconv.FormatFloat(l.Latitude, 'f', 5, 64),
		strconv.FormatFloat(l.Longitude, 'f', 5, 64),
		strconv.FormatInt(l.Price, 10),
	}
}

// columnIndex maps each known column to its position. Listing_Type may be
// absent from older datasets; every other column is required.
func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	for _, name := range Columns {
		if _, ok := cols[name]; !ok && name != "Listing_Type" {
			return nil, fmt.Errorf("csv: missing column %q", name)
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (*models.Listing, error) {
	p := rowParser{record: record, cols: cols}
	l := &models.Listing{
		Features: models.Features{
			City:         p.str("City"),
			Neighborhood: p.str("Neighborhood"),
			ListingType:  models.ListingType(p.str("Listing_Type")),
			PropertyType: models.PropertyType(p.str("Property_Type")),
			Bedrooms:     p.integer("Bedrooms"),
			Bathrooms:    p.integer("Bathrooms"),
			SizeM2:       p.integer("Size_m2"),
			HasPool:      p.flag("Has_Pool"),
			HasGarden:    p.flag("Has_Garden"),
			IsFurnished:  p.flag("Is_Furnished"),
			Latitude:     p.number("Latitude"),
			Longitude:    p.number("Longitude"),
		},
		Price: int64(p.integer("Price_MAD")),
	}
	if p.err != nil {
		return nil, p.err
	}
	return l, nil
}

// rowParser keeps the first error so a row is parsed in one pass.
type rowParser struct {
	record []string
	cols   map[string]int
	err    error
}

func (p *rowParser) raw(name string) (string, bool) {
	i, ok := p.cols[name]
	if !ok {
		return "", false
	}
	if i >= len(p.record) {
		p.fail(name, "", "missing value")
		return "", false
	}
	return p.record[i], true
}

func (p *rowParser) str(name string) string {
	v, _ := p.raw(name)
	return v
}

func (p *rowParser) integer(name string) int {
	v, ok := p.raw(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, v, "not an integer")
	}
	return n
}

func (p *rowParser) number(name string) float64 {
	v, ok := p.raw(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(name, v, "not a number")
	}
	return f
}

func (p *rowParser) flag(name string) bool {
	v, ok := p.raw(name)
	if !ok {
		return false
	}
	switch v {
	case "0":
		return false
	case "1":
		return true
	}
	p.fail(name, v, "expected 0 or 1")
	return false
}

func (p *rowParser) fail(field, value, reason string) {
	if p.err == nil {
		p.err = &models.EncodingError{Field: field, Value: value, Reason: reason}
	}
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
