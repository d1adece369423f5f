package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"luminastay/catalog"
	"luminastay/ml"
	"luminastay/models"
	"luminastay/storage"
	"luminastay/utils"
)

// Summarize reduces a dataset to market statistics. Every catalog city gets
// an average for both listing types, rounded half away from zero to two
// decimals; a pair with no listings reports 0.
// Listings from cities outside the catalog only count toward the totals.
func Summarize(cat *catalog.Catalog, listings []*models.Listing) *models.MarketReport {
	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[string]map[models.ListingType]*acc)
	for _, name := range cat.Names() {
		sums[name] = make(map[models.ListingType]*acc, len(models.ListingTypes))
		for _, lt := range models.ListingTypes {
			sums[name][lt] = &acc{}
		}
	}

	report := &models.MarketReport{
		AveragePrices:  make(map[string]map[models.ListingType]float64, len(sums)),
		PropertyCounts: make(map[models.PropertyType]int),
		ListingsByCity: make(map[string]int),
		TotalListings:  len(listings),
	}

	for _, l := range listings {
		report.PropertyCounts[l.PropertyType]++
		report.ListingsByCity[l.City]++
		if a, ok := sums[l.City][l.ListingType]; ok {
			a.sum += float64(l.Price)
			a.count++
		}
	}

	for city, byType := range sums {
		report.AveragePrices[city] = make(map[models.ListingType]float64, len(byType))
		for lt, a := range byType {
			avg := 0.0
			if a.count > 0 {
				avg = ml.Round2(a.sum / float64(a.count))
			}
			report.AveragePrices[city][lt] = avg
		}
	}
	return report
}

// CacheObserver is notified of report cache hits and misses.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// InsightService serves market reports for the current dataset, recomputing
// only when the dataset version changes.
type InsightService struct {
	catalog *catalog.Catalog
	store   storage.DatasetStore
	cache   ReportCache
	obs     CacheObserver
	logger  *utils.Logger

	mu sync.Mutex
}

// NewInsightService creates an InsightService. obs may be nil.
func NewInsightService(cat *catalog.Catalog, store storage.DatasetStore, cache ReportCache, obs CacheObserver, logger *utils.Logger) *InsightService {
	return &InsightService{catalog: cat, store: store, cache: cache, obs: obs, logger: logger}
}

// Report returns the report for the current dataset version. Concurrent
// callers that miss the cache wait for a single computation and share it.
func (s *InsightService) Report(ctx context.Context) (*models.MarketReport, error) {
	version, err := s.store.Version()
	if err != nil {
		return nil, err
	}
	key := "analytics:" + version

	if r, ok := s.cache.Get(ctx, key); ok {
		s.observe(true)
		return r, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.cache.Get(ctx, key); ok {
		s.observe(true)
		return r, nil
	}
	s.observe(false)

	listings, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	report := Summarize(s.catalog, listings)
	s.cache.Set(ctx, key, report)

	s.logger.Info("[analytics] Computed report over %d listings (dataset %s)", report.TotalListings, version)
	return report, nil
}

func (s *InsightService) observe(hit bool) {
	if s.obs == nil {
		return
	}
	if hit {
		s.obs.CacheHit()
	} else {
		s.obs.CacheMiss()
	}
}

// Print writes a human-readable report to stdout.
func (s *InsightService) Print(r *models.MarketReport) {
	fmt.Print(FormatReport(s.catalog, r))
}

// FormatReport renders the report as the console summary.
func FormatReport(cat *catalog.Catalog, r *models.MarketReport) string {
	var b strings.Builder
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(&b, "\n%s\n  MOROCCO HOUSING MARKET\n%s\n\n", sep, sep)

	fmt.Fprintf(&b, "  Overview\n  %s\n", thin)
	fmt.Fprintf(&b, "  Total listings : %d\n\n", r.TotalListings)

	fmt.Fprintf(&b, "  Average Prices (MAD)\n  %s\n", thin)
	fmt.Fprintf(&b, "  %-14s %14s %18s\n", "City", "Rent/month", "Buy")
	for _, city := range cat.Names() {
		byType := r.AveragePrices[city]
		fmt.Fprintf(&b, "  %-14s %14.2f %18.2f\n", city, byType[models.ListingRent], byType[models.ListingBuy])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  Listings by Property Type\n  %s\n", thin)
	type typeCount struct {
		t     models.PropertyType
		count int
	}
	var counts []typeCount
	for t, n := range r.PropertyCounts {
		counts = append(counts, typeCount{t, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].t < counts[j].t
	})
	for _, tc := range counts {
		fmt.Fprintf(&b, "  %-12s %6d\n", tc.t, tc.count)
	}

	fmt.Fprintf(&b, "\n%s\n\n", sep)
	return b.String()
}
