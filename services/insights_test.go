package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"luminastay/catalog"
	"luminastay/models"
	"luminastay/utils"
)

func listing(city string, lt models.ListingType, pt models.PropertyType, price int64) *models.Listing {
	return &models.Listing{
		Features: models.Features{City: city, ListingType: lt, PropertyType: pt},
		Price:    price,
	}
}

func sampleListings() []*models.Listing {
	return []*models.Listing{
		listing("Casablanca", models.ListingBuy, models.PropertyVilla, 4_000_000),
		listing("Casablanca", models.ListingBuy, models.PropertyApartment, 1_000_001),
		listing("Casablanca", models.ListingRent, models.PropertyStudio, 3000),
		listing("Rabat", models.ListingRent, models.PropertyApartment, 7000),
		listing("Rabat", models.ListingRent, models.PropertyApartment, 8000),
		listing("Fes", models.ListingBuy, models.PropertyLand, 900_000),
	}
}

func TestSummarizeAverages(t *testing.T) {
	r := Summarize(catalog.Morocco(), sampleListings())

	if got := r.AveragePrices["Casablanca"][models.ListingBuy]; got != 2_500_000.5 {
		t.Errorf("Casablanca Buy: got %.2f, want 2500000.50", got)
	}
	if got := r.AveragePrices["Casablanca"][models.ListingRent]; got != 3000 {
		t.Errorf("Casablanca Rent: got %.2f, want 3000", got)
	}
	if got := r.AveragePrices["Rabat"][models.ListingRent]; got != 7500 {
		t.Errorf("Rabat Rent: got %.2f, want 7500", got)
	}
}

func TestSummarizeRoundsAveragesToCents(t *testing.T) {
	r := Summarize(catalog.Morocco(), []*models.Listing{
		listing("Tangier", models.ListingRent, models.PropertyStudio, 1000),
		listing("Tangier", models.ListingRent, models.PropertyStudio, 1000),
		listing("Tangier", models.ListingRent, models.PropertyStudio, 1001),
	})
	if got := r.AveragePrices["Tangier"][models.ListingRent]; got != 1000.33 {
		t.Errorf("Tangier Rent: got %v, want 1000.33", got)
	}
}

func TestSummarizeZeroFill(t *testing.T) {
	r := Summarize(catalog.Morocco(), sampleListings())

	for _, city := range []string{"Marrakech", "Tangier"} {
		byType, ok := r.AveragePrices[city]
		if !ok {
			t.Fatalf("%s omitted from report", city)
		}
		for _, lt := range models.ListingTypes {
			v, ok := byType[lt]
			if !ok || v != 0 {
				t.Errorf("%s %s: got %v (present %v), want 0", city, lt, v, ok)
			}
		}
	}
	if v, ok := r.AveragePrices["Rabat"][models.ListingBuy]; !ok || v != 0 {
		t.Errorf("Rabat Buy: got %v (present %v), want 0", v, ok)
	}
	if _, ok := r.AveragePrices["Fes"]; ok {
		t.Error("cities outside the catalog should not get an average")
	}
}

func TestSummarizeCounts(t *testing.T) {
	r := Summarize(catalog.Morocco(), sampleListings())

	if r.TotalListings != 6 {
		t.Errorf("TotalListings: got %d, want 6", r.TotalListings)
	}
	if r.PropertyCounts[models.PropertyApartment] != 3 {
		t.Errorf("Apartment count: got %d, want 3", r.PropertyCounts[models.PropertyApartment])
	}
	if r.PropertyCounts[models.PropertyLand] != 1 {
		t.Errorf("Land count: got %d, want 1", r.PropertyCounts[models.PropertyLand])
	}
	if r.ListingsByCity["Casablanca"] != 3 {
		t.Errorf("Casablanca count: got %d, want 3", r.ListingsByCity["Casablanca"])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	r := Summarize(catalog.Morocco(), nil)
	if r.TotalListings != 0 || len(r.AveragePrices) != 4 {
		t.Errorf("unexpected empty report: %+v", r)
	}
}

type fakeStore struct {
	mu       sync.Mutex
	listings []*models.Listing
	version  int
	reads    int64
	err      error
}

func (s *fakeStore) Write(l []*models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = l
	s.version++
	return nil
}

func (s *fakeStore) ReadAll() ([]*models.Listing, error) {
	atomic.AddInt64(&s.reads, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings, s.err
}

func (s *fakeStore) Version() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprint(s.version), nil
}

func (s *fakeStore) Close() error { return nil }

type countingObserver struct{ hits, misses int64 }

func (o *countingObserver) CacheHit()  { atomic.AddInt64(&o.hits, 1) }
func (o *countingObserver) CacheMiss() { atomic.AddInt64(&o.misses, 1) }

func TestInsightServiceCachesPerVersion(t *testing.T) {
	store := &fakeStore{listings: sampleListings()}
	obs := &countingObserver{}
	svc := NewInsightService(catalog.Morocco(), store, NewMemoryCache(0), obs, utils.NewNopLogger())
	ctx := context.Background()

	first, err := svc.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := svc.Report(ctx)
	if first != second {
		t.Error("second call should return the cached snapshot")
	}
	if store.reads != 1 {
		t.Errorf("reads: got %d, want 1", store.reads)
	}

	_ = store.Write(sampleListings()[:2])
	third, _ := svc.Report(ctx)
	if third.TotalListings != 2 {
		t.Errorf("report not invalidated after dataset change: total %d", third.TotalListings)
	}
	if store.reads != 2 {
		t.Errorf("reads after change: got %d, want 2", store.reads)
	}
	if obs.hits != 1 || obs.misses != 2 {
		t.Errorf("observer: hits %d misses %d, want 1 and 2", obs.hits, obs.misses)
	}
}

func TestInsightServiceConcurrentCallersShareOneRead(t *testing.T) {
	store := &fakeStore{listings: sampleListings()}
	svc := NewInsightService(catalog.Morocco(), store, NewMemoryCache(0), nil, utils.NewNopLogger())

	reports := make([]*models.MarketReport, 32)
	utils.ParallelFor(utils.NewWorkerPool(16), len(reports), func(i int) {
		r, err := svc.Report(context.Background())
		if err != nil {
			t.Error(err)
		}
		reports[i] = r
	})

	if store.reads != 1 {
		t.Errorf("reads: got %d, want 1", store.reads)
	}
	for _, r := range reports[1:] {
		if r != reports[0] {
			t.Fatal("callers received different snapshots")
		}
	}
}

func TestInsightServiceDatasetUnavailable(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("%w: gone", models.ErrDatasetUnavailable)}
	svc := NewInsightService(catalog.Morocco(), store, NewMemoryCache(0), nil, utils.NewNopLogger())

	_, err := svc.Report(context.Background())
	if !errors.Is(err, models.ErrDatasetUnavailable) {
		t.Errorf("got %v, want ErrDatasetUnavailable", err)
	}
}

func TestFormatReportListsEveryCity(t *testing.T) {
	cat := catalog.Morocco()
	out := FormatReport(cat, Summarize(cat, sampleListings()))
	for _, name := range cat.Names() {
		if !strings.Contains(out, name) {
			t.Errorf("report does not mention %s", name)
		}
	}
}
