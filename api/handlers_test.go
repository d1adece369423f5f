package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"luminastay/catalog"
	"luminastay/metrics"
	"luminastay/ml"
	"luminastay/models"
	"luminastay/services"
	"luminastay/storage"
	"luminastay/utils"
)

const validBody = `{
	"City": "Casablanca", "Neighborhood": "Anfa", "Listing_Type": "Buy", "Property_Type": "Apartment",
	"Bedrooms": 2, "Bathrooms": 1, "Size_m2": 90, "Has_Pool": 0, "Has_Garden": 0, "Is_Furnished": 1,
	"Latitude": 33.57, "Longitude": -7.59
}`

var (
	artifactOnce sync.Once
	artifact     *ml.Artifact
	artifactErr  error
)

func testArtifact(t *testing.T) *ml.Artifact {
	t.Helper()
	artifactOnce.Do(func() {
		logger := utils.NewNopLogger()
		listings := services.NewGenerator(catalog.Morocco(), 4, logger).Generate(300, 7)
		cfg := ml.DefaultTrainConfig()
		cfg.Forest.Trees = 8
		artifact, artifactErr = ml.NewTrainer(cfg, logger).Train(listings)
	})
	if artifactErr != nil {
		t.Fatal(artifactErr)
	}
	return artifact
}

type testServer struct {
	handler   http.Handler
	predictor *services.Predictor
	dataset   *storage.CSVStore
	modelPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := utils.NewNopLogger()
	cat := catalog.Morocco()
	reg := metrics.New()

	ts := &testServer{
		predictor: services.NewPredictor(logger, reg),
		dataset:   storage.NewCSVStore(filepath.Join(dir, "housing.csv"), logger),
		modelPath: filepath.Join(dir, "model.gob"),
	}
	h := &Handlers{
		Predictor: ts.predictor,
		Insights:  services.NewInsightService(cat, ts.dataset, services.NewMemoryCache(0), reg, logger),
		Cleaner:   services.NewCleaner(cat, logger),
		ModelPath: ts.modelPath,
		Log:       logger,
	}
	ts.handler = NewHandler(h, reg, []string{"*"}, logger)
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["detail"]
}

func TestHome(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Welcome") {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPredictWithoutModel(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/predict", validBody)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	if d := decodeDetail(t, rec); d != "Model not loaded" {
		t.Errorf("detail: got %q", d)
	}
}

func TestPredict(t *testing.T) {
	ts := newTestServer(t)
	a := testArtifact(t)
	ts.predictor.Swap(a)

	rec := ts.do(http.MethodPost, "/predict", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp models.PredictionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Currency != "MAD" {
		t.Errorf("currency: got %q", resp.Currency)
	}

	want, _ := a.Predict(models.Features{
		City: "Casablanca", Neighborhood: "Anfa", ListingType: models.ListingBuy, PropertyType: models.PropertyApartment,
		Bedrooms: 2, Bathrooms: 1, SizeM2: 90, IsFurnished: true, Latitude: 33.57, Longitude: -7.59,
	})
	if resp.PredictedPrice != want {
		t.Errorf("price: got %.2f, want %.2f", resp.PredictedPrice, want)
	}
}

func TestPredictRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)
	ts.predictor.Swap(testArtifact(t))

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"City":`},
		{"missing field", strings.Replace(validBody, `"Bedrooms": 2, `, "", 1)},
		{"negative size", strings.Replace(validBody, `"Size_m2": 90`, `"Size_m2": -5`, 1)},
		{"flag out of range", strings.Replace(validBody, `"Has_Pool": 0`, `"Has_Pool": 2`, 1)},
		{"unknown field", strings.Replace(validBody, `"City"`, `"Floor": 3, "City"`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/predict", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPredictStrict(t *testing.T) {
	ts := newTestServer(t)
	ts.predictor.Swap(testArtifact(t))
	mismatched := strings.Replace(validBody, `"Anfa"`, `"Agdal"`, 1)

	if rec := ts.do(http.MethodPost, "/predict", mismatched); rec.Code != http.StatusOK {
		t.Errorf("lenient: got %d, want 200", rec.Code)
	}
	rec := ts.do(http.MethodPost, "/predict?strict=true", mismatched)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("strict: got %d, want 422", rec.Code)
	}
	if d := decodeDetail(t, rec); !strings.Contains(d, "Agdal") {
		t.Errorf("detail: got %q", d)
	}
}

func TestAnalysis(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(http.MethodGet, "/analysis", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("without dataset: got %d, want 503", rec.Code)
	}

	listings := []*models.Listing{
		{Features: models.Features{City: "Rabat", Neighborhood: "Agdal", ListingType: models.ListingRent, PropertyType: models.PropertyStudio}, Price: 4000},
		{Features: models.Features{City: "Rabat", Neighborhood: "Souissi", ListingType: models.ListingRent, PropertyType: models.PropertyStudio}, Price: 5000},
	}
	if err := ts.dataset.Write(listings); err != nil {
		t.Fatal(err)
	}

	rec := ts.do(http.MethodGet, "/analysis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	var report models.MarketReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.TotalListings != 2 || report.PropertyCounts[models.PropertyStudio] != 2 {
		t.Errorf("counts: %+v", report)
	}
	if got := report.AveragePrices["Rabat"][models.ListingRent]; got != 4500 {
		t.Errorf("Rabat rent average: got %v, want 4500", got)
	}
	if got, ok := report.AveragePrices["Tangier"][models.ListingBuy]; !ok || got != 0 {
		t.Errorf("Tangier buy average: got %v (present %v), want 0", got, ok)
	}
}

func TestModelReload(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/model/reload", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("missing artifact: got %d, want 503", rec.Code)
	}

	a := testArtifact(t)
	if err := storage.SaveArtifact(ts.modelPath, a); err != nil {
		t.Fatal(err)
	}
	rec = ts.do(http.MethodPost, "/model/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp ModelResponse
	if err := json.NewDecoder(ts.do(http.MethodGet, "/model", "").Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "loaded" || resp.ID != a.ID || resp.Metrics == nil {
		t.Errorf("model: %+v", resp)
	}
	if !ts.predictor.Ready() {
		t.Error("predictor not ready after reload")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"unloaded"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	ts.do(http.MethodPost, "/predict", validBody)
	rec = ts.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "luminastay_model_loaded") {
		t.Error("metrics output lacks luminastay_model_loaded")
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}
