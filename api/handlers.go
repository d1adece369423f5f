package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"luminastay/ml"
	"luminastay/models"
	"luminastay/services"
	"luminastay/utils"
)

// validate checks request bodies against their struct tags.
var validate = validator.New()

// PredictRequest carries every listing attribute except the price. Numeric
// fields are pointers so a missing field is told apart from a zero.
type PredictRequest struct {
	City         string   `json:"City" validate:"required"`
	Neighborhood string   `json:"Neighborhood" validate:"required"`
	ListingType  string   `json:"Listing_Type" validate:"required"`
	PropertyType string   `json:"Property_Type" validate:"required"`
	Bedrooms     *int     `json:"Bedrooms" validate:"required,gte=0"`
	Bathrooms    *int     `json:"Bathrooms" validate:"required,gte=0"`
	SizeM2       *int     `json:"Size_m2" validate:"required,gt=0"`
	HasPool      *int     `json:"Has_Pool" validate:"required,oneof=0 1"`
	HasGarden    *int     `json:"Has_Garden" validate:"required,oneof=0 1"`
	IsFurnished  *int     `json:"Is_Furnished" validate:"required,oneof=0 1"`
	Latitude     *float64 `json:"Latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64 `json:"Longitude" validate:"required,gte=-180,lte=180"`
}

// Features converts a validated request.
func (r *PredictRequest) Features() models.Features {
	return models.Features{
		City:         r.City,
		Neighborhood: r.Neighborhood,
		ListingType:  models.ListingType(r.ListingType),
		PropertyType: models.PropertyType(r.PropertyType),
		Bedrooms:     *r.Bedrooms,
		Bathrooms:    *r.Bathrooms,
		SizeM2:       *r.SizeM2,
		HasPool:      *r.HasPool == 1,
		HasGarden:    *r.HasGarden == 1,
		IsFurnished:  *r.IsFurnished == 1,
		Latitude:     *r.Latitude,
		Longitude:    *r.Longitude,
	}
}

// ModelResponse describes the serving model.
type ModelResponse struct {
	State     string      `json:"state"`
	ID        string      `json:"id,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Metrics   *ml.Metrics `json:"metrics,omitempty"`
}

// Handlers holds the dependencies of the HTTP endpoints.
type Handlers struct {
	Predictor *services.Predictor
	Insights  *services.InsightService
	Cleaner   *services.Cleaner
	ModelPath string
	Log       *utils.Logger
}

func (h *Handlers) Home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to LuminaStay API (Morocco Edition)"})
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  string(h.Predictor.Status().State),
	})
}

// Predict answers with 503 while no model is loaded. With ?strict=true the
// listing must also satisfy the catalog and property-type invariants.
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	if !h.Predictor.Ready() {
		writeError(w, http.StatusServiceUnavailable, "Model not loaded")
		return
	}

	var req PredictRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	features := req.Features()
	h.Cleaner.Normalize(&features)

	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		if problems := h.Cleaner.Violations(features); len(problems) > 0 {
			writeError(w, http.StatusUnprocessableEntity, strings.Join(problems, "; "))
			return
		}
	}

	price, err := h.Predictor.Predict(features)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PredictionResponse{PredictedPrice: price, Currency: models.Currency})
}

func (h *Handlers) Analysis(w http.ResponseWriter, r *http.Request) {
	report, err := h.Insights.Report(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) Model(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modelResponse(h.Predictor.Status()))
}

// Reload swaps in the artifact currently stored at the model path.
func (h *Handlers) Reload(w http.ResponseWriter, _ *http.Request) {
	if err := h.Predictor.Load(h.ModelPath); err != nil {
		resp := modelResponse(h.Predictor.Status())
		resp.Reason = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse(h.Predictor.Status()))
}

func modelResponse(s *services.ModelStatus) ModelResponse {
	resp := ModelResponse{State: string(s.State), Reason: s.Reason}
	if s.Artifact != nil {
		m := s.Artifact.Metrics
		resp.ID = s.Artifact.ID
		resp.CreatedAt = s.Artifact.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.Metrics = &m
	}
	return resp
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var encErr *models.EncodingError
	switch {
	case errors.Is(err, models.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Model not loaded")
	case errors.Is(err, models.ErrDatasetUnavailable):
		h.Log.Error("[api] %v", err)
		writeError(w, http.StatusServiceUnavailable, "Dataset not available")
	case errors.As(err, &encErr):
		writeError(w, http.StatusBadRequest, "Prediction error: "+encErr.Error())
	default:
		h.Log.Error("[api] %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
