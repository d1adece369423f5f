package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"luminastay/metrics"
	"luminastay/utils"
)

// RegisterRoutes wires the endpoints onto r.
func RegisterRoutes(r *mux.Router, h *Handlers, reg *metrics.Registry) {
	r.HandleFunc("/", h.Home).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/predict", h.Predict).Methods(http.MethodPost)
	r.HandleFunc("/analysis", h.Analysis).Methods(http.MethodGet)
	r.HandleFunc("/model", h.Model).Methods(http.MethodGet)
	r.HandleFunc("/model/reload", h.Reload).Methods(http.MethodPost)
	if reg != nil {
		r.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	}
}

// NewHandler builds the router and wraps it with CORS and access logging.
func NewHandler(h *Handlers, reg *metrics.Registry, origins []string, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()
	RegisterRoutes(r, h, reg)

	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.LoggingHandler(logger.Writer(), cors(r))
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *utils.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[api] Listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("[api] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
