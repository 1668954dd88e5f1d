// Package router configures HTTP routes for the predictor's HTTP API.
//
// Routes configured:
//   - POST /predict - Run the grade cascade for one student
//   - GET /health - Liveness with the loaded stage names
//   - GET /healthz - Plain health check (returns 200 OK)
//   - GET /readyz - Readiness; fails while the artifact source is unreachable
//   - GET /metrics - Prometheus metrics endpoint
//
// Every route is wrapped in recovery, access logging and CORS middleware.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/gradecast/pkg/api"
	"github.com/HatiCode/gradecast/pkg/httpx"
	"github.com/HatiCode/gradecast/pkg/predictor"
)

// maxBodyBytes bounds the size of a prediction request body.
const maxBodyBytes = 64 << 10

// Options carries the optional pieces of the route table.
type Options struct {
	// Gatherer backs /metrics. Nil falls back to the default registry.
	Gatherer prometheus.Gatherer

	// Ready is polled by /readyz. Nil means always ready.
	Ready func() error

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string
}

// SetupRoutes configures HTTP endpoints for the predictor.
func SetupRoutes(svc *predictor.Service, opts Options, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/predict", handlePredict(svc, logger))

	mux.Handle("/health", httpx.JSONHandler(func() any { return svc.Health() }))
	mux.Handle("/healthz", httpx.HealthHandler())

	ready := opts.Ready
	if ready == nil {
		ready = func() error { return nil }
	}
	mux.Handle("/readyz", httpx.HealthHandlerWithCheck(ready))

	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return httpx.Chain(mux,
		httpx.RecoveryMiddleware(logger),
		httpx.LoggingMiddleware(logger),
		httpx.CORSMiddleware(opts.AllowedOrigins),
	)
}

// handlePredict returns a handler for POST /predict.
func handlePredict(svc *predictor.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST, OPTIONS")
			writeResponse(w, logger, http.StatusMethodNotAllowed, api.PredictResponse{Error: "method not allowed"})
			return
		}

		var req api.PredictRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeResponse(w, logger, http.StatusBadRequest, api.Failure(err))
			return
		}

		resp, err := svc.Predict(r.Context(), req)
		if err != nil {
			status := http.StatusInternalServerError
			if predictor.IsInvalid(err) {
				status = http.StatusBadRequest
			} else {
				logger.Error("prediction failed",
					"request_id", httpx.RequestID(r.Context()),
					"error", err,
				)
			}
			writeResponse(w, logger, status, resp)
			return
		}

		writeResponse(w, logger, http.StatusOK, resp)
	}
}

func decodeJSON(body io.ReadCloser, v any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("invalid request body: empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeResponse(w http.ResponseWriter, logger *slog.Logger, status int, resp api.PredictResponse) {
	if err := httpx.WriteJSON(w, status, resp); err != nil {
		logger.Error("failed to write JSON response", "error", err)
	}
}
