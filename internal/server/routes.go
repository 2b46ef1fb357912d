package server

import (
	"net/http"

	"github.com/ahmethakanbesel/ranking-api/internal/job"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(jobSvc *job.Service) http.Handler {
	return newMux(jobSvc)
}

func newMux(jobSvc *job.Service) http.Handler {
	h := &handler{jobSvc: jobSvc}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /api/v1/jobs", h.submitJob)
	mux.HandleFunc("GET /api/v1/jobs", h.listJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.getJob)
	mux.HandleFunc("POST /api/v1/jobs/{id}/cancel", h.cancelJob)

	mux.HandleFunc("POST /api/generate-ranking", h.legacyGenerate)
	mux.HandleFunc("GET /api/job-status", h.legacyStatus)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
