package server

import (
	"net/http"

	"github.com/ahmethakanbesel/riksbank-cache/internal/fetcher"
	"github.com/ahmethakanbesel/riksbank-cache/internal/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/metrics"
)

// Deps are the services behind the HTTP API. Metrics is optional.
type Deps struct {
	Fetcher *fetcher.Service
	Jobs    *job.Service
	Metrics *metrics.Metrics
}

// NewHandler creates the full HTTP handler with routes and middleware.
func NewHandler(deps Deps) http.Handler {
	return newMux(deps)
}

func newMux(deps Deps) http.Handler {
	h := &handler{
		fetcher: deps.Fetcher,
		jobs:    deps.Jobs,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/currencies", h.listCurrencies)
	mux.HandleFunc("GET /api/v1/rates/{currency}", h.getRate)
	mux.HandleFunc("POST /api/v1/fetch", h.enqueueFetch)
	mux.HandleFunc("GET /api/v1/jobs", h.listJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.getJob)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	// recovery -> requestID -> instrument -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	if deps.Metrics != nil {
		handler = instrument(deps.Metrics, mux, handler)
	}
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
