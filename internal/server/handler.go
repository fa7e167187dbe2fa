package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ahmethakanbesel/riksbank-cache/internal/fetcher"
	"github.com/ahmethakanbesel/riksbank-cache/internal/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
)

const dateFormat = time.DateOnly

type handler struct {
	fetcher *fetcher.Service
	jobs    *job.Service
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listCurrencies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"currencies": h.fetcher.Currencies(),
		"quote":      rate.Quote,
	})
}

func (h *handler) getRate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse(dateFormat, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	currency, err := rate.ParseCurrency(r.PathValue("currency"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.fetcher.Rate(r.Context(), fetcher.RateRequest{Currency: currency, Date: date})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) enqueueFetch(w http.ResponseWriter, r *http.Request) {
	var req fetcher.EnqueueRequest
	for name, dst := range map[string]*time.Time{"from": &req.From, "to": &req.To} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name+" format, expected YYYY-MM-DD")
			return
		}
		*dst = t
	}

	resp, err := h.fetcher.Enqueue(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	status := http.StatusAccepted
	if resp.Cached {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	j, err := h.jobs.Get(r.Context(), job.GetJobRequest{ID: id})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	req := job.ListJobsRequest{
		Status: job.Status(r.URL.Query().Get("status")),
	}

	jobs, err := h.jobs.List(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.Job{}
	}

	writeJSON(w, http.StatusOK, jobs)
}
