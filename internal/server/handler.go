package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ahmethakanbesel/ranking-api/internal/apperror"
	"github.com/ahmethakanbesel/ranking-api/internal/job"
)

const maxBodyBytes = 1 << 20

type handler struct {
	jobSvc *job.Service
}

type submitBody struct {
	Niche       string `json:"niche"`
	ItemCount   int    `json:"itemCount"`
	VideoCount  int    `json:"videoCount"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AutoPublish bool   `json:"autoPublish"`
}

func (b submitBody) request() job.SubmitRequest {
	count := b.ItemCount
	if count == 0 {
		count = b.VideoCount
	}
	return job.SubmitRequest{
		Niche:       b.Niche,
		ItemCount:   count,
		Title:       b.Title,
		Description: b.Description,
		AutoPublish: b.AutoPublish,
	}
}

type SubmitResponse struct {
	JobID string `json:"jobId"`
}

func decodeBody(r *http.Request, v any) *apperror.AppError {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return apperror.New(apperror.BadRequest, "invalid request body")
	}
	return nil
}

// statusOf maps err to a status code and client-facing message.
func statusOf(err error) (int, string) {
	if ae, ok := apperror.As(err); ok {
		return ae.HTTPStatus(), ae.Message()
	}
	return http.StatusInternalServerError, "internal server error"
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err, "requestID", RequestID(r.Context())) //nolint:gosec // structured logging
	}
	writeError(w, status, msg)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) submitJob(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if appErr := decodeBody(r, &body); appErr != nil {
		writeError(w, appErr.HTTPStatus(), appErr.Message())
		return
	}

	id, err := h.jobSvc.Submit(r.Context(), body.request())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+id)
	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: id})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	snap, err := h.jobSvc.Get(r.Context(), job.GetJobRequest{ID: r.PathValue("id")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := job.ListJobsRequest{
		Status: q.Get("status"),
		Niche:  q.Get("niche"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}

	jobs, err := h.jobSvc.List(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.jobSvc.Cancel(r.Context(), job.CancelJobRequest{ID: id}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: id})
}

// Routes kept for clients of the earlier API. They answer with bare JSON
// objects instead of the APIResponse envelope.

type legacyStatus struct {
	Status    job.Status `json:"status"`
	Message   string     `json:"message"`
	VideoURL  string     `json:"videoUrl,omitempty"`
	CreatedAt string     `json:"createdAt"`
}

func (h *handler) legacyGenerate(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if appErr := decodeBody(r, &body); appErr != nil {
		writeLegacyError(w, appErr.HTTPStatus(), appErr.Message())
		return
	}

	id, err := h.jobSvc.Submit(r.Context(), body.request())
	if err != nil {
		status, msg := statusOf(err)
		writeLegacyError(w, status, msg)
		return
	}
	writeRaw(w, http.StatusOK, map[string]string{
		"jobId":   id,
		"message": "Video generation started",
	})
}

func (h *handler) legacyStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("jobId")
	if id == "" {
		writeLegacyError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	snap, err := h.jobSvc.Get(r.Context(), job.GetJobRequest{ID: id})
	if err != nil {
		status, msg := statusOf(err)
		if status == http.StatusNotFound {
			msg = "Job not found"
		}
		writeLegacyError(w, status, msg)
		return
	}
	writeRaw(w, http.StatusOK, legacyStatus{
		Status:    snap.Status,
		Message:   snap.Message,
		VideoURL:  snap.ResultURL,
		CreatedAt: snap.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}
