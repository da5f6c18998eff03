package httpx

import (
	"net/http"

	"github.com/target/bulkmove/internal/domain/model"
	apperrors "github.com/target/bulkmove/internal/errors"
	"github.com/target/bulkmove/internal/service"
)

// TransferHandlers serves the transfer launch, status and cancel endpoints.
type TransferHandlers struct {
	Svc *service.TransferService
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Start accepts a transfer request and returns 202 with the queued job.
func (h *TransferHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartTransferRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Svc.Start(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, resp)
}

// Status returns the poller view of one job.
func (h *TransferHandlers) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	resp, err := h.Svc.Status(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Cancel flags a job for cooperative cancellation. Repeated calls succeed.
func (h *TransferHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Cancel(r.Context(), id); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// List returns recent jobs, optionally filtered by ?status=.
func (h *TransferHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := ParseLimitOffset(r, model.DefaultTransferListLimit, model.MaxTransferListLimit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	opts := model.TransferListOptions{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("status"); v != "" {
		st := model.TransferStatus(v)
		opts.Status = &st
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*model.TransferJob{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "limit": limit, "offset": offset})
}

func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		WriteAppError(w, apperrors.ValidationField("id", "id is required"))
		return "", false
	}
	return id, true
}
