package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/httputil"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.CatalogService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// List lists all batches; supports ?batch_number= lookup
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	if batchNumber := r.URL.Query().Get("batch_number"); batchNumber != "" {
		batch, err := h.service.GetBatchByNumber(r.Context(), batchNumber)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, batch)
		return
	}

	batches, err := h.service.ListBatches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ListByMedicine lists batches for a medicine
func (h *BatchHandler) ListByMedicine(w http.ResponseWriter, r *http.Request) {
	medicineID := chi.URLParam(r, "id")

	batches, err := h.service.ListBatchesByMedicine(r.Context(), medicineID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Expiring lists batches close to expiry; ?days= overrides the default
// window, ?before= (YYYY-MM-DD) takes precedence
func (h *BatchHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	if before := r.URL.Query().Get("before"); before != "" {
		date, err := time.Parse("2006-01-02", before)
		if err != nil {
			httputil.Error(w, errors.BadRequest("before must be a date in YYYY-MM-DD format"))
			return
		}
		batches, err := h.service.ListBatchesExpiringBefore(r.Context(), date)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, batches)
		return
	}

	days := service.ExpiryWindowShort
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("days must be an integer"))
			return
		}
		days = parsed
	}

	batches, err := h.service.ListBatchesExpiringWithin(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Create creates a new batch for a medicine
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	medicineID := chi.URLParam(r, "id")

	var batch repository.Batch
	if err := httputil.DecodeJSON(r, &batch); err != nil {
		httputil.Error(w, err)
		return
	}

	batch.MedicineID = medicineID
	if err := h.service.CreateBatch(r.Context(), &batch); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// Delete deletes a batch
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBatch(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
