package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/actor"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/httputil"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// StockHandler handles stock ledger endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

type receiveStockRequest struct {
	BatchID  string `json:"batch_id" validate:"required,uuid"`
	BranchID string `json:"branch_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason"`
}

// List lists ledger rows; supports ?branch_id=, ?medicine_id=, ?category=
// and ?name= filters
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if name := q.Get("name"); name != "" {
		rows, err := h.service.SearchStock(r.Context(), name, q.Get("branch_id"))
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, rows)
		return
	}

	if branchID := q.Get("branch_id"); branchID != "" {
		rows, err := h.service.ListStockByBranch(r.Context(), branchID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, rows)
		return
	}

	if medicineID := q.Get("medicine_id"); medicineID != "" {
		rows, err := h.service.ListStockByMedicine(r.Context(), medicineID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, rows)
		return
	}

	if category := q.Get("category"); category != "" {
		rows, err := h.service.ListStockByCategory(r.Context(), category)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, rows)
		return
	}

	rows, err := h.service.ListStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// Get gets a ledger row by ID
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stock, err := h.service.GetStock(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stock)
}

// Receive records newly received stock of a batch at a branch
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req receiveStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	stock := &repository.Stock{
		BatchID:         req.BatchID,
		BranchID:        req.BranchID,
		CurrentQuantity: req.Quantity,
	}

	act := actor.MustFromContext(r.Context())
	if err := h.service.ReceiveStock(r.Context(), stock, act.ID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, stock)
}

// Adjust applies a signed quantity delta to a ledger row
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req adjustStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	act := actor.MustFromContext(r.Context())
	stock, err := h.service.AdjustQuantity(r.Context(), id, req.Delta, act.ID, req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stock)
}

// Quantity sums a branch's holdings of a medicine across batches
func (h *StockHandler) Quantity(w http.ResponseWriter, r *http.Request) {
	branchID := r.URL.Query().Get("branch_id")
	medicineID := r.URL.Query().Get("medicine_id")
	if branchID == "" || medicineID == "" {
		httputil.Error(w, errors.BadRequest("branch_id and medicine_id are required"))
		return
	}

	quantity, err := h.service.GetQuantity(r.Context(), branchID, medicineID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"branch_id":   branchID,
		"medicine_id": medicineID,
		"quantity":    quantity,
	})
}

// LowStock lists rows at or below the low-stock threshold
func (h *StockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.FindLowStock(r.Context(), r.URL.Query().Get("branch_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// Expiring lists held stock close to expiry; ?days= overrides the default
// window, ?before= (RFC 3339 date) takes precedence
func (h *StockHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	if before := r.URL.Query().Get("before"); before != "" {
		date, err := time.Parse("2006-01-02", before)
		if err != nil {
			httputil.Error(w, errors.BadRequest("before must be a date in YYYY-MM-DD format"))
			return
		}
		rows, err := h.service.FindExpiringBefore(r.Context(), date)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, rows)
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

	rows, err := h.service.FindExpiringWithin(r.Context(), days, r.URL.Query().Get("branch_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// Delete removes a ledger row
func (h *StockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteStock(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
