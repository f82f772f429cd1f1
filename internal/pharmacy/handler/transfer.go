package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/actor"
	"github.com/pharmtrack/pharmtrack-backend/pkg/httputil"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// TransferHandler handles transfer endpoints
type TransferHandler struct {
	service *service.TransferService
	logger  *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(svc *service.TransferService, log *logger.Logger) *TransferHandler {
	return &TransferHandler{
		service: svc,
		logger:  log,
	}
}

type transferRequest struct {
	MedicineID   string  `json:"medicine_id" validate:"required,uuid"`
	FromBranchID string  `json:"from_branch_id" validate:"required,uuid"`
	ToBranchID   string  `json:"to_branch_id" validate:"required,uuid"`
	Quantity     int     `json:"quantity" validate:"required,gt=0"`
	Notes        *string `json:"notes,omitempty"`
}

type processTransferRequest struct {
	Decision string `json:"decision" validate:"required,oneof=COMPLETED REJECTED"`
}

// Execute moves stock between branches immediately
func (h *TransferHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Transfer(r.Context(), req.FromBranchID, req.ToBranchID, req.MedicineID, req.Quantity); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"medicine_id":    req.MedicineID,
		"from_branch_id": req.FromBranchID,
		"to_branch_id":   req.ToBranchID,
		"quantity":       req.Quantity,
	})
}

// List lists transfers; supports ?from_branch_id=, ?to_branch_id= and
// ?status= filters
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TransferFilter{
		FromBranchID: q.Get("from_branch_id"),
		ToBranchID:   q.Get("to_branch_id"),
		Status:       q.Get("status"),
	}

	transfers, err := h.service.ListTransfers(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfers)
}

// Get gets a transfer by ID
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transfer, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// CreateRequest records a transfer request pending approval
func (h *TransferHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	act := actor.MustFromContext(r.Context())
	transfer := &repository.StockTransfer{
		MedicineID:   req.MedicineID,
		FromBranchID: req.FromBranchID,
		ToBranchID:   req.ToBranchID,
		Quantity:     req.Quantity,
		RequestedBy:  act.ID,
		Notes:        req.Notes,
	}

	if err := h.service.CreateRequest(r.Context(), transfer); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, transfer)
}

// Process resolves a pending request as COMPLETED or REJECTED
func (h *TransferHandler) Process(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req processTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	act := actor.MustFromContext(r.Context())
	transfer, err := h.service.ProcessRequest(r.Context(), id, req.Decision, act.ID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// Update edits a request while it is still pending
func (h *TransferHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	transfer := &repository.StockTransfer{
		ID:           id,
		MedicineID:   req.MedicineID,
		FromBranchID: req.FromBranchID,
		ToBranchID:   req.ToBranchID,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	}

	if err := h.service.UpdateRequest(r.Context(), transfer); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// Delete removes a request while it is still pending
func (h *TransferHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteRequest(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
