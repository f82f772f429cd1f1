package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/httputil"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// BranchHandler handles branch endpoints
type BranchHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewBranchHandler creates a new branch handler
func NewBranchHandler(svc *service.CatalogService, log *logger.Logger) *BranchHandler {
	return &BranchHandler{
		service: svc,
		logger:  log,
	}
}

// List lists all branches
func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	branches, err := h.service.ListBranches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, branches)
}

// Get gets a branch by ID
func (h *BranchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	branch, err := h.service.GetBranch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, branch)
}

// GetMain gets the main branch
func (h *BranchHandler) GetMain(w http.ResponseWriter, r *http.Request) {
	branch, err := h.service.GetMainBranch(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, branch)
}

// Create creates a new branch
func (h *BranchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var branch repository.Branch
	if err := httputil.DecodeJSON(r, &branch); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.CreateBranch(r.Context(), &branch); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, branch)
}

// Update updates a branch
func (h *BranchHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var branch repository.Branch
	if err := httputil.DecodeJSON(r, &branch); err != nil {
		httputil.Error(w, err)
		return
	}

	branch.ID = id
	if err := h.service.UpdateBranch(r.Context(), &branch); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, branch)
}

// SetMain designates a branch as the main branch
func (h *BranchHandler) SetMain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.SetMainBranch(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	branch, err := h.service.GetBranch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, branch)
}

// Delete deletes a branch
func (h *BranchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBranch(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
