package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/actor"
	"github.com/pharmtrack/pharmtrack-backend/pkg/httputil"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// NotificationHandler serves the authenticated user's notification inbox
type NotificationHandler struct {
	repo   *repository.NotificationRepository
	logger *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(repo *repository.NotificationRepository, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		repo:   repo,
		logger: log,
	}
}

// List lists the user's notifications; ?unread=true narrows to unread,
// ?recent=true caps at the recent-inbox limit
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	act := actor.MustFromContext(r.Context())

	if r.URL.Query().Get("unread") == "true" {
		notifications, err := h.repo.ListUnreadByUser(r.Context(), act.ID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, notifications)
		return
	}

	if r.URL.Query().Get("recent") == "true" {
		notifications, err := h.repo.ListRecentByUser(r.Context(), act.ID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, notifications)
		return
	}

	notifications, err := h.repo.ListByUser(r.Context(), act.ID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, notifications)
}

// UnreadCount returns the user's unread notification count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	act := actor.MustFromContext(r.Context())

	count, err := h.repo.CountUnread(r.Context(), act.ID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.MarkRead(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// MarkAllRead marks all of the user's notifications as read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	act := actor.MustFromContext(r.Context())

	if err := h.repo.MarkAllRead(r.Context(), act.ID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
