package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
)

// Notification categories
const (
	NotificationLowStock = "LOW_STOCK"
	NotificationExpiring = "EXPIRING"
	NotificationTransfer = "TRANSFER"
)

// RecentNotificationLimit caps the recent-notifications inbox view
const RecentNotificationLimit = 10

// Notification is an inbox entry for a user
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Message   string    `db:"message" json:"message"`
	// ReferenceID points at the stock row, batch or transfer that triggered it
	ReferenceID *string   `db:"reference_id" json:"reference_id,omitempty"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NotificationRepository handles notification persistence
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO notifications (id, user_id, type, message, reference_id, is_read)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Message, n.ReferenceID,
	).Scan(&n.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ExistsUnread reports whether the user already has an unread notification
// of the given type for the same reference, so scans do not pile up
// duplicates.
func (r *NotificationRepository) ExistsUnread(ctx context.Context, userID, notifType string, referenceID *string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND type = $2 AND reference_id IS NOT DISTINCT FROM $3 AND is_read = false
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, userID, notifType, referenceID); err != nil {
		return false, err
	}
	return exists, nil
}

// ListByUser lists all notifications for a user, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*Notification, error) {
	var notifications []*Notification
	query := `SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, err
	}
	return notifications, nil
}

// ListUnreadByUser lists unread notifications for a user, newest first
func (r *NotificationRepository) ListUnreadByUser(ctx context.Context, userID string) ([]*Notification, error) {
	var notifications []*Notification
	query := `SELECT * FROM notifications WHERE user_id = $1 AND is_read = false ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, err
	}
	return notifications, nil
}

// ListRecentByUser lists the user's most recent notifications, capped at
// RecentNotificationLimit
func (r *NotificationRepository) ListRecentByUser(ctx context.Context, userID string) ([]*Notification, error) {
	var notifications []*Notification
	query := `SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &notifications, query, userID, RecentNotificationLimit); err != nil {
		return nil, err
	}
	return notifications, nil
}

// CountUnread counts a user's unread notifications
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count sql.NullInt64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, err
	}
	return int(count.Int64), nil
}

// MarkRead marks one notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	query := `UPDATE notifications SET is_read = true WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("notification")
	}
	return nil
}

// MarkAllRead marks all of a user's notifications as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	query := `UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
