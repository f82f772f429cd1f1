package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/events"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
	"github.com/pharmtrack/pharmtrack-backend/pkg/messaging"
)

// AlertScanner scans the stock ledger for low-stock and expiry conditions.
// Each finding becomes one notification per admin-class user, deduplicated
// against the unread inbox, plus one published alert event.
type AlertScanner struct {
	stockRepo        *repository.StockRepository
	userCacheRepo    *repository.UserCacheRepository
	notificationRepo *repository.NotificationRepository
	publisher        *events.PharmacyEventPublisher
	logger           *logger.Logger
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	stockRepo *repository.StockRepository,
	userCacheRepo *repository.UserCacheRepository,
	notificationRepo *repository.NotificationRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		stockRepo:        stockRepo,
		userCacheRepo:    userCacheRepo,
		notificationRepo: notificationRepo,
		publisher:        publisher,
		logger:           log,
	}
}

// ScanAll runs all scans. Logs errors but continues scanning.
func (s *AlertScanner) ScanAll(ctx context.Context) error {
	scanners := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"low_stock", s.scanLowStock},
		{"expiry", s.scanExpiry},
	}

	var lastErr error
	for _, scanner := range scanners {
		if err := scanner.fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("scanner", scanner.name).Msg("alert scan failed")
			lastErr = err
		}
	}

	return lastErr
}

// scanLowStock flags ledger rows at or below the low-stock threshold
func (s *AlertScanner) scanLowStock(ctx context.Context) error {
	rows, err := s.stockRepo.FindLowStock(ctx, "")
	if err != nil {
		return fmt.Errorf("scanLowStock: find low stock: %w", err)
	}

	admins, err := s.userCacheRepo.ListByRoles(ctx, adminRoles)
	if err != nil {
		return fmt.Errorf("scanLowStock: list admins: %w", err)
	}

	for _, row := range rows {
		message := fmt.Sprintf("%s (batch %s) is low on stock: %d units left",
			row.MedicineName, row.BatchNumber, row.CurrentQuantity)

		s.notifyEach(ctx, admins, repository.NotificationLowStock, message, &row.ID)

		s.publisher.PublishAlertGenerated(ctx, messaging.AlertGeneratedEvent{
			AlertType:  repository.NotificationLowStock,
			Message:    message,
			MedicineID: row.MedicineID,
			BatchID:    row.BatchID,
			BranchID:   row.BranchID,
			Quantity:   row.CurrentQuantity,
		})
	}

	return nil
}

// scanExpiry flags held stock whose batch expires within the long window
func (s *AlertScanner) scanExpiry(ctx context.Context) error {
	rows, err := s.stockRepo.FindExpiringWithin(ctx, ExpiryWindowLong, "")
	if err != nil {
		return fmt.Errorf("scanExpiry: find expiring stock: %w", err)
	}

	admins, err := s.userCacheRepo.ListByRoles(ctx, adminRoles)
	if err != nil {
		return fmt.Errorf("scanExpiry: list admins: %w", err)
	}

	for _, row := range rows {
		daysUntil := int(time.Until(row.ExpiryDate).Hours() / 24)

		var message string
		if daysUntil < 0 {
			message = fmt.Sprintf("%s (batch %s) has expired, %d units on hand",
				row.MedicineName, row.BatchNumber, row.CurrentQuantity)
		} else {
			message = fmt.Sprintf("%s (batch %s) expires in %d days, %d units on hand",
				row.MedicineName, row.BatchNumber, daysUntil, row.CurrentQuantity)
		}

		s.notifyEach(ctx, admins, repository.NotificationExpiring, message, &row.ID)

		s.publisher.PublishAlertGenerated(ctx, messaging.AlertGeneratedEvent{
			AlertType:  repository.NotificationExpiring,
			Message:    message,
			MedicineID: row.MedicineID,
			BatchID:    row.BatchID,
			BranchID:   row.BranchID,
			Quantity:   row.CurrentQuantity,
			ExpiryDate: row.ExpiryDate,
		})
	}

	return nil
}

// notifyEach creates one notification per user, skipping users who already
// have an unread one for the same finding
func (s *AlertScanner) notifyEach(ctx context.Context, users []*repository.CachedUser, notifType, message string, referenceID *string) {
	for _, user := range users {
		exists, err := s.notificationRepo.ExistsUnread(ctx, user.UserID, notifType, referenceID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("failed to check existing notification")
			continue
		}
		if exists {
			continue
		}

		n := &repository.Notification{
			UserID:      user.UserID,
			Type:        notifType,
			Message:     message,
			ReferenceID: referenceID,
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("failed to create notification")
		}
	}
}
