package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/events"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// adminRoles receive transfer notifications
var adminRoles = []string{"ADMIN", "MANAGER"}

// TransferService moves stock between branches. A transfer is atomic: the
// availability check, the batch-by-batch debits at the source and the
// credits at the destination all ride one database transaction, so units
// are never lost or duplicated, and provenance is preserved because the
// destination rows reference the same batches that were debited.
type TransferService struct {
	db               *database.DB
	transferRepo     *repository.TransferRepository
	stockRepo        *repository.StockRepository
	medicineRepo     *repository.MedicineRepository
	branchRepo       *repository.BranchRepository
	userCacheRepo    *repository.UserCacheRepository
	notificationRepo *repository.NotificationRepository
	publisher        *events.PharmacyEventPublisher
	logger           *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	db *database.DB,
	transferRepo *repository.TransferRepository,
	stockRepo *repository.StockRepository,
	medicineRepo *repository.MedicineRepository,
	branchRepo *repository.BranchRepository,
	userCacheRepo *repository.UserCacheRepository,
	notificationRepo *repository.NotificationRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *TransferService {
	return &TransferService{
		db:               db,
		transferRepo:     transferRepo,
		stockRepo:        stockRepo,
		medicineRepo:     medicineRepo,
		branchRepo:       branchRepo,
		userCacheRepo:    userCacheRepo,
		notificationRepo: notificationRepo,
		publisher:        publisher,
		logger:           log,
	}
}

// validateTransferInput checks quantity and entity existence shared by the
// direct transfer and the request flow
func (s *TransferService) validateTransferInput(ctx context.Context, fromBranchID, toBranchID, medicineID string, quantity int) error {
	if quantity <= 0 {
		return errors.BadRequest("transfer quantity must be greater than zero")
	}
	if fromBranchID == toBranchID {
		return errors.BadRequest("source and destination branch must differ")
	}
	if _, err := s.branchRepo.GetByID(ctx, fromBranchID); err != nil {
		return err
	}
	if _, err := s.branchRepo.GetByID(ctx, toBranchID); err != nil {
		return err
	}
	if _, err := s.medicineRepo.GetByID(ctx, medicineID); err != nil {
		return err
	}
	return nil
}

// Transfer moves quantity units of a medicine from one branch to another
// immediately, drawing from the soonest-expiring batches first.
func (s *TransferService) Transfer(ctx context.Context, fromBranchID, toBranchID, medicineID string, quantity int) error {
	if err := s.validateTransferInput(ctx, fromBranchID, toBranchID, medicineID, quantity); err != nil {
		return err
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.executeTransferTx(ctx, tx, fromBranchID, toBranchID, medicineID, quantity)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("from_branch_id", fromBranchID).
		Str("to_branch_id", toBranchID).
		Str("medicine_id", medicineID).
		Int("quantity", quantity).
		Msg("stock transferred")

	return nil
}

// executeTransferTx performs the ledger movement inside the caller's
// transaction. Source rows are locked FOR UPDATE in expiry order, so the
// availability check and the debits cannot race a concurrent transfer.
func (s *TransferService) executeTransferTx(ctx context.Context, tx *sqlx.Tx, fromBranchID, toBranchID, medicineID string, quantity int) error {
	rows, err := s.stockRepo.LockSourceRowsTx(ctx, tx, fromBranchID, medicineID)
	if err != nil {
		return err
	}

	available := 0
	for _, row := range rows {
		available += row.CurrentQuantity
	}
	if available < quantity {
		return errors.InsufficientStock(
			fmt.Sprintf("branch holds %d units, %d requested", available, quantity))
	}

	remaining := quantity
	for _, row := range rows {
		if remaining == 0 {
			break
		}

		draw := row.CurrentQuantity
		if draw > remaining {
			draw = remaining
		}

		if err := s.stockRepo.DebitTx(ctx, tx, row.ID, draw); err != nil {
			return err
		}
		if err := s.stockRepo.UpsertCreditTx(ctx, tx, medicineID, row.BatchID, toBranchID, draw); err != nil {
			return err
		}

		remaining -= draw
	}

	return nil
}

// CreateRequest records a PENDING transfer request. No stock moves until
// the request is processed.
func (s *TransferService) CreateRequest(ctx context.Context, transfer *repository.StockTransfer) error {
	if err := s.validateTransferInput(ctx, transfer.FromBranchID, transfer.ToBranchID, transfer.MedicineID, transfer.Quantity); err != nil {
		return err
	}
	if transfer.RequestedBy == "" {
		return errors.BadRequest("requester is required")
	}

	if err := s.transferRepo.Create(ctx, transfer); err != nil {
		return err
	}

	s.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("from_branch_id", transfer.FromBranchID).
		Str("to_branch_id", transfer.ToBranchID).
		Int("quantity", transfer.Quantity).
		Msg("transfer request created")

	s.publisher.PublishTransferRequested(ctx, transfer)
	s.notifyAdmins(ctx, repository.NotificationTransfer,
		fmt.Sprintf("transfer of %d units requested from branch %s to branch %s",
			transfer.Quantity, transfer.FromBranchID, transfer.ToBranchID),
		&transfer.ID)

	return nil
}

// ProcessRequest resolves a PENDING request. COMPLETED moves the stock in
// the same transaction that flips the status; if the movement fails the
// request stays PENDING. REJECTED flips the status only. A request can be
// processed exactly once.
func (s *TransferService) ProcessRequest(ctx context.Context, id, decision, processedBy string) (*repository.StockTransfer, error) {
	if decision != repository.TransferStatusCompleted && decision != repository.TransferStatusRejected {
		return nil, errors.BadRequest("decision must be COMPLETED or REJECTED")
	}
	if processedBy == "" {
		return nil, errors.BadRequest("processor is required")
	}

	var transfer *repository.StockTransfer
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		transfer, err = s.transferRepo.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !transfer.IsPending() {
			return errors.InvalidState("transfer has already been processed")
		}

		if decision == repository.TransferStatusCompleted {
			if err := s.executeTransferTx(ctx, tx,
				transfer.FromBranchID, transfer.ToBranchID, transfer.MedicineID, transfer.Quantity); err != nil {
				return err
			}
		}

		return s.transferRepo.MarkProcessedTx(ctx, tx, id, decision, processedBy)
	})
	if err != nil {
		return nil, err
	}

	transfer.Status = decision
	transfer.ProcessedBy = &processedBy

	s.logger.Info().
		Str("transfer_id", id).
		Str("decision", decision).
		Str("processed_by", processedBy).
		Msg("transfer request processed")

	if decision == repository.TransferStatusCompleted {
		s.publisher.PublishTransferCompleted(ctx, transfer, processedBy)
	} else {
		s.publisher.PublishTransferRejected(ctx, transfer, processedBy, "")
	}

	return transfer, nil
}

// UpdateRequest edits a request while it is still PENDING
func (s *TransferService) UpdateRequest(ctx context.Context, transfer *repository.StockTransfer) error {
	if err := s.validateTransferInput(ctx, transfer.FromBranchID, transfer.ToBranchID, transfer.MedicineID, transfer.Quantity); err != nil {
		return err
	}
	return s.transferRepo.UpdatePending(ctx, transfer)
}

// DeleteRequest deletes a request while it is still PENDING
func (s *TransferService) DeleteRequest(ctx context.Context, id string) error {
	return s.transferRepo.DeletePending(ctx, id)
}

// GetTransfer gets a transfer by ID
func (s *TransferService) GetTransfer(ctx context.Context, id string) (*repository.StockTransfer, error) {
	return s.transferRepo.GetByID(ctx, id)
}

// ListTransfers lists transfers matching the filter
func (s *TransferService) ListTransfers(ctx context.Context, filter repository.TransferFilter) ([]*repository.StockTransfer, error) {
	return s.transferRepo.List(ctx, filter)
}

// notifyAdmins fans a notification out to every cached admin-class user.
// Failures are logged, never propagated: notifications ride alongside the
// transfer flow, they do not gate it.
func (s *TransferService) notifyAdmins(ctx context.Context, notifType, message string, referenceID *string) {
	admins, err := s.userCacheRepo.ListByRoles(ctx, adminRoles)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list admin users for notification")
		return
	}

	for _, admin := range admins {
		n := &repository.Notification{
			UserID:      admin.UserID,
			Type:        notifType,
			Message:     message,
			ReferenceID: referenceID,
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			s.logger.Error().Err(err).Str("user_id", admin.UserID).Msg("failed to create notification")
		}
	}
}
