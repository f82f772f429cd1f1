package service

import (
	"context"
	"time"

	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/events"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// Expiry scan windows in days
const (
	ExpiryWindowShort = 30
	ExpiryWindowLong  = 90
)

// StockService covers the stock ledger and its query surface. Every
// mutation of a ledger quantity funnels through AdjustQuantity or the
// transfer engine's transaction.
type StockService struct {
	stockRepo    *repository.StockRepository
	medicineRepo *repository.MedicineRepository
	batchRepo    *repository.BatchRepository
	branchRepo   *repository.BranchRepository
	publisher    *events.PharmacyEventPublisher
	logger       *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	stockRepo *repository.StockRepository,
	medicineRepo *repository.MedicineRepository,
	batchRepo *repository.BatchRepository,
	branchRepo *repository.BranchRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *StockService {
	return &StockService{
		stockRepo:    stockRepo,
		medicineRepo: medicineRepo,
		batchRepo:    batchRepo,
		branchRepo:   branchRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// ReceiveStock records newly received units of a batch at a branch
func (s *StockService) ReceiveStock(ctx context.Context, stock *repository.Stock, receivedBy string) error {
	if stock.CurrentQuantity <= 0 {
		return errors.Validation(map[string]string{"current_quantity": "must be greater than 0"})
	}

	batch, err := s.batchRepo.GetByID(ctx, stock.BatchID)
	if err != nil {
		return err
	}
	if _, err := s.branchRepo.GetByID(ctx, stock.BranchID); err != nil {
		return err
	}

	// The ledger row carries the batch's medicine; callers cannot cross-wire
	stock.MedicineID = batch.MedicineID

	if err := s.stockRepo.Create(ctx, stock); err != nil {
		return err
	}

	s.logger.Info().
		Str("stock_id", stock.ID).
		Str("batch_id", stock.BatchID).
		Str("branch_id", stock.BranchID).
		Int("quantity", stock.CurrentQuantity).
		Msg("stock received")

	s.publisher.PublishStockReceived(ctx, stock, receivedBy)
	return nil
}

// GetStock gets a ledger row by ID
func (s *StockService) GetStock(ctx context.Context, id string) (*repository.Stock, error) {
	return s.stockRepo.GetByID(ctx, id)
}

// GetQuantity sums a branch's holdings of a medicine across batches
func (s *StockService) GetQuantity(ctx context.Context, branchID, medicineID string) (int, error) {
	if _, err := s.branchRepo.GetByID(ctx, branchID); err != nil {
		return 0, err
	}
	if _, err := s.medicineRepo.GetByID(ctx, medicineID); err != nil {
		return 0, err
	}
	return s.stockRepo.GetQuantity(ctx, branchID, medicineID)
}

// AdjustQuantity applies a signed delta to a ledger row. The row never goes
// negative; an over-debit fails with no side effects.
func (s *StockService) AdjustQuantity(ctx context.Context, stockID string, delta int, performedBy, reason string) (*repository.Stock, error) {
	if delta == 0 {
		return nil, errors.BadRequest("adjustment delta must not be zero")
	}

	stock, err := s.stockRepo.AdjustQuantity(ctx, stockID, delta)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stock_id", stock.ID).
		Int("delta", delta).
		Int("new_quantity", stock.CurrentQuantity).
		Str("performed_by", performedBy).
		Msg("stock adjusted")

	s.publisher.PublishStockAdjusted(ctx, stock, delta, performedBy, reason)
	return stock, nil
}

// DeleteStock removes a ledger row
func (s *StockService) DeleteStock(ctx context.Context, id string) error {
	return s.stockRepo.Delete(ctx, id)
}

// Query surface

// ListStock lists all ledger rows
func (s *StockService) ListStock(ctx context.Context) ([]*repository.StockDetail, error) {
	return s.stockRepo.List(ctx)
}

// ListStockByBranch lists a branch's ledger rows
func (s *StockService) ListStockByBranch(ctx context.Context, branchID string) ([]*repository.StockDetail, error) {
	if _, err := s.branchRepo.GetByID(ctx, branchID); err != nil {
		return nil, err
	}
	return s.stockRepo.ListByBranch(ctx, branchID)
}

// ListStockByMedicine lists ledger rows for a medicine across branches
func (s *StockService) ListStockByMedicine(ctx context.Context, medicineID string) ([]*repository.StockDetail, error) {
	if _, err := s.medicineRepo.GetByID(ctx, medicineID); err != nil {
		return nil, err
	}
	return s.stockRepo.ListByMedicine(ctx, medicineID)
}

// ListStockByCategory lists ledger rows for all medicines in a category
func (s *StockService) ListStockByCategory(ctx context.Context, category string) ([]*repository.StockDetail, error) {
	return s.stockRepo.ListByCategory(ctx, category)
}

// SearchStock searches ledger rows by medicine name substring. branchID
// may be empty to search all branches.
func (s *StockService) SearchStock(ctx context.Context, name, branchID string) ([]*repository.StockDetail, error) {
	return s.stockRepo.SearchByMedicineName(ctx, name, branchID)
}

// FindLowStock finds rows at or below the low-stock threshold
func (s *StockService) FindLowStock(ctx context.Context, branchID string) ([]*repository.StockDetail, error) {
	return s.stockRepo.FindLowStock(ctx, branchID)
}

// FindExpiringWithin finds held stock expiring within the given days
func (s *StockService) FindExpiringWithin(ctx context.Context, days int, branchID string) ([]*repository.StockDetail, error) {
	if days <= 0 {
		return nil, errors.BadRequest("expiry window must be positive")
	}
	return s.stockRepo.FindExpiringWithin(ctx, days, branchID)
}

// FindExpiringBefore finds held stock expiring before the given date
func (s *StockService) FindExpiringBefore(ctx context.Context, date time.Time) ([]*repository.StockDetail, error) {
	return s.stockRepo.FindExpiringBefore(ctx, date)
}
