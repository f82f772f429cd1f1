package service

import (
	"context"
	"strings"
	"time"

	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
)

// CatalogService covers the medicine, batch and branch registries
type CatalogService struct {
	medicineRepo *repository.MedicineRepository
	batchRepo    *repository.BatchRepository
	branchRepo   *repository.BranchRepository
	logger       *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	medicineRepo *repository.MedicineRepository,
	batchRepo *repository.BatchRepository,
	branchRepo *repository.BranchRepository,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		medicineRepo: medicineRepo,
		batchRepo:    batchRepo,
		branchRepo:   branchRepo,
		logger:       log,
	}
}

// Medicines

// CreateMedicine creates a medicine
func (s *CatalogService) CreateMedicine(ctx context.Context, medicine *repository.Medicine) error {
	if strings.TrimSpace(medicine.Name) == "" {
		return errors.Validation(map[string]string{"name": "this field is required"})
	}
	if medicine.UnitPriceCents < 0 {
		return errors.Validation(map[string]string{"unit_price_cents": "must not be negative"})
	}

	if err := s.medicineRepo.Create(ctx, medicine); err != nil {
		return err
	}

	s.logger.Info().Str("medicine_id", medicine.ID).Str("name", medicine.Name).Msg("medicine created")
	return nil
}

// GetMedicine gets a medicine by ID
func (s *CatalogService) GetMedicine(ctx context.Context, id string) (*repository.Medicine, error) {
	return s.medicineRepo.GetByID(ctx, id)
}

// ListMedicines lists all medicines
func (s *CatalogService) ListMedicines(ctx context.Context) ([]*repository.Medicine, error) {
	return s.medicineRepo.List(ctx)
}

// ListMedicinesByCategory lists medicines in a category
func (s *CatalogService) ListMedicinesByCategory(ctx context.Context, category string) ([]*repository.Medicine, error) {
	return s.medicineRepo.ListByCategory(ctx, category)
}

// SearchMedicines searches medicines by name substring
func (s *CatalogService) SearchMedicines(ctx context.Context, name string) ([]*repository.Medicine, error) {
	return s.medicineRepo.SearchByName(ctx, name)
}

// UpdateMedicine updates a medicine
func (s *CatalogService) UpdateMedicine(ctx context.Context, medicine *repository.Medicine) error {
	if strings.TrimSpace(medicine.Name) == "" {
		return errors.Validation(map[string]string{"name": "this field is required"})
	}
	return s.medicineRepo.Update(ctx, medicine)
}

// DeleteMedicine deletes a medicine
func (s *CatalogService) DeleteMedicine(ctx context.Context, id string) error {
	return s.medicineRepo.Delete(ctx, id)
}

// Batches

// CreateBatch creates a batch after checking its medicine exists and its
// dates are consistent
func (s *CatalogService) CreateBatch(ctx context.Context, batch *repository.Batch) error {
	if _, err := s.medicineRepo.GetByID(ctx, batch.MedicineID); err != nil {
		return err
	}
	if strings.TrimSpace(batch.BatchNumber) == "" {
		return errors.Validation(map[string]string{"batch_number": "this field is required"})
	}
	if !batch.ExpiryDate.After(batch.ManufactureDate) {
		return errors.Validation(map[string]string{"expiry_date": "must be after the manufacture date"})
	}
	if batch.ReceivedQuantity < 0 {
		return errors.Validation(map[string]string{"received_quantity": "must not be negative"})
	}

	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return err
	}

	s.logger.Info().Str("batch_id", batch.ID).Str("batch_number", batch.BatchNumber).Msg("batch created")
	return nil
}

// GetBatch gets a batch by ID
func (s *CatalogService) GetBatch(ctx context.Context, id string) (*repository.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// GetBatchByNumber gets a batch by its batch number
func (s *CatalogService) GetBatchByNumber(ctx context.Context, batchNumber string) (*repository.Batch, error) {
	return s.batchRepo.GetByBatchNumber(ctx, batchNumber)
}

// ListBatchesByMedicine lists a medicine's batches
func (s *CatalogService) ListBatchesByMedicine(ctx context.Context, medicineID string) ([]*repository.Batch, error) {
	return s.batchRepo.ListByMedicine(ctx, medicineID)
}

// ListBatches lists all batches
func (s *CatalogService) ListBatches(ctx context.Context) ([]*repository.Batch, error) {
	return s.batchRepo.List(ctx)
}

// ListBatchesExpiringBefore lists batches whose expiry falls before the given date
func (s *CatalogService) ListBatchesExpiringBefore(ctx context.Context, date time.Time) ([]*repository.Batch, error) {
	return s.batchRepo.ExpiringBefore(ctx, date)
}

// ListBatchesExpiringWithin lists batches expiring within the given number of days
func (s *CatalogService) ListBatchesExpiringWithin(ctx context.Context, days int) ([]*repository.Batch, error) {
	if days <= 0 {
		return nil, errors.BadRequest("days must be positive")
	}
	return s.batchRepo.ExpiringWithin(ctx, days)
}

// DeleteBatch deletes a batch
func (s *CatalogService) DeleteBatch(ctx context.Context, id string) error {
	return s.batchRepo.Delete(ctx, id)
}

// Branches

// CreateBranch creates a branch
func (s *CatalogService) CreateBranch(ctx context.Context, branch *repository.Branch) error {
	if strings.TrimSpace(branch.Name) == "" {
		return errors.Validation(map[string]string{"name": "this field is required"})
	}

	if err := s.branchRepo.Create(ctx, branch); err != nil {
		return err
	}

	s.logger.Info().Str("branch_id", branch.ID).Str("name", branch.Name).Bool("is_main", branch.IsMain).Msg("branch created")
	return nil
}

// GetBranch gets a branch by ID
func (s *CatalogService) GetBranch(ctx context.Context, id string) (*repository.Branch, error) {
	return s.branchRepo.GetByID(ctx, id)
}

// GetMainBranch gets the main branch
func (s *CatalogService) GetMainBranch(ctx context.Context) (*repository.Branch, error) {
	return s.branchRepo.GetMain(ctx)
}

// ListBranches lists all branches
func (s *CatalogService) ListBranches(ctx context.Context) ([]*repository.Branch, error) {
	return s.branchRepo.List(ctx)
}

// UpdateBranch updates a branch
func (s *CatalogService) UpdateBranch(ctx context.Context, branch *repository.Branch) error {
	if strings.TrimSpace(branch.Name) == "" {
		return errors.Validation(map[string]string{"name": "this field is required"})
	}
	return s.branchRepo.Update(ctx, branch)
}

// SetMainBranch makes a branch the main branch
func (s *CatalogService) SetMainBranch(ctx context.Context, id string) error {
	if err := s.branchRepo.SetMain(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("branch_id", id).Msg("main branch changed")
	return nil
}

// DeleteBranch deletes a branch
func (s *CatalogService) DeleteBranch(ctx context.Context, id string) error {
	return s.branchRepo.Delete(ctx, id)
}
