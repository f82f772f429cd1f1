package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
)

// Batch represents a manufacturing lot of a medicine. Identity fields are
// immutable after creation; where the units sit is the stock ledger's concern.
type Batch struct {
	ID              string    `db:"id" json:"id"`
	MedicineID      string    `db:"medicine_id" json:"medicine_id"`
	BatchNumber     string    `db:"batch_number" json:"batch_number"`
	ManufactureDate time.Time `db:"manufacture_date" json:"manufacture_date"`
	ExpiryDate      time.Time `db:"expiry_date" json:"expiry_date"`
	// ReceivedQuantity is the quantity originally received in this lot
	ReceivedQuantity int       `db:"received_quantity" json:"received_quantity"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// IsExpired reports whether the batch expiry is before the given moment
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate.Before(now)
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO batches (
			id, medicine_id, batch_number, manufacture_date, expiry_date, received_quantity
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		batch.ID, batch.MedicineID, batch.BatchNumber,
		batch.ManufactureDate, batch.ExpiryDate, batch.ReceivedQuantity,
	).Scan(&batch.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByBatchNumber gets a batch by its unique batch number
func (r *BatchRepository) GetByBatchNumber(ctx context.Context, batchNumber string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE batch_number = $1`
	if err := r.db.GetContext(ctx, &batch, query, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListByMedicine lists batches for a medicine, soonest expiry first
func (r *BatchRepository) ListByMedicine(ctx context.Context, medicineID string) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE medicine_id = $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, medicineID); err != nil {
		return nil, err
	}
	return batches, nil
}

// List lists all batches, soonest expiry first
func (r *BatchRepository) List(ctx context.Context) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT * FROM batches ORDER BY expiry_date`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// ExpiringBefore lists batches whose expiry falls before the given date
func (r *BatchRepository) ExpiringBefore(ctx context.Context, date time.Time) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE expiry_date <= $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, date); err != nil {
		return nil, err
	}
	return batches, nil
}

// ExpiringWithin lists batches expiring within the given number of days
func (r *BatchRepository) ExpiringWithin(ctx context.Context, days int) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE expiry_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, days); err != nil {
		return nil, err
	}
	return batches, nil
}

// Delete deletes a batch. Rejected while any stock row still holds units of it.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	var held int
	countQuery := `SELECT COUNT(*) FROM stocks WHERE batch_id = $1 AND current_quantity > 0`
	if err := r.db.GetContext(ctx, &held, countQuery, id); err != nil {
		return err
	}
	if held > 0 {
		return errors.Conflict("batch still has stock on hand")
	}

	query := `DELETE FROM batches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}
