package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
)

// LowStockThreshold is the quantity at or below which a stock row is
// considered low.
const LowStockThreshold = 10

// Stock is one ledger row: how many units of a batch a branch currently
// holds. There is at most one row per (batch, branch) pair.
type Stock struct {
	ID              string    `db:"id" json:"id"`
	MedicineID      string    `db:"medicine_id" json:"medicine_id"`
	BatchID         string    `db:"batch_id" json:"batch_id"`
	BranchID        string    `db:"branch_id" json:"branch_id"`
	CurrentQuantity int       `db:"current_quantity" json:"current_quantity"`
	LastUpdated     time.Time `db:"last_updated" json:"last_updated"`
}

// StockDetail is a ledger row joined with its medicine and batch identity,
// used by the query surface.
type StockDetail struct {
	Stock
	MedicineName string    `db:"medicine_name" json:"medicine_name"`
	Category     string    `db:"category" json:"category"`
	BatchNumber  string    `db:"batch_number" json:"batch_number"`
	ExpiryDate   time.Time `db:"expiry_date" json:"expiry_date"`
}

const stockDetailSelect = `
	SELECT s.id, s.medicine_id, s.batch_id, s.branch_id, s.current_quantity, s.last_updated,
	       m.name AS medicine_name, m.category, b.batch_number, b.expiry_date
	FROM stocks s
	JOIN medicines m ON m.id = s.medicine_id
	JOIN batches b ON b.id = s.batch_id
`

// StockRepository handles stock ledger persistence
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Create creates a new stock row
func (r *StockRepository) Create(ctx context.Context, stock *Stock) error {
	if stock.ID == "" {
		stock.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stocks (id, medicine_id, batch_id, branch_id, current_quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING last_updated
	`

	err := r.db.QueryRowxContext(ctx, query,
		stock.ID, stock.MedicineID, stock.BatchID, stock.BranchID, stock.CurrentQuantity,
	).Scan(&stock.LastUpdated)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a stock row by ID
func (r *StockRepository) GetByID(ctx context.Context, id string) (*Stock, error) {
	var stock Stock
	query := `SELECT * FROM stocks WHERE id = $1`
	if err := r.db.GetContext(ctx, &stock, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock")
		}
		return nil, err
	}
	return &stock, nil
}

// GetByBatchAndBranch gets the ledger row for a batch at a branch
func (r *StockRepository) GetByBatchAndBranch(ctx context.Context, batchID, branchID string) (*Stock, error) {
	var stock Stock
	query := `SELECT * FROM stocks WHERE batch_id = $1 AND branch_id = $2`
	if err := r.db.GetContext(ctx, &stock, query, batchID, branchID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock")
		}
		return nil, err
	}
	return &stock, nil
}

// GetQuantity sums a branch's holdings of a medicine across batches
func (r *StockRepository) GetQuantity(ctx context.Context, branchID, medicineID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(current_quantity) FROM stocks WHERE branch_id = $1 AND medicine_id = $2`
	if err := r.db.GetContext(ctx, &total, query, branchID, medicineID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// AdjustQuantity atomically applies a delta to a stock row. The guarded
// UPDATE refuses to drive the quantity negative; distinguishing a missing
// row from an over-debit takes a second lookup.
func (r *StockRepository) AdjustQuantity(ctx context.Context, stockID string, delta int) (*Stock, error) {
	var stock Stock
	query := `
		UPDATE stocks
		SET current_quantity = current_quantity + $2, last_updated = NOW()
		WHERE id = $1 AND current_quantity + $2 >= 0
		RETURNING id, medicine_id, batch_id, branch_id, current_quantity, last_updated
	`
	err := r.db.QueryRowxContext(ctx, query, stockID, delta).StructScan(&stock)
	if err == sql.ErrNoRows {
		if _, getErr := r.GetByID(ctx, stockID); getErr != nil {
			return nil, getErr
		}
		return nil, errors.InsufficientStock("adjustment would drive stock below zero")
	}
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return &stock, nil
}

// List lists all ledger rows with medicine and batch detail
func (r *StockRepository) List(ctx context.Context) ([]*StockDetail, error) {
	var stocks []*StockDetail
	query := stockDetailSelect + ` ORDER BY m.name, b.expiry_date`
	if err := r.db.SelectContext(ctx, &stocks, query); err != nil {
		return nil, err
	}
	return stocks, nil
}

// ListByBranch lists a branch's ledger rows
func (r *StockRepository) ListByBranch(ctx context.Context, branchID string) ([]*StockDetail, error) {
	var stocks []*StockDetail
	query := stockDetailSelect + ` WHERE s.branch_id = $1 ORDER BY m.name, b.expiry_date`
	if err := r.db.SelectContext(ctx, &stocks, query, branchID); err != nil {
		return nil, err
	}
	return stocks, nil
}

// ListByMedicine lists ledger rows for a medicine across branches
func (r *StockRepository) ListByMedicine(ctx context.Context, medicineID string) ([]*StockDetail, error) {
	var stocks []*StockDetail
	query := stockDetailSelect + ` WHERE s.medicine_id = $1 ORDER BY b.expiry_date`
	if err := r.db.SelectContext(ctx, &stocks, query, medicineID); err != nil {
		return nil, err
	}
	return stocks, nil
}

// ListByCategory lists ledger rows for all medicines in a category
func (r *StockRepository) ListByCategory(ctx context.Context, category string) ([]*StockDetail, error) {
	var stocks []*StockDetail
	query := stockDetailSelect + ` WHERE m.category = $1 ORDER BY m.name, b.expiry_date`
	if err := r.db.SelectContext(ctx, &stocks, query, category); err != nil {
		return nil, err
	}
	return stocks, nil
}

// SearchByMedicineName searches ledger rows by medicine name substring,
// case-insensitive. An empty branchID searches all branches.
func (r *StockRepository) SearchByMedicineName(ctx context.Context, name, branchID string) ([]*StockDetail, error) {
	var stocks []*StockDetail
	if branchID == "" {
		query := stockDetailSelect + ` WHERE m.name ILIKE '%' || $1 || '%' ORDER BY m.name, b.expiry_date`
		if err := r.db.SelectContext(ctx, &stocks, query, name); err != nil {
			return nil, err
		}
		return stocks, nil
	}

	query := stockDetailSelect + ` WHERE m.name ILIKE '%' || $1 || '%' AND s.branch_id = $2 ORDER BY m.name, b.expiry_date`
	if err := r.db.SelectContext(ctx, &stocks, query, name, branchID); err != nil {
		return nil, err
	}
	return stocks, nil
}

// FindLowStock finds rows at or below the low-stock threshold. An empty
// branchID scans all branches.
func (r *StockRepository) FindLowStock(ctx context.Context, branchID string) ([]*StockDetail, error) {
	var stocks []*StockDetail
	if branchID == "" {
		query := stockDetailSelect + ` WHERE s.current_quantity <= $1 ORDER BY s.current_quantity, m.name`
		if err := r.db.SelectContext(ctx, &stocks, query, LowStockThreshold); err != nil {
			return nil, err
		}
		return stocks, nil
	}

	query := stockDetailSelect + ` WHERE s.current_quantity <= $1 AND s.branch_id = $2 ORDER BY s.current_quantity, m.name`
	if err := r.db.SelectContext(ctx, &stocks, query, LowStockThreshold, branchID); err != nil {
		return nil, err
	}
	return stocks, nil
}

// FindExpiringWithin finds held stock whose batch expires within the given
// number of days, soonest first. An empty branchID scans all branches.
func (r *StockRepository) FindExpiringWithin(ctx context.Context, days int, branchID string) ([]*StockDetail, error) {
	var stocks []*StockDetail
	if branchID == "" {
		query := stockDetailSelect + `
	WHERE s.current_quantity > 0 AND b.expiry_date <= NOW() + INTERVAL '1 day' * $1
	ORDER BY b.expiry_date`
		if err := r.db.SelectContext(ctx, &stocks, query, days); err != nil {
			return nil, err
		}
		return stocks, nil
	}

	query := stockDetailSelect + `
	WHERE s.current_quantity > 0 AND b.expiry_date <= NOW() + INTERVAL '1 day' * $1 AND s.branch_id = $2
	ORDER BY b.expiry_date`
	if err := r.db.SelectContext(ctx, &stocks, query, days, branchID); err != nil {
		return nil, err
	}
	return stocks, nil
}

// FindExpiringBefore finds held stock whose batch expires before the given
// date, soonest first.
func (r *StockRepository) FindExpiringBefore(ctx context.Context, date time.Time) ([]*StockDetail, error) {
	var stocks []*StockDetail
	query := stockDetailSelect + `
	WHERE s.current_quantity > 0 AND b.expiry_date <= $1
	ORDER BY b.expiry_date`
	if err := r.db.SelectContext(ctx, &stocks, query, date); err != nil {
		return nil, err
	}
	return stocks, nil
}

// Delete deletes a stock row
func (r *StockRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM stocks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("stock")
	}

	return nil
}

// Transaction-scoped helpers for the transfer engine. These run inside the
// caller's transaction so the availability check, debits and credits commit
// or roll back as one unit.

// LockSourceRowsTx locks the source branch's rows for a medicine with
// FOR UPDATE, soonest-expiring batch first. Only rows holding units are
// returned, so the draw order is first-expired-first-out.
func (r *StockRepository) LockSourceRowsTx(ctx context.Context, tx *sqlx.Tx, branchID, medicineID string) ([]*Stock, error) {
	var stocks []*Stock
	query := `
		SELECT s.id, s.medicine_id, s.batch_id, s.branch_id, s.current_quantity, s.last_updated
		FROM stocks s
		JOIN batches b ON b.id = s.batch_id
		WHERE s.branch_id = $1 AND s.medicine_id = $2 AND s.current_quantity > 0
		ORDER BY b.expiry_date
		FOR UPDATE OF s
	`
	if err := tx.SelectContext(ctx, &stocks, query, branchID, medicineID); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return stocks, nil
}

// DebitTx subtracts quantity from a locked stock row. The guard clause keeps
// the quantity non-negative even if the row changed since it was read.
func (r *StockRepository) DebitTx(ctx context.Context, tx *sqlx.Tx, stockID string, quantity int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE stocks
		SET current_quantity = current_quantity - $2, last_updated = NOW()
		WHERE id = $1 AND current_quantity >= $2
	`, stockID, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InsufficientStock("stock row no longer holds the requested quantity")
	}
	return nil
}

// UpsertCreditTx credits quantity of a batch to a branch, creating the
// ledger row if the branch has never held the batch. Keyed on the
// (batch_id, branch_id) uniqueness constraint.
func (r *StockRepository) UpsertCreditTx(ctx context.Context, tx *sqlx.Tx, medicineID, batchID, branchID string, quantity int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stocks (id, medicine_id, batch_id, branch_id, current_quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (batch_id, branch_id)
		DO UPDATE SET current_quantity = stocks.current_quantity + EXCLUDED.current_quantity,
		              last_updated = NOW()
	`, uuid.New().String(), medicineID, batchID, branchID, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}
