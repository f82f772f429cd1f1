package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
)

// Medicine represents a medicine in the catalog
type Medicine struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	GenericName  *string   `db:"generic_name" json:"generic_name,omitempty"`
	Category     string    `db:"category" json:"category"`
	Manufacturer *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	// UnitPriceCents is the sale price per unit in cents
	UnitPriceCents int64     `db:"unit_price_cents" json:"unit_price_cents"`
	RequiresRx     bool      `db:"requires_rx" json:"requires_rx"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// UnitPrice returns the unit price in currency units
func (m *Medicine) UnitPrice() float64 {
	return float64(m.UnitPriceCents) / 100.0
}

// MarshalJSON emits the derived decimal price next to the cent value
func (m Medicine) MarshalJSON() ([]byte, error) {
	type alias Medicine
	return json.Marshal(struct {
		alias
		UnitPrice float64 `json:"unit_price"`
	}{alias(m), m.UnitPrice()})
}

// MedicineRepository handles medicine persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create creates a new medicine
func (r *MedicineRepository) Create(ctx context.Context, medicine *Medicine) error {
	if medicine.ID == "" {
		medicine.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (
			id, name, generic_name, category, manufacturer, description,
			unit_price_cents, requires_rx
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		medicine.ID, medicine.Name, medicine.GenericName, medicine.Category,
		medicine.Manufacturer, medicine.Description, medicine.UnitPriceCents,
		medicine.RequiresRx,
	).Scan(&medicine.CreatedAt, &medicine.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var medicine Medicine
	query := `SELECT * FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &medicine, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &medicine, nil
}

// List lists all medicines ordered by name
func (r *MedicineRepository) List(ctx context.Context) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT * FROM medicines ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, err
	}
	return medicines, nil
}

// ListByCategory lists medicines in a category
func (r *MedicineRepository) ListByCategory(ctx context.Context, category string) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT * FROM medicines WHERE category = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query, category); err != nil {
		return nil, err
	}
	return medicines, nil
}

// SearchByName searches medicines by name substring, case-insensitive
func (r *MedicineRepository) SearchByName(ctx context.Context, name string) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT * FROM medicines WHERE name ILIKE '%' || $1 || '%' ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query, name); err != nil {
		return nil, err
	}
	return medicines, nil
}

// Update updates a medicine
func (r *MedicineRepository) Update(ctx context.Context, medicine *Medicine) error {
	query := `
		UPDATE medicines SET
			name = $2, generic_name = $3, category = $4, manufacturer = $5,
			description = $6, unit_price_cents = $7, requires_rx = $8,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		medicine.ID, medicine.Name, medicine.GenericName, medicine.Category,
		medicine.Manufacturer, medicine.Description, medicine.UnitPriceCents,
		medicine.RequiresRx,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}

// Delete deletes a medicine. Rejected while stock rows still hold units of it.
func (r *MedicineRepository) Delete(ctx context.Context, id string) error {
	var held int
	countQuery := `SELECT COUNT(*) FROM stocks WHERE medicine_id = $1 AND current_quantity > 0`
	if err := r.db.GetContext(ctx, &held, countQuery, id); err != nil {
		return err
	}
	if held > 0 {
		return errors.Conflict("medicine still has stock on hand")
	}

	query := `DELETE FROM medicines WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}
