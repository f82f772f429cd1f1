package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/events"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
	"github.com/pharmtrack/pharmtrack-backend/pkg/messaging"
	"github.com/pharmtrack/pharmtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var batchColumns = []string{
	"id", "medicine_id", "batch_number", "manufacture_date", "expiry_date",
	"received_quantity", "created_at",
}

type stockFixture struct {
	mock *testutil.MockDB
	pub  *testutil.MockPublisher
	svc  *service.StockService
}

func newStockFixture(t *testing.T) *stockFixture {
	t.Helper()

	mock := testutil.NewMockDB(t)
	t.Cleanup(func() { mock.Close() })

	log := logger.New("pharmacy-service", "test")
	db := database.NewFromSqlx(mock.DB, log)
	pub := testutil.NewMockPublisher()

	svc := service.NewStockService(
		repository.NewStockRepository(db),
		repository.NewMedicineRepository(db),
		repository.NewBatchRepository(db),
		repository.NewBranchRepository(db),
		events.NewWithPublisher(pub, log),
		log,
	)

	return &stockFixture{mock: mock, pub: pub, svc: svc}
}

func TestStockService_ReceiveStock(t *testing.T) {
	f := newStockFixture(t)

	medicineID := uuid.New().String()
	batchID := uuid.New().String()
	branchID := uuid.New().String()
	receivedBy := uuid.New().String()

	f.mock.ExpectQuery("SELECT * FROM batches WHERE id = $1").
		WithArgs(batchID).
		WillReturnRows(testutil.MockRows(batchColumns...).
			AddRow(batchID, medicineID, "LOT-7741", time.Now().AddDate(0, -2, 0),
				time.Now().AddDate(1, 0, 0), 200, time.Now()))
	f.mock.ExpectQuery("SELECT * FROM branches WHERE id = $1").
		WithArgs(branchID).
		WillReturnRows(testutil.MockRows(branchColumns...).
			AddRow(branchID, "Filiale Nord", "Hafenweg 2", nil, nil, false, time.Now(), time.Now()))
	f.mock.ExpectQuery("INSERT INTO stocks").
		WithArgs(testutil.AnyUUID{}, medicineID, batchID, branchID, 200).
		WillReturnRows(testutil.MockRows("last_updated").AddRow(time.Now()))

	// The caller's medicine_id is ignored, the batch decides
	stock := &repository.Stock{
		MedicineID:      uuid.New().String(),
		BatchID:         batchID,
		BranchID:        branchID,
		CurrentQuantity: 200,
	}
	err := f.svc.ReceiveStock(context.Background(), stock, receivedBy)
	require.NoError(t, err)

	assert.Equal(t, medicineID, stock.MedicineID)
	f.pub.AssertEventPublished(t, messaging.EventStockReceived)
	f.mock.ExpectationsWereMet(t)
}

func TestStockService_ReceiveStock_RejectsNonPositiveQuantity(t *testing.T) {
	f := newStockFixture(t)

	stock := &repository.Stock{
		BatchID:         uuid.New().String(),
		BranchID:        uuid.New().String(),
		CurrentQuantity: 0,
	}
	err := f.svc.ReceiveStock(context.Background(), stock, uuid.New().String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	f.pub.AssertNoEventsPublished(t)
	f.mock.ExpectationsWereMet(t)
}

func TestStockService_AdjustQuantity(t *testing.T) {
	stockID := uuid.New().String()

	t.Run("publishes the adjustment", func(t *testing.T) {
		f := newStockFixture(t)

		f.mock.ExpectQuery("UPDATE stocks").
			WithArgs(stockID, -5).
			WillReturnRows(testutil.MockRows(stockColumns...).
				AddRow(stockID, uuid.New().String(), uuid.New().String(), uuid.New().String(),
					35, time.Now()))

		stock, err := f.svc.AdjustQuantity(context.Background(), stockID, -5, uuid.New().String(), "damaged packaging")
		require.NoError(t, err)

		assert.Equal(t, 35, stock.CurrentQuantity)
		f.pub.AssertEventPublished(t, messaging.EventStockAdjusted)
		f.mock.ExpectationsWereMet(t)
	})

	t.Run("zero delta is rejected", func(t *testing.T) {
		f := newStockFixture(t)

		_, err := f.svc.AdjustQuantity(context.Background(), stockID, 0, uuid.New().String(), "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
		f.pub.AssertNoEventsPublished(t)
		f.mock.ExpectationsWereMet(t)
	})

	t.Run("over-debit publishes nothing", func(t *testing.T) {
		f := newStockFixture(t)

		f.mock.ExpectQuery("UPDATE stocks").
			WithArgs(stockID, -500).
			WillReturnRows(testutil.MockRows(stockColumns...))
		f.mock.ExpectQuery("SELECT * FROM stocks WHERE id = $1").
			WithArgs(stockID).
			WillReturnRows(testutil.MockRows(stockColumns...).
				AddRow(stockID, uuid.New().String(), uuid.New().String(), uuid.New().String(),
					35, time.Now()))

		_, err := f.svc.AdjustQuantity(context.Background(), stockID, -500, uuid.New().String(), "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
		f.pub.AssertNoEventsPublished(t)
		f.mock.ExpectationsWereMet(t)
	})
}

func TestStockService_FindExpiringWithin_RejectsNonPositiveWindow(t *testing.T) {
	f := newStockFixture(t)

	_, err := f.svc.FindExpiringWithin(context.Background(), 0, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	f.mock.ExpectationsWereMet(t)
}
