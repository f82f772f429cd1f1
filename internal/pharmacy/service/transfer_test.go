package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
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

var (
	branchColumns = []string{"id", "name", "address", "contact_phone", "email", "is_main", "created_at", "updated_at"}
	medicineColumns = []string{
		"id", "name", "generic_name", "category", "manufacturer", "description",
		"unit_price_cents", "requires_rx", "created_at", "updated_at",
	}
	stockColumns    = []string{"id", "medicine_id", "batch_id", "branch_id", "current_quantity", "last_updated"}
	transferColumns = []string{
		"id", "medicine_id", "from_branch_id", "to_branch_id", "quantity", "status",
		"request_date", "completion_date", "requested_by", "processed_by", "notes",
	}
)

type transferFixture struct {
	mock *testutil.MockDB
	pub  *testutil.MockPublisher
	svc  *service.TransferService

	medicineID string
	fromID     string
	toID       string
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()

	mock := testutil.NewMockDB(t)
	t.Cleanup(func() { mock.Close() })

	log := logger.New("pharmacy-service", "test")
	db := database.NewFromSqlx(mock.DB, log)
	pub := testutil.NewMockPublisher()

	svc := service.NewTransferService(
		db,
		repository.NewTransferRepository(db),
		repository.NewStockRepository(db),
		repository.NewMedicineRepository(db),
		repository.NewBranchRepository(db),
		repository.NewUserCacheRepository(db),
		repository.NewNotificationRepository(db),
		events.NewWithPublisher(pub, log),
		log,
	)

	return &transferFixture{
		mock:       mock,
		pub:        pub,
		svc:        svc,
		medicineID: uuid.New().String(),
		fromID:     uuid.New().String(),
		toID:       uuid.New().String(),
	}
}

// expectValidationLookups covers the branch and medicine existence checks
// that precede every transfer.
func (f *transferFixture) expectValidationLookups() {
	f.mock.ExpectQuery("SELECT * FROM branches WHERE id = $1").
		WithArgs(f.fromID).
		WillReturnRows(testutil.MockRows(branchColumns...).
			AddRow(f.fromID, "Filiale Nord", "Hafenweg 2", nil, nil, false, time.Now(), time.Now()))
	f.mock.ExpectQuery("SELECT * FROM branches WHERE id = $1").
		WithArgs(f.toID).
		WillReturnRows(testutil.MockRows(branchColumns...).
			AddRow(f.toID, "Filiale Sued", "Talstr. 9", nil, nil, false, time.Now(), time.Now()))
	f.mock.ExpectQuery("SELECT * FROM medicines WHERE id = $1").
		WithArgs(f.medicineID).
		WillReturnRows(testutil.MockRows(medicineColumns...).
			AddRow(f.medicineID, "Amoxicillin 500mg", nil, "Antibiotic", nil, nil,
				int64(899), true, time.Now(), time.Now()))
}

func TestTransferService_Transfer_DrawsFromSoonestExpiringBatches(t *testing.T) {
	f := newTransferFixture(t)

	stockA := uuid.New().String()
	stockB := uuid.New().String()
	batchA := uuid.New().String()
	batchB := uuid.New().String()

	f.expectValidationLookups()

	f.mock.ExpectBegin()
	// Source rows come back in expiry order: 50 in the older batch, 30 behind it
	f.mock.ExpectQuery("FOR UPDATE OF s").
		WithArgs(f.fromID, f.medicineID).
		WillReturnRows(testutil.MockRows(stockColumns...).
			AddRow(stockA, f.medicineID, batchA, f.fromID, 50, time.Now()).
			AddRow(stockB, f.medicineID, batchB, f.fromID, 30, time.Now()))

	// 60 requested: the older batch is drained, 10 come from the next one
	f.mock.ExpectExec("UPDATE stocks").
		WithArgs(stockA, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO stocks").
		WithArgs(testutil.AnyUUID{}, f.medicineID, batchA, f.toID, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE stocks").
		WithArgs(stockB, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO stocks").
		WithArgs(testutil.AnyUUID{}, f.medicineID, batchB, f.toID, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	err := f.svc.Transfer(context.Background(), f.fromID, f.toID, f.medicineID, 60)
	require.NoError(t, err)
	f.mock.ExpectationsWereMet(t)
}

func TestTransferService_Transfer_InsufficientStockRollsBack(t *testing.T) {
	f := newTransferFixture(t)

	f.expectValidationLookups()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE OF s").
		WithArgs(f.fromID, f.medicineID).
		WillReturnRows(testutil.MockRows(stockColumns...).
			AddRow(uuid.New().String(), f.medicineID, uuid.New().String(), f.fromID, 50, time.Now()).
			AddRow(uuid.New().String(), f.medicineID, uuid.New().String(), f.fromID, 30, time.Now()))
	// 80 on hand, 100 requested: no debit or credit is ever issued
	f.mock.ExpectRollback()

	err := f.svc.Transfer(context.Background(), f.fromID, f.toID, f.medicineID, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	f.pub.AssertNoEventsPublished(t)
	f.mock.ExpectationsWereMet(t)
}

func TestTransferService_Transfer_RejectsBadInput(t *testing.T) {
	f := newTransferFixture(t)

	t.Run("zero quantity", func(t *testing.T) {
		err := f.svc.Transfer(context.Background(), f.fromID, f.toID, f.medicineID, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})

	t.Run("same source and destination", func(t *testing.T) {
		err := f.svc.Transfer(context.Background(), f.fromID, f.fromID, f.medicineID, 10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})

	f.mock.ExpectationsWereMet(t)
}

func TestTransferService_CreateRequest(t *testing.T) {
	f := newTransferFixture(t)

	requestedBy := uuid.New().String()
	adminID := uuid.New().String()
	adminRole := "ADMIN"

	f.expectValidationLookups()

	f.mock.ExpectQuery("INSERT INTO stock_transfers").
		WithArgs(testutil.AnyUUID{}, f.medicineID, f.fromID, f.toID, 20,
			repository.TransferStatusPending, requestedBy, nil).
		WillReturnRows(testutil.MockRows("request_date").AddRow(time.Now()))

	// Admin users get notified about the new request
	f.mock.ExpectQuery("FROM user_cache").
		WithArgs(pq.Array([]string{"ADMIN", "MANAGER"})).
		WillReturnRows(testutil.MockRows("user_id", "first_name", "last_name", "email", "role_name", "branch_id").
			AddRow(adminID, "Greta", "Lang", nil, &adminRole, nil))
	f.mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(testutil.AnyUUID{}, adminID, repository.NotificationTransfer, sqlmock.AnyArg(), testutil.AnyUUID{}).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	transfer := &repository.StockTransfer{
		MedicineID:   f.medicineID,
		FromBranchID: f.fromID,
		ToBranchID:   f.toID,
		Quantity:     20,
		RequestedBy:  requestedBy,
	}
	err := f.svc.CreateRequest(context.Background(), transfer)
	require.NoError(t, err)

	assert.Equal(t, repository.TransferStatusPending, transfer.Status)
	f.pub.AssertEventPublished(t, messaging.EventTransferRequested)
	f.mock.ExpectationsWereMet(t)
}

func TestTransferService_ProcessRequest_CompletedMovesStock(t *testing.T) {
	f := newTransferFixture(t)

	transferID := uuid.New().String()
	processedBy := uuid.New().String()
	stockA := uuid.New().String()
	batchA := uuid.New().String()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT * FROM stock_transfers WHERE id = $1 FOR UPDATE").
		WithArgs(transferID).
		WillReturnRows(testutil.MockRows(transferColumns...).
			AddRow(transferID, f.medicineID, f.fromID, f.toID, 40,
				repository.TransferStatusPending, time.Now(), nil,
				uuid.New().String(), nil, nil))
	f.mock.ExpectQuery("FOR UPDATE OF s").
		WithArgs(f.fromID, f.medicineID).
		WillReturnRows(testutil.MockRows(stockColumns...).
			AddRow(stockA, f.medicineID, batchA, f.fromID, 60, time.Now()))
	f.mock.ExpectExec("UPDATE stocks").
		WithArgs(stockA, 40).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO stocks").
		WithArgs(testutil.AnyUUID{}, f.medicineID, batchA, f.toID, 40).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE stock_transfers").
		WithArgs(transferID, repository.TransferStatusCompleted, processedBy, repository.TransferStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	transfer, err := f.svc.ProcessRequest(context.Background(), transferID, repository.TransferStatusCompleted, processedBy)
	require.NoError(t, err)

	assert.Equal(t, repository.TransferStatusCompleted, transfer.Status)
	require.NotNil(t, transfer.ProcessedBy)
	assert.Equal(t, processedBy, *transfer.ProcessedBy)
	f.pub.AssertEventPublished(t, messaging.EventTransferCompleted)
	f.mock.ExpectationsWereMet(t)
}

func TestTransferService_ProcessRequest_RejectedMovesNothing(t *testing.T) {
	f := newTransferFixture(t)

	transferID := uuid.New().String()
	processedBy := uuid.New().String()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT * FROM stock_transfers WHERE id = $1 FOR UPDATE").
		WithArgs(transferID).
		WillReturnRows(testutil.MockRows(transferColumns...).
			AddRow(transferID, f.medicineID, f.fromID, f.toID, 40,
				repository.TransferStatusPending, time.Now(), nil,
				uuid.New().String(), nil, nil))
	f.mock.ExpectExec("UPDATE stock_transfers").
		WithArgs(transferID, repository.TransferStatusRejected, processedBy, repository.TransferStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	transfer, err := f.svc.ProcessRequest(context.Background(), transferID, repository.TransferStatusRejected, processedBy)
	require.NoError(t, err)

	assert.Equal(t, repository.TransferStatusRejected, transfer.Status)
	f.pub.AssertEventPublished(t, messaging.EventTransferRejected)
	f.mock.ExpectationsWereMet(t)
}

func TestTransferService_ProcessRequest_AlreadyProcessed(t *testing.T) {
	f := newTransferFixture(t)

	transferID := uuid.New().String()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT * FROM stock_transfers WHERE id = $1 FOR UPDATE").
		WithArgs(transferID).
		WillReturnRows(testutil.MockRows(transferColumns...).
			AddRow(transferID, f.medicineID, f.fromID, f.toID, 40,
				repository.TransferStatusCompleted, time.Now(), time.Now(),
				uuid.New().String(), uuid.New().String(), nil))
	f.mock.ExpectRollback()

	_, err := f.svc.ProcessRequest(context.Background(), transferID, repository.TransferStatusRejected, uuid.New().String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	f.pub.AssertNoEventsPublished(t)
	f.mock.ExpectationsWereMet(t)
}

func TestTransferService_ProcessRequest_UnknownDecision(t *testing.T) {
	f := newTransferFixture(t)

	_, err := f.svc.ProcessRequest(context.Background(), uuid.New().String(), "APPROVED", uuid.New().String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	f.mock.ExpectationsWereMet(t)
}
