package events

import (
	"context"

	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
	"github.com/pharmtrack/pharmtrack-backend/pkg/messaging"
)

// Publisher is the publishing surface the event publisher needs. Satisfied
// by messaging.Publisher and by the test mock.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// PharmacyEventPublisher publishes pharmacy domain events
type PharmacyEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewPharmacyEventPublisher creates a publisher bound to the pharmacy
// events exchange
func NewPharmacyEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PharmacyEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &PharmacyEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// NewWithPublisher wires an alternative publisher implementation, used in tests
func NewWithPublisher(p Publisher, log *logger.Logger) *PharmacyEventPublisher {
	return &PharmacyEventPublisher{publisher: p, logger: log}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *PharmacyEventPublisher) PublishStockAdjusted(ctx context.Context, stock *repository.Stock, adjustment int, performedBy, reason string) {
	if p == nil {
		return
	}

	data := messaging.StockAdjustedEvent{
		StockID:     stock.ID,
		MedicineID:  stock.MedicineID,
		BatchID:     stock.BatchID,
		BranchID:    stock.BranchID,
		Adjustment:  adjustment,
		NewQuantity: stock.CurrentQuantity,
		PerformedBy: performedBy,
		Reason:      reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("stock_id", stock.ID).Msg("failed to publish stock adjusted event")
	}
}

// PublishStockReceived publishes a stock received event
func (p *PharmacyEventPublisher) PublishStockReceived(ctx context.Context, stock *repository.Stock, receivedBy string) {
	if p == nil {
		return
	}

	data := messaging.StockReceivedEvent{
		StockID:    stock.ID,
		MedicineID: stock.MedicineID,
		BatchID:    stock.BatchID,
		BranchID:   stock.BranchID,
		Quantity:   stock.CurrentQuantity,
		ReceivedBy: receivedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("stock_id", stock.ID).Msg("failed to publish stock received event")
	}
}

// PublishTransferRequested publishes a transfer requested event
func (p *PharmacyEventPublisher) PublishTransferRequested(ctx context.Context, transfer *repository.StockTransfer) {
	if p == nil {
		return
	}

	data := messaging.TransferRequestedEvent{
		TransferID:   transfer.ID,
		MedicineID:   transfer.MedicineID,
		FromBranchID: transfer.FromBranchID,
		ToBranchID:   transfer.ToBranchID,
		Quantity:     transfer.Quantity,
		RequestedBy:  transfer.RequestedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferRequested, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to publish transfer requested event")
	}
}

// PublishTransferCompleted publishes a transfer completed event
func (p *PharmacyEventPublisher) PublishTransferCompleted(ctx context.Context, transfer *repository.StockTransfer, processedBy string) {
	if p == nil {
		return
	}

	data := messaging.TransferCompletedEvent{
		TransferID:   transfer.ID,
		MedicineID:   transfer.MedicineID,
		FromBranchID: transfer.FromBranchID,
		ToBranchID:   transfer.ToBranchID,
		Quantity:     transfer.Quantity,
		ProcessedBy:  processedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to publish transfer completed event")
	}
}

// PublishTransferRejected publishes a transfer rejected event
func (p *PharmacyEventPublisher) PublishTransferRejected(ctx context.Context, transfer *repository.StockTransfer, processedBy, reason string) {
	if p == nil {
		return
	}

	data := messaging.TransferRejectedEvent{
		TransferID:  transfer.ID,
		ProcessedBy: processedBy,
		Reason:      reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferRejected, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to publish transfer rejected event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *PharmacyEventPublisher) PublishAlertGenerated(ctx context.Context, data messaging.AlertGeneratedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_type", data.AlertType).Msg("failed to publish alert generated event")
	}
}
