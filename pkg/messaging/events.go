package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// User directory events (consumed)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Stock events
	EventStockAdjusted = "pharmacy.stock.adjusted"
	EventStockReceived = "pharmacy.stock.received"

	// Transfer events
	EventTransferRequested = "pharmacy.transfer.requested"
	EventTransferCompleted = "pharmacy.transfer.completed"
	EventTransferRejected  = "pharmacy.transfer.rejected"

	// Alert events
	EventAlertGenerated = "pharmacy.alert.generated"
)

// Exchange names
const (
	ExchangeUserEvents     = "user.events"
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Directory Events (consumed to keep the local user cache in sync)

// UserCreatedEvent is published by the user directory when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
	BranchID  string `json:"branch_id,omitempty"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent is published by the user directory when a user is updated
type UserUpdatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
	BranchID  string `json:"branch_id,omitempty"`
}

// UserDeletedEvent is published by the user directory when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Stock Events

// StockAdjustedEvent is published when a stock row's quantity changes
type StockAdjustedEvent struct {
	StockID     string `json:"stock_id"`
	MedicineID  string `json:"medicine_id"`
	BatchID     string `json:"batch_id"`
	BranchID    string `json:"branch_id"`
	Adjustment  int    `json:"adjustment"`
	NewQuantity int    `json:"new_quantity"`
	PerformedBy string `json:"performed_by"`
	Reason      string `json:"reason"`
}

// StockReceivedEvent is published when new stock is received at a branch
type StockReceivedEvent struct {
	StockID    string `json:"stock_id"`
	MedicineID string `json:"medicine_id"`
	BatchID    string `json:"batch_id"`
	BranchID   string `json:"branch_id"`
	Quantity   int    `json:"quantity"`
	ReceivedBy string `json:"received_by"`
}

// Transfer Events

// TransferRequestedEvent is published when a transfer request is created
type TransferRequestedEvent struct {
	TransferID   string `json:"transfer_id"`
	MedicineID   string `json:"medicine_id"`
	FromBranchID string `json:"from_branch_id"`
	ToBranchID   string `json:"to_branch_id"`
	Quantity     int    `json:"quantity"`
	RequestedBy  string `json:"requested_by"`
}

// TransferCompletedEvent is published when a transfer request is approved
// and the stock has moved
type TransferCompletedEvent struct {
	TransferID   string `json:"transfer_id"`
	MedicineID   string `json:"medicine_id"`
	FromBranchID string `json:"from_branch_id"`
	ToBranchID   string `json:"to_branch_id"`
	Quantity     int    `json:"quantity"`
	ProcessedBy  string `json:"processed_by"`
}

// TransferRejectedEvent is published when a transfer request is rejected
type TransferRejectedEvent struct {
	TransferID  string `json:"transfer_id"`
	ProcessedBy string `json:"processed_by"`
	Reason      string `json:"reason,omitempty"`
}

// Alert Events

// AlertGeneratedEvent is published when the alert scanner flags a stock
// or expiry condition
type AlertGeneratedEvent struct {
	AlertType  string    `json:"alert_type"` // LOW_STOCK or EXPIRING
	Message    string    `json:"message"`
	MedicineID string    `json:"medicine_id,omitempty"`
	BatchID    string    `json:"batch_id,omitempty"`
	BranchID   string    `json:"branch_id,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	ExpiryDate time.Time `json:"expiry_date,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
