package payment

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"

	"github.com/quizlabhq/quizlab-backend/pkg/enums"
)

// Event is the normalized view of a provider webhook payload. TargetStatus is
// nil for event types the reconciler deliberately ignores.
type Event struct {
	Type            string
	OrderID         string
	ProviderOrderID string
	TargetStatus    *enums.OrderStatus
	CustomerEmail   string
}

var targetStatusByEventType = map[string]enums.OrderStatus{
	"payment.succeeded": enums.OrderStatusPaid,
	"payment.captured":  enums.OrderStatusPaid,
	"payment.failed":    enums.OrderStatusFailed,
	"payment.cancelled": enums.OrderStatusFailed,
}

type rawEvent struct {
	EventType *string         `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type rawEventData struct {
	ID            string            `json:"id"`
	OrderID       string            `json:"order_id"`
	TransactionID string            `json:"transaction_id"`
	CustomerEmail string            `json:"customer_email"`
	Email         string            `json:"email"`
	Metadata      map[string]string `json:"metadata"`
	CustomData    map[string]string `json:"custom_data"`
}

// ParseEvent validates the payload shape and maps it to a normalized Event.
// A missing event_type or data field is a hard parse failure; an unknown
// event_type parses fine and simply carries no target status.
func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	if raw.EventType == nil || strings.TrimSpace(*raw.EventType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event_type is required")
	}
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "data is required")
	}

	var data rawEventData
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook data")
	}

	eventType := strings.TrimSpace(*raw.EventType)
	event := &Event{Type: eventType}

	if status, ok := targetStatusByEventType[eventType]; ok {
		target := status
		event.TargetStatus = &target
	}

	// Identifier extraction prefers custom metadata over top-level fields;
	// whitespace-only values count as absent.
	event.OrderID = firstPresent(
		data.Metadata["order_id"],
		data.CustomData["order_id"],
		data.OrderID,
	)
	event.ProviderOrderID = firstPresent(
		data.TransactionID,
		data.ID,
		data.OrderID,
	)
	event.CustomerEmail = firstPresent(data.CustomerEmail, data.Email, data.Metadata["email"])

	return event, nil
}

func firstPresent(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
