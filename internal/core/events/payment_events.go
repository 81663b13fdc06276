package events

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle states broadcast by a payment session. These are coarser than the terminal
// payment status delivered by the poller.
const (
	StateInstanceAcquired = "instance.acquired"
	StateFlowSelected     = "flow.selected"
	StateMobileSelected   = "payment.mobile_selected"
	StateCardSelected     = "payment.card_selected"
	StatePollingStarted   = "polling.started"
	StatePollingCancelled = "polling.cancelled"
	StatePaymentCompleted = "payment.completed"
)

type StateChangedEvent struct {
	BaseEvent
	SessionID     string `json:"session_id"`
	Gateway       string `json:"gateway,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func NewStateChangedEvent(state, sessionID, gateway, transactionID string, data map[string]interface{}) *StateChangedEvent {
	payload := map[string]interface{}{
		"session_id": sessionID,
	}
	if gateway != "" {
		payload["gateway"] = gateway
	}
	if transactionID != "" {
		payload["transaction_id"] = transactionID
	}
	for k, v := range data {
		payload[k] = v
	}

	return &StateChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      state,
			Timestamp: time.Now(),
			Data:      payload,
		},
		SessionID:     sessionID,
		Gateway:       gateway,
		TransactionID: transactionID,
	}
}
