package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope pushed to tablet subscribers and publishers.
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	GameID    string          `json:"game_id"`   // Game the session is bound to
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Creation time on this tablet
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of tablet event
type EventType string

const (
	EventTypeStateSynced      EventType = "StateSynced"
	EventTypeSyncFailed       EventType = "SyncFailed"
	EventTypeMessageShown     EventType = "MessageShown"
	EventTypeMessageCleared   EventType = "MessageCleared"
	EventTypeActionPopup      EventType = "ActionPopup"
	EventTypePopupCleared     EventType = "PopupCleared"
	EventTypeGameOver         EventType = "GameOver"
	EventTypeSerialStatus     EventType = "SerialStatus"
	EventTypeSerialDiagnostic EventType = "SerialDiagnostic"
)

// New builds an envelope around payload.
func New(gameID string, eventType EventType, payload interface{}, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New().String(),
		GameID:    gameID,
		Type:      eventType,
		Timestamp: now,
		Data:      data,
	}, nil
}

// ParsePayload decodes event data into the payload struct for its type.
func ParsePayload(event Event) (interface{}, error) {
	var target interface{}
	switch event.Type {
	case EventTypeStateSynced:
		target = &StateSyncedPayload{}
	case EventTypeSyncFailed:
		target = &SyncFailedPayload{}
	case EventTypeMessageShown:
		target = &MessageShownPayload{}
	case EventTypeMessageCleared, EventTypePopupCleared:
		target = &ClearedPayload{}
	case EventTypeActionPopup:
		target = &ActionPopupPayload{}
	case EventTypeGameOver:
		target = &GameOverPayload{}
	case EventTypeSerialStatus:
		target = &SerialStatusPayload{}
	case EventTypeSerialDiagnostic:
		target = &SerialDiagnosticPayload{}
	default:
		return nil, nil // Unknown event type
	}
	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}
