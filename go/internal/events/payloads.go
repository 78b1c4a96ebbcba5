package events

import (
	"time"

	"github.com/mcdev12/roulette-tablet/go/internal/models"
)

// StateSyncedPayload carries a freshly applied snapshot.
type StateSyncedPayload struct {
	Sequence uint64            `json:"sequence"`
	State    *models.GameState `json:"state"`
	SyncedAt time.Time         `json:"synced_at"`
}

// SyncFailedPayload is emitted when a poll fails.
type SyncFailedPayload struct {
	Error   string `json:"error"`
	Initial bool   `json:"initial"`
}

// MessageShownPayload is emitted when a new broadcast message becomes visible.
type MessageShownPayload struct {
	Message models.Message `json:"message"`
}

// ActionPopupPayload is emitted once per new last_action timestamp.
type ActionPopupPayload struct {
	Action models.LastAction `json:"action"`
}

// ClearedPayload is emitted when a message or popup goes away.
type ClearedPayload struct {
	Reason string `json:"reason"` // "expired" or "dismissed"
}

// GameOverPayload is emitted once when the service reports the game as over.
type GameOverPayload struct {
	Winner *models.Player `json:"winner,omitempty"`
}

// SerialStatusPayload reports device connect/disconnect.
type SerialStatusPayload struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SerialDiagnosticPayload reports device lines and dispatch failures.
type SerialDiagnosticPayload struct {
	Kind  string `json:"kind"`
	Line  string `json:"line,omitempty"`
	Item  string `json:"item,omitempty"`
	Error string `json:"error,omitempty"`
}
