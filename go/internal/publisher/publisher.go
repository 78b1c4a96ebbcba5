package publisher

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/roulette-tablet/go/internal/events"
	"github.com/rs/zerolog/log"
)

// Notifier receives tablet events. Implementations must not block the caller.
type Notifier interface {
	Notify(event events.Event)
}

// Fanout forwards every event to each registered notifier.
type Fanout struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

// Add registers another notifier.
func (f *Fanout) Add(n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiers = append(f.notifiers, n)
}

func (f *Fanout) Notify(event events.Event) {
	f.mu.RLock()
	notifiers := make([]Notifier, len(f.notifiers))
	copy(notifiers, f.notifiers)
	f.mu.RUnlock()

	for _, n := range notifiers {
		n.Notify(event)
	}
}

// LogPublisher writes events to the structured log.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Notify(event events.Event) {
	entry := log.Debug()
	if !entry.Enabled() {
		return
	}

	entry = entry.
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("game_id", event.GameID)

	payload, err := events.ParsePayload(event)
	if err != nil {
		entry.Err(err).Int("size", len(event.Data)).Msg("tablet event")
		return
	}
	entry.Interface("payload", payload).Msg("tablet event")
}

// Subject builds the NATS subject for an event: <prefix>.<game_id>.<type>.
func Subject(prefix string, event events.Event) string {
	gameID := event.GameID
	if gameID == "" {
		gameID = "_"
	}
	return fmt.Sprintf("%s.%s.%s", prefix, sanitizeToken(gameID), event.Type)
}

// Envelope is the wire format published to the message bus.
func Envelope(event events.Event) ([]byte, error) {
	envelope := map[string]interface{}{
		"eventId":   event.ID,
		"eventType": event.Type,
		"gameId":    event.GameID,
		"timestamp": event.Timestamp,
		"payload":   event.Data,
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return messageBytes, nil
}

// sanitizeToken keeps game ids from splitting or wildcarding NATS subjects.
func sanitizeToken(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			out[i] = '_'
		}
	}
	return string(out)
}
