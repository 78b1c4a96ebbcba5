package session

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roulette-tablet/go/internal/events"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	clearExpired   = "expired"
	clearDismissed = "dismissed"
)

// notices is the client-local display state derived from polled snapshots.
// Every field is guarded by Session.mu.
type notices struct {
	message        *models.Message
	lastMessageKey string
	messageGen     uint64
	messageTimer   clockwork.Timer

	popup        *models.LastAction
	lastActionTS float64
	popupGen     uint64
	popupTimer   clockwork.Timer
}

func (n *notices) stopTimers() {
	if n.messageTimer != nil {
		n.messageTimer.Stop()
		n.messageTimer = nil
	}
	if n.popupTimer != nil {
		n.popupTimer.Stop()
		n.popupTimer = nil
	}
}

// deriveNoticesLocked compares a fresh snapshot against what this tablet has
// already shown. The service resends the full message list and last action on
// every poll, so both are de-duplicated here.
func (s *Session) deriveNoticesLocked(state *models.GameState) []events.Event {
	var out []events.Event

	if latest := state.LatestMessage(); latest != nil && latest.Key() != s.notices.lastMessageKey {
		s.notices.lastMessageKey = latest.Key()
		out = append(out, s.showMessageLocked(*latest)...)
	}

	if la := state.LastAction; la != nil && la.Timestamp > s.notices.lastActionTS {
		s.notices.lastActionTS = la.Timestamp
		out = append(out, s.showPopupLocked(*la)...)
	}

	return out
}

func (s *Session) showMessageLocked(msg models.Message) []events.Event {
	n := &s.notices
	n.message = &msg
	n.messageGen++
	if n.messageTimer != nil {
		n.messageTimer.Stop()
		n.messageTimer = nil
	}

	if msg.Duration != nil && *msg.Duration > 0 {
		gen := n.messageGen
		d := time.Duration(*msg.Duration * float64(time.Second))
		n.messageTimer = s.clock.AfterFunc(d, func() {
			s.expireMessage(gen)
		})
	}

	log.Info().Str("game_id", s.gameID).Str("content", msg.Content).Msg("broadcast message")
	return s.eventsLocked(events.EventTypeMessageShown, events.MessageShownPayload{Message: msg})
}

func (s *Session) expireMessage(gen uint64) {
	s.mu.Lock()
	if s.stopped || s.notices.messageGen != gen || s.notices.message == nil {
		s.mu.Unlock()
		return
	}
	s.notices.message = nil
	s.notices.messageTimer = nil
	evs := s.eventsLocked(events.EventTypeMessageCleared, events.ClearedPayload{Reason: clearExpired})
	s.unlockAndEmit(evs)
}

// DismissMessage hides the visible message. It stays hidden until a different
// message arrives.
func (s *Session) DismissMessage() bool {
	s.mu.Lock()
	n := &s.notices
	if n.message == nil {
		s.mu.Unlock()
		return false
	}
	n.message = nil
	n.messageGen++
	if n.messageTimer != nil {
		n.messageTimer.Stop()
		n.messageTimer = nil
	}
	evs := s.eventsLocked(events.EventTypeMessageCleared, events.ClearedPayload{Reason: clearDismissed})
	s.unlockAndEmit(evs)
	return true
}

func (s *Session) showPopupLocked(action models.LastAction) []events.Event {
	n := &s.notices
	n.popup = &action
	n.popupGen++
	if n.popupTimer != nil {
		n.popupTimer.Stop()
	}

	gen := n.popupGen
	n.popupTimer = s.clock.AfterFunc(s.popupDuration, func() {
		s.expirePopup(gen)
	})

	log.Info().
		Str("game_id", s.gameID).
		Str("type", string(action.Type)).
		Str("source", action.Source).
		Str("result", action.Result).
		Msg("action resolved")
	return s.eventsLocked(events.EventTypeActionPopup, events.ActionPopupPayload{Action: action})
}

func (s *Session) expirePopup(gen uint64) {
	s.mu.Lock()
	if s.stopped || s.notices.popupGen != gen || s.notices.popup == nil {
		s.mu.Unlock()
		return
	}
	s.notices.popup = nil
	s.notices.popupTimer = nil
	evs := s.eventsLocked(events.EventTypePopupCleared, events.ClearedPayload{Reason: clearExpired})
	s.unlockAndEmit(evs)
}
