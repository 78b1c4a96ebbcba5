package session

import (
	"time"

	"github.com/mcdev12/roulette-tablet/go/internal/models"
)

// View is everything a tablet needs to render. State points at the immutable
// snapshot last applied; callers must not modify it.
type View struct {
	GameID             string                     `json:"game_id"`
	Phase              Phase                      `json:"phase"`
	Loading            bool                       `json:"loading"`
	Error              string                     `json:"error,omitempty"`
	SyncError          string                     `json:"sync_error,omitempty"`
	Debug              bool                       `json:"debug"`
	State              *models.GameState          `json:"state,omitempty"`
	CurrentPlayer      *models.Player             `json:"current_player,omitempty"`
	CurrentPlayerName  string                     `json:"current_player_name,omitempty"`
	CurrentItems       []models.ItemCount         `json:"current_items,omitempty"`
	ShellsRemaining    int                        `json:"shells_remaining"`
	WinnerName         string                     `json:"winner_name,omitempty"`
	Actionable         bool                       `json:"actionable"`
	PendingInteraction *models.PendingInteraction `json:"pending_interaction,omitempty"`
	InteractionSource  string                     `json:"interaction_source,omitempty"`
	TargetableIDs      []int                      `json:"targetable_ids,omitempty"`
	VisibleMessage     *models.Message            `json:"visible_message,omitempty"`
	ActionPopup        *models.LastAction         `json:"action_popup,omitempty"`
	SerialEnabled      bool                       `json:"serial_enabled"`
	SerialConnected    bool                       `json:"serial_connected"`
	SerialPort         string                     `json:"serial_port,omitempty"`
	LastSyncedAt       *time.Time                 `json:"last_synced_at,omitempty"`
	Sequence           uint64                     `json:"sequence"`
}

// View returns a consistent copy of the session's display state.
func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		GameID:    s.gameID,
		Phase:     s.phase,
		Loading:   s.loading,
		Error:     s.errMessage,
		SyncError: s.syncErr,
		Debug:     s.debug,
		State:     s.state,
		Sequence:  s.appliedSeq,
	}

	if s.state != nil {
		if cp := s.state.CurrentPlayer(); cp != nil {
			p := *cp
			v.CurrentPlayer = &p
			v.CurrentPlayerName = cp.DisplayName()
			v.CurrentItems = cp.ItemCounts()
		}
		v.ShellsRemaining = s.state.Shotgun.TotalShells()
		v.Actionable = !s.state.IsGameOver
		if s.state.Winner != nil {
			v.WinnerName = s.state.Winner.DisplayName()
		}
		if s.state.PendingInteraction != nil {
			p := *s.state.PendingInteraction
			v.PendingInteraction = &p
			v.TargetableIDs = s.state.TargetableIDs()
			if src := s.state.PlayerByID(p.Source); src != nil {
				v.InteractionSource = src.DisplayName()
			}
		}
	}
	if s.notices.message != nil {
		m := *s.notices.message
		v.VisibleMessage = &m
	}
	if s.notices.popup != nil {
		a := *s.notices.popup
		v.ActionPopup = &a
	}
	if !s.lastSyncedAt.IsZero() {
		t := s.lastSyncedAt
		v.LastSyncedAt = &t
	}
	s.mu.Unlock()

	if s.device != nil {
		v.SerialEnabled = true
		v.SerialConnected = s.device.Connected()
		v.SerialPort = s.device.PortName()
	}
	return v
}
