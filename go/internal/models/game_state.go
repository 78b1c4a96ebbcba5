package models

import "fmt"

// Shotgun holds the remaining shell counts.
type Shotgun struct {
	LiveShells  int  `json:"live_shells"`
	BlankShells int  `json:"blank_shells"`
	IsSawedOff  bool `json:"is_sawed_off"`
}

// TotalShells is live + blank.
func (s Shotgun) TotalShells() int {
	return s.LiveShells + s.BlankShells
}

// Message is a broadcast shown on every tablet.
type Message struct {
	Timestamp string   `json:"timestamp"`
	Content   string   `json:"content"`
	Duration  *float64 `json:"duration,omitempty"` // seconds
}

// Key identifies a message across polls; the service resends the whole list every time.
func (m Message) Key() string {
	return m.Timestamp + "|" + m.Content
}

// PendingInteraction is the server-held "select a target" mode.
type PendingInteraction struct {
	Type   string `json:"type,omitempty"`
	Source int    `json:"source"`
	Item   string `json:"item"`
}

// LastActionType distinguishes shots from item uses.
type LastActionType string

const (
	LastActionShoot LastActionType = "shoot"
	LastActionItem  LastActionType = "item"
)

// LastAction is the most recently resolved action, used for the transient popup.
type LastAction struct {
	Type      LastActionType `json:"type"`
	Source    string         `json:"source"`
	Target    string         `json:"target,omitempty"`
	Item      string         `json:"item,omitempty"`
	Result    string         `json:"result"`
	Timestamp float64        `json:"timestamp"`
}

// GameState is a full snapshot owned by the game service. It is replaced wholesale on
// every successful poll and never mutated locally.
type GameState struct {
	ID                 string                 `json:"id"`
	Round              int                    `json:"round"`
	Players            []Player               `json:"players"`
	CurrentPlayerIndex int                    `json:"current_player_index"`
	Shotgun            Shotgun                `json:"shotgun"`
	Dealer             map[string]interface{} `json:"dealer"`
	ItemsOnTable       []string               `json:"items_on_table"`
	TurnLog            []string               `json:"turn_log"`
	IsGameOver         bool                   `json:"is_game_over"`
	Winner             *Player                `json:"winner"`
	Messages           []Message              `json:"messages"`
	PendingInteraction *PendingInteraction    `json:"pending_interaction"`
	LastAction         *LastAction            `json:"last_action"`
}

// CurrentPlayer returns the player whose turn it is, or nil once the game is over
// or when the index is out of range.
func (g *GameState) CurrentPlayer() *Player {
	if g == nil || g.IsGameOver {
		return nil
	}
	if g.CurrentPlayerIndex < 0 || g.CurrentPlayerIndex >= len(g.Players) {
		return nil
	}
	return &g.Players[g.CurrentPlayerIndex]
}

// PlayerByID looks a player up by its server id.
func (g *GameState) PlayerByID(id int) *Player {
	if g == nil {
		return nil
	}
	for i := range g.Players {
		if g.Players[i].ID == id {
			return &g.Players[i]
		}
	}
	return nil
}

// LatestMessage returns the last broadcast message, if any.
func (g *GameState) LatestMessage() *Message {
	if g == nil || len(g.Messages) == 0 {
		return nil
	}
	m := g.Messages[len(g.Messages)-1]
	return &m
}

// TargetableIDs lists the players that can be picked while an interaction is pending.
// The initiating player is never a valid target.
func (g *GameState) TargetableIDs() []int {
	if g == nil || g.PendingInteraction == nil {
		return nil
	}
	ids := make([]int, 0, len(g.Players))
	for _, p := range g.Players {
		if p.ID != g.PendingInteraction.Source {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Validate checks the structural invariants of a snapshot. The service is
// authoritative, so callers only log violations.
func (g *GameState) Validate() error {
	if g == nil {
		return fmt.Errorf("nil game state")
	}
	if !g.IsGameOver && (g.CurrentPlayerIndex < 0 || g.CurrentPlayerIndex >= len(g.Players)) {
		return fmt.Errorf("current_player_index %d out of range for %d players", g.CurrentPlayerIndex, len(g.Players))
	}
	if g.Shotgun.LiveShells < 0 || g.Shotgun.BlankShells < 0 {
		return fmt.Errorf("negative shell count: live=%d blank=%d", g.Shotgun.LiveShells, g.Shotgun.BlankShells)
	}
	for _, p := range g.Players {
		if p.Lives > p.MaxLives {
			return fmt.Errorf("player %d has %d lives, max %d", p.ID, p.Lives, p.MaxLives)
		}
	}
	return nil
}
