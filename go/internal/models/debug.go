package models

// DebugSessionID is the id of the fixed local snapshot.
const DebugSessionID = "debug-session"

// DebugSnapshot returns the fixed snapshot used when the tablet runs without a server.
func DebugSnapshot() *GameState {
	return &GameState{
		ID:    DebugSessionID,
		Round: 2,
		Players: []Player{
			{ID: 1, Name: "Player 1", Lives: 2, MaxLives: 4, Items: []string{"beer", "magnifying_glass"}, IsHuman: true},
			{ID: 2, Name: "Player 2", Lives: 4, MaxLives: 4, Items: []string{"handcuffs"}, IsHuman: true},
			{ID: 3, Name: "Player 3", Lives: 1, MaxLives: 4, Items: []string{}, IsHuman: true},
			{ID: 4, Name: "Player 4", Lives: 3, MaxLives: 4, Items: []string{"saw", "cigarette"}, IsHuman: true},
		},
		CurrentPlayerIndex: 0,
		Shotgun: Shotgun{
			LiveShells:  3,
			BlankShells: 2,
		},
		Dealer:       map[string]interface{}{},
		ItemsOnTable: []string{},
		TurnLog:      []string{"Round started"},
		Messages:     []Message{},
	}
}
