package models

import "strconv"

// Player is a seat at the table as reported by the game service.
type Player struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Lives     int      `json:"lives"`
	MaxLives  int      `json:"max_lives"`
	Items     []string `json:"items"`
	IsHuman   bool     `json:"is_human"`
	IsSkipped bool     `json:"is_skipped,omitempty"`
}

// DisplayName falls back to "Player <id>" when the service sent no name.
func (p Player) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "Player " + strconv.Itoa(p.ID)
}

// ItemCounts groups held items by name, keeping acquisition order of first appearance.
func (p Player) ItemCounts() []ItemCount {
	var counts []ItemCount
	index := make(map[string]int)
	for _, item := range p.Items {
		if i, ok := index[item]; ok {
			counts[i].Count++
			continue
		}
		index[item] = len(counts)
		counts = append(counts, ItemCount{Name: item, Count: 1})
	}
	return counts
}

// ItemCount is one row of a grouped inventory.
type ItemCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
