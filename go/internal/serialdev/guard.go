package serialdev

import (
	"fmt"
	"sync"
)

// PortGuard makes sure a port is held by one device at a time within the process.
type PortGuard struct {
	mu    sync.Mutex
	owned map[string]bool
}

func NewPortGuard() *PortGuard {
	return &PortGuard{owned: make(map[string]bool)}
}

func (g *PortGuard) claim(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owned[name] {
		return fmt.Errorf("%w: %s is held by another session", ErrPortBusy, name)
	}
	g.owned[name] = true
	return nil
}

func (g *PortGuard) release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.owned, name)
}
