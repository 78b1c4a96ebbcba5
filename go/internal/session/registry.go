package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrMissingGameID is returned when no game id was supplied outside debug mode.
var ErrMissingGameID = errors.New("please provide a game id")

// Factory builds a session for gameID. An empty gameID asks for the debug session.
type Factory func(gameID string) *Session

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTimeout stops sessions nobody has read for d. Zero disables eviction.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithInUse reports whether something still depends on a session, such as an
// open WebSocket feed. Busy sessions are never evicted.
func WithInUse(inUse func(gameID string) bool) RegistryOption {
	return func(r *Registry) {
		r.inUse = inUse
	}
}

// WithRegistryClock sets the clock used for idle tracking.
func WithRegistryClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// Registry owns one session per game id. Sessions are created and started on
// first use and stopped on Remove, Close or idle eviction.
type Registry struct {
	ctx         context.Context
	factory     Factory
	debug       bool
	clock       clockwork.Clock
	idleTimeout time.Duration
	inUse       func(gameID string) bool

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// NewRegistry creates a registry whose sessions run under ctx.
func NewRegistry(ctx context.Context, factory Factory, debug bool, opts ...RegistryOption) *Registry {
	r := &Registry{
		ctx:      ctx,
		factory:  factory,
		debug:    debug,
		clock:    clockwork.NewRealClock(),
		inUse:    func(string) bool { return false },
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps a requested game id to its registry key. The empty id names the
// debug session and is only accepted in debug mode.
func (r *Registry) Resolve(gameID string) (string, error) {
	if gameID != "" {
		return gameID, nil
	}
	if !r.debug {
		return "", ErrMissingGameID
	}
	return models.DebugSessionID, nil
}

// Get returns the running session for gameID, starting one if needed.
func (r *Registry) Get(gameID string) (*Session, error) {
	key, err := r.Resolve(gameID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrStopped
	}
	if e, ok := r.sessions[key]; ok {
		e.lastUsed = r.clock.Now()
		return e.session, nil
	}

	s := r.factory(gameID)
	if err := s.Start(r.ctx); err != nil {
		return nil, err
	}
	r.sessions[key] = &entry{session: s, lastUsed: r.clock.Now()}

	log.Info().Str("game_id", key).Int("sessions", len(r.sessions)).Msg("session registered")
	return s, nil
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(gameID string) (*Session, bool) {
	key, err := r.Resolve(gameID)
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.clock.Now()
	return e.session, true
}

// Remove stops and forgets the session for gameID.
func (r *Registry) Remove(gameID string) bool {
	key, err := r.Resolve(gameID)
	if err != nil {
		return false
	}
	r.mu.Lock()
	e, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.session.Stop()
	log.Info().Str("game_id", key).Msg("session removed")
	return true
}

// EvictIdle stops sessions untouched for the idle timeout and returns their ids.
// A session reported busy by the in-use hook counts as touched.
func (r *Registry) EvictIdle() []string {
	if r.idleTimeout <= 0 {
		return nil
	}
	now := r.clock.Now()

	r.mu.Lock()
	var evicted []*Session
	var ids []string
	for key, e := range r.sessions {
		if r.inUse(key) {
			e.lastUsed = now
			continue
		}
		if now.Sub(e.lastUsed) < r.idleTimeout {
			continue
		}
		delete(r.sessions, key)
		evicted = append(evicted, e.session)
		ids = append(ids, key)
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, s := range evicted {
		s.Stop()
	}
	if len(ids) > 0 {
		sort.Strings(ids)
		log.Info().Strs("game_ids", ids).Int("sessions", remaining).Msg("evicted idle sessions")
	}
	return ids
}

// RunEviction sweeps for idle sessions every half idle timeout until ctx is done.
func (r *Registry) RunEviction(ctx context.Context) {
	if r.idleTimeout <= 0 {
		return
	}
	ticker := r.clock.NewTicker(r.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.EvictIdle()
		}
	}
}

// GameIDs lists the active sessions.
func (r *Registry) GameIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every session and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop()
		}(e.session)
	}
	wg.Wait()
}
