package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roulette-tablet/go/clients"
	"github.com/mcdev12/roulette-tablet/go/internal/events"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/mcdev12/roulette-tablet/go/internal/serialdev"
	"github.com/rs/zerolog/log"
)

var (
	// ErrStopped is returned by operations on a session that has been torn down.
	ErrStopped = errors.New("session stopped")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNoPendingInteraction is returned when a target is selected but the last
	// snapshot reported no pending interaction.
	ErrNoPendingInteraction = errors.New("no pending interaction")

	// ErrSerialDisabled is returned when the session was built without a serial device.
	ErrSerialDisabled = errors.New("serial device not configured")
)

// GameClient is the transport to the remote game service.
type GameClient interface {
	FetchState(ctx context.Context, gameID string) (*models.GameState, error)
	SubmitAction(ctx context.Context, gameID string, req models.ActionRequest) (*models.Ack, error)
	StartInteraction(ctx context.Context, gameID, itemName string) (*models.Ack, error)
	CancelInteraction(ctx context.Context, gameID string) (*models.Ack, error)
}

// Notifier receives session events.
type Notifier interface {
	Notify(event events.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(events.Event) {}

// Phase is the synchronization state of a session.
type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseError           Phase = "error"
	PhaseSynced          Phase = "synced"
	PhaseSyncedWithError Phase = "synced_with_error"
	PhaseGameOver        Phase = "game_over"
)

const (
	msgConnectFailed = "Failed to connect to game server."
	msgGameNotFound  = "Game not found."
)

// Session keeps a local copy of one game's state in sync with the game service
// and routes operator and device actions to it.
type Session struct {
	id     string
	gameID string
	client GameClient
	clock  clockwork.Clock

	pollInterval     time.Duration
	popupDuration    time.Duration
	interactionItems map[string]bool
	notifier         Notifier
	debug            bool

	serialEnabled bool
	serialOpts    []serialdev.DeviceOption
	device        *serialdev.Device

	issuedSeq atomic.Uint64

	// emitMu orders notifier delivery. It is only ever acquired while holding mu.
	emitMu sync.Mutex

	mu           sync.Mutex
	state        *models.GameState
	appliedSeq   uint64
	phase        Phase
	loading      bool
	errMessage   string
	syncErr      string
	lastSyncedAt time.Time
	gameOverSent bool
	notices      notices

	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a session for gameID. It does nothing until Start.
func New(gameID string, client GameClient, opts ...Option) *Session {
	s := &Session{
		id:            uuid.New().String()[:8],
		gameID:        gameID,
		client:        client,
		clock:         clockwork.NewRealClock(),
		pollInterval:  DefaultPollInterval,
		popupDuration: DefaultPopupDuration,
		notifier:      nopNotifier{},
		phase:         PhaseUninitialized,
		loading:       true,
	}
	WithInteractionItems(DefaultInteractionItems...)(s)

	for _, opt := range opts {
		opt(s)
	}

	if s.serialEnabled {
		adapter := serialdev.NewAdapter(s, s.onSerialDiagnostic)
		opts := append([]serialdev.DeviceOption{serialdev.WithStatusHandler(s.onSerialStatus)}, s.serialOpts...)
		s.device = serialdev.NewDevice(adapter, opts...)
	}

	return s
}

// GameID returns the game this session is bound to.
func (s *Session) GameID() string {
	return s.gameID
}

// Start launches the poll task. The first fetch happens immediately.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.pollLoop(runCtx)

	log.Info().
		Str("session", s.id).
		Str("game_id", s.gameID).
		Dur("poll_interval", s.pollInterval).
		Bool("debug", s.debug).
		Msg("session started")
	return nil
}

// Stop cancels the poll task, clears notification timers, closes the serial
// device and waits for every task to finish. Late responses are discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.notices.stopTimers()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.device != nil {
		if err := s.device.Close(); err != nil {
			log.Error().Err(err).Str("game_id", s.gameID).Msg("failed to close serial device")
		}
	}
	s.wg.Wait()

	log.Info().Str("session", s.id).Str("game_id", s.gameID).Msg("session stopped")
}

func (s *Session) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	s.poll(ctx)
	if s.debug {
		return
	}

	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.poll(ctx)
		}
	}
}

func (s *Session) poll(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrStopped) && ctx.Err() == nil {
		log.Debug().Err(err).Str("game_id", s.gameID).Msg("poll failed")
	}
}

// Refresh fetches the state now. Responses older than the last applied one are
// dropped, so an out-of-band refresh racing a timer poll can never roll the view back.
func (s *Session) Refresh(ctx context.Context) error {
	if s.isStopped() {
		return ErrStopped
	}

	seq := s.issuedSeq.Add(1)
	state, err := s.client.FetchState(ctx, s.gameID)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if seq < s.appliedSeq {
		s.mu.Unlock()
		log.Debug().Uint64("seq", seq).Str("game_id", s.gameID).Msg("discarding stale response")
		return err
	}

	var pending []events.Event
	if err != nil {
		pending = s.applyFailureLocked(err)
	} else {
		pending = s.applyStateLocked(seq, state)
	}
	s.unlockAndEmit(pending)
	return err
}

func (s *Session) applyFailureLocked(err error) []events.Event {
	initial := s.state == nil
	s.loading = false

	if initial {
		s.phase = PhaseError
		s.errMessage = msgConnectFailed
		if errors.Is(err, clients.ErrNotFound) {
			s.errMessage = msgGameNotFound
		}
		log.Error().Err(err).Str("game_id", s.gameID).Msg("failed to fetch game state")
	} else {
		// Keep the last good snapshot on screen.
		if s.phase != PhaseGameOver {
			s.phase = PhaseSyncedWithError
		}
		s.syncErr = err.Error()
		log.Warn().Err(err).Str("game_id", s.gameID).Msg("failed to refresh game state")
	}

	return s.eventsLocked(events.EventTypeSyncFailed, events.SyncFailedPayload{
		Error:   err.Error(),
		Initial: initial,
	})
}

func (s *Session) applyStateLocked(seq uint64, state *models.GameState) []events.Event {
	if state == nil {
		return s.applyFailureLocked(fmt.Errorf("%w: empty state", clients.ErrConnection))
	}
	if err := state.Validate(); err != nil {
		log.Warn().Err(err).Str("game_id", s.gameID).Msg("game state violates invariants")
	}

	s.appliedSeq = seq
	s.state = state
	s.loading = false
	s.errMessage = ""
	s.syncErr = ""
	s.lastSyncedAt = s.clock.Now()

	if state.IsGameOver {
		s.phase = PhaseGameOver
	} else {
		s.phase = PhaseSynced
	}

	out := s.eventsLocked(events.EventTypeStateSynced, events.StateSyncedPayload{
		Sequence: seq,
		State:    state,
		SyncedAt: s.lastSyncedAt,
	})
	out = append(out, s.deriveNoticesLocked(state)...)

	if state.IsGameOver && !s.gameOverSent {
		s.gameOverSent = true
		log.Info().Str("game_id", s.gameID).Msg("game over")
		out = append(out, s.eventsLocked(events.EventTypeGameOver, events.GameOverPayload{Winner: state.Winner})...)
	}
	return out
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// eventsLocked builds an event; a marshalling failure is logged and yields nothing.
func (s *Session) eventsLocked(eventType events.EventType, payload interface{}) []events.Event {
	ev, err := events.New(s.gameID, eventType, payload, s.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return nil
	}
	return []events.Event{ev}
}

// unlockAndEmit releases s.mu and delivers evs. emitMu is taken before s.mu is
// let go, so events reach the notifier in the order they were built.
func (s *Session) unlockAndEmit(evs []events.Event) {
	if len(evs) == 0 {
		s.mu.Unlock()
		return
	}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	for _, ev := range evs {
		s.notifier.Notify(ev)
	}
}

func (s *Session) emitEvent(eventType events.EventType, payload interface{}) {
	s.mu.Lock()
	evs := s.eventsLocked(eventType, payload)
	s.unlockAndEmit(evs)
}
