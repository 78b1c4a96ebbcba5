package session

import (
	"context"
	"sync"
	"testing"

	"github.com/mcdev12/roulette-tablet/go/internal/events"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/stretchr/testify/require"
)

type call struct {
	Method string
	Req    models.ActionRequest
	Item   string
}

// fakeGameService is an in-memory stand-in for the remote game service.
type fakeGameService struct {
	mu        sync.Mutex
	state     *models.GameState
	fetchErr  error
	writeErr  error
	calls     []call
	fetches   int
	fetchHook func(n int) // runs after the snapshot is taken, before it is returned
}

func newFakeGameService(state *models.GameState) *fakeGameService {
	return &fakeGameService{state: state}
}

func (f *fakeGameService) FetchState(ctx context.Context, gameID string) (*models.GameState, error) {
	f.mu.Lock()
	f.fetches++
	n := f.fetches
	hook := f.fetchHook
	err := f.fetchErr
	// Hand out a copy so every poll looks like a fresh decode.
	snapshot := *f.state
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (f *fakeGameService) SubmitAction(ctx context.Context, gameID string, req models.ActionRequest) (*models.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: "submit_action", Req: req})
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	if req.Action == models.ActionUseItem && f.state.PendingInteraction != nil && req.TargetID != nil {
		next := *f.state
		next.PendingInteraction = nil
		f.state = &next
	}
	return &models.Ack{}, nil
}

func (f *fakeGameService) StartInteraction(ctx context.Context, gameID, itemName string) (*models.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: "start_interaction", Item: itemName})
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	next := *f.state
	source := 0
	if cp := next.CurrentPlayer(); cp != nil {
		source = cp.ID
	}
	next.PendingInteraction = &models.PendingInteraction{Type: "target_selection", Source: source, Item: itemName}
	f.state = &next
	return &models.Ack{}, nil
}

func (f *fakeGameService) CancelInteraction(ctx context.Context, gameID string) (*models.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: "cancel_interaction"})
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	next := *f.state
	next.PendingInteraction = nil
	f.state = &next
	return &models.Ack{}, nil
}

func (f *fakeGameService) setState(mutate func(g *models.GameState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := *f.state
	mutate(&next)
	f.state = &next
}

func (f *fakeGameService) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeGameService) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeGameService) recordedCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeGameService) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Notify(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// syncedSequences returns the sequence of every StateSynced event in delivery order.
func (r *eventRecorder) syncedSequences(t *testing.T) []uint64 {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var seqs []uint64
	for _, ev := range r.events {
		if ev.Type != events.EventTypeStateSynced {
			continue
		}
		payload, err := events.ParsePayload(ev)
		require.NoError(t, err)
		seqs = append(seqs, payload.(*events.StateSyncedPayload).Sequence)
	}
	return seqs
}
