package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFactory struct {
	mu    sync.Mutex
	built map[string]int
	clock clockwork.Clock
}

func (f *countingFactory) build(gameID string) *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.built == nil {
		f.built = make(map[string]int)
	}
	f.built[gameID]++
	if gameID == "" {
		return NewDebug(WithClock(f.clock))
	}
	return New(gameID, newFakeGameService(baseState()), WithClock(f.clock))
}

func (f *countingFactory) count(gameID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[gameID]
}

func TestRegistryRequiresGameIDOutsideDebug(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	reg := NewRegistry(context.Background(), factory.build, false)
	defer reg.Close()

	_, err := reg.Get("")
	assert.ErrorIs(t, err, ErrMissingGameID)
	assert.Equal(t, 0, factory.count(""))
}

func TestRegistryReusesSessions(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	reg := NewRegistry(context.Background(), factory.build, false)
	defer reg.Close()

	a, err := reg.Get("game-a")
	require.NoError(t, err)
	again, err := reg.Get("game-a")
	require.NoError(t, err)
	b, err := reg.Get("game-b")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, 1, factory.count("game-a"))
	assert.Equal(t, []string{"game-a", "game-b"}, reg.GameIDs())

	// Sessions are started on first use.
	assert.Eventually(t, func() bool { return a.View().Phase == PhaseSynced }, time.Second, 5*time.Millisecond)

	found, ok := reg.Lookup("game-b")
	assert.True(t, ok)
	assert.Same(t, b, found)
	_, ok = reg.Lookup("game-c")
	assert.False(t, ok)
}

func TestRegistryRemove(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	reg := NewRegistry(context.Background(), factory.build, false)
	defer reg.Close()

	s, err := reg.Get("game-a")
	require.NoError(t, err)

	assert.True(t, reg.Remove("game-a"))
	assert.False(t, reg.Remove("game-a"))
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrStopped)

	fresh, err := reg.Get("game-a")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.Equal(t, 2, factory.count("game-a"))
}

func TestRegistryDebugSession(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	reg := NewRegistry(context.Background(), factory.build, true)
	defer reg.Close()

	s, err := reg.Get("")
	require.NoError(t, err)
	assert.Equal(t, models.DebugSessionID, s.GameID())

	again, err := reg.Get("")
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, []string{models.DebugSessionID}, reg.GameIDs())

	assert.True(t, reg.Remove(""))
	assert.Empty(t, reg.GameIDs())
}

func TestRegistryClose(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	reg := NewRegistry(context.Background(), factory.build, false)

	a, err := reg.Get("game-a")
	require.NoError(t, err)
	b, err := reg.Get("game-b")
	require.NoError(t, err)

	reg.Close()

	assert.Empty(t, reg.GameIDs())
	assert.ErrorIs(t, a.Refresh(context.Background()), ErrStopped)
	assert.ErrorIs(t, b.Refresh(context.Background()), ErrStopped)

	_, err = reg.Get("game-c")
	assert.ErrorIs(t, err, ErrStopped)
}

type busyGames struct {
	mu   sync.Mutex
	busy map[string]bool
}

func (b *busyGames) set(gameID string, busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy == nil {
		b.busy = make(map[string]bool)
	}
	b.busy[gameID] = busy
}

func (b *busyGames) inUse(gameID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy[gameID]
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	regClock := clockwork.NewFakeClock()
	busy := &busyGames{}
	reg := NewRegistry(context.Background(), factory.build, false,
		WithRegistryClock(regClock),
		WithIdleTimeout(time.Minute),
		WithInUse(busy.inUse),
	)
	defer reg.Close()

	a, err := reg.Get("game-a")
	require.NoError(t, err)
	b, err := reg.Get("game-b")
	require.NoError(t, err)

	regClock.Advance(30 * time.Second)
	_, err = reg.Get("game-a")
	require.NoError(t, err)
	regClock.Advance(31 * time.Second)

	assert.Equal(t, []string{"game-b"}, reg.EvictIdle())
	assert.Equal(t, []string{"game-a"}, reg.GameIDs())
	assert.ErrorIs(t, b.Refresh(context.Background()), ErrStopped)

	// An open feed keeps the session alive however long nobody polls it.
	busy.set("game-a", true)
	regClock.Advance(10 * time.Minute)
	assert.Empty(t, reg.EvictIdle())

	busy.set("game-a", false)
	regClock.Advance(59 * time.Second)
	assert.Empty(t, reg.EvictIdle())
	regClock.Advance(time.Second)
	assert.Equal(t, []string{"game-a"}, reg.EvictIdle())
	assert.Empty(t, reg.GameIDs())
	assert.ErrorIs(t, a.Refresh(context.Background()), ErrStopped)

	fresh, err := reg.Get("game-a")
	require.NoError(t, err)
	assert.NotSame(t, a, fresh)
	assert.Equal(t, 2, factory.count("game-a"))
}

func TestRegistryEvictionDisabled(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	regClock := clockwork.NewFakeClock()
	reg := NewRegistry(context.Background(), factory.build, false, WithRegistryClock(regClock))
	defer reg.Close()

	_, err := reg.Get("game-a")
	require.NoError(t, err)
	regClock.Advance(24 * time.Hour)

	assert.Empty(t, reg.EvictIdle())
	assert.Equal(t, []string{"game-a"}, reg.GameIDs())
}

func TestRegistryRunEviction(t *testing.T) {
	factory := &countingFactory{clock: clockwork.NewFakeClock()}
	regClock := clockwork.NewFakeClock()
	reg := NewRegistry(context.Background(), factory.build, false,
		WithRegistryClock(regClock),
		WithIdleTimeout(time.Minute),
	)
	defer reg.Close()

	_, err := reg.Get("game-a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		reg.RunEviction(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, regClock.BlockUntilContext(waitCtx, 1))

	regClock.Advance(30 * time.Second)
	regClock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return len(reg.GameIDs()) == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
