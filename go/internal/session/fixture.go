package session

import (
	"context"
	"fmt"

	"github.com/mcdev12/roulette-tablet/go/clients"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
)

// FixtureClient serves a fixed snapshot and refuses writes. It backs debug mode.
type FixtureClient struct {
	state *models.GameState
}

func NewFixtureClient(state *models.GameState) *FixtureClient {
	return &FixtureClient{state: state}
}

func (c *FixtureClient) FetchState(ctx context.Context, gameID string) (*models.GameState, error) {
	return c.state, nil
}

func (c *FixtureClient) SubmitAction(ctx context.Context, gameID string, req models.ActionRequest) (*models.Ack, error) {
	return nil, fmt.Errorf("%w: debug snapshot is read-only", clients.ErrInvalidAction)
}

func (c *FixtureClient) StartInteraction(ctx context.Context, gameID, itemName string) (*models.Ack, error) {
	return nil, fmt.Errorf("%w: debug snapshot is read-only", clients.ErrInvalidAction)
}

func (c *FixtureClient) CancelInteraction(ctx context.Context, gameID string) (*models.Ack, error) {
	return nil, fmt.Errorf("%w: debug snapshot is read-only", clients.ErrInvalidAction)
}

// NewDebug builds a session over the fixed local snapshot. It never polls.
func NewDebug(opts ...Option) *Session {
	opts = append(opts, WithDebug(true))
	return New(models.DebugSessionID, NewFixtureClient(models.DebugSnapshot()), opts...)
}
