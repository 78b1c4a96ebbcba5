package game_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mcdev12/roulette-tablet/go/clients"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
)

// FetchState returns the full snapshot of a game.
func (c *GameApiClient) FetchState(ctx context.Context, gameID string) (*models.GameState, error) {
	var state models.GameState
	if err := c.GetJSON(ctx, endpoint(StateEndpoint, gameID), &state); err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}
	return &state, nil
}

// SubmitAction sends a shoot or use_item action. Only the request shape is checked
// here; whether the action is legal is decided by the service.
func (c *GameApiClient) SubmitAction(ctx context.Context, gameID string, req models.ActionRequest) (*models.Ack, error) {
	switch req.Action {
	case models.ActionShoot:
		if req.TargetID == nil {
			return nil, fmt.Errorf("%w: shoot requires a target", clients.ErrInvalidAction)
		}
	case models.ActionUseItem:
		if req.ItemName == "" {
			return nil, fmt.Errorf("%w: use_item requires an item name", clients.ErrInvalidAction)
		}
	default:
		return nil, fmt.Errorf("%w: unknown action %q", clients.ErrInvalidAction, req.Action)
	}

	body, err := c.PostJSON(ctx, endpoint(ActionEndpoint, gameID), req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", req.Action, err)
	}
	return decodeAck(body), nil
}

// StartInteraction puts the game into target-selection mode for itemName.
func (c *GameApiClient) StartInteraction(ctx context.Context, gameID, itemName string) (*models.Ack, error) {
	if itemName == "" {
		return nil, fmt.Errorf("%w: interaction requires an item name", clients.ErrInvalidAction)
	}

	req := models.InteractionStartRequest{
		Action:   models.ActionUseItem,
		ItemName: itemName,
	}
	body, err := c.PostJSON(ctx, endpoint(InteractionStartEndpoint, gameID), req)
	if err != nil {
		return nil, fmt.Errorf("failed to start interaction: %w", err)
	}
	return decodeAck(body), nil
}

// CancelInteraction clears any pending interaction. The service treats it as idempotent.
func (c *GameApiClient) CancelInteraction(ctx context.Context, gameID string) (*models.Ack, error) {
	body, err := c.PostJSON(ctx, endpoint(InteractionCancelEndpoint, gameID), struct{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel interaction: %w", err)
	}
	return decodeAck(body), nil
}

func endpoint(format, gameID string) string {
	return fmt.Sprintf(format, url.PathEscape(gameID))
}

// decodeAck is best effort: services answer writes with anything from {} to a full state.
func decodeAck(body []byte) *models.Ack {
	ack := &models.Ack{Raw: body}
	_ = json.Unmarshal(body, ack)
	return ack
}
