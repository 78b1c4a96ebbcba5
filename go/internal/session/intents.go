package session

import (
	"context"
	"fmt"

	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Intent is an operator or device request, resolved once into a transport call.
type Intent interface {
	intentName() string
}

// Shoot fires the shotgun at a player.
type Shoot struct {
	TargetID int
}

// UseItem uses a held item. Items listed in the interaction table start a
// server-side target selection instead of being used directly.
type UseItem struct {
	Item     string
	TargetID *int
}

// SelectTarget resolves the pending interaction against a player.
type SelectTarget struct {
	TargetID int
}

// CancelInteraction leaves target-selection mode.
type CancelInteraction struct{}

// DeviceItem is an item use reported by the serial reader. It is always
// submitted directly, without a target.
type DeviceItem struct {
	Item string
}

func (Shoot) intentName() string             { return "shoot" }
func (UseItem) intentName() string           { return "use_item" }
func (SelectTarget) intentName() string      { return "select_target" }
func (CancelInteraction) intentName() string { return "cancel_interaction" }
func (DeviceItem) intentName() string        { return "device_item" }

// RequiresInteraction reports whether item goes through the interaction flow.
func (s *Session) RequiresInteraction(item string) bool {
	return s.interactionItems[item]
}

// Dispatch performs the write for intent and, when it succeeds, refreshes the
// state immediately. A failed refresh is left to the next poll. A failed write
// is returned as is and leaves the cached state untouched.
func (s *Session) Dispatch(ctx context.Context, intent Intent) (*models.Ack, error) {
	if s.isStopped() {
		return nil, ErrStopped
	}

	logger := log.With().Str("game_id", s.gameID).Str("intent", intent.intentName()).Logger()

	ack, err := s.perform(ctx, intent)
	if err != nil {
		logger.Error().Err(err).Msg("action failed")
		return nil, err
	}
	logger.Info().Msg("action submitted")

	if err := s.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("refresh after action failed")
	}
	return ack, nil
}

func (s *Session) perform(ctx context.Context, intent Intent) (*models.Ack, error) {
	switch in := intent.(type) {
	case Shoot:
		return s.client.SubmitAction(ctx, s.gameID, models.ActionRequest{
			Action:   models.ActionShoot,
			TargetID: models.IntPtr(in.TargetID),
		})

	case UseItem:
		if s.RequiresInteraction(in.Item) {
			return s.client.StartInteraction(ctx, s.gameID, in.Item)
		}
		return s.client.SubmitAction(ctx, s.gameID, models.ActionRequest{
			Action:   models.ActionUseItem,
			TargetID: in.TargetID,
			ItemName: in.Item,
		})

	case SelectTarget:
		pending := s.PendingInteraction()
		if pending == nil {
			return nil, ErrNoPendingInteraction
		}
		return s.client.SubmitAction(ctx, s.gameID, models.ActionRequest{
			Action:   models.ActionUseItem,
			TargetID: models.IntPtr(in.TargetID),
			ItemName: pending.Item,
		})

	case CancelInteraction:
		return s.client.CancelInteraction(ctx, s.gameID)

	case DeviceItem:
		return s.client.SubmitAction(ctx, s.gameID, models.ActionRequest{
			Action:   models.ActionUseItem,
			ItemName: in.Item,
		})

	default:
		return nil, fmt.Errorf("unsupported intent %T", intent)
	}
}

// PendingInteraction returns the interaction reported by the last applied snapshot.
func (s *Session) PendingInteraction() *models.PendingInteraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil || s.state.PendingInteraction == nil {
		return nil
	}
	p := *s.state.PendingInteraction
	return &p
}

// DispatchDeviceItem lets the session act as the serial adapter's dispatcher.
func (s *Session) DispatchDeviceItem(ctx context.Context, item string) error {
	_, err := s.Dispatch(ctx, DeviceItem{Item: item})
	return err
}
