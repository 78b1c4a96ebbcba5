package session

import (
	"context"
	"errors"

	"github.com/mcdev12/roulette-tablet/go/internal/events"
	"github.com/mcdev12/roulette-tablet/go/internal/serialdev"
)

// ConnectSerial opens the session's serial device. An empty port auto-selects.
func (s *Session) ConnectSerial(ctx context.Context, port string) error {
	if s.device == nil {
		return ErrSerialDisabled
	}
	if s.isStopped() {
		return ErrStopped
	}
	err := s.device.Connect(ctx, port)
	if errors.Is(err, serialdev.ErrDeviceClosed) {
		// Stopped between the check above and Connect.
		return ErrStopped
	}
	return err
}

// DisconnectSerial closes the serial device if open.
func (s *Session) DisconnectSerial() error {
	if s.device == nil {
		return ErrSerialDisabled
	}
	return s.device.Disconnect()
}

// SerialConnected reports whether the device is open.
func (s *Session) SerialConnected() bool {
	return s.device != nil && s.device.Connected()
}

func (s *Session) onSerialStatus(st serialdev.Status) {
	payload := events.SerialStatusPayload{Connected: st.Connected, Port: st.Port}
	if st.Err != nil {
		payload.Error = st.Err.Error()
	}
	s.emitEvent(events.EventTypeSerialStatus, payload)
}

func (s *Session) onSerialDiagnostic(d serialdev.Diagnostic) {
	payload := events.SerialDiagnosticPayload{
		Kind: string(d.Kind),
		Line: d.Line,
		Item: d.Item,
	}
	if d.Err != nil {
		payload.Error = d.Err.Error()
	}
	s.emitEvent(events.EventTypeSerialDiagnostic, payload)
}
