package session

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roulette-tablet/go/internal/serialdev"
)

const (
	DefaultPollInterval  = 1 * time.Second
	DefaultPopupDuration = 5 * time.Second
)

// DefaultInteractionItems lists items that need a target picked through the
// interaction flow instead of being used directly.
var DefaultInteractionItems = []string{"handcuffs"}

// Option configures a Session.
type Option func(*Session)

// WithClock injects the clock driving polls and notification timers.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithPollInterval sets the period of the poll task.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPopupDuration sets how long an action popup stays visible.
func WithPopupDuration(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.popupDuration = d
		}
	}
}

// WithInteractionItems replaces the table of items that start an interaction.
func WithInteractionItems(items ...string) Option {
	return func(s *Session) {
		s.interactionItems = make(map[string]bool, len(items))
		for _, item := range items {
			s.interactionItems[item] = true
		}
	}
}

// WithNotifier sets the sink for session events.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithDebug disables the poll timer; state is only fetched on start and on demand.
func WithDebug(debug bool) Option {
	return func(s *Session) { s.debug = debug }
}

// WithSerial attaches a serial device configured with opts.
func WithSerial(opts ...serialdev.DeviceOption) Option {
	return func(s *Session) {
		s.serialOpts = append(s.serialOpts, opts...)
		s.serialEnabled = true
	}
}
