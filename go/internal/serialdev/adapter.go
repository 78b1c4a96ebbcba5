package serialdev

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// ItemDispatcher submits an item use detected by the device.
type ItemDispatcher interface {
	DispatchDeviceItem(ctx context.Context, item string) error
}

// DiagnosticKind labels adapter diagnostics.
type DiagnosticKind string

const (
	DiagnosticLine           DiagnosticKind = "line"
	DiagnosticItemDispatched DiagnosticKind = "item_dispatched"
	DiagnosticItemFailed     DiagnosticKind = "item_failed"
	DiagnosticTrigger        DiagnosticKind = "trigger"
	DiagnosticIgnored        DiagnosticKind = "ignored"
	DiagnosticReadError      DiagnosticKind = "read_error"
	DiagnosticLineDropped    DiagnosticKind = "line_dropped"
)

// Diagnostic is reported for every line and every dispatch outcome.
type Diagnostic struct {
	Kind DiagnosticKind
	Line string
	Item string
	Err  error
}

// Adapter turns a device byte stream into game actions.
type Adapter struct {
	dispatcher   ItemDispatcher
	onDiagnostic func(Diagnostic)
}

// NewAdapter creates an adapter. onDiagnostic may be nil.
func NewAdapter(dispatcher ItemDispatcher, onDiagnostic func(Diagnostic)) *Adapter {
	if onDiagnostic == nil {
		onDiagnostic = func(Diagnostic) {}
	}
	return &Adapter{
		dispatcher:   dispatcher,
		onDiagnostic: onDiagnostic,
	}
}

// Run reads r until EOF, a read error or ctx cancellation. Dispatch failures are
// reported as diagnostics and never stop the loop.
func (a *Adapter) Run(ctx context.Context, r io.Reader) error {
	err := ReadLines(ctx, r, func(line string) {
		a.HandleLine(ctx, line)
	}, func(n int) {
		a.onDiagnostic(Diagnostic{Kind: DiagnosticLineDropped, Err: fmt.Errorf("line exceeded %d bytes (%d dropped)", MaxLineLength, n)})
	})
	if err != nil && ctx.Err() == nil {
		a.onDiagnostic(Diagnostic{Kind: DiagnosticReadError, Err: err})
		return err
	}
	return nil
}

// HandleLine classifies one complete line and acts on it.
func (a *Adapter) HandleLine(ctx context.Context, raw string) {
	line := Classify(raw)
	a.onDiagnostic(Diagnostic{Kind: DiagnosticLine, Line: line.Raw})

	switch line.Kind {
	case LineItemDetected:
		log.Info().Str("code", line.Code).Str("item", line.Item).Msg("item detected")
		if err := a.dispatcher.DispatchDeviceItem(ctx, line.Item); err != nil {
			log.Error().Err(err).Str("item", line.Item).Msg("failed to use detected item")
			a.onDiagnostic(Diagnostic{Kind: DiagnosticItemFailed, Line: line.Raw, Item: line.Item, Err: err})
			return
		}
		a.onDiagnostic(Diagnostic{Kind: DiagnosticItemDispatched, Line: line.Raw, Item: line.Item})

	case LineTriggerPulled:
		// TODO: dispatch a shoot once the trigger board reports which player it is aimed at.
		log.Info().Msg("trigger detected")
		a.onDiagnostic(Diagnostic{Kind: DiagnosticTrigger, Line: line.Raw})

	default:
		log.Debug().Str("line", line.Raw).Msg("ignoring unrecognized serial line")
		a.onDiagnostic(Diagnostic{Kind: DiagnosticIgnored, Line: line.Raw})
	}
}

// MaxLineLength bounds a single device line. Longer segments are dropped up to
// the next terminator and reading continues.
const MaxLineLength = 4096

// ReadLines frames r into trimmed, non-empty lines terminated by \n or \r\n.
// A trailing segment without terminator is emitted at EOF. onDrop, if not nil,
// receives the size of every segment discarded for exceeding MaxLineLength.
func ReadLines(ctx context.Context, r io.Reader, fn func(line string), onDrop func(n int)) error {
	splitter := &lineSplitter{onDrop: onDrop}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, MaxLineLength), 2*MaxLineLength)
	scanner.Split(splitter.split)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// lineSplitter is a bufio.SplitFunc that never lets a segment outgrow
// MaxLineLength, so a noisy device cannot fail the scanner.
type lineSplitter struct {
	discarding bool
	dropped    int
	onDrop     func(n int)
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		if s.discarding {
			s.finishDrop(0)
		}
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		if s.discarding {
			s.finishDrop(i)
			return i + 1, nil, nil
		}
		return i + 1, data[:i], nil
	}

	switch {
	case s.discarding:
		s.dropped += len(data)
		return len(data), nil, nil
	case len(data) >= MaxLineLength:
		s.discarding = true
		s.dropped = len(data)
		return len(data), nil, nil
	case atEOF:
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *lineSplitter) finishDrop(tail int) {
	n := s.dropped + tail
	s.discarding = false
	s.dropped = 0
	log.Warn().Int("bytes", n).Msg("dropping over-long serial line")
	if s.onDrop != nil {
		s.onDrop(n)
	}
}
