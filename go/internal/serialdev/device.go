package serialdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the reader board firmware.
const DefaultBaudRate = 9600

var (
	// ErrUnsupportedDevice is returned when no serial capability is available.
	ErrUnsupportedDevice = errors.New("serial devices are not supported on this host")

	// ErrAlreadyConnected is returned when a device is connected twice.
	ErrAlreadyConnected = errors.New("serial device already connected")

	// ErrPortBusy is returned when another process holds the port.
	ErrPortBusy = errors.New("serial port busy")

	// ErrDeviceClosed is returned by Connect after Close.
	ErrDeviceClosed = errors.New("serial device closed")
)

// Opener opens a named port.
type Opener func(name string, baudRate int) (io.ReadCloser, error)

// Lister enumerates available ports.
type Lister func() ([]string, error)

// Status is reported whenever the device connects or disconnects.
type Status struct {
	Connected bool
	Port      string
	Err       error
}

// OpenSerialPort opens name with 8N1 framing.
func OpenSerialPort(name string, baudRate int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) {
			switch portErr.Code() {
			case serial.PortBusy:
				return nil, fmt.Errorf("%w: %s", ErrPortBusy, name)
			case serial.PortNotFound, serial.InvalidSerialPort:
				return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedDevice, name, err)
			}
		}
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return port, nil
}

// ListSerialPorts enumerates the host's serial ports.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

type connection struct {
	port      io.ReadCloser
	name      string
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	release   func()
}

func (c *connection) close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.port.Close()
		c.release()
	})
	return c.closeErr
}

// Device owns at most one open port and the read task attached to it.
type Device struct {
	mu       sync.Mutex
	conn     *connection
	closed   bool
	opener   Opener
	lister   Lister
	baudRate int
	adapter  *Adapter
	guard    *PortGuard
	onStatus func(Status)
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithOpener replaces the port opener.
func WithOpener(o Opener) DeviceOption {
	return func(d *Device) { d.opener = o }
}

// WithLister replaces the port enumerator.
func WithLister(l Lister) DeviceOption {
	return func(d *Device) { d.lister = l }
}

// WithBaudRate sets the line speed.
func WithBaudRate(baud int) DeviceOption {
	return func(d *Device) {
		if baud > 0 {
			d.baudRate = baud
		}
	}
}

// WithPortGuard shares port ownership with other devices.
func WithPortGuard(g *PortGuard) DeviceOption {
	return func(d *Device) { d.guard = g }
}

// WithStatusHandler receives connect/disconnect notifications.
func WithStatusHandler(fn func(Status)) DeviceOption {
	return func(d *Device) { d.onStatus = fn }
}

// NewDevice creates a disconnected device feeding adapter.
func NewDevice(adapter *Adapter, opts ...DeviceOption) *Device {
	d := &Device{
		opener:   OpenSerialPort,
		lister:   ListSerialPorts,
		baudRate: DefaultBaudRate,
		adapter:  adapter,
		guard:    NewPortGuard(),
		onStatus: func(Status) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect opens portName (or the first enumerated port when empty) and starts reading.
func (d *Device) Connect(ctx context.Context, portName string) error {
	c, err := d.open(ctx, portName)
	if err != nil {
		return err
	}

	log.Info().Str("port", c.name).Int("baud_rate", d.baudRate).Msg("serial device connected")
	d.onStatus(Status{Connected: true, Port: c.name})

	go d.readLoop(c)
	return nil
}

func (d *Device) open(ctx context.Context, portName string) (*connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDeviceClosed
	}
	if d.conn != nil {
		return nil, ErrAlreadyConnected
	}

	if portName == "" {
		ports, err := d.lister()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedDevice, err)
		}
		if len(ports) == 0 {
			return nil, fmt.Errorf("%w: no serial ports found", ErrUnsupportedDevice)
		}
		portName = ports[0]
	}

	if err := d.guard.claim(portName); err != nil {
		return nil, err
	}

	port, err := d.opener(portName, d.baudRate)
	if err != nil {
		d.guard.release(portName)
		return nil, err
	}

	// The read task outlives the Connect call, so only values are inherited from ctx.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &connection{
		port:   port,
		name:   portName,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		release: func() {
			d.guard.release(portName)
		},
	}
	d.conn = c
	return c, nil
}

func (d *Device) readLoop(c *connection) {
	defer close(c.done)

	ctx := c.ctx

	err := d.adapter.Run(ctx, c.port)
	_ = c.close()

	d.mu.Lock()
	if d.conn == c {
		d.conn = nil
	}
	d.mu.Unlock()

	if ctx.Err() != nil {
		// Disconnect reports the status itself.
		return
	}
	c.cancel()

	if err != nil {
		log.Error().Err(err).Str("port", c.name).Msg("serial read error, device disconnected")
	} else {
		log.Info().Str("port", c.name).Msg("serial device closed the stream")
	}
	d.onStatus(Status{Connected: false, Port: c.name, Err: err})
}

// Disconnect closes the port and waits for the read task. Safe to call when not connected.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	c := d.conn
	d.conn = nil
	d.mu.Unlock()

	if c == nil {
		return nil
	}

	c.cancel()
	err := c.close()
	<-c.done

	log.Info().Str("port", c.name).Msg("serial device disconnected")
	d.onStatus(Status{Connected: false, Port: c.name})
	if err != nil {
		return fmt.Errorf("close serial port %s: %w", c.name, err)
	}
	return nil
}

// Close disconnects and refuses every later Connect.
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.Disconnect()
}

// Connected reports whether a port is open.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// PortName returns the open port's name, or "" when disconnected.
func (d *Device) PortName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ""
	}
	return d.conn.name
}
