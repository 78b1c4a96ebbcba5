package serialdev

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (s *statusLog) record(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *statusLog) all() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status(nil), s.statuses...)
}

func pipeOpener(t *testing.T) (Opener, func() *io.PipeWriter, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var writer *io.PipeWriter
	var opened []string

	opener := func(name string, baud int) (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		pr, pw := io.Pipe()
		writer = pw
		opened = append(opened, name)
		return pr, nil
	}
	current := func() *io.PipeWriter {
		mu.Lock()
		defer mu.Unlock()
		return writer
	}
	return opener, current, &opened
}

func TestDeviceConnectReadDisconnect(t *testing.T) {
	opener, writer, opened := pipeOpener(t)
	dispatcher := &fakeDispatcher{}
	statuses := &statusLog{}

	device := NewDevice(NewAdapter(dispatcher, nil),
		WithOpener(opener),
		WithStatusHandler(statuses.record),
	)

	require.NoError(t, device.Connect(context.Background(), "/dev/ttyUSB0"))
	assert.True(t, device.Connected())
	assert.Equal(t, "/dev/ttyUSB0", device.PortName())
	assert.Equal(t, []string{"/dev/ttyUSB0"}, *opened)

	_, err := writer().Write([]byte("ITEM:CIG\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return len(dispatcher.dispatched()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, device.Connect(context.Background(), "/dev/ttyUSB1"), ErrAlreadyConnected)

	require.NoError(t, device.Disconnect())
	assert.False(t, device.Connected())
	assert.NoError(t, device.Disconnect())

	assert.Equal(t, []Status{
		{Connected: true, Port: "/dev/ttyUSB0"},
		{Connected: false, Port: "/dev/ttyUSB0"},
	}, statuses.all())
}

func TestDeviceAutoSelectsFirstPort(t *testing.T) {
	opener, _, opened := pipeOpener(t)
	device := NewDevice(NewAdapter(&fakeDispatcher{}, nil),
		WithOpener(opener),
		WithLister(func() ([]string, error) { return []string{"COM3", "COM4"}, nil }),
	)

	require.NoError(t, device.Connect(context.Background(), ""))
	defer device.Disconnect()
	assert.Equal(t, []string{"COM3"}, *opened)
}

func TestDeviceUnsupported(t *testing.T) {
	device := NewDevice(NewAdapter(&fakeDispatcher{}, nil),
		WithLister(func() ([]string, error) { return nil, nil }),
	)
	assert.ErrorIs(t, device.Connect(context.Background(), ""), ErrUnsupportedDevice)

	device = NewDevice(NewAdapter(&fakeDispatcher{}, nil),
		WithLister(func() ([]string, error) { return nil, errors.New("no enumerator") }),
	)
	assert.ErrorIs(t, device.Connect(context.Background(), ""), ErrUnsupportedDevice)
	assert.False(t, device.Connected())
}

func TestDeviceReadErrorMarksDisconnected(t *testing.T) {
	opener, writer, opened := pipeOpener(t)
	statuses := &statusLog{}
	device := NewDevice(NewAdapter(&fakeDispatcher{}, nil),
		WithOpener(opener),
		WithStatusHandler(statuses.record),
	)

	require.NoError(t, device.Connect(context.Background(), "ttyACM0"))
	_ = writer().CloseWithError(errors.New("unplugged"))

	assert.Eventually(t, func() bool { return !device.Connected() }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(statuses.all()) == 2 }, time.Second, 5*time.Millisecond)

	last := statuses.all()[1]
	assert.False(t, last.Connected)
	assert.EqualError(t, last.Err, "unplugged")

	// No automatic retry.
	assert.Len(t, *opened, 1)
}

func TestDeviceOpenFailure(t *testing.T) {
	device := NewDevice(NewAdapter(&fakeDispatcher{}, nil),
		WithOpener(func(name string, baud int) (io.ReadCloser, error) {
			return nil, ErrPortBusy
		}),
	)
	assert.ErrorIs(t, device.Connect(context.Background(), "COM1"), ErrPortBusy)
	assert.False(t, device.Connected())
}

func TestPortGuardSharedAcrossDevices(t *testing.T) {
	opener, _, _ := pipeOpener(t)
	guard := NewPortGuard()

	first := NewDevice(NewAdapter(&fakeDispatcher{}, nil), WithOpener(opener), WithPortGuard(guard))
	second := NewDevice(NewAdapter(&fakeDispatcher{}, nil), WithOpener(opener), WithPortGuard(guard))

	require.NoError(t, first.Connect(context.Background(), "COM5"))
	assert.ErrorIs(t, second.Connect(context.Background(), "COM5"), ErrPortBusy)

	require.NoError(t, first.Disconnect())
	require.NoError(t, second.Connect(context.Background(), "COM5"))
	require.NoError(t, second.Disconnect())
}

func TestDeviceCloseRefusesConnect(t *testing.T) {
	opener, _, opened := pipeOpener(t)
	guard := NewPortGuard()
	statuses := &statusLog{}
	device := NewDevice(NewAdapter(&fakeDispatcher{}, nil),
		WithOpener(opener),
		WithPortGuard(guard),
		WithStatusHandler(statuses.record),
	)

	require.NoError(t, device.Connect(context.Background(), "COM7"))
	require.NoError(t, device.Close())
	assert.False(t, device.Connected())

	assert.ErrorIs(t, device.Connect(context.Background(), "COM7"), ErrDeviceClosed)
	assert.False(t, device.Connected())
	assert.Len(t, *opened, 1)
	assert.Len(t, statuses.all(), 2)

	// The refused connect never claimed the port.
	other := NewDevice(NewAdapter(&fakeDispatcher{}, nil), WithOpener(opener), WithPortGuard(guard))
	require.NoError(t, other.Connect(context.Background(), "COM7"))
	require.NoError(t, other.Close())
}

func TestDeviceCloseRacingConnect(t *testing.T) {
	opener, _, _ := pipeOpener(t)
	guard := NewPortGuard()

	for i := 0; i < 50; i++ {
		device := NewDevice(NewAdapter(&fakeDispatcher{}, nil), WithOpener(opener), WithPortGuard(guard))

		errCh := make(chan error, 1)
		go func() { errCh <- device.Connect(context.Background(), "COM8") }()
		require.NoError(t, device.Close())

		// Either Connect lost and was refused, or it won and Close tore it down.
		if err := <-errCh; err != nil {
			require.ErrorIs(t, err, ErrDeviceClosed)
		}
		require.False(t, device.Connected())
	}
}
