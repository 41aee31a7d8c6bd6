package camera

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"golang.org/x/net/context"
)

// fakeCapture stands in for a capture device. Successful reads hand the
// caller a small real Mat so frame validation sees non-empty pixels.
// Reads run on the source's reader goroutine, so all state is guarded.
type fakeCapture struct {
	mu        sync.Mutex
	opened    bool
	readDelay time.Duration
	failAll   bool
	failAfter int

	reads  int
	closed bool
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	f.mu.Lock()
	delay := f.readDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.reads++
	fail := f.failAll || (f.failAfter > 0 && f.reads > f.failAfter)
	f.mu.Unlock()

	if fail {
		return false
	}
	m.Close()
	*m = gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	return true
}

func (f *fakeCapture) IsOpened() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCapture) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeCapture) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeCapture) setReadDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDelay = d
}

func TestOpenFallsBackToWorkingIndex(t *testing.T) {
	working := &fakeCapture{opened: true}

	open := func(index int) (capture, error) {
		if index == 0 {
			return nil, errors.New("device busy")
		}
		return working, nil
	}

	src := newSource(Config{Indices: []int{0, 1}, ReadTimeout: time.Second}, open)
	require.NoError(t, src.Open())

	assert.Equal(t, 1, src.Index())
	assert.True(t, src.Opened())
}

func TestOpenSkipsDeviceWithoutValidFirstFrame(t *testing.T) {
	dead := &fakeCapture{opened: true, failAll: true}
	working := &fakeCapture{opened: true}

	open := func(index int) (capture, error) {
		if index == 0 {
			return dead, nil
		}
		return working, nil
	}

	src := newSource(Config{Indices: []int{0, 1}, ReadTimeout: time.Second}, open)
	require.NoError(t, src.Open())

	assert.Equal(t, 1, src.Index())
	assert.True(t, dead.isClosed())
}

func TestOpenReleasesWedgedProbeDeviceAfterItsRead(t *testing.T) {
	wedged := &fakeCapture{opened: true, readDelay: 200 * time.Millisecond}

	src := newSource(Config{Indices: []int{0}, ReadTimeout: 30 * time.Millisecond}, func(int) (capture, error) {
		return wedged, nil
	})

	assert.ErrorIs(t, src.Open(), ErrUnavailable)
	assert.False(t, src.Opened())

	// The device is only released once its wedged read has returned.
	assert.Eventually(t, wedged.isClosed, 2*time.Second, 10*time.Millisecond)
}

func TestOpenReturnsUnavailableWhenAllIndicesFail(t *testing.T) {
	open := func(index int) (capture, error) {
		return nil, errors.New("no device")
	}

	src := newSource(Config{Indices: []int{0, 1, 2}, ReadTimeout: time.Second}, open)
	err := src.Open()

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, src.Opened())
	assert.Equal(t, -1, src.Index())
}

func TestReadBeforeOpen(t *testing.T) {
	src := newSource(Config{}, func(int) (capture, error) {
		return nil, errors.New("unused")
	})

	_, err := src.Read(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestReadReturnsFrame(t *testing.T) {
	dev := &fakeCapture{opened: true}
	src := newSource(Config{Indices: []int{0}, ReadTimeout: time.Second}, func(int) (capture, error) {
		return dev, nil
	})
	require.NoError(t, src.Open())

	frame, err := src.Read(context.Background())
	require.NoError(t, err)
	defer frame.Close()

	assert.Equal(t, 4, frame.Width)
	assert.Equal(t, 4, frame.Height)
	assert.False(t, frame.Timestamp.IsZero())
}

func TestReadFailureIsSurfaced(t *testing.T) {
	dev := &fakeCapture{opened: true, failAfter: 1}
	src := newSource(Config{Indices: []int{0}, ReadTimeout: time.Second}, func(int) (capture, error) {
		return dev, nil
	})
	require.NoError(t, src.Open())

	frame, err := src.Read(context.Background())
	assert.Nil(t, frame)
	assert.ErrorIs(t, err, ErrReadFailed)
}

func TestReadTimesOutOnWedgedDevice(t *testing.T) {
	dev := &fakeCapture{opened: true}
	src := newSource(Config{Indices: []int{0}, ReadTimeout: 500 * time.Millisecond}, func(int) (capture, error) {
		return dev, nil
	})
	require.NoError(t, src.Open())

	dev.setReadDelay(300 * time.Millisecond)
	src.cfg.ReadTimeout = 50 * time.Millisecond

	frame, err := src.Read(context.Background())
	assert.Nil(t, frame)
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestReadHonorsContextCancellation(t *testing.T) {
	dev := &fakeCapture{opened: true}
	src := newSource(Config{Indices: []int{0}, ReadTimeout: time.Second}, func(int) (capture, error) {
		return dev, nil
	})
	require.NoError(t, src.Open())

	dev.setReadDelay(300 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := src.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReadWaitsForAbandonedReadBeforeReusingDevice(t *testing.T) {
	dev := &fakeCapture{opened: true}
	src := newSource(Config{Indices: []int{0}, ReadTimeout: time.Second}, func(int) (capture, error) {
		return dev, nil
	})
	require.NoError(t, src.Open())

	// First read is abandoned by its caller while the device is slow.
	dev.setReadDelay(100 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := src.Read(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	dev.setReadDelay(0)

	// The next read must not overlap the abandoned one: it waits for it
	// to deliver, then issues exactly one fresh device read.
	frame, err := src.Read(context.Background())
	require.NoError(t, err)
	defer frame.Close()

	assert.Equal(t, 3, dev.readCount(), "probe + abandoned + fresh read")
}

func TestCloseDefersReleaseUntilAbandonedReadReturns(t *testing.T) {
	dev := &fakeCapture{opened: true}
	src := newSource(Config{Indices: []int{0}, ReadTimeout: time.Second}, func(int) (capture, error) {
		return dev, nil
	})
	require.NoError(t, src.Open())

	dev.setReadDelay(200 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := src.Read(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, src.Close())
	assert.False(t, src.Opened())

	// The abandoned read is still inside the device; Close must not have
	// touched the handle yet.
	assert.False(t, dev.isClosed())
	assert.Eventually(t, dev.isClosed, 2*time.Second, 10*time.Millisecond)
}

func TestCloseReleasesDevice(t *testing.T) {
	dev := &fakeCapture{opened: true}
	src := newSource(Config{Indices: []int{0}, ReadTimeout: time.Second}, func(int) (capture, error) {
		return dev, nil
	})
	require.NoError(t, src.Open())

	require.NoError(t, src.Close())
	assert.True(t, dev.isClosed())
	assert.False(t, src.Opened())

	// Closing again is a no-op.
	assert.NoError(t, src.Close())
}

func TestFrameCloseIsNilSafe(t *testing.T) {
	var frame *Frame
	assert.NotPanics(t, func() { frame.Close() })
	assert.NotPanics(t, func() { (&Frame{}).Close() })
}
