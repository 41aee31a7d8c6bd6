package camera

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/net/context"
)

var (
	ErrUnavailable = errors.New("could not open camera - no camera available")
	ErrNotOpen     = errors.New("camera is not open")
	ErrReadFailed  = errors.New("failed to read frame from camera")
	ErrReadTimeout = errors.New("frame read timed out")
)

// Frame is a single captured image. It is consumed exactly once and must
// be closed by the consumer to release the underlying pixel buffer.
type Frame struct {
	Mat       gocv.Mat
	Width     int
	Height    int
	Timestamp time.Time
}

func (f *Frame) Close() {
	if f == nil {
		return
	}
	if f.Mat.Ptr() != nil {
		f.Mat.Close()
	}
}

type ICamera interface {
	// Open scans the configured device indices in order and keeps the
	// first one that initializes and yields a valid first frame.
	Open() error
	// Read captures one frame, bounded by the configured read timeout.
	Read(ctx context.Context) (*Frame, error)
	Close() error
	Opened() bool
	Index() int
}

type Config struct {
	Indices     []int
	ReadTimeout time.Duration
}

// capture is the subset of *gocv.VideoCapture the source needs,
// split out so device behavior can be faked in tests.
type capture interface {
	Read(m *gocv.Mat) bool
	IsOpened() bool
	Close() error
}

type openFunc func(index int) (capture, error)

func openDevice(index int) (capture, error) {
	dev, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

type readOutcome struct {
	frame *Frame
	err   error
}

type source struct {
	cfg  Config
	open openFunc

	mu    sync.Mutex
	cap   capture
	index int
	// pending is the outcome channel of a device read whose caller gave
	// up waiting. The driver goroutine is still inside cap.Read, so the
	// handle must not be read again or closed until it delivers.
	pending chan readOutcome
}

func New(cfg Config) ICamera {
	return newSource(cfg, openDevice)
}

func newSource(cfg Config, open openFunc) *source {
	if len(cfg.Indices) == 0 {
		cfg.Indices = []int{0, 1, 2}
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	return &source{cfg: cfg, open: open, index: -1}
}

func (s *source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap != nil {
		return nil
	}

	// Index 0 frequently fails in headless and containerized
	// environments even when another index works, so every configured
	// index gets a chance and must prove itself with a real frame.
	for _, idx := range s.cfg.Indices {
		cap, err := s.open(idx)
		if err != nil || cap == nil {
			continue
		}
		if !cap.IsOpened() {
			cap.Close()
			continue
		}

		ch := startRead(cap)
		timer := time.NewTimer(s.cfg.ReadTimeout)

		select {
		case out := <-ch:
			timer.Stop()
			if out.err != nil {
				cap.Close()
				continue
			}
			out.frame.Close()
			s.cap = cap
			s.index = idx
			return nil
		case <-timer.C:
			// The probe read is wedged inside the driver; the device
			// is released once it finally returns.
			releaseAfterRead(cap, ch)
			continue
		}
	}

	return ErrUnavailable
}

func (s *source) Read(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return nil, ErrNotOpen
	}

	timer := time.NewTimer(s.cfg.ReadTimeout)
	defer timer.Stop()

	// An abandoned read still owns the device. It has to deliver before
	// the handle may be touched again, so this read turn spends its
	// budget waiting for it first.
	if s.pending != nil {
		select {
		case out := <-s.pending:
			s.pending = nil
			out.frame.Close()
		case <-timer.C:
			return nil, fmt.Errorf("%w after %s", ErrReadTimeout, s.cfg.ReadTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ch := startRead(s.cap)

	select {
	case out := <-ch:
		return out.frame, out.err
	case <-timer.C:
		s.pending = ch
		return nil, fmt.Errorf("%w after %s", ErrReadTimeout, s.cfg.ReadTimeout)
	case <-ctx.Done():
		s.pending = ch
		return nil, ctx.Err()
	}
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return nil
	}

	cap, pending := s.cap, s.pending
	s.cap = nil
	s.index = -1
	s.pending = nil

	if pending != nil {
		releaseAfterRead(cap, pending)
		return nil
	}
	return cap.Close()
}

func (s *source) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cap != nil
}

func (s *source) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// startRead issues one blocking device read in its own goroutine and
// returns the channel its outcome arrives on.
func startRead(cap capture) chan readOutcome {
	ch := make(chan readOutcome, 1)
	go func() {
		mat := gocv.NewMat()
		if ok := cap.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			ch <- readOutcome{nil, ErrReadFailed}
			return
		}
		ch <- readOutcome{&Frame{
			Mat:       mat,
			Width:     mat.Cols(),
			Height:    mat.Rows(),
			Timestamp: time.Now().UTC(),
		}, nil}
	}()
	return ch
}

// releaseAfterRead closes a device whose last read was abandoned, once
// that read returns. Nothing else may hold the handle at this point.
func releaseAfterRead(cap capture, ch chan readOutcome) {
	go func() {
		out := <-ch
		out.frame.Close()
		cap.Close()
	}()
}
