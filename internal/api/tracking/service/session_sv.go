package trackingService

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"golang.org/x/time/rate"

	"ProjectGaze/internal/api/tracking"
)

type SessionState uint8

const (
	StateIdle SessionState = iota
	StateTracking
	StateClosed
)

var sessionStateNames = map[SessionState]string{
	StateIdle:     "idle",
	StateTracking: "tracking",
	StateClosed:   "closed",
}

func (s SessionState) String() string {
	return sessionStateNames[s]
}

// Session is the per-connection state machine. It owns at most one
// detection loop at a time. Outbound traffic is split into two streams
// with different delivery guarantees: frame results are droppable under
// backpressure, protocol replies (connection, pong, error) are not.
type Session struct {
	ID  string
	log *logrus.Logger
	svc *trackingService

	mu       sync.Mutex
	state    SessionState
	cancel   context.CancelFunc
	loopDone chan struct{}

	events  chan interface{}
	replies chan interface{}
	done    chan struct{}
}

func newSession(id string, svc *trackingService, log *logrus.Logger) *Session {
	return &Session{
		ID:      id,
		log:     log,
		svc:     svc,
		state:   StateIdle,
		events:  make(chan interface{}, 16),
		replies: make(chan interface{}, 16),
		done:    make(chan struct{}),
	}
}

// Events carries frame results. Neither stream channel is ever closed;
// Done signals teardown instead.
func (s *Session) Events() <-chan interface{} {
	return s.events
}

// Replies carries protocol replies, which take priority over frame
// results on the wire.
func (s *Session) Replies() <-chan interface{} {
	return s.replies
}

// Done is closed exactly once, when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send enqueues one frame result. It reports false once the session is
// closed. A full buffer drops the result instead of stalling the
// sender's camera turn behind a slow peer; the next frame supersedes it
// anyway.
func (s *Session) Send(msg interface{}) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- msg:
	default:
		s.log.WithFields(logrus.Fields{
			"session_id": s.ID,
		}).Warn("Outbound buffer full, dropping frame result")
	}
	return true
}

// Reply enqueues one protocol reply. Unlike frame results these are
// never dropped: every ping gets its pong and every failure its error
// message, so a full buffer blocks until the writer drains it or the
// session is torn down.
func (s *Session) Reply(msg interface{}) bool {
	select {
	case s.replies <- msg:
		return true
	case <-s.done:
		return false
	}
}

// StartTracking spawns the detection loop. A session already tracking
// keeps its existing loop; the command is idempotent.
func (s *Session) StartTracking() {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.state = StateTracking
	s.cancel = cancel
	s.loopDone = done
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"session_id": s.ID}).Info("Starting eye tracking")
	go s.trackLoop(ctx, done)
}

// StopTracking cancels the detection loop and waits for it to wind
// down, bounded by one in-flight frame read plus one pacing interval.
func (s *Session) StopTracking() {
	s.mu.Lock()
	if s.state != StateTracking {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.loopDone
	s.state = StateIdle
	s.cancel, s.loopDone = nil, nil
	s.mu.Unlock()

	cancel()
	<-done

	s.log.WithFields(logrus.Fields{"session_id": s.ID}).Info("Eye tracking stopped")
}

// Ping answers with a pong regardless of tracking state.
func (s *Session) Ping() {
	s.Reply(tracking.NewPongMessage(time.Now()))
}

// close transitions the session to its terminal state. Called by the
// manager on disconnect; never by the session itself.
func (s *Session) close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	cancel, loopDone := s.cancel, s.loopDone
	s.state = StateClosed
	s.cancel, s.loopDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-loopDone
	}

	close(s.done)
}

func (s *Session) trackLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.idleFromLoop(done)

	if err := s.svc.trackerStarted(); err != nil {
		// Idle first: the error message is the client's cue to retry,
		// so a retried start_tracking must not find the state stale.
		s.idleFromLoop(done)
		s.Reply(tracking.NewErrorMessage(err.Error(), time.Now()))
		return
	}
	defer s.svc.trackerStopped()

	pace := rate.NewLimiter(rate.Every(s.svc.cfg.FrameInterval), 1)
	for {
		if err := pace.Wait(ctx); err != nil {
			return
		}

		frame, err := s.svc.acquireFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithFields(logrus.Fields{
				"session_id": s.ID,
				"error":      err.Error(),
			}).Error("Frame acquisition failed")
			s.idleFromLoop(done)
			s.Reply(tracking.NewErrorMessage(err.Error(), time.Now()))
			return
		}

		detection, err := s.svc.engine.Detect(frame)
		frame.Close()
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": s.ID,
				"error":      err.Error(),
			}).Error("Detection failed")
			s.idleFromLoop(done)
			s.Reply(tracking.NewErrorMessage(err.Error(), time.Now()))
			return
		}

		verdict := s.svc.estimate(detection)
		if !s.Send(tracking.NewEyeDataMessage(verdict, time.Now())) {
			return
		}
	}
}

// idleFromLoop reverts a loop-initiated exit (camera or detection
// error) back to Idle. The loop identifies itself by its done channel
// so a stale loop unwinding late can never demote a successor that has
// already taken over the session.
func (s *Session) idleFromLoop(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateTracking || s.loopDone != done {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.state = StateIdle
	s.cancel = nil
	s.loopDone = nil
}
